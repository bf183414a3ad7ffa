package services

// Notifier pushes events to connected clients. *brackets.Hub implements it.
type Notifier interface {
	Notify(eventType, room string, payload interface{})
}

type nopNotifier struct{}

func (nopNotifier) Notify(string, string, interface{}) {}
