package services

import "errors"

// Errors shared by the services and mapped to HTTP statuses by the handlers.
var (
	ErrNotFound         = errors.New("requested resource not found")
	ErrValidationFailed = errors.New("validation failed")

	ErrScheduleNotGenerated = errors.New("schedule has not been generated yet")
	ErrTeamNotFound         = errors.New("team not found")
	ErrRoundOutOfRange      = errors.New("round is out of range")
	ErrRoomOutOfRange       = errors.New("room is out of range")
	ErrInvalidSide          = errors.New("invalid side")

	ErrInvalidRecord  = errors.New("invalid match record")
	ErrRecordConflict = errors.New("match record already exists")
)
