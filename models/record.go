package models

// Role is the outcome stored on a RecordData entry.
type Role string

const (
	RoleReported Role = "R"
	RoleOpposed  Role = "O"
	RoleReviewed Role = "V"
	RoleRefused  Role = "X"
	RoleBanned   Role = "B"
)

func (r Role) Valid() bool {
	switch r {
	case RoleReported, RoleOpposed, RoleReviewed, RoleRefused, RoleBanned:
		return true
	}
	return false
}

// IsControl reports whether the master player controlled the stage.
func (r Role) IsControl() bool {
	return r == RoleReported || r == RoleOpposed || r == RoleReviewed
}

// RecordData is one append-only entry of a team's match history.
type RecordData struct {
	Round      int     `json:"round" db:"round"`
	Phase      int     `json:"phase" db:"phase"`
	RoomID     int     `json:"roomID" db:"room_id"`
	QuestionID int     `json:"questionID" db:"question_id"`
	MasterID   int     `json:"masterID" db:"master_id"`
	Role       Role    `json:"role" db:"role"`
	Score      float64 `json:"score" db:"score"`
	Weight     float64 `json:"weight" db:"weight"`
}

// PlayerData ids are scoped to one team's roster.
type PlayerData struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Gender string `json:"gender"`
}
