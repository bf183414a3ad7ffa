package models

import "fmt"

// Side is one of the four roles a team plays in a room.
type Side int

const (
	SideReporter Side = iota
	SideOpponent
	SideReviewer
	SideObserver
)

// NumSides is the number of occupied-or-bye seats in every room.
const NumSides = 4

var Sides = [NumSides]Side{SideReporter, SideOpponent, SideReviewer, SideObserver}

func (s Side) String() string {
	switch s {
	case SideReporter:
		return "Reporter"
	case SideOpponent:
		return "Opponent"
	case SideReviewer:
		return "Reviewer"
	case SideObserver:
		return "Observer"
	default:
		return fmt.Sprintf("Side(%d)", int(s))
	}
}

// ParseSide accepts the side name case-sensitively as returned by String.
func ParseSide(s string) (Side, error) {
	for _, side := range Sides {
		if side.String() == s {
			return side, nil
		}
	}
	return 0, fmt.Errorf("unknown side %q", s)
}

// QuestionType is the outcome a question carried for a team.
type QuestionType string

const (
	QuestionOptional QuestionType = "P"
	QuestionReported QuestionType = "R"
	QuestionOpposed  QuestionType = "O"
	QuestionRefused  QuestionType = "X"
	QuestionBan      QuestionType = "B"
)

type RoundType string

const (
	RoundNormal  RoundType = "NORMAL"
	RoundSpecial RoundType = "SPECIAL" // self-selected questions
)

// BanRule excludes a question for a team that previously played Side
// against that question with the given Outcome.
type BanRule struct {
	Side    Side
	Outcome QuestionType
}

func (r BanRule) String() string {
	return fmt.Sprintf("(%s,%s)", r.Side, r.Outcome)
}
