package models

type Member struct {
	Name   string `json:"name" yaml:"name"`
	Gender string `json:"gender" yaml:"gender"`
}

// Team is identified by Name within a tournament.
type Team struct {
	Name            string   `json:"name" yaml:"name"`
	School          string   `json:"school" yaml:"school"`
	Members         []Member `json:"members" yaml:"members"`
	BannedQuestions []int    `json:"banned_questions,omitempty" yaml:"banned_questions,omitempty"`
}

type Judge struct {
	Name   string `json:"name" db:"judge_name"`
	School string `json:"school" db:"school"`
}
