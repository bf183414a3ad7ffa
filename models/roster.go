package models

// Roster is the tournament input read from the roster file.
type Roster struct {
	Teams           []Team              `json:"teams" yaml:"teams"`
	Judges          map[string][]string `json:"judges" yaml:"judges"`
	ProblemSet      map[int]string      `json:"problem_set" yaml:"problem_set"`
	RoomTotal       int                 `json:"room_total" yaml:"room_total"`
	RoundNum        int                 `json:"round_num" yaml:"round_num"`
	JudgeNumPerRoom int                 `json:"judge_num_per_room" yaml:"judge_num_per_room"`
}
