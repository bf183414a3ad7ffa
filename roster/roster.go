// Package roster reads and validates the tournament input roster.
package roster

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/Dosada05/debate-tournament/models"
	"github.com/Dosada05/debate-tournament/utils"
)

var (
	ErrNoJudges          = errors.New("judge roster is empty")
	ErrTooManyTeams      = errors.New("more teams than seats (4 x room_total)")
	ErrDuplicateTeam     = errors.New("duplicate team name")
	ErrTeamNameRequired  = errors.New("team name is required")
	ErrInvalidDimensions = errors.New("room_total, round_num and judge_num_per_room must be positive")
	ErrTeamNotFound      = errors.New("team not in roster")
	ErrReservedTeamName  = errors.New("team name is reserved for byes")
	ErrDuplicateJudge    = errors.New("duplicate judge name")
)

// fileRoster mirrors models.Roster but keeps problem ids as strings so the
// same loader accepts JSON objects, whose keys are always strings.
type fileRoster struct {
	Teams           []models.Team       `yaml:"teams"`
	Judges          map[string][]string `yaml:"judges"`
	ProblemSet      map[string]string   `yaml:"problem_set"`
	RoomTotal       int                 `yaml:"room_total"`
	RoundNum        int                 `yaml:"round_num"`
	JudgeNumPerRoom int                 `yaml:"judge_num_per_room"`
}

// Load reads a YAML or JSON roster file and validates it.
func Load(path string) (*Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read roster %s: %w", path, err)
	}
	r, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("roster %s: %w", path, err)
	}
	return r, nil
}

// Parse decodes roster bytes and validates the result.
func Parse(data []byte) (*Roster, error) {
	var fr fileRoster
	if err := yaml.Unmarshal(data, &fr); err != nil {
		return nil, fmt.Errorf("failed to decode roster: %w", err)
	}

	problems := make(map[int]string, len(fr.ProblemSet))
	for key, title := range fr.ProblemSet {
		id, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("problem_set key %q is not an integer id", key)
		}
		problems[id] = title
	}

	r := New(models.Roster{
		Teams:           fr.Teams,
		Judges:          fr.Judges,
		ProblemSet:      problems,
		RoomTotal:       fr.RoomTotal,
		RoundNum:        fr.RoundNum,
		JudgeNumPerRoom: fr.JudgeNumPerRoom,
	})
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Roster wraps the input contract with lookups used by the services.
type Roster struct {
	models.Roster
	byName map[string]int
}

func New(m models.Roster) *Roster {
	r := &Roster{Roster: m, byName: make(map[string]int, len(m.Teams))}
	for i, team := range m.Teams {
		key := utils.NormalizeName(team.Name)
		if _, exists := r.byName[key]; !exists {
			r.byName[key] = i
		}
	}
	return r
}

func (r *Roster) Validate() error {
	if r.RoomTotal < 1 || r.RoundNum < 1 || r.JudgeNumPerRoom < 1 {
		return fmt.Errorf("%w: got room_total=%d round_num=%d judge_num_per_room=%d",
			ErrInvalidDimensions, r.RoomTotal, r.RoundNum, r.JudgeNumPerRoom)
	}
	if len(r.Teams) > models.NumSides*r.RoomTotal {
		return fmt.Errorf("%w: %d teams for %d rooms", ErrTooManyTeams, len(r.Teams), r.RoomTotal)
	}
	seen := make(map[string]struct{}, len(r.Teams))
	for _, team := range r.Teams {
		if team.Name == "" {
			return ErrTeamNameRequired
		}
		key := utils.NormalizeName(team.Name)
		if key == utils.NormalizeName(models.ByeName) {
			return fmt.Errorf("%w: %q", ErrReservedTeamName, team.Name)
		}
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateTeam, team.Name)
		}
		seen[key] = struct{}{}
	}

	judges := r.JudgeList()
	if len(judges) == 0 {
		return ErrNoJudges
	}
	// A judge is identified by name alone, whatever school lists them.
	schoolOf := make(map[string]string, len(judges))
	for _, judge := range judges {
		key := utils.NormalizeName(judge.Name)
		if school, dup := schoolOf[key]; dup {
			return fmt.Errorf("%w: %q listed under %q and %q", ErrDuplicateJudge, judge.Name, school, judge.School)
		}
		schoolOf[key] = judge.School
	}
	return nil
}

// JudgeList flattens the school map: schools sorted, names in file order.
func (r *Roster) JudgeList() []models.Judge {
	schools := make([]string, 0, len(r.Judges))
	for school := range r.Judges {
		schools = append(schools, school)
	}
	sort.Strings(schools)

	judges := make([]models.Judge, 0)
	for _, school := range schools {
		for _, name := range r.Judges[school] {
			if name == "" {
				continue
			}
			judges = append(judges, models.Judge{Name: name, School: school})
		}
	}
	return judges
}

// QuestionIDs returns the problem set ids in ascending order.
func (r *Roster) QuestionIDs() []int {
	ids := make([]int, 0, len(r.ProblemSet))
	for id := range r.ProblemSet {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func (r *Roster) Team(name string) (models.Team, error) {
	i, ok := r.byName[utils.NormalizeName(name)]
	if !ok {
		return models.Team{}, fmt.Errorf("%w: %q", ErrTeamNotFound, name)
	}
	return r.Teams[i], nil
}

// Players numbers a team's members 1..n in roster order.
func Players(team models.Team) []models.PlayerData {
	players := make([]models.PlayerData, len(team.Members))
	for i, m := range team.Members {
		players[i] = models.PlayerData{ID: i + 1, Name: m.Name, Gender: m.Gender}
	}
	return players
}
