// Package rules implements the format-specific competition rules: which
// questions a team may pick, which players may control a stage, how judge
// scores combine, and how stage results are weighted.
//
// Every Rule is stateless. Callers pass the full history each time, so a Rule
// may be shared by any number of concurrent matches.
package rules

import (
	"log/slog"
	"strings"

	"github.com/Dosada05/debate-tournament/models"
)

const DefaultMinQuestionCount = 5

// QuestionQuery carries the inputs of OptionalQuestionIDs.
type QuestionQuery struct {
	ReporterHistory []models.RecordData
	OpponentHistory []models.RecordData
	// UsedQuestionIDs are the questions already reported in this round by any team.
	UsedQuestionIDs []int
	QuestionBank    []int
	RoundType       models.RoundType
}

type Rule interface {
	Type() string

	OptionalQuestionIDs(q QuestionQuery) []int

	// ValidPlayerIDs filters the roster down to players who may control the next stage.
	// roundMasters lists the ids of players who already controlled a stage this round.
	ValidPlayerIDs(roundMasters []int, history []models.RecordData, players []models.PlayerData) []int

	Score(scores []float64) float64

	RepScoreWeight(history []models.RecordData, isRefuse bool) float64
	OppScoreWeight() float64
	RevScoreWeight() float64
}

type Options struct {
	MinQuestionCount int
}

type constructor func(opts Options, logger *slog.Logger) Rule

var registry = map[string]constructor{
	CUPTType: newCUPT,
}

// New returns the rule set registered under format. Unknown formats fall back
// to CUPT with a warning.
func New(format string, opts Options, logger *slog.Logger) Rule {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MinQuestionCount <= 0 {
		opts.MinQuestionCount = DefaultMinQuestionCount
	}
	ctor, ok := registry[strings.ToUpper(format)]
	if !ok {
		logger.Warn("unknown rule format, falling back to CUPT", slog.String("format", format))
		ctor = newCUPT
	}
	return ctor(opts, logger)
}

// Formats lists the registered format names.
func Formats() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}
