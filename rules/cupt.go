package rules

import (
	"log/slog"
	"sort"

	"github.com/Dosada05/debate-tournament/models"
)

const CUPTType = "CUPT"

const (
	cuptMaxControlsPerRound = 2
	cuptMaxControlsPerMatch = 5
	cuptMaxReportsPerMatch  = 3
	cuptMaxRefusedQuestions = 5
	cuptInitialRepWeight    = 3.0
	cuptRefusePenalty       = 0.2
	cuptOppWeight           = 2.0
	cuptRevWeight           = 1.0
)

// Relaxable bans, dropped from the end while the pool is too small.
var cuptBanRules = []models.BanRule{
	{Side: models.SideReporter, Outcome: models.QuestionRefused},
	{Side: models.SideReporter, Outcome: models.QuestionReported},
	{Side: models.SideOpponent, Outcome: models.QuestionOpposed},
	{Side: models.SideOpponent, Outcome: models.QuestionReported},
}

var cuptSpecialBanRules = []models.BanRule{
	{Side: models.SideReporter, Outcome: models.QuestionRefused},
}

type cupt struct {
	minQuestionCount int
	logger           *slog.Logger
}

func newCUPT(opts Options, logger *slog.Logger) Rule {
	return &cupt{minQuestionCount: opts.MinQuestionCount, logger: logger}
}

func (c *cupt) Type() string {
	return CUPTType
}

func (c *cupt) OptionalQuestionIDs(q QuestionQuery) []int {
	used := make(map[int]bool, len(q.UsedQuestionIDs))
	for _, id := range q.UsedQuestionIDs {
		used[id] = true
	}
	bank := make([]int, 0, len(q.QuestionBank))
	seen := make(map[int]bool, len(q.QuestionBank))
	for _, id := range q.QuestionBank {
		if used[id] || seen[id] {
			continue
		}
		seen[id] = true
		bank = append(bank, id)
	}
	sort.Ints(bank)
	c.logger.Debug("question bank after round exclusion", slog.Any("bank", bank))

	if len(bank) <= c.minQuestionCount {
		c.logger.Warn("too few questions to apply ban rules",
			slog.Int("available", len(bank)),
			slog.Int("min_question_count", c.minQuestionCount))
		return bank
	}

	if q.RoundType == models.RoundSpecial {
		return c.applyBans(bank, q, cuptSpecialBanRules)
	}

	banRules := cuptBanRules
	for {
		pool := c.applyBans(bank, q, banRules)
		if len(pool) >= c.minQuestionCount || len(banRules) == 0 {
			return pool
		}
		banRules = banRules[:len(banRules)-1]
		c.logger.Debug("relaxing ban rules", slog.Int("pool", len(pool)), slog.Int("rules_left", len(banRules)))
	}
}

// applyBans removes from bank every question that either team played with a
// (side, outcome) listed in rules.
func (c *cupt) applyBans(bank []int, q QuestionQuery, rules []models.BanRule) []int {
	active := make(map[models.BanRule]bool, len(rules))
	for _, rule := range rules {
		active[rule] = true
	}

	banned := make(map[int]bool)
	collect := func(side models.Side, history []models.RecordData) {
		for _, rec := range history {
			if active[models.BanRule{Side: side, Outcome: models.QuestionType(rec.Role)}] {
				banned[rec.QuestionID] = true
			}
		}
	}
	collect(models.SideReporter, q.ReporterHistory)
	collect(models.SideOpponent, q.OpponentHistory)

	pool := make([]int, 0, len(bank))
	for _, id := range bank {
		if !banned[id] {
			pool = append(pool, id)
		}
	}
	c.logger.Debug("ban rules applied",
		slog.Any("rules", rules),
		slog.Int("banned", len(banned)),
		slog.Any("pool", pool))
	return pool
}

func (c *cupt) ValidPlayerIDs(roundMasters []int, history []models.RecordData, players []models.PlayerData) []int {
	roundControls := make(map[int]int, len(roundMasters))
	for _, id := range roundMasters {
		roundControls[id]++
	}
	matchControls := make(map[int]int)
	matchReports := make(map[int]int)
	for _, rec := range history {
		if rec.Role.IsControl() {
			matchControls[rec.MasterID]++
		}
		if rec.Role == models.RoleReported {
			matchReports[rec.MasterID]++
		}
	}

	stages := []struct {
		name string
		keep func(id int) bool
	}{
		{"controls this round", func(id int) bool { return roundControls[id] < cuptMaxControlsPerRound }},
		{"controls this match", func(id int) bool { return matchControls[id] < cuptMaxControlsPerMatch }},
		{"reports this match", func(id int) bool { return matchReports[id] < cuptMaxReportsPerMatch }},
	}

	ids := make([]int, 0, len(players))
	for _, p := range players {
		ids = append(ids, p.ID)
	}
	for _, stage := range stages {
		kept := make([]int, 0, len(ids))
		for _, id := range ids {
			if stage.keep(id) {
				kept = append(kept, id)
			}
		}
		c.logger.Debug("player filter", slog.String("stage", stage.name), slog.Any("players", kept))
		ids = kept
	}
	return ids
}

// Score combines judge scores. Five judges: half of the extremes is dropped.
// Seven judges: both extremes are dropped. Other counts use the plain mean.
func (c *cupt) Score(scores []float64) float64 {
	n := len(scores)
	if n == 0 {
		c.logger.Warn("no judge scores to combine")
		return 0
	}
	sorted := append([]float64(nil), scores...)
	sort.Float64s(sorted)
	sum := 0.0
	for _, s := range sorted {
		sum += s
	}
	lo, hi := sorted[0], sorted[n-1]

	switch n {
	case 5:
		return (sum - (lo+hi)/2) / float64(n-1)
	case 7:
		return (sum - (lo + hi)) / float64(n-1)
	default:
		c.logger.Warn("no scoring rule for this judge count, using the mean", slog.Int("judges", n))
		return sum / float64(n)
	}
}

// RepScoreWeight starts at 3.0 and keeps the lowest weight the team has
// reported or refused with. A refusal once five questions are already
// refused costs 0.2 more.
func (c *cupt) RepScoreWeight(history []models.RecordData, isRefuse bool) float64 {
	found := false
	weight := 0.0
	refused := 0
	for _, rec := range history {
		if rec.Role == models.RoleRefused {
			refused++
		}
		if rec.Role != models.RoleReported && rec.Role != models.RoleRefused {
			continue
		}
		if !found || rec.Weight < weight {
			weight = rec.Weight
			found = true
		}
	}
	if !found {
		return cuptInitialRepWeight
	}
	if isRefuse && refused >= cuptMaxRefusedQuestions {
		c.logger.Info("refusal penalty applied", slog.Int("refused", refused), slog.Float64("weight", weight-cuptRefusePenalty))
		return weight - cuptRefusePenalty
	}
	return weight
}

func (c *cupt) OppScoreWeight() float64 {
	return cuptOppWeight
}

func (c *cupt) RevScoreWeight() float64 {
	return cuptRevWeight
}
