// Package judges assigns judges to every room of a pairing table.
package judges

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/Dosada05/debate-tournament/models"
)

const DefaultMaxAttempts = 1000

var (
	ErrNoJudges         = errors.New("no judges available")
	ErrInvalidJudgeNum  = errors.New("judge number per room must be positive")
	ErrAllocationFailed = errors.New("every allocation tier failed")
)

type Allocator struct {
	maxAttempts int
	tiers       []Tier
	logger      *slog.Logger
}

// NewAllocator builds an allocator running the given tiers in order, or the
// default cascade when none are given.
func NewAllocator(maxAttempts int, logger *slog.Logger, tiers ...Tier) *Allocator {
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	if logger == nil {
		logger = slog.Default()
	}
	if len(tiers) == 0 {
		tiers = DefaultTiers()
	}
	return &Allocator{maxAttempts: maxAttempts, tiers: tiers, logger: logger}
}

type Result struct {
	Table    models.JudgeTable
	Tier     string
	Attempts int
}

// Allocate returns the table of the first tier that fills every room.
func (a *Allocator) Allocate(pairings models.PairingTable, judges []models.Judge, perRoom int, rng *rand.Rand) (*Result, error) {
	if len(judges) == 0 {
		return nil, ErrNoJudges
	}
	if perRoom < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidJudgeNum, perRoom)
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}

	ros := newRoster(judges)
	for _, tier := range a.tiers {
		attempts := tier.Attempts
		if attempts == 0 {
			attempts = a.maxAttempts
		}
		for attempt := 1; attempt <= attempts; attempt++ {
			if table, ok := tier.run(pairings, ros, perRoom, rng); ok {
				a.logger.Info("judges allocated",
					slog.String("tier", tier.Name),
					slog.Int("attempt", attempt),
					slog.Int("judges", len(judges)),
					slog.Int("per_room", perRoom))
				return &Result{Table: table, Tier: tier.Name, Attempts: attempt}, nil
			}
		}
		a.logger.Warn("judge allocation tier exhausted, relaxing constraints",
			slog.String("tier", tier.Name),
			slog.Int("attempts", attempts))
	}
	return nil, ErrAllocationFailed
}
