package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Dosada05/debate-tournament/brackets"
	"github.com/Dosada05/debate-tournament/judges"
	"github.com/Dosada05/debate-tournament/models"
	"github.com/Dosada05/debate-tournament/repositories"
	"github.com/Dosada05/debate-tournament/roster"
	"github.com/Dosada05/debate-tournament/storage"
)

const defaultExportConcurrency = 8

// ScheduleRegeneratedPayload is broadcast after a new schedule becomes current.
type ScheduleRegeneratedPayload struct {
	Rounds      int       `json:"rounds"`
	Rooms       int       `json:"rooms"`
	JudgeTier   string    `json:"judge_tier"`
	GeneratedAt time.Time `json:"generated_at"`
}

type ScheduleService interface {
	Regenerate(ctx context.Context) (*models.Schedule, error)
	Current(ctx context.Context) (*models.Schedule, error)
	// RoomData builds the match seed for a 1-based round and room.
	RoomData(ctx context.Context, round, room int) (*models.RoomData, error)
}

type ScheduleServiceDeps struct {
	Roster       *roster.Roster
	Generator    brackets.PairingGenerator
	Allocator    *judges.Allocator
	ScheduleRepo repositories.ScheduleRepository
	RecordRepo   repositories.RecordRepository
	Uploader     storage.FileUploader
	Notifier     Notifier
	Rand         *rand.Rand
	Logger       *slog.Logger
	// ExportConcurrency bounds parallel seed uploads; zero means the default.
	ExportConcurrency int
}

type scheduleService struct {
	roster       *roster.Roster
	generator    brackets.PairingGenerator
	allocator    *judges.Allocator
	scheduleRepo repositories.ScheduleRepository
	recordRepo   repositories.RecordRepository
	uploader     storage.FileUploader
	notifier     Notifier
	logger       *slog.Logger
	exportLimit  int
	now          func() time.Time

	// mu serializes regeneration and guards rng.
	mu      sync.Mutex
	rng     *rand.Rand
	current atomic.Pointer[models.Schedule]
}

func NewScheduleService(deps ScheduleServiceDeps) ScheduleService {
	s := &scheduleService{
		roster:       deps.Roster,
		generator:    deps.Generator,
		allocator:    deps.Allocator,
		scheduleRepo: deps.ScheduleRepo,
		recordRepo:   deps.RecordRepo,
		uploader:     deps.Uploader,
		notifier:     deps.Notifier,
		logger:       deps.Logger,
		exportLimit:  deps.ExportConcurrency,
		rng:          deps.Rand,
		now:          time.Now,
	}
	if s.generator == nil {
		s.generator = brackets.NewRotationGenerator()
	}
	if s.notifier == nil {
		s.notifier = nopNotifier{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("service", "schedule")
	if s.exportLimit <= 0 {
		s.exportLimit = defaultExportConcurrency
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return s
}

// Regenerate builds a fresh schedule, persists it, exports its room seeds and
// makes it current. On failure the previous schedule and its seed files stay
// current.
func (s *scheduleService) Regenerate(ctx context.Context) (*models.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	previous, err := s.loadCurrent(ctx)
	if err != nil && !errors.Is(err, ErrScheduleNotGenerated) {
		return nil, err
	}

	pairings := s.generator.GeneratePairings(brackets.GeneratePairingsParams{
		Teams:     s.roster.Teams,
		RoundNum:  s.roster.RoundNum,
		RoomTotal: s.roster.RoomTotal,
		Rand:      s.rng,
	})

	allocation, err := s.allocator.Allocate(pairings, s.roster.JudgeList(), s.roster.JudgeNumPerRoom, s.rng)
	if err != nil {
		return nil, fmt.Errorf("judge allocation failed: %w", err)
	}

	schedule := &models.Schedule{
		Pairings:    pairings,
		Judges:      allocation.Table,
		JudgeTier:   allocation.Tier,
		GeneratedAt: s.now().UTC(),
	}

	seeds, err := s.renderSeeds(ctx, schedule)
	if err != nil {
		return nil, err
	}
	if err := s.scheduleRepo.Replace(ctx, schedule); err != nil {
		return nil, fmt.Errorf("failed to persist schedule: %w", err)
	}
	if err := s.uploadSeeds(ctx, seeds); err != nil {
		s.rollback(ctx, previous, schedule)
		return nil, err
	}
	s.current.Store(schedule)

	if previous != nil {
		s.deleteStaleSeeds(ctx, previous, schedule)
	}

	s.logger.Info("schedule regenerated",
		"rounds", pairings.Rounds(), "rooms", pairings.Rooms(),
		"judge_tier", allocation.Tier, "attempts", allocation.Attempts)
	s.notifier.Notify(brackets.EventScheduleRegenerated, brackets.ScheduleRoom, ScheduleRegeneratedPayload{
		Rounds:      pairings.Rounds(),
		Rooms:       pairings.Rooms(),
		JudgeTier:   allocation.Tier,
		GeneratedAt: schedule.GeneratedAt,
	})
	return schedule, nil
}

func (s *scheduleService) Current(ctx context.Context) (*models.Schedule, error) {
	return s.loadCurrent(ctx)
}

func (s *scheduleService) loadCurrent(ctx context.Context) (*models.Schedule, error) {
	if schedule := s.current.Load(); schedule != nil {
		return schedule, nil
	}
	schedule, err := s.scheduleRepo.Load(ctx)
	if err != nil {
		if errors.Is(err, repositories.ErrScheduleNotFound) {
			return nil, ErrScheduleNotGenerated
		}
		return nil, fmt.Errorf("failed to load schedule: %w", err)
	}
	// A concurrent Regenerate may have stored a newer schedule meanwhile.
	if !s.current.CompareAndSwap(nil, schedule) {
		return s.current.Load(), nil
	}
	return schedule, nil
}

func (s *scheduleService) RoomData(ctx context.Context, round, room int) (*models.RoomData, error) {
	schedule, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}
	if round < 1 || round > schedule.Pairings.Rounds() {
		return nil, fmt.Errorf("%w: %d (schedule has %d rounds)", ErrRoundOutOfRange, round, schedule.Pairings.Rounds())
	}
	if room < 1 || room > schedule.Pairings.Rooms() {
		return nil, fmt.Errorf("%w: %d (schedule has %d rooms)", ErrRoomOutOfRange, room, schedule.Pairings.Rooms())
	}
	return s.buildRoomData(ctx, schedule.Pairings, round-1, room-1)
}

// buildRoomData takes 0-based indices.
func (s *scheduleService) buildRoomData(ctx context.Context, pairings models.PairingTable, round, room int) (*models.RoomData, error) {
	data := &models.RoomData{TeamDataList: make([]models.TeamData, 0, models.NumSides)}
	for _, seat := range pairings.RoomTeams(round, room) {
		if seat.IsBye() {
			continue
		}
		team, err := s.roster.Team(seat.Name)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrTeamNotFound, seat.Name)
		}
		history, err := s.recordRepo.ListByTeam(ctx, team.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to load history for team %q: %w", team.Name, err)
		}

		records := make([]models.RecordData, 0, len(history)+len(team.BannedQuestions))
		records = append(records, history...)
		for _, questionID := range team.BannedQuestions {
			records = append(records, models.RecordData{
				Round:      round + 1,
				RoomID:     room + 1,
				QuestionID: questionID,
				Role:       models.RoleBanned,
			})
		}

		data.TeamDataList = append(data.TeamDataList, models.TeamData{
			Name:           team.Name,
			School:         team.School,
			PlayerDataList: roster.Players(team),
			RecordDataList: records,
		})
	}
	return data, nil
}

// SeedKey is the storage key of a room seed; round and room are 1-based.
func SeedKey(round, room int) string {
	return fmt.Sprintf("Round%d/Room%d.json", round, room)
}

type seedFile struct {
	key  string
	body []byte
}

// renderSeeds encodes every room seed of schedule without writing anything.
func (s *scheduleService) renderSeeds(ctx context.Context, schedule *models.Schedule) ([]seedFile, error) {
	if s.uploader == nil {
		return nil, nil
	}
	rooms := schedule.Pairings.Rooms()
	seeds := make([]seedFile, schedule.Pairings.Rounds()*rooms)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.exportLimit)
	for round := 0; round < schedule.Pairings.Rounds(); round++ {
		for room := 0; room < rooms; room++ {
			round, room := round, room
			g.Go(func() error {
				data, err := s.buildRoomData(gctx, schedule.Pairings, round, room)
				if err != nil {
					return err
				}
				body, err := json.Marshal(data)
				if err != nil {
					return fmt.Errorf("failed to encode room seed: %w", err)
				}
				seeds[round*rooms+room] = seedFile{key: SeedKey(round+1, room+1), body: body}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return seeds, nil
}

func (s *scheduleService) uploadSeeds(ctx context.Context, seeds []seedFile) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.exportLimit)
	for _, seed := range seeds {
		seed := seed
		g.Go(func() error {
			if _, err := s.uploader.Upload(gctx, seed.key, storage.ContentTypeJSON, bytes.NewReader(seed.body)); err != nil {
				return fmt.Errorf("failed to export %s: %w", seed.key, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// rollback restores the stored schedule and seed files of previous after the
// export of failed has already touched them. Errors are logged only.
func (s *scheduleService) rollback(ctx context.Context, previous, failed *models.Schedule) {
	ctx = context.WithoutCancel(ctx)
	if previous == nil {
		if err := s.scheduleRepo.Clear(ctx); err != nil {
			s.logger.Error("failed to clear schedule after export failure", "error", err)
		}
		s.deleteStaleSeeds(ctx, failed, &models.Schedule{})
		return
	}

	if err := s.scheduleRepo.Replace(ctx, previous); err != nil {
		s.logger.Error("failed to restore previous schedule", "error", err)
	}
	seeds, err := s.renderSeeds(ctx, previous)
	if err == nil {
		err = s.uploadSeeds(ctx, seeds)
	}
	if err != nil {
		s.logger.Error("failed to restore previous room seeds", "error", err)
	}
	s.deleteStaleSeeds(ctx, failed, previous)
}

// deleteStaleSeeds removes seed files of previous that next does not cover.
// Failures are logged only.
func (s *scheduleService) deleteStaleSeeds(ctx context.Context, previous, next *models.Schedule) {
	if s.uploader == nil {
		return
	}
	for round := 1; round <= previous.Pairings.Rounds(); round++ {
		for room := 1; room <= previous.Pairings.Rooms(); room++ {
			if round <= next.Pairings.Rounds() && room <= next.Pairings.Rooms() {
				continue
			}
			key := SeedKey(round, room)
			if err := s.uploader.Delete(ctx, key); err != nil {
				s.logger.Warn("failed to delete stale room seed", "key", key, "error", err)
			}
		}
	}
}
