package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/debate-tournament/brackets"
	"github.com/Dosada05/debate-tournament/judges"
	"github.com/Dosada05/debate-tournament/models"
	"github.com/Dosada05/debate-tournament/repositories"
	"github.com/Dosada05/debate-tournament/roster"
	"github.com/Dosada05/debate-tournament/rules"
	"github.com/Dosada05/debate-tournament/storage"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeScheduleRepo struct {
	mu         sync.Mutex
	stored     *models.Schedule
	replaceErr error
	replaces   int
}

func (f *fakeScheduleRepo) Replace(_ context.Context, s *models.Schedule) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.replaceErr != nil {
		return f.replaceErr
	}
	f.replaces++
	f.stored = s
	return nil
}

func (f *fakeScheduleRepo) Clear(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stored = nil
	return nil
}

func (f *fakeScheduleRepo) Load(context.Context) (*models.Schedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stored == nil {
		return nil, repositories.ErrScheduleNotFound
	}
	return f.stored, nil
}

type fakeRecordRepo struct {
	mu      sync.Mutex
	byTeam  map[string][]models.RecordData
	nextID  int
	listErr error
}

func newFakeRecordRepo() *fakeRecordRepo {
	return &fakeRecordRepo{byTeam: make(map[string][]models.RecordData)}
}

func (f *fakeRecordRepo) Append(_ context.Context, team string, rec models.RecordData) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.byTeam[team] {
		if existing.Round == rec.Round && existing.Phase == rec.Phase && existing.Role == rec.Role && existing.QuestionID == rec.QuestionID {
			return "", repositories.ErrRecordConflict
		}
	}
	f.byTeam[team] = append(f.byTeam[team], rec)
	f.nextID++
	return fmt.Sprintf("rec-%d", f.nextID), nil
}

func (f *fakeRecordRepo) ListByTeam(_ context.Context, team string) ([]models.RecordData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]models.RecordData(nil), f.byTeam[team]...), nil
}

func (f *fakeRecordRepo) QuestionsByRole(_ context.Context, round int, role models.Role) ([]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := make(map[int]bool)
	var ids []int
	for _, records := range f.byTeam {
		for _, rec := range records {
			if rec.Round == round && rec.Role == role && !seen[rec.QuestionID] {
				seen[rec.QuestionID] = true
				ids = append(ids, rec.QuestionID)
			}
		}
	}
	return ids, nil
}

type event struct {
	Type    string
	Room    string
	Payload interface{}
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []event
}

func (n *recordingNotifier) Notify(eventType, room string, payload interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event{eventType, room, payload})
}

func (n *recordingNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.events))
	for i, e := range n.events {
		out[i] = e.Type
	}
	return out
}

func testRoster() *roster.Roster {
	members := []models.Member{{Name: "P1", Gender: "F"}, {Name: "P2", Gender: "M"}, {Name: "P3", Gender: "F"}}
	return roster.New(models.Roster{
		Teams: []models.Team{
			{Name: "Alpha", School: "North", Members: members, BannedQuestions: []int{9}},
			{Name: "Beta", School: "South", Members: members},
			{Name: "Gamma", School: "East", Members: members},
			{Name: "Delta", School: "West", Members: members},
			{Name: "Epsilon", School: "North", Members: members},
		},
		Judges: map[string][]string{
			"Neutral": {"J1", "J2", "J3", "J4"},
			"Other":   {"J5", "J6"},
		},
		ProblemSet: map[int]string{
			1: "q1", 2: "q2", 3: "q3", 4: "q4", 5: "q5",
			6: "q6", 7: "q7", 8: "q8", 9: "q9", 10: "q10",
		},
		RoomTotal:       2,
		RoundNum:        2,
		JudgeNumPerRoom: 2,
	})
}

// failingUploader writes through to a local directory and fails uploads of
// failKey once it is set.
type failingUploader struct {
	*storage.LocalUploader
	mu      sync.Mutex
	failKey string
}

func (u *failingUploader) failOn(key string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.failKey = key
}

func (u *failingUploader) Upload(ctx context.Context, key, contentType string, reader io.Reader) (*storage.UploadResult, error) {
	u.mu.Lock()
	fail := u.failKey != "" && u.failKey == key
	u.mu.Unlock()
	if fail {
		return nil, errors.New("bucket unavailable")
	}
	return u.LocalUploader.Upload(ctx, key, contentType, reader)
}

type scheduleFixture struct {
	svc      ScheduleService
	ros      *roster.Roster
	repo     *fakeScheduleRepo
	records  *fakeRecordRepo
	notifier *recordingNotifier
	uploader *failingUploader
	dir      string
}

func newScheduleFixture(t *testing.T) *scheduleFixture {
	t.Helper()
	dir := t.TempDir()
	uploader, err := storage.NewLocalUploader(dir)
	require.NoError(t, err)

	f := &scheduleFixture{
		ros:      testRoster(),
		repo:     &fakeScheduleRepo{},
		records:  newFakeRecordRepo(),
		notifier: &recordingNotifier{},
		uploader: &failingUploader{LocalUploader: uploader},
		dir:      dir,
	}
	f.svc = NewScheduleService(ScheduleServiceDeps{
		Roster:       f.ros,
		Allocator:    judges.NewAllocator(50, quietLogger()),
		ScheduleRepo: f.repo,
		RecordRepo:   f.records,
		Uploader:     f.uploader,
		Notifier:     f.notifier,
		Rand:         rand.New(rand.NewSource(17)),
		Logger:       quietLogger(),
	})
	return f
}

func (f *scheduleFixture) seedPath(round, room int) string {
	return filepath.Join(f.dir, filepath.FromSlash(SeedKey(round, room)))
}

// assertSeedsMatch checks that every seed file on disk seats the teams of schedule.
func (f *scheduleFixture) assertSeedsMatch(t *testing.T, schedule *models.Schedule) {
	t.Helper()
	for round := 0; round < schedule.Pairings.Rounds(); round++ {
		for room := 0; room < schedule.Pairings.Rooms(); room++ {
			var want []string
			for _, seat := range schedule.Pairings.RoomTeams(round, room) {
				if !seat.IsBye() {
					want = append(want, seat.Name)
				}
			}

			raw, err := os.ReadFile(f.seedPath(round+1, room+1))
			require.NoError(t, err)
			var data models.RoomData
			require.NoError(t, json.Unmarshal(raw, &data))
			var got []string
			for _, team := range data.TeamDataList {
				got = append(got, team.Name)
			}
			assert.Equal(t, want, got, "seed %s", SeedKey(round+1, room+1))
		}
	}
}

func TestScheduleService_CurrentBeforeGeneration(t *testing.T) {
	f := newScheduleFixture(t)
	_, err := f.svc.Current(context.Background())
	assert.ErrorIs(t, err, ErrScheduleNotGenerated)

	_, err = f.svc.RoomData(context.Background(), 1, 1)
	assert.ErrorIs(t, err, ErrScheduleNotGenerated)
}

func TestScheduleService_CurrentLoadsPersisted(t *testing.T) {
	f := newScheduleFixture(t)
	persisted := &models.Schedule{JudgeTier: judges.TierStrict.Name}
	f.repo.stored = persisted

	got, err := f.svc.Current(context.Background())
	require.NoError(t, err)
	assert.Same(t, persisted, got)
}

func TestScheduleService_Regenerate(t *testing.T) {
	f := newScheduleFixture(t)
	ctx := context.Background()

	schedule, err := f.svc.Regenerate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, schedule.Pairings.Rounds())
	assert.Equal(t, 2, schedule.Pairings.Rooms())
	require.Len(t, schedule.Judges, 2)
	assert.NotEmpty(t, schedule.JudgeTier)
	assert.Equal(t, 1, f.repo.replaces)

	current, err := f.svc.Current(ctx)
	require.NoError(t, err)
	assert.Same(t, schedule, current)

	for round := 1; round <= 2; round++ {
		for room := 1; room <= 2; room++ {
			raw, err := os.ReadFile(f.seedPath(round, room))
			require.NoError(t, err, "seed for round %d room %d", round, room)
			var data models.RoomData
			require.NoError(t, json.Unmarshal(raw, &data))
		}
	}

	assert.Equal(t, []string{brackets.EventScheduleRegenerated}, f.notifier.types())
}

func TestScheduleService_FailedPersistKeepsPrevious(t *testing.T) {
	f := newScheduleFixture(t)
	ctx := context.Background()

	first, err := f.svc.Regenerate(ctx)
	require.NoError(t, err)

	f.repo.replaceErr = errors.New("disk full")
	_, err = f.svc.Regenerate(ctx)
	require.Error(t, err)

	current, err := f.svc.Current(ctx)
	require.NoError(t, err)
	assert.Same(t, first, current)
	assert.Len(t, f.notifier.types(), 1)
}

func TestScheduleService_FailedPersistLeavesSeedsUntouched(t *testing.T) {
	f := newScheduleFixture(t)
	ctx := context.Background()

	first, err := f.svc.Regenerate(ctx)
	require.NoError(t, err)

	f.repo.replaceErr = errors.New("disk full")
	for i := 0; i < 5; i++ {
		_, err = f.svc.Regenerate(ctx)
		require.Error(t, err)
	}

	current, err := f.svc.Current(ctx)
	require.NoError(t, err)
	assert.Same(t, first, current)
	f.assertSeedsMatch(t, current)
}

func TestScheduleService_FailedExportRestoresPrevious(t *testing.T) {
	f := newScheduleFixture(t)
	ctx := context.Background()

	first, err := f.svc.Regenerate(ctx)
	require.NoError(t, err)

	f.uploader.failOn(SeedKey(2, 2))
	for i := 0; i < 5; i++ {
		_, err = f.svc.Regenerate(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Round2/Room2.json")
	}
	f.uploader.failOn("")

	current, err := f.svc.Current(ctx)
	require.NoError(t, err)
	assert.Same(t, first, current)
	stored, err := f.repo.Load(ctx)
	require.NoError(t, err)
	assert.Same(t, first, stored)
	f.assertSeedsMatch(t, first)
	assert.Len(t, f.notifier.types(), 1)
}

func TestScheduleService_FailedFirstExportLeavesNothing(t *testing.T) {
	f := newScheduleFixture(t)
	ctx := context.Background()

	f.uploader.failOn(SeedKey(1, 2))
	_, err := f.svc.Regenerate(ctx)
	require.Error(t, err)

	_, err = f.svc.Current(ctx)
	assert.ErrorIs(t, err, ErrScheduleNotGenerated)
	for round := 1; round <= 2; round++ {
		for room := 1; room <= 2; room++ {
			assert.NoFileExists(t, f.seedPath(round, room))
		}
	}
}

func TestScheduleService_DeletesStaleSeeds(t *testing.T) {
	f := newScheduleFixture(t)
	ctx := context.Background()

	_, err := f.svc.Regenerate(ctx)
	require.NoError(t, err)
	require.FileExists(t, f.seedPath(2, 2))

	f.ros.RoundNum = 1
	_, err = f.svc.Regenerate(ctx)
	require.NoError(t, err)

	assert.FileExists(t, f.seedPath(1, 1))
	assert.FileExists(t, f.seedPath(1, 2))
	assert.NoFileExists(t, f.seedPath(2, 1))
	assert.NoFileExists(t, f.seedPath(2, 2))
}

func TestScheduleService_RoomData(t *testing.T) {
	f := newScheduleFixture(t)
	ctx := context.Background()

	history := models.RecordData{Round: 1, Phase: 1, QuestionID: 3, MasterID: 1, Role: models.RoleReported, Weight: 3.0}
	_, err := f.records.Append(ctx, "Alpha", history)
	require.NoError(t, err)

	schedule, err := f.svc.Regenerate(ctx)
	require.NoError(t, err)

	var alphaRoom, alphaRound int
	found := false
	for r := range schedule.Pairings {
		for _, side := range models.Sides {
			for room, seat := range schedule.Pairings[r][side] {
				if seat.Name == "Alpha" && r == 0 {
					alphaRound, alphaRoom, found = r+1, room+1, true
				}
			}
		}
	}
	require.True(t, found)

	data, err := f.svc.RoomData(ctx, alphaRound, alphaRoom)
	require.NoError(t, err)

	var nonBye int
	for _, seat := range schedule.Pairings.RoomTeams(alphaRound-1, alphaRoom-1) {
		if !seat.IsBye() {
			nonBye++
		}
	}
	assert.Len(t, data.TeamDataList, nonBye)

	for _, team := range data.TeamDataList {
		assert.Len(t, team.PlayerDataList, 3)
		if team.Name != "Alpha" {
			continue
		}
		require.Len(t, team.RecordDataList, 2)
		assert.Equal(t, history, team.RecordDataList[0])
		ban := team.RecordDataList[1]
		assert.Equal(t, models.RoleBanned, ban.Role)
		assert.Equal(t, 9, ban.QuestionID)
		assert.Equal(t, alphaRound, ban.Round)
		assert.Equal(t, alphaRoom, ban.RoomID)
	}

	_, err = f.svc.RoomData(ctx, 0, 1)
	assert.ErrorIs(t, err, ErrRoundOutOfRange)
	_, err = f.svc.RoomData(ctx, 1, 3)
	assert.ErrorIs(t, err, ErrRoomOutOfRange)
}

func TestSeedKey(t *testing.T) {
	assert.Equal(t, "Round3/Room12.json", SeedKey(3, 12))
}

type matchFixture struct {
	svc      MatchService
	records  *fakeRecordRepo
	notifier *recordingNotifier
}

func newMatchFixture(roundType models.RoundType) *matchFixture {
	f := &matchFixture{records: newFakeRecordRepo(), notifier: &recordingNotifier{}}
	rule := rules.New(rules.CUPTType, rules.Options{}, quietLogger())
	f.svc = NewMatchService(testRoster(), f.records, rule, roundType, f.notifier, quietLogger())
	return f
}

func TestMatchService_AppendRecord(t *testing.T) {
	f := newMatchFixture(models.RoundNormal)
	ctx := context.Background()

	rec := models.RecordData{Round: 1, Phase: 1, RoomID: 1, QuestionID: 4, MasterID: 2, Role: models.RoleReported, Score: 7.2, Weight: 3.0}
	id, err := f.svc.AppendRecord(ctx, "alpha", rec)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	got, err := f.svc.TeamRecords(ctx, "Alpha")
	require.NoError(t, err)
	assert.Equal(t, []models.RecordData{rec}, got)
	assert.Equal(t, []string{brackets.EventRecordAppended}, f.notifier.types())

	_, err = f.svc.AppendRecord(ctx, "Alpha", rec)
	assert.ErrorIs(t, err, ErrRecordConflict)
}

func TestMatchService_AppendRecordValidation(t *testing.T) {
	f := newMatchFixture(models.RoundNormal)
	ctx := context.Background()
	valid := models.RecordData{Round: 1, Phase: 1, QuestionID: 4, MasterID: 1, Role: models.RoleReported, Weight: 3.0}

	_, err := f.svc.AppendRecord(ctx, "Omega", valid)
	assert.ErrorIs(t, err, ErrTeamNotFound)

	cases := map[string]func(r *models.RecordData){
		"unknown role":     func(r *models.RecordData) { r.Role = "Q" },
		"round zero":       func(r *models.RecordData) { r.Round = 0 },
		"round too large":  func(r *models.RecordData) { r.Round = 3 },
		"unknown question": func(r *models.RecordData) { r.QuestionID = 42 },
		"master not found": func(r *models.RecordData) { r.MasterID = 4 },
		"negative score":   func(r *models.RecordData) { r.Score = -1 },
		"negative phase":   func(r *models.RecordData) { r.Phase = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			rec := valid
			mutate(&rec)
			_, err := f.svc.AppendRecord(ctx, "Alpha", rec)
			assert.ErrorIs(t, err, ErrInvalidRecord)
		})
	}

	refusal := models.RecordData{Round: 1, Phase: 1, QuestionID: 5, Role: models.RoleRefused, Weight: 3.0}
	_, err = f.svc.AppendRecord(ctx, "Alpha", refusal)
	assert.NoError(t, err, "refusals do not need a controlling player")
}

func TestMatchService_OptionalQuestions(t *testing.T) {
	f := newMatchFixture(models.RoundNormal)
	ctx := context.Background()

	mustAppend := func(team string, rec models.RecordData) {
		_, err := f.svc.AppendRecord(ctx, team, rec)
		require.NoError(t, err)
	}
	// Used in round 2 by other teams.
	mustAppend("Gamma", models.RecordData{Round: 2, Phase: 1, QuestionID: 1, MasterID: 1, Role: models.RoleReported})
	mustAppend("Delta", models.RecordData{Round: 2, Phase: 2, QuestionID: 2, MasterID: 1, Role: models.RoleReported})
	// Alpha refused 3 in round 1; Beta opposed 4 in round 1.
	mustAppend("Alpha", models.RecordData{Round: 1, Phase: 1, QuestionID: 3, Role: models.RoleRefused})
	mustAppend("Beta", models.RecordData{Round: 1, Phase: 1, QuestionID: 4, MasterID: 1, Role: models.RoleOpposed})

	ids, err := f.svc.OptionalQuestions(ctx, "Alpha", "Beta", 2)
	require.NoError(t, err)
	assert.Equal(t, []int{5, 6, 7, 8, 9, 10}, ids)

	_, err = f.svc.OptionalQuestions(ctx, "Alpha", "Omega", 2)
	assert.ErrorIs(t, err, ErrTeamNotFound)
	_, err = f.svc.OptionalQuestions(ctx, "Alpha", "Beta", 5)
	assert.ErrorIs(t, err, ErrRoundOutOfRange)
}

func TestMatchService_OptionalQuestionsHistoryError(t *testing.T) {
	f := newMatchFixture(models.RoundNormal)
	f.records.listErr = errors.New("db down")
	_, err := f.svc.OptionalQuestions(context.Background(), "Alpha", "Beta", 1)
	assert.Error(t, err)
}

func TestMatchService_ValidPlayers(t *testing.T) {
	f := newMatchFixture(models.RoundNormal)
	ctx := context.Background()

	_, err := f.svc.AppendRecord(ctx, "Alpha", models.RecordData{Round: 1, Phase: 1, QuestionID: 1, MasterID: 1, Role: models.RoleReported})
	require.NoError(t, err)
	_, err = f.svc.AppendRecord(ctx, "Alpha", models.RecordData{Round: 1, Phase: 2, QuestionID: 2, MasterID: 1, Role: models.RoleOpposed})
	require.NoError(t, err)

	players, err := f.svc.ValidPlayers(ctx, "Alpha", 1)
	require.NoError(t, err)
	assert.Equal(t, []models.PlayerData{
		{ID: 2, Name: "P2", Gender: "M"},
		{ID: 3, Name: "P3", Gender: "F"},
	}, players)

	players, err = f.svc.ValidPlayers(ctx, "Alpha", 2)
	require.NoError(t, err)
	assert.Len(t, players, 3)
}

func TestMatchService_WeightAndScore(t *testing.T) {
	f := newMatchFixture(models.RoundNormal)
	ctx := context.Background()

	w, err := f.svc.Weight(ctx, "Alpha", models.SideReporter, false)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, w, 1e-9)

	w, err = f.svc.Weight(ctx, "Alpha", models.SideOpponent, false)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, w, 1e-9)

	w, err = f.svc.Weight(ctx, "Alpha", models.SideReviewer, false)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, w, 1e-9)

	_, err = f.svc.Weight(ctx, "Alpha", models.SideObserver, false)
	assert.ErrorIs(t, err, ErrInvalidSide)
	_, err = f.svc.Weight(ctx, "Omega", models.SideReporter, false)
	assert.ErrorIs(t, err, ErrTeamNotFound)

	assert.InDelta(t, 7.0, f.svc.Score([]float64{5, 6, 7, 8, 9}), 1e-9)
}
