package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/Dosada05/debate-tournament/brackets"
	"github.com/Dosada05/debate-tournament/models"
	"github.com/Dosada05/debate-tournament/repositories"
	"github.com/Dosada05/debate-tournament/roster"
	"github.com/Dosada05/debate-tournament/rules"
)

// RecordAppendedPayload is broadcast after a record is stored.
type RecordAppendedPayload struct {
	ID     string            `json:"id"`
	Team   string            `json:"team"`
	Record models.RecordData `json:"record"`
}

type MatchService interface {
	AppendRecord(ctx context.Context, team string, record models.RecordData) (string, error)
	TeamRecords(ctx context.Context, team string) ([]models.RecordData, error)
	OptionalQuestions(ctx context.Context, reporter, opponent string, round int) ([]int, error)
	ValidPlayers(ctx context.Context, team string, round int) ([]models.PlayerData, error)
	Score(scores []float64) float64
	Weight(ctx context.Context, team string, side models.Side, isRefuse bool) (float64, error)
}

type matchService struct {
	roster     *roster.Roster
	recordRepo repositories.RecordRepository
	rule       rules.Rule
	roundType  models.RoundType
	notifier   Notifier
	logger     *slog.Logger
}

func NewMatchService(
	ros *roster.Roster,
	recordRepo repositories.RecordRepository,
	rule rules.Rule,
	roundType models.RoundType,
	notifier Notifier,
	logger *slog.Logger,
) MatchService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &matchService{
		roster:     ros,
		recordRepo: recordRepo,
		rule:       rule,
		roundType:  roundType,
		notifier:   notifier,
		logger:     logger.With("service", "match"),
	}
}

func (s *matchService) team(name string) (models.Team, error) {
	team, err := s.roster.Team(name)
	if err != nil {
		return models.Team{}, fmt.Errorf("%w: %q", ErrTeamNotFound, name)
	}
	return team, nil
}

func (s *matchService) checkRound(round int) error {
	if round < 1 || round > s.roster.RoundNum {
		return fmt.Errorf("%w: %d (tournament has %d rounds)", ErrRoundOutOfRange, round, s.roster.RoundNum)
	}
	return nil
}

func (s *matchService) validateRecord(team models.Team, rec models.RecordData) error {
	if !rec.Role.Valid() {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidRecord, rec.Role)
	}
	if err := s.checkRound(rec.Round); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if rec.Phase < 0 || rec.RoomID < 0 {
		return fmt.Errorf("%w: phase and roomID must not be negative", ErrInvalidRecord)
	}
	if _, ok := s.roster.ProblemSet[rec.QuestionID]; !ok {
		return fmt.Errorf("%w: question %d is not in the problem set", ErrInvalidRecord, rec.QuestionID)
	}
	if rec.Role.IsControl() && (rec.MasterID < 1 || rec.MasterID > len(team.Members)) {
		return fmt.Errorf("%w: masterID %d is not a member of team %q", ErrInvalidRecord, rec.MasterID, team.Name)
	}
	if rec.Score < 0 || rec.Weight < 0 {
		return fmt.Errorf("%w: score and weight must not be negative", ErrInvalidRecord)
	}
	return nil
}

func (s *matchService) AppendRecord(ctx context.Context, teamName string, rec models.RecordData) (string, error) {
	team, err := s.team(teamName)
	if err != nil {
		return "", err
	}
	if err := s.validateRecord(team, rec); err != nil {
		return "", err
	}

	id, err := s.recordRepo.Append(ctx, team.Name, rec)
	if err != nil {
		if errors.Is(err, repositories.ErrRecordConflict) {
			return "", ErrRecordConflict
		}
		return "", err
	}

	s.logger.Info("record appended", "team", team.Name, "round", rec.Round, "phase", rec.Phase, "role", rec.Role, "question", rec.QuestionID)
	s.notifier.Notify(brackets.EventRecordAppended, brackets.ScheduleRoom, RecordAppendedPayload{ID: id, Team: team.Name, Record: rec})
	return id, nil
}

func (s *matchService) TeamRecords(ctx context.Context, teamName string) ([]models.RecordData, error) {
	team, err := s.team(teamName)
	if err != nil {
		return nil, err
	}
	return s.recordRepo.ListByTeam(ctx, team.Name)
}

func (s *matchService) OptionalQuestions(ctx context.Context, reporterName, opponentName string, round int) ([]int, error) {
	reporter, err := s.team(reporterName)
	if err != nil {
		return nil, err
	}
	opponent, err := s.team(opponentName)
	if err != nil {
		return nil, err
	}
	if err := s.checkRound(round); err != nil {
		return nil, err
	}

	var repHistory, oppHistory []models.RecordData
	var used []int
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		repHistory, err = s.recordRepo.ListByTeam(gctx, reporter.Name)
		return err
	})
	g.Go(func() error {
		var err error
		oppHistory, err = s.recordRepo.ListByTeam(gctx, opponent.Name)
		return err
	})
	g.Go(func() error {
		var err error
		used, err = s.recordRepo.QuestionsByRole(gctx, round, models.RoleReported)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load question history: %w", err)
	}

	return s.rule.OptionalQuestionIDs(rules.QuestionQuery{
		ReporterHistory: repHistory,
		OpponentHistory: oppHistory,
		UsedQuestionIDs: used,
		QuestionBank:    s.roster.QuestionIDs(),
		RoundType:       s.roundType,
	}), nil
}

func (s *matchService) ValidPlayers(ctx context.Context, teamName string, round int) ([]models.PlayerData, error) {
	team, err := s.team(teamName)
	if err != nil {
		return nil, err
	}
	if err := s.checkRound(round); err != nil {
		return nil, err
	}
	history, err := s.recordRepo.ListByTeam(ctx, team.Name)
	if err != nil {
		return nil, err
	}

	var roundMasters []int
	for _, rec := range history {
		if rec.Round == round && rec.Role.IsControl() {
			roundMasters = append(roundMasters, rec.MasterID)
		}
	}

	players := roster.Players(team)
	ids := s.rule.ValidPlayerIDs(roundMasters, history, players)
	byID := make(map[int]models.PlayerData, len(players))
	for _, p := range players {
		byID[p.ID] = p
	}
	valid := make([]models.PlayerData, 0, len(ids))
	for _, id := range ids {
		valid = append(valid, byID[id])
	}
	return valid, nil
}

func (s *matchService) Score(scores []float64) float64 {
	return s.rule.Score(scores)
}

func (s *matchService) Weight(ctx context.Context, teamName string, side models.Side, isRefuse bool) (float64, error) {
	switch side {
	case models.SideOpponent:
		return s.rule.OppScoreWeight(), nil
	case models.SideReviewer:
		return s.rule.RevScoreWeight(), nil
	case models.SideReporter:
	default:
		return 0, fmt.Errorf("%w: %s has no score weight", ErrInvalidSide, side)
	}

	team, err := s.team(teamName)
	if err != nil {
		return 0, err
	}
	history, err := s.recordRepo.ListByTeam(ctx, team.Name)
	if err != nil {
		return 0, err
	}
	return s.rule.RepScoreWeight(history, isRefuse), nil
}
