package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/debate-tournament/models"
)

var ErrScheduleNotFound = errors.New("schedule not found")

// ScheduleRepository stores the single current schedule. Replace swaps it
// atomically so readers never see a mix of two generations.
type ScheduleRepository interface {
	Replace(ctx context.Context, schedule *models.Schedule) error
	Load(ctx context.Context) (*models.Schedule, error)
	// Clear removes the stored schedule; Load then returns ErrScheduleNotFound.
	Clear(ctx context.Context) error
}

type sqlScheduleRepository struct {
	db *sql.DB
}

func NewScheduleRepository(db *sql.DB) ScheduleRepository {
	return &sqlScheduleRepository{db: db}
}

func (r *sqlScheduleRepository) Replace(ctx context.Context, schedule *models.Schedule) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := clearSchedule(ctx, tx); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx,
			`INSERT INTO schedule_meta (id, round_num, room_total, judge_tier, generated_at) VALUES (1, $1, $2, $3, $4)`,
			schedule.Pairings.Rounds(), schedule.Pairings.Rooms(), schedule.JudgeTier, schedule.GeneratedAt.UTC())
		if err != nil {
			return fmt.Errorf("failed to write schedule meta: %w", err)
		}

		pairStmt, err := tx.PrepareContext(ctx,
			`INSERT INTO pairing_slots (round, side, room, team_name, school) VALUES ($1, $2, $3, $4, $5)`)
		if err != nil {
			return fmt.Errorf("failed to prepare pairing insert: %w", err)
		}
		defer pairStmt.Close()

		for round, pairing := range schedule.Pairings {
			for side, rooms := range pairing {
				for room, seat := range rooms {
					if _, err := pairStmt.ExecContext(ctx, round, side, room, seat.Name, seat.School); err != nil {
						return fmt.Errorf("failed to insert pairing round %d side %d room %d: %w", round, side, room, err)
					}
				}
			}
		}

		judgeStmt, err := tx.PrepareContext(ctx,
			`INSERT INTO judge_slots (round, room, seat, judge_name, school) VALUES ($1, $2, $3, $4, $5)`)
		if err != nil {
			return fmt.Errorf("failed to prepare judge insert: %w", err)
		}
		defer judgeStmt.Close()

		for round, rooms := range schedule.Judges {
			for room, seats := range rooms {
				for seat, judge := range seats {
					if _, err := judgeStmt.ExecContext(ctx, round, room, seat, judge.Name, judge.School); err != nil {
						return fmt.Errorf("failed to insert judge round %d room %d seat %d: %w", round, room, seat, err)
					}
				}
			}
		}
		return nil
	})
}

func (r *sqlScheduleRepository) Clear(ctx context.Context) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		return clearSchedule(ctx, tx)
	})
}

func clearSchedule(ctx context.Context, tx *sql.Tx) error {
	for _, table := range []string{"pairing_slots", "judge_slots", "schedule_meta"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return nil
}

func (r *sqlScheduleRepository) Load(ctx context.Context) (*models.Schedule, error) {
	var (
		roundNum, roomTotal int
		tier                string
		generatedAt         time.Time
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT round_num, room_total, judge_tier, generated_at FROM schedule_meta WHERE id = 1`).
		Scan(&roundNum, &roomTotal, &tier, &generatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrScheduleNotFound
		}
		return nil, fmt.Errorf("failed to load schedule meta: %w", err)
	}

	schedule := &models.Schedule{
		Pairings:    make(models.PairingTable, roundNum),
		Judges:      make(models.JudgeTable, roundNum),
		JudgeTier:   tier,
		GeneratedAt: generatedAt,
	}
	for round := range schedule.Pairings {
		for _, side := range models.Sides {
			schedule.Pairings[round][side] = make([]models.Seat, roomTotal)
		}
		schedule.Judges[round] = make([][]models.Seat, roomTotal)
	}

	if err := r.loadPairings(ctx, schedule.Pairings); err != nil {
		return nil, err
	}
	if err := r.loadJudges(ctx, schedule.Judges); err != nil {
		return nil, err
	}
	return schedule, nil
}

func (r *sqlScheduleRepository) loadPairings(ctx context.Context, table models.PairingTable) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT round, side, room, team_name, school FROM pairing_slots ORDER BY round, side, room`)
	if err != nil {
		return fmt.Errorf("failed to query pairings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var round, side, room int
		var seat models.Seat
		if err := rows.Scan(&round, &side, &room, &seat.Name, &seat.School); err != nil {
			return fmt.Errorf("failed to scan pairing slot: %w", err)
		}
		if round >= len(table) || side >= models.NumSides || room >= len(table[round][side]) {
			return fmt.Errorf("pairing slot (%d, %d, %d) outside schedule dimensions", round, side, room)
		}
		table[round][side][room] = seat
	}
	return rows.Err()
}

func (r *sqlScheduleRepository) loadJudges(ctx context.Context, table models.JudgeTable) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT round, room, seat, judge_name, school FROM judge_slots ORDER BY round, room, seat`)
	if err != nil {
		return fmt.Errorf("failed to query judges: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var round, room, seat int
		var judge models.Seat
		if err := rows.Scan(&round, &room, &seat, &judge.Name, &judge.School); err != nil {
			return fmt.Errorf("failed to scan judge slot: %w", err)
		}
		if round >= len(table) || room >= len(table[round]) || seat != len(table[round][room]) {
			return fmt.Errorf("judge slot (%d, %d, %d) outside schedule dimensions", round, room, seat)
		}
		table[round][room] = append(table[round][room], judge)
	}
	return rows.Err()
}
