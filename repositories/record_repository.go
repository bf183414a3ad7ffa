package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Dosada05/debate-tournament/models"
)

var ErrRecordConflict = errors.New("record already exists for this team, round, phase, role and question")

// RecordRepository is the append-only store of team match histories.
type RecordRepository interface {
	Append(ctx context.Context, teamName string, record models.RecordData) (string, error)
	ListByTeam(ctx context.Context, teamName string) ([]models.RecordData, error)
	QuestionsByRole(ctx context.Context, round int, role models.Role) ([]int, error)
}

type sqlRecordRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewRecordRepository(db *sql.DB) RecordRepository {
	return &sqlRecordRepository{db: db, now: time.Now}
}

// Append stores record under a time-ordered id, so ListByTeam returns
// entries in insertion order.
func (r *sqlRecordRepository) Append(ctx context.Context, teamName string, record models.RecordData) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("failed to generate record id: %w", err)
	}

	query := `
		INSERT INTO match_records
			(id, team_name, round, phase, room_id, question_id, master_id, role, score, weight, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err = r.db.ExecContext(ctx, query,
		id.String(),
		teamName,
		record.Round,
		record.Phase,
		record.RoomID,
		record.QuestionID,
		record.MasterID,
		string(record.Role),
		record.Score,
		record.Weight,
		r.now().UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return "", ErrRecordConflict
		}
		return "", fmt.Errorf("failed to append record for team %q: %w", teamName, err)
	}
	return id.String(), nil
}

func (r *sqlRecordRepository) ListByTeam(ctx context.Context, teamName string) ([]models.RecordData, error) {
	query := `
		SELECT round, phase, room_id, question_id, master_id, role, score, weight
		FROM match_records
		WHERE team_name = $1
		ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, teamName)
	if err != nil {
		return nil, fmt.Errorf("failed to list records for team %q: %w", teamName, err)
	}
	defer rows.Close()

	records := make([]models.RecordData, 0)
	for rows.Next() {
		var rec models.RecordData
		var role string
		if err := rows.Scan(&rec.Round, &rec.Phase, &rec.RoomID, &rec.QuestionID, &rec.MasterID, &role, &rec.Score, &rec.Weight); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		rec.Role = models.Role(role)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// QuestionsByRole lists the distinct questions any team took with role in round.
func (r *sqlRecordRepository) QuestionsByRole(ctx context.Context, round int, role models.Role) ([]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT question_id FROM match_records WHERE round = $1 AND role = $2 ORDER BY question_id`,
		round, string(role))
	if err != nil {
		return nil, fmt.Errorf("failed to query round %d questions: %w", round, err)
	}
	defer rows.Close()

	ids := make([]int, 0)
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan question id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
