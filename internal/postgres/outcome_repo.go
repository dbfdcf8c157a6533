package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/partydeck/game-server/internal/domain"
)

type OutcomeRepository struct {
	db *pgxpool.Pool
}

func NewOutcomeRepository(db *pgxpool.Pool) *OutcomeRepository {
	return &OutcomeRepository{db: db}
}

// InsertOutcome writes the outcome and its participant rows in one
// transaction.
func (r *OutcomeRepository) InsertOutcome(ctx context.Context, o domain.Outcome) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var outcomeID string
	err = tx.QueryRow(ctx, `
		INSERT INTO outcomes (room_id, result, finished_at)
		VALUES ($1, $2, $3)
		RETURNING id`,
		o.RoomID, o.Result, o.FinishedAt).Scan(&outcomeID)
	if err != nil {
		return err
	}

	for _, p := range o.Participants {
		if _, err := tx.Exec(ctx, `
			INSERT INTO outcome_participants (outcome_id, participant_id, display_name, join_order, score)
			VALUES ($1, $2, $3, $4, $5)`,
			outcomeID, p.ID, p.DisplayName, p.JoinOrder, p.Score); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// ListByParticipant returns the participant's past outcomes, newest
// first, with cursor pagination.
func (r *OutcomeRepository) ListByParticipant(ctx context.Context, participantID string, limit int, cursorStr string) ([]domain.OutcomeRecord, string, error) {
	cur, err := DecodeCursor(cursorStr)
	if err != nil {
		return nil, "", err
	}

	query := `
		SELECT o.id, o.room_id, o.result, o.finished_at
		FROM outcomes o
		JOIN outcome_participants op ON op.outcome_id = o.id
		WHERE op.participant_id = $1
		  AND ($2::timestamptz IS NULL OR o.finished_at < $2
		       OR (o.finished_at = $2 AND o.id < $3))
		ORDER BY o.finished_at DESC, o.id DESC
		LIMIT $4`

	var finishedAt any
	var id any
	if cur != nil {
		finishedAt = cur.FinishedAt
		id = cur.ID
	}

	rows, err := r.db.Query(ctx, query, participantID, finishedAt, id, limit)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()

	var records []domain.OutcomeRecord
	for rows.Next() {
		var rec domain.OutcomeRecord
		if err := rows.Scan(&rec.ID, &rec.RoomID, &rec.Result, &rec.FinishedAt); err != nil {
			return nil, "", err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}

	var nextCursor string
	if len(records) == limit {
		last := records[len(records)-1]
		nextCursor, _ = EncodeCursor(Cursor{FinishedAt: last.FinishedAt, ID: last.ID})
	}

	return records, nextCursor, nil
}
