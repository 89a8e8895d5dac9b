package wellbeing

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dieta/dieta/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func (r *repoPG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *repoPG) Add(ctx context.Context, e *MoodEntry) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO mood_entry (patient_id, score, note, recorded_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		e.PatientID, e.Score, e.Note, e.RecordedAt,
	).Scan(&e.ID)
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID int64, limit, offset int) ([]*MoodEntry, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM mood_entry WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, patient_id, score, note, recorded_at
		FROM mood_entry
		WHERE patient_id = $1
		ORDER BY recorded_at DESC, id DESC
		LIMIT $2 OFFSET $3`,
		patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var entries []*MoodEntry
	for rows.Next() {
		e := &MoodEntry{}
		if err := rows.Scan(&e.ID, &e.PatientID, &e.Score, &e.Note, &e.RecordedAt); err != nil {
			return nil, 0, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}
