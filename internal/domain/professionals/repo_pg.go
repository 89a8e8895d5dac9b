package professionals

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dieta/dieta/internal/platform/db"
)

// ErrNotFound is returned when no professional matches the query.
var ErrNotFound = errors.New("professional not found")

// ErrCodeTaken is returned when an insert or update collides with another
// professional's active access code.
var ErrCodeTaken = errors.New("access code already in use")

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

const professionalCols = `id, first_name, last_name, email, specialty, license, access_code,
	code_status, subject_id, active, created_at, updated_at, deactivated_at`

func (r *repoPG) Create(ctx context.Context, p *Professional) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO professional (
			first_name, last_name, email, specialty, license, access_code, code_status, subject_id, active
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING id, created_at, updated_at`,
		p.FirstName, p.LastName, p.Email, p.Specialty, p.License, p.AccessCode, p.CodeStatus, p.SubjectID, p.Active,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	return mapPgErr(err)
}

func (r *repoPG) GetByID(ctx context.Context, id int64) (*Professional, error) {
	return scanProfessional(r.conn(ctx).QueryRow(ctx,
		`SELECT `+professionalCols+` FROM professional WHERE id = $1`, id))
}

func (r *repoPG) GetByCode(ctx context.Context, code string) (*Professional, error) {
	return scanProfessional(r.conn(ctx).QueryRow(ctx,
		`SELECT `+professionalCols+` FROM professional WHERE access_code = $1 AND code_status = 'active'`, code))
}

func (r *repoPG) GetBySubject(ctx context.Context, subject string) (*Professional, error) {
	return scanProfessional(r.conn(ctx).QueryRow(ctx,
		`SELECT `+professionalCols+` FROM professional WHERE subject_id = $1`, subject))
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Professional, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM professional WHERE active`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+professionalCols+` FROM professional WHERE active ORDER BY last_name, first_name, id LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*Professional
	for rows.Next() {
		p := &Professional{}
		if err := rows.Scan(
			&p.ID, &p.FirstName, &p.LastName, &p.Email, &p.Specialty, &p.License, &p.AccessCode,
			&p.CodeStatus, &p.SubjectID, &p.Active, &p.CreatedAt, &p.UpdatedAt, &p.DeactivatedAt,
		); err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *repoPG) UpdateCode(ctx context.Context, id int64, code string, status string) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE professional SET access_code=$2, code_status=$3, updated_at=NOW()
		WHERE id = $1`,
		id, code, status,
	)
	if err != nil {
		return mapPgErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) LinkSubject(ctx context.Context, id int64, subject string) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE professional SET subject_id=$2, updated_at=NOW() WHERE id = $1`,
		id, subject,
	)
	if err != nil {
		return mapPgErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) Deactivate(ctx context.Context, id int64) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE professional SET active=false, deactivated_at=NOW(), updated_at=NOW() WHERE id = $1`,
		id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanProfessional(row pgx.Row) (*Professional, error) {
	p := &Professional{}
	err := row.Scan(
		&p.ID, &p.FirstName, &p.LastName, &p.Email, &p.Specialty, &p.License, &p.AccessCode,
		&p.CodeStatus, &p.SubjectID, &p.Active, &p.CreatedAt, &p.UpdatedAt, &p.DeactivatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

// mapPgErr converts unique violations on the active-code index into
// ErrCodeTaken so the service can retry with a fresh code.
func mapPgErr(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrCodeTaken
	}
	return err
}
