package patients

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dieta/dieta/internal/platform/db"
)

// ErrNotFound is returned when no patient matches the query.
var ErrNotFound = errors.New("patient not found")

// ErrCodeTaken is returned when an insert or update collides with another
// patient's active access code.
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

const patientCols = `id, first_name, last_name, email, access_code, code_status, code_expiry,
	subject_id, diet_level, target_weight, active, created_at, updated_at, deactivated_at`

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patient (
			first_name, last_name, email, access_code, code_status, code_expiry,
			subject_id, diet_level, target_weight, active
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING id, created_at, updated_at`,
		p.FirstName, p.LastName, p.Email, p.AccessCode, p.CodeStatus, p.CodeExpiry,
		p.SubjectID, p.DietLevel, p.TargetWeight, p.Active,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	return mapPgErr(err)
}

func (r *repoPG) GetByID(ctx context.Context, id int64) (*Patient, error) {
	return scanPatient(r.conn(ctx).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patient WHERE id = $1`, id))
}

func (r *repoPG) GetByCode(ctx context.Context, code string) (*Patient, error) {
	return scanPatient(r.conn(ctx).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patient WHERE access_code = $1 AND code_status = 'active'`, code))
}

func (r *repoPG) GetBySubject(ctx context.Context, subject string) (*Patient, error) {
	return scanPatient(r.conn(ctx).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patient WHERE subject_id = $1`, subject))
}

func (r *repoPG) Update(ctx context.Context, p *Patient) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE patient SET
			first_name=$2, last_name=$3, email=$4, diet_level=$5, target_weight=$6,
			active=$7, updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.FirstName, p.LastName, p.Email, p.DietLevel, p.TargetWeight, p.Active,
	)
	if err != nil {
		return mapPgErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM patient WHERE active`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+patientCols+` FROM patient WHERE active ORDER BY last_name, first_name, id LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	patients, err := scanPatientRows(rows)
	if err != nil {
		return nil, 0, err
	}
	return patients, total, nil
}

func (r *repoPG) UpdateCode(ctx context.Context, id int64, code string, status string, expiry time.Time) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE patient SET access_code=$2, code_status=$3, code_expiry=$4, updated_at=NOW()
		WHERE id = $1`,
		id, code, status, expiry,
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
		UPDATE patient SET subject_id=$2, updated_at=NOW() WHERE id = $1`,
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
		UPDATE patient SET active=false, deactivated_at=NOW(), updated_at=NOW() WHERE id = $1`,
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

func (r *repoPG) AddWeight(ctx context.Context, w *WeightRecord) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO weight_record (patient_id, weight_kg, notes, recorded_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		w.PatientID, w.WeightKG, w.Notes, w.RecordedAt,
	).Scan(&w.ID)
	return mapPgErr(err)
}

func (r *repoPG) ListWeights(ctx context.Context, patientID int64, limit, offset int) ([]*WeightRecord, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM weight_record WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, patient_id, weight_kg, notes, recorded_at
		FROM weight_record
		WHERE patient_id = $1
		ORDER BY recorded_at DESC, id DESC
		LIMIT $2 OFFSET $3`,
		patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var records []*WeightRecord
	for rows.Next() {
		w := &WeightRecord{}
		if err := rows.Scan(&w.ID, &w.PatientID, &w.WeightKG, &w.Notes, &w.RecordedAt); err != nil {
			return nil, 0, err
		}
		records = append(records, w)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	p := &Patient{}
	err := row.Scan(
		&p.ID, &p.FirstName, &p.LastName, &p.Email, &p.AccessCode, &p.CodeStatus, &p.CodeExpiry,
		&p.SubjectID, &p.DietLevel, &p.TargetWeight, &p.Active, &p.CreatedAt, &p.UpdatedAt, &p.DeactivatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

func scanPatientRows(rows pgx.Rows) ([]*Patient, error) {
	var patients []*Patient
	for rows.Next() {
		p := &Patient{}
		if err := rows.Scan(
			&p.ID, &p.FirstName, &p.LastName, &p.Email, &p.AccessCode, &p.CodeStatus, &p.CodeExpiry,
			&p.SubjectID, &p.DietLevel, &p.TargetWeight, &p.Active, &p.CreatedAt, &p.UpdatedAt, &p.DeactivatedAt,
		); err != nil {
			return nil, err
		}
		patients = append(patients, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return patients, nil
}

// mapPgErr converts unique violations on the active-code index into
// ErrCodeTaken so the service can retry with a fresh code, and foreign-key
// violations into ErrNotFound so a weigh-in against an unknown patient id
// surfaces as a missing patient rather than a store fault.
func mapPgErr(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return ErrCodeTaken
		case "23503":
			return ErrNotFound
		}
	}
	return err
}
