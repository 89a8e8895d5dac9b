package patients

import (
	"context"
	"time"
)

type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id int64) (*Patient, error)
	GetByCode(ctx context.Context, code string) (*Patient, error)
	GetBySubject(ctx context.Context, subject string) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	List(ctx context.Context, limit, offset int) ([]*Patient, int, error)

	// UpdateCode replaces the access code and its expiry in one statement.
	UpdateCode(ctx context.Context, id int64, code string, status string, expiry time.Time) error

	// LinkSubject binds a federated identity subject to the patient.
	LinkSubject(ctx context.Context, id int64, subject string) error

	// Deactivate soft-deletes the account.
	Deactivate(ctx context.Context, id int64) error

	// Weights
	AddWeight(ctx context.Context, w *WeightRecord) error
	ListWeights(ctx context.Context, patientID int64, limit, offset int) ([]*WeightRecord, int, error)
}
