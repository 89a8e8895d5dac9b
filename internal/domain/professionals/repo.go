package professionals

import "context"

type Repository interface {
	Create(ctx context.Context, p *Professional) error
	GetByID(ctx context.Context, id int64) (*Professional, error)
	GetByCode(ctx context.Context, code string) (*Professional, error)
	GetBySubject(ctx context.Context, subject string) (*Professional, error)
	List(ctx context.Context, limit, offset int) ([]*Professional, int, error)

	// UpdateCode replaces the access code and its status in one statement.
	UpdateCode(ctx context.Context, id int64, code string, status string) error

	// LinkSubject binds a federated identity subject to the professional.
	LinkSubject(ctx context.Context, id int64, subject string) error

	// Deactivate soft-deletes the account.
	Deactivate(ctx context.Context, id int64) error
}
