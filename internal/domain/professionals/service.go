package professionals

import (
	"context"
	"errors"
	"fmt"

	"github.com/dieta/dieta/internal/platform/auth"
)

const maxCodeAttempts = 5

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// CreateProfessional registers a staff account and mints its access code.
func (s *Service) CreateProfessional(ctx context.Context, p *Professional) error {
	if p.FirstName == "" || p.LastName == "" {
		return fmt.Errorf("first_name and last_name are required")
	}

	p.CodeStatus = CodeStatusActive
	p.Active = true

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := auth.NewCode()
		if err != nil {
			return err
		}
		p.AccessCode = code

		err = s.repo.Create(ctx, p)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrCodeTaken) {
			return err
		}
	}
	return fmt.Errorf("could not mint a unique access code after %d attempts", maxCodeAttempts)
}

// ValidateCode checks a presented code. Professional codes never expire, so
// the only outcomes are a match or ErrCodeNotFound.
func (s *Service) ValidateCode(ctx context.Context, code string) (*Professional, error) {
	if !auth.IsWellFormed(code) {
		return nil, auth.ErrInvalidCode
	}

	p, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, auth.ErrCodeNotFound
		}
		return nil, err
	}
	if !p.Active {
		return nil, auth.ErrCodeNotFound
	}
	return p, nil
}

// VerifyCode implements auth.ProfessionalVerifier.
func (s *Service) VerifyCode(ctx context.Context, code string) (*auth.ProfessionalRef, error) {
	p, err := s.ValidateCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return &auth.ProfessionalRef{ID: p.ID, AccessCode: p.AccessCode}, nil
}

// VerifySubject implements auth.ProfessionalVerifier.
func (s *Service) VerifySubject(ctx context.Context, subject string) (*auth.ProfessionalRef, error) {
	p, err := s.repo.GetBySubject(ctx, subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, auth.ErrCodeNotFound
		}
		return nil, err
	}
	if !p.Active {
		return nil, auth.ErrCodeNotFound
	}
	return &auth.ProfessionalRef{ID: p.ID, AccessCode: p.AccessCode}, nil
}

// LinkToIdentity binds a federated subject to the professional with the same
// set-once semantics patients have.
func (s *Service) LinkToIdentity(ctx context.Context, professionalID int64, subject string) error {
	if subject == "" {
		return fmt.Errorf("subject is required")
	}

	p, err := s.repo.GetByID(ctx, professionalID)
	if err != nil {
		return err
	}

	if p.SubjectID != nil {
		if *p.SubjectID == subject {
			return nil // idempotent
		}
		return auth.ErrIdentityConflict
	}

	if other, err := s.repo.GetBySubject(ctx, subject); err == nil && other.ID != professionalID {
		return auth.ErrIdentityConflict
	} else if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}

	return s.repo.LinkSubject(ctx, professionalID, subject)
}

// RevokeCode replaces the professional's code with the revocation sentinel.
// Idempotent like the patient variant.
func (s *Service) RevokeCode(ctx context.Context, professionalID int64) error {
	p, err := s.repo.GetByID(ctx, professionalID)
	if err != nil {
		return err
	}
	if p.CodeStatus == CodeStatusRevoked {
		return nil // idempotent
	}
	return s.repo.UpdateCode(ctx, professionalID, auth.RevokedCode, CodeStatusRevoked)
}

// ReissueCode mints a fresh active code for the professional.
func (s *Service) ReissueCode(ctx context.Context, professionalID int64) (string, error) {
	if _, err := s.repo.GetByID(ctx, professionalID); err != nil {
		return "", err
	}

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := auth.NewCode()
		if err != nil {
			return "", err
		}

		err = s.repo.UpdateCode(ctx, professionalID, code, CodeStatusActive)
		if err == nil {
			return code, nil
		}
		if !errors.Is(err, ErrCodeTaken) {
			return "", err
		}
	}
	return "", fmt.Errorf("could not mint a unique access code after %d attempts", maxCodeAttempts)
}

func (s *Service) GetProfessional(ctx context.Context, id int64) (*Professional, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListProfessionals(ctx context.Context, limit, offset int) ([]*Professional, int, error) {
	return s.repo.List(ctx, limit, offset)
}

// DeactivateProfessional soft-deletes the account.
func (s *Service) DeactivateProfessional(ctx context.Context, id int64) error {
	return s.repo.Deactivate(ctx, id)
}
