package patients

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dieta/dieta/internal/platform/auth"
	"github.com/dieta/dieta/internal/platform/db"
)

var (
	// ErrWeightOutOfRange is returned when a weigh-in falls outside the
	// accepted bounds.
	ErrWeightOutOfRange = fmt.Errorf("weight must be between %.0f and %.0f kg", MinWeightKG, MaxWeightKG)

	// ErrInvalidDietLevel is returned for diet levels outside 1..5.
	ErrInvalidDietLevel = errors.New("diet level must be between 1 and 5")
)

// maxCodeAttempts bounds the regenerate-on-collision loop when minting a new
// access code. With a 36^8 code space collisions are vanishingly rare; the
// bound only guards against a broken unique index.
const maxCodeAttempts = 5

type Service struct {
	repo    Repository
	tx      db.TxRunner
	codeTTL time.Duration
}

func NewService(repo Repository, tx db.TxRunner, codeTTL time.Duration) *Service {
	return &Service{repo: repo, tx: tx, codeTTL: codeTTL}
}

// CreatePatient registers a new patient and mints their first access code.
func (s *Service) CreatePatient(ctx context.Context, p *Patient) error {
	if p.FirstName == "" || p.LastName == "" {
		return fmt.Errorf("first_name and last_name are required")
	}
	if p.DietLevel == 0 {
		p.DietLevel = 1
	}
	if p.DietLevel < 1 || p.DietLevel > 5 {
		return ErrInvalidDietLevel
	}
	if p.TargetWeight != nil && (*p.TargetWeight < MinWeightKG || *p.TargetWeight > MaxWeightKG) {
		return ErrWeightOutOfRange
	}

	p.CodeStatus = CodeStatusActive
	p.CodeExpiry = time.Now().Add(s.codeTTL)
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

// ValidateCode checks a presented code the way the initial validation
// endpoint needs: recognized-but-expired is distinguished from unknown so the
// handler can return 410 instead of 404. Revoked codes are indistinguishable
// from unknown ones because the stored code is replaced by the sentinel.
func (s *Service) ValidateCode(ctx context.Context, code string) (*Patient, error) {
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
	if time.Now().After(p.CodeExpiry) {
		return nil, auth.ErrCodeExpired
	}

	return p, nil
}

// VerifyCode implements auth.PatientVerifier. Unlike ValidateCode it makes no
// distinction between failure modes; resolver channels treat every failure as
// a miss.
func (s *Service) VerifyCode(ctx context.Context, code string) (*auth.PatientRef, error) {
	p, err := s.ValidateCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return &auth.PatientRef{ID: p.ID, AccessCode: p.AccessCode}, nil
}

// VerifySubject implements auth.PatientVerifier. A linked federated identity
// authenticates independently of the access code, so an expired code does not
// block the bearer channel.
func (s *Service) VerifySubject(ctx context.Context, subject string) (*auth.PatientRef, error) {
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
	return &auth.PatientRef{ID: p.ID, AccessCode: p.AccessCode}, nil
}

// LinkToIdentity binds a federated subject to the patient. Linking is
// set-once: relinking the same subject is a no-op, any other subject is a
// conflict. A subject already bound to a different patient is also a conflict.
func (s *Service) LinkToIdentity(ctx context.Context, patientID int64, subject string) error {
	if subject == "" {
		return fmt.Errorf("subject is required")
	}

	p, err := s.repo.GetByID(ctx, patientID)
	if err != nil {
		return err
	}

	if p.SubjectID != nil {
		if *p.SubjectID == subject {
			return nil // idempotent
		}
		return auth.ErrIdentityConflict
	}

	if other, err := s.repo.GetBySubject(ctx, subject); err == nil && other.ID != patientID {
		return auth.ErrIdentityConflict
	} else if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}

	return s.repo.LinkSubject(ctx, patientID, subject)
}

// WeighIn is a weigh-in request. The target weight is optional; when present
// it is applied to the patient in the same transaction as the reading.
type WeighIn struct {
	WeightKG     float64
	TargetWeight *float64
	Notes        *string
}

// RecordWeight stores a weigh-in and rotates the patient's access code in the
// same transaction. Either both happen or neither does; the new code is
// returned so the client can replace its stored credential.
func (s *Service) RecordWeight(ctx context.Context, patientID int64, in WeighIn) (*WeightRecord, string, error) {
	if in.WeightKG < MinWeightKG || in.WeightKG > MaxWeightKG {
		return nil, "", ErrWeightOutOfRange
	}
	if in.TargetWeight != nil && (*in.TargetWeight < MinWeightKG || *in.TargetWeight > MaxWeightKG) {
		return nil, "", ErrWeightOutOfRange
	}

	record := &WeightRecord{
		PatientID:  patientID,
		WeightKG:   in.WeightKG,
		Notes:      in.Notes,
		RecordedAt: time.Now(),
	}

	var newCode string
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.repo.AddWeight(ctx, record); err != nil {
			return err
		}
		if in.TargetWeight != nil {
			p, err := s.repo.GetByID(ctx, patientID)
			if err != nil {
				return err
			}
			p.TargetWeight = in.TargetWeight
			if err := s.repo.Update(ctx, p); err != nil {
				return err
			}
		}
		code, err := s.rotateCode(ctx, patientID)
		if err != nil {
			return err
		}
		newCode = code
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return record, newCode, nil
}

// rotateCode mints a fresh code and expiry for the patient, retrying on the
// unlikely collision with another active code.
func (s *Service) rotateCode(ctx context.Context, patientID int64) (string, error) {
	expiry := time.Now().Add(s.codeTTL)
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := auth.NewCode()
		if err != nil {
			return "", err
		}

		err = s.repo.UpdateCode(ctx, patientID, code, CodeStatusActive, expiry)
		if err == nil {
			return code, nil
		}
		if !errors.Is(err, ErrCodeTaken) {
			return "", err
		}
	}
	return "", fmt.Errorf("could not mint a unique access code after %d attempts", maxCodeAttempts)
}

// RevokeCode replaces the patient's code with the revocation sentinel and
// pushes the expiry into the past. The operation is idempotent: revoking an
// already-revoked code succeeds silently.
func (s *Service) RevokeCode(ctx context.Context, patientID int64) error {
	p, err := s.repo.GetByID(ctx, patientID)
	if err != nil {
		return err
	}
	if p.CodeStatus == CodeStatusRevoked {
		return nil // idempotent
	}
	return s.repo.UpdateCode(ctx, patientID, auth.RevokedCode, CodeStatusRevoked, time.Now().Add(-time.Minute))
}

// ReissueCode mints a fresh active code for the patient, recovering accounts
// whose code was revoked or allowed to expire.
func (s *Service) ReissueCode(ctx context.Context, patientID int64) (string, error) {
	if _, err := s.repo.GetByID(ctx, patientID); err != nil {
		return "", err
	}
	return s.rotateCode(ctx, patientID)
}

func (s *Service) GetPatient(ctx context.Context, id int64) (*Patient, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListPatients(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return s.repo.List(ctx, limit, offset)
}

func (s *Service) UpdateDietLevel(ctx context.Context, patientID int64, level int) error {
	if level < 1 || level > 5 {
		return ErrInvalidDietLevel
	}
	p, err := s.repo.GetByID(ctx, patientID)
	if err != nil {
		return err
	}
	p.DietLevel = level
	return s.repo.Update(ctx, p)
}

func (s *Service) UpdateTargetWeight(ctx context.Context, patientID int64, targetKG *float64) error {
	if targetKG != nil && (*targetKG < MinWeightKG || *targetKG > MaxWeightKG) {
		return ErrWeightOutOfRange
	}
	p, err := s.repo.GetByID(ctx, patientID)
	if err != nil {
		return err
	}
	p.TargetWeight = targetKG
	return s.repo.Update(ctx, p)
}

// DeactivatePatient soft-deletes the account. Weigh-in history is retained.
func (s *Service) DeactivatePatient(ctx context.Context, id int64) error {
	return s.repo.Deactivate(ctx, id)
}

func (s *Service) Weights(ctx context.Context, patientID int64, limit, offset int) ([]*WeightRecord, int, error) {
	return s.repo.ListWeights(ctx, patientID, limit, offset)
}
