package auth

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/labstack/echo/v4"
)

const (
	// PatientSessionHeader carries a JSON document with the patient ID and
	// access code for clients that cannot use cookies.
	PatientSessionHeader = "X-Patient-Session"

	// ProfessionalCodeHeader carries a professional's access code directly.
	ProfessionalCodeHeader = "X-Professional-Code"
)

// Identity is the outcome of a successful resolution: which account the
// request acts as, and through which channel it authenticated.
type Identity struct {
	Kind       string
	AccountID  int64
	AccessCode string
	Channel    string // bearer, session, header
}

// PatientRef identifies a patient account during resolution.
type PatientRef struct {
	ID         int64
	AccessCode string
}

// ProfessionalRef identifies a professional account during resolution.
type ProfessionalRef struct {
	ID         int64
	AccessCode string
}

// PatientVerifier checks patient credentials against the store. Implemented
// by the patients domain service.
type PatientVerifier interface {
	// VerifyCode returns the patient whose active, unexpired access code
	// matches. Revoked, expired, and unknown codes all fail.
	VerifyCode(ctx context.Context, code string) (*PatientRef, error)

	// VerifySubject returns the patient linked to the given federated
	// identity subject.
	VerifySubject(ctx context.Context, subject string) (*PatientRef, error)
}

// ProfessionalVerifier checks professional credentials against the store.
type ProfessionalVerifier interface {
	VerifyCode(ctx context.Context, code string) (*ProfessionalRef, error)
	VerifySubject(ctx context.Context, subject string) (*ProfessionalRef, error)
}

// Resolver turns request credentials into identities. Each account type has
// a fixed precedence order of channels; a channel that is present but invalid
// counts as a miss and the next channel is tried.
type Resolver struct {
	codec         *SessionCodec
	federated     *FederatedVerifier
	patients      PatientVerifier
	professionals ProfessionalVerifier
}

// NewResolver creates a resolver. The federated verifier may be nil, which
// disables the bearer channel.
func NewResolver(codec *SessionCodec, federated *FederatedVerifier, patients PatientVerifier, professionals ProfessionalVerifier) *Resolver {
	return &Resolver{
		codec:         codec,
		federated:     federated,
		patients:      patients,
		professionals: professionals,
	}
}

// ResolvePatient tries, in order: a federated bearer token, the session
// cookie, and the X-Patient-Session header. Session and header credentials
// are re-validated against the store on every request so a rotated or revoked
// code kills them immediately.
func (r *Resolver) ResolvePatient(c echo.Context) (*Identity, error) {
	ctx := c.Request().Context()

	// 1. Federated bearer token
	if r.federated != nil {
		if token := bearerToken(c); token != "" {
			if subject, err := r.federated.Subject(token); err == nil {
				if ref, err := r.patients.VerifySubject(ctx, subject); err == nil {
					return &Identity{Kind: KindPatient, AccountID: ref.ID, AccessCode: ref.AccessCode, Channel: "bearer"}, nil
				}
			}
		}
	}

	// 2. Session cookie
	if token := sessionTokenFromRequest(c); token != "" {
		if claims, err := r.codec.Parse(token); err == nil && claims.Kind == KindPatient {
			if ref, err := r.patients.VerifyCode(ctx, claims.AccessCode); err == nil && ref.ID == claims.AccountID {
				return &Identity{Kind: KindPatient, AccountID: ref.ID, AccessCode: ref.AccessCode, Channel: "session"}, nil
			}
		}
	}

	// 3. X-Patient-Session header
	if raw := c.Request().Header.Get(PatientSessionHeader); raw != "" {
		var hdr struct {
			PatientID  int64  `json:"patientId"`
			AccessCode string `json:"accessCode"`
		}
		if err := json.Unmarshal([]byte(raw), &hdr); err == nil && hdr.AccessCode != "" {
			if ref, err := r.patients.VerifyCode(ctx, hdr.AccessCode); err == nil && ref.ID == hdr.PatientID {
				return &Identity{Kind: KindPatient, AccountID: ref.ID, AccessCode: ref.AccessCode, Channel: "header"}, nil
			}
		}
	}

	return nil, ErrNoIdentity
}

// ResolveProfessional tries, in order: the X-Professional-Code header, the
// session cookie, and a federated bearer token. The session channel is
// re-validated against the store the same way the patient channel is.
func (r *Resolver) ResolveProfessional(c echo.Context) (*Identity, error) {
	ctx := c.Request().Context()

	// 1. X-Professional-Code header
	if code := c.Request().Header.Get(ProfessionalCodeHeader); code != "" {
		if ref, err := r.professionals.VerifyCode(ctx, code); err == nil {
			return &Identity{Kind: KindProfessional, AccountID: ref.ID, AccessCode: ref.AccessCode, Channel: "header"}, nil
		}
	}

	// 2. Session cookie
	if token := sessionTokenFromRequest(c); token != "" {
		if claims, err := r.codec.Parse(token); err == nil && claims.Kind == KindProfessional {
			if ref, err := r.professionals.VerifyCode(ctx, claims.AccessCode); err == nil && ref.ID == claims.AccountID {
				return &Identity{Kind: KindProfessional, AccountID: ref.ID, AccessCode: ref.AccessCode, Channel: "session"}, nil
			}
		}
	}

	// 3. Federated bearer token
	if r.federated != nil {
		if token := bearerToken(c); token != "" {
			if subject, err := r.federated.Subject(token); err == nil {
				if ref, err := r.professionals.VerifySubject(ctx, subject); err == nil {
					return &Identity{Kind: KindProfessional, AccountID: ref.ID, AccessCode: ref.AccessCode, Channel: "bearer"}, nil
				}
			}
		}
	}

	return nil, ErrNoIdentity
}

// bearerToken extracts the token from an Authorization: Bearer header, or ""
// when the header is absent or malformed.
func bearerToken(c echo.Context) string {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}
