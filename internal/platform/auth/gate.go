package auth

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
)

type contextKey string

// IdentityKey is the context key under which the resolved identity is stored.
const IdentityKey contextKey = "identity"

// RequirePatient returns middleware that admits only requests resolving to a
// patient identity. Every failure mode collapses to the same 401 so callers
// cannot probe which codes exist, are revoked, or have expired.
func RequirePatient(r *Resolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ident, err := r.ResolvePatient(c)
			if err != nil {
				return unauthorized()
			}
			attach(c, ident)
			return next(c)
		}
	}
}

// RequireProfessional returns middleware that admits only requests resolving
// to a professional identity.
func RequireProfessional(r *Resolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ident, err := r.ResolveProfessional(c)
			if err != nil {
				return unauthorized()
			}
			attach(c, ident)
			return next(c)
		}
	}
}

// RequireEither returns middleware that admits requests resolving to either
// account type. Professionals are tried first so a professional browsing
// shared endpoints keeps their own identity.
func RequireEither(r *Resolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if ident, err := r.ResolveProfessional(c); err == nil {
				attach(c, ident)
				return next(c)
			}
			if ident, err := r.ResolvePatient(c); err == nil {
				attach(c, ident)
				return next(c)
			}
			return unauthorized()
		}
	}
}

func unauthorized() error {
	return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
}

// attach stores the identity on both the request context (for services) and
// the echo context (for the audit middleware).
func attach(c echo.Context, ident *Identity) {
	ctx := context.WithValue(c.Request().Context(), IdentityKey, ident)
	c.SetRequest(c.Request().WithContext(ctx))
	c.Set("identity_kind", ident.Kind)
	c.Set("identity_id", ident.AccountID)
}

// IdentityFromContext retrieves the resolved identity from context, or nil.
func IdentityFromContext(ctx context.Context) *Identity {
	ident, _ := ctx.Value(IdentityKey).(*Identity)
	return ident
}
