package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// AuditEntry captures who accessed what, when, from where, and the action type.
type AuditEntry struct {
	IdentityKind string
	IdentityID   int64
	Action       string // read, create, update, delete
	IPAddress    string
	UserAgent    string
	Path         string
	Method       string
	Timestamp    time.Time
	RequestID    string
	StatusCode   int
}

// AuditRecorder is the interface the audit middleware uses to persist audit
// entries, decoupling it from any concrete sink so tests can provide a mock.
type AuditRecorder interface {
	RecordAccess(entry AuditEntry) error
}

// AuditRecorderFunc is a function adapter for AuditRecorder.
type AuditRecorderFunc func(entry AuditEntry) error

func (f AuditRecorderFunc) RecordAccess(entry AuditEntry) error {
	return f(entry)
}

// Audit returns Echo middleware that records access to patient data. It runs
// after the authorization gate, so the resolved identity kind and ID are
// available on the echo context.
//
// If no AuditRecorder is provided, it falls back to structured zerolog logging.
func Audit(logger zerolog.Logger, recorders ...AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			// Execute the handler first so we capture the response status
			err := next(c)

			entry := AuditEntry{
				Timestamp:  time.Now().UTC(),
				Path:       req.URL.Path,
				Method:     req.Method,
				IPAddress:  c.RealIP(),
				UserAgent:  req.UserAgent(),
				StatusCode: c.Response().Status,
				Action:     httpMethodToAction(req.Method),
			}

			if kind, ok := c.Get("identity_kind").(string); ok {
				entry.IdentityKind = kind
			}
			if id, ok := c.Get("identity_id").(int64); ok {
				entry.IdentityID = id
			}
			if rid, ok := c.Get("request_id").(string); ok {
				entry.RequestID = rid
			}

			if len(recorders) > 0 {
				for _, r := range recorders {
					if rerr := r.RecordAccess(entry); rerr != nil {
						logger.Error().Err(rerr).Msg("audit recorder failed")
					}
				}
			} else {
				logger.Info().
					Str("identity_kind", entry.IdentityKind).
					Int64("identity_id", entry.IdentityID).
					Str("action", entry.Action).
					Str("method", entry.Method).
					Str("path", entry.Path).
					Int("status", entry.StatusCode).
					Str("remote_ip", entry.IPAddress).
					Str("request_id", entry.RequestID).
					Msg("audit")
			}

			return err
		}
	}
}

// httpMethodToAction maps HTTP methods to audit action names.
func httpMethodToAction(method string) string {
	switch method {
	case "GET", "HEAD":
		return "read"
	case "POST":
		return "create"
	case "PUT", "PATCH":
		return "update"
	case "DELETE":
		return "delete"
	default:
		return "other"
	}
}
