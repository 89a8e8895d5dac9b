package auth

import (
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const (
	// SessionCookieName is the cookie that carries the signed session token.
	SessionCookieName = "dieta_session"

	// KindPatient and KindProfessional identify the two account types a
	// session can belong to.
	KindPatient      = "patient"
	KindProfessional = "professional"
)

// SessionClaims is the payload of a signed session token. The access code is
// embedded so every request can be re-validated against the store; a session
// dies as soon as its code is rotated or revoked.
type SessionClaims struct {
	jwt.RegisteredClaims
	Kind       string `json:"kind"`
	AccountID  int64  `json:"account_id"`
	AccessCode string `json:"access_code"`
}

// SessionCodec issues and parses signed session tokens.
type SessionCodec struct {
	secret []byte
	ttl    time.Duration
}

// NewSessionCodec creates a codec that signs tokens with the given secret and
// issues them with the given lifetime.
func NewSessionCodec(secret string, ttl time.Duration) *SessionCodec {
	return &SessionCodec{secret: []byte(secret), ttl: ttl}
}

// Issue returns a signed session token for the given account.
func (sc *SessionCodec) Issue(kind string, accountID int64, accessCode string) (string, error) {
	now := time.Now()
	claims := &SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(sc.ttl)),
		},
		Kind:       kind,
		AccountID:  accountID,
		AccessCode: accessCode,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(sc.secret)
	if err != nil {
		return "", fmt.Errorf("signing session token: %w", err)
	}
	return signed, nil
}

// Parse validates the token signature and expiry and returns its claims.
func (sc *SessionCodec) Parse(tokenStr string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return sc.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid session token")
	}
	return claims, nil
}

// TTL returns the configured session lifetime.
func (sc *SessionCodec) TTL() time.Duration {
	return sc.ttl
}

// WriteSessionCookie sets the session cookie on the response.
func WriteSessionCookie(c echo.Context, token string, ttl time.Duration, secure bool) {
	c.SetCookie(&http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(ttl),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie expires the session cookie.
func ClearSessionCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
	})
}

// sessionTokenFromRequest returns the session token from the request cookie,
// or "" when the cookie is absent.
func sessionTokenFromRequest(c echo.Context) string {
	cookie, err := c.Cookie(SessionCookieName)
	if err != nil || cookie == nil {
		return ""
	}
	return cookie.Value
}
