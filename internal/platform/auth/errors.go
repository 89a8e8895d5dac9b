package auth

import "errors"

var (
	// ErrCodeNotFound indicates the presented access code matches no record.
	ErrCodeNotFound = errors.New("access code not found")

	// ErrCodeRevoked indicates the access code has been revoked and can no
	// longer be used.
	ErrCodeRevoked = errors.New("access code revoked")

	// ErrCodeExpired indicates the access code has passed its expiry date.
	ErrCodeExpired = errors.New("access code expired")

	// ErrInvalidCode indicates the presented string is not a well-formed
	// access code.
	ErrInvalidCode = errors.New("invalid access code")

	// ErrNoIdentity indicates no authentication channel yielded an identity.
	ErrNoIdentity = errors.New("no identity resolved")

	// ErrIdentityConflict indicates an attempt to link a credential that is
	// already bound to a different account.
	ErrIdentityConflict = errors.New("identity already linked to another account")
)
