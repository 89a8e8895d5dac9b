package auth

import (
	"crypto/rand"
	"fmt"
	"strings"
)

const (
	// codeAlphabet is the character set access codes are drawn from. It
	// deliberately excludes lowercase letters and punctuation so codes can
	// be read over the phone and typed on any keyboard.
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// CodeLength is the fixed length of every generated access code.
	CodeLength = 8

	// RevokedCode is the sentinel stored in place of a revoked code. It is
	// longer than any generated code and contains a dash, so no generated
	// code can ever collide with it.
	RevokedCode = "REVOKED-CODE"
)

// NewCode returns a cryptographically random access code of CodeLength
// characters drawn uniformly from codeAlphabet. Bytes at or above the
// largest multiple of the alphabet size are rejected; plain modulo would
// favor the first characters of the alphabet.
func NewCode() (string, error) {
	const limit = 256 - 256%len(codeAlphabet)

	var sb strings.Builder
	sb.Grow(CodeLength)
	buf := make([]byte, CodeLength)
	for sb.Len() < CodeLength {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("generating access code: %w", err)
		}
		for _, v := range buf {
			if int(v) >= limit {
				continue
			}
			sb.WriteByte(codeAlphabet[int(v)%len(codeAlphabet)])
			if sb.Len() == CodeLength {
				break
			}
		}
	}
	return sb.String(), nil
}

// IsWellFormed reports whether s has the shape of a generated access code:
// exactly CodeLength characters, all from codeAlphabet. The revoked sentinel
// is not well-formed.
func IsWellFormed(s string) bool {
	if len(s) != CodeLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !strings.ContainsRune(codeAlphabet, rune(s[i])) {
			return false
		}
	}
	return true
}

// IsRevokedSentinel reports whether s is the stored marker for a revoked code.
func IsRevokedSentinel(s string) bool {
	return s == RevokedCode
}
