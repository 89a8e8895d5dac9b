package professionals

import "time"

// Code lifecycle status values.
const (
	CodeStatusActive  = "active"
	CodeStatusRevoked = "revoked"
)

// Professional is a clinic staff account. Like patients, professionals carry
// an access code as their credential, but professional codes do not expire
// and are never rotated by routine use.
type Professional struct {
	ID            int64      `json:"id"`
	FirstName     string     `json:"first_name"`
	LastName      string     `json:"last_name"`
	Email         *string    `json:"email,omitempty"`
	Specialty     *string    `json:"specialty,omitempty"`
	License       *string    `json:"license,omitempty"`
	AccessCode    string     `json:"access_code"`
	CodeStatus    string     `json:"code_status"`
	SubjectID     *string    `json:"subject_id,omitempty"`
	Active        bool       `json:"active"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	DeactivatedAt *time.Time `json:"deactivated_at,omitempty"`
}
