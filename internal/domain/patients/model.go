package patients

import "time"

// Code lifecycle status values.
const (
	CodeStatusActive  = "active"
	CodeStatusRevoked = "revoked"
)

// Weight bounds accepted for a weigh-in, in kilograms.
const (
	MinWeightKG = 10.0
	MaxWeightKG = 500.0
)

// Patient is a clinic patient account. Patients have no username or password;
// the access code is their sole credential unless a federated identity has
// been linked.
type Patient struct {
	ID            int64      `json:"id"`
	FirstName     string     `json:"first_name"`
	LastName      string     `json:"last_name"`
	Email         *string    `json:"email,omitempty"`
	AccessCode    string     `json:"access_code"`
	CodeStatus    string     `json:"code_status"`
	CodeExpiry    time.Time  `json:"code_expiry"`
	SubjectID     *string    `json:"subject_id,omitempty"`
	DietLevel     int        `json:"diet_level"`
	TargetWeight  *float64   `json:"target_weight,omitempty"`
	Active        bool       `json:"active"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	DeactivatedAt *time.Time `json:"deactivated_at,omitempty"`
}

// CodeUsable reports whether the patient's access code authenticates at the
// given instant: the code must be active, the account active, and the expiry
// not yet reached.
func (p *Patient) CodeUsable(now time.Time) bool {
	return p.Active && p.CodeStatus == CodeStatusActive && !now.After(p.CodeExpiry)
}

// WeightRecord is a single weigh-in.
type WeightRecord struct {
	ID         int64     `json:"id"`
	PatientID  int64     `json:"patient_id"`
	WeightKG   float64   `json:"weight_kg"`
	Notes      *string   `json:"notes,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}
