package wellbeing

import "time"

// Mood score bounds, lowest to highest.
const (
	MinScore = 1
	MaxScore = 5
)

// MoodEntry is a patient's self-reported mood at a point in time.
type MoodEntry struct {
	ID         int64     `json:"id"`
	PatientID  int64     `json:"patient_id"`
	Score      int       `json:"score"`
	Note       *string   `json:"note,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}
