package wellbeing

import "context"

type Repository interface {
	Add(ctx context.Context, e *MoodEntry) error
	ListByPatient(ctx context.Context, patientID int64, limit, offset int) ([]*MoodEntry, int, error)
}
