package wellbeing

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"
)

// ErrInvalidScore is returned for mood scores outside the accepted scale.
var ErrInvalidScore = fmt.Errorf("score must be between %d and %d", MinScore, MaxScore)

// maxNoteLen bounds free-text notes.
const maxNoteLen = 1000

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// RecordMood stores a mood entry for a patient.
func (s *Service) RecordMood(ctx context.Context, patientID int64, score int, note *string) (*MoodEntry, error) {
	if score < MinScore || score > MaxScore {
		return nil, ErrInvalidScore
	}
	if note != nil && utf8.RuneCountInString(*note) > maxNoteLen {
		return nil, fmt.Errorf("note cannot exceed %d characters", maxNoteLen)
	}

	e := &MoodEntry{
		PatientID:  patientID,
		Score:      score,
		Note:       note,
		RecordedAt: time.Now(),
	}
	if err := s.repo.Add(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// Entries lists a patient's mood history, newest first.
func (s *Service) Entries(ctx context.Context, patientID int64, limit, offset int) ([]*MoodEntry, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}
