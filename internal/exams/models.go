package exams

import (
	"errors"
	"time"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrAlreadySubmitted = errors.New("exam already submitted")
	ErrNotStarted       = errors.New("exam not started")
	ErrInvalidAnswers   = errors.New("answers object is required")
)

type Exam struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	CreatedBy int64     `json:"createdBy"`
	StartTime time.Time `json:"startTime"`
	Duration  int       `json:"duration"` // menit
	TenantID  string    `json:"tenantId"`
}

type Question struct {
	ID            int64    `json:"id"`
	ExamID        int64    `json:"examId"`
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	CorrectOption int      `json:"-"`
}

// Answers maps question id to the chosen option index.
type Answers map[int64]int

type Submission struct {
	ID          int64      `json:"id"`
	ExamID      int64      `json:"examId"`
	UserID      int64      `json:"userId"`
	Answers     Answers    `json:"answers"`
	Score       *float64   `json:"score"`
	StartedAt   *time.Time `json:"startedAt"`
	SubmittedAt *time.Time `json:"submittedAt"`
	TenantID    string     `json:"tenantId"`
}

func (s *Submission) Submitted() bool { return s.SubmittedAt != nil }
