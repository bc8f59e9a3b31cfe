package exams

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"
)

type Repo interface {
	GetExam(ctx context.Context, examID int64, tenantID string) (*Exam, error)
	Questions(ctx context.Context, examID int64) ([]Question, error)
	GetSubmission(ctx context.Context, examID, userID int64, tenantID string) (*Submission, error)
	// StartSubmission creates the submission or resets started_at of an unsubmitted one.
	StartSubmission(ctx context.Context, examID, userID int64, tenantID string, at time.Time) (*Submission, error)
	// SaveResult writes answers and score only while the submission is still open.
	SaveResult(ctx context.Context, sub *Submission) error
}

// Notifier is best effort; it never reports failure to the caller.
type Notifier interface {
	Notify(ctx context.Context, userID int64, tenantID, message string)
}

type Service struct {
	repo   Repo
	notify Notifier
	now    func() time.Time
}

func NewService(repo Repo, notify Notifier) *Service {
	return &Service{repo: repo, notify: notify, now: time.Now}
}

type StartResult struct {
	Exam       *Exam       `json:"exam"`
	Submission *Submission `json:"submission"`
	Questions  []Question  `json:"questions"`
}

func (s *Service) Start(ctx context.Context, examID, userID int64, tenantID string) (*StartResult, error) {
	exam, err := s.repo.GetExam(ctx, examID, tenantID)
	if err != nil {
		return nil, err
	}
	existing, err := s.repo.GetSubmission(ctx, examID, userID, tenantID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if existing != nil && existing.Submitted() {
		return nil, ErrAlreadySubmitted
	}
	sub, err := s.repo.StartSubmission(ctx, examID, userID, tenantID, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("start submission: %w", err)
	}
	qs, err := s.repo.Questions(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}

	s.notify.Notify(ctx, userID, tenantID, "You have started exam: "+exam.Title)
	return &StartResult{Exam: exam, Submission: sub, Questions: qs}, nil
}

type SubmitResult struct {
	Submission     *Submission `json:"submission"`
	Score          float64     `json:"score"`
	CorrectAnswers int         `json:"correctAnswers"`
	TotalQuestions int         `json:"totalQuestions"`
}

func (s *Service) Submit(ctx context.Context, examID, userID int64, tenantID string, answers Answers) (*SubmitResult, error) {
	if answers == nil {
		return nil, ErrInvalidAnswers
	}
	exam, err := s.repo.GetExam(ctx, examID, tenantID)
	if err != nil {
		return nil, err
	}
	sub, err := s.repo.GetSubmission(ctx, examID, userID, tenantID)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotStarted
	}
	if err != nil {
		return nil, err
	}
	if sub.Submitted() {
		return nil, ErrAlreadySubmitted
	}
	qs, err := s.repo.Questions(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}

	correct, score := Score(qs, answers)
	at := s.now().UTC()
	sub.Answers = answers
	sub.Score = &score
	sub.SubmittedAt = &at
	if err := s.repo.SaveResult(ctx, sub); err != nil {
		return nil, err
	}
	log.Printf("exam=%d user=%d tenant=%s submitted score=%.2f", examID, userID, tenantID, score)

	s.notify.Notify(ctx, userID, tenantID,
		fmt.Sprintf("Your exam %q has been submitted. Score: %.2f%%", exam.Title, score))
	return &SubmitResult{Submission: sub, Score: score, CorrectAnswers: correct, TotalQuestions: len(qs)}, nil
}

// Score returns correct answers and correct/total*100 rounded to 2 decimals.
// An exam without questions scores 0.
func Score(qs []Question, answers Answers) (int, float64) {
	if len(qs) == 0 {
		return 0, 0
	}
	correct := 0
	for _, q := range qs {
		if got, ok := answers[q.ID]; ok && got == q.CorrectOption {
			correct++
		}
	}
	score := float64(correct) / float64(len(qs)) * 100
	return correct, math.Round(score*100) / 100
}
