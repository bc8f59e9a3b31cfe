package exams

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sent struct {
	userID   int64
	tenantID string
	message  string
}

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []sent
}

func (n *recordingNotifier) Notify(_ context.Context, userID int64, tenantID, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, sent{userID, tenantID, message})
}

func seedExam(repo *MemRepo) Exam {
	return repo.AddExam(
		Exam{Title: "Algoritma", CreatedBy: 1, StartTime: time.Now(), Duration: 60, TenantID: "t1"},
		Question{Text: "1+1", Options: []string{"1", "2"}, CorrectOption: 1},
		Question{Text: "2+2", Options: []string{"4", "5"}, CorrectOption: 0},
		Question{Text: "3+3", Options: []string{"5", "6"}, CorrectOption: 1},
	)
}

func TestService_StartAndSubmit(t *testing.T) {
	repo := NewMemRepo()
	exam := seedExam(repo)
	n := &recordingNotifier{}
	svc := NewService(repo, n)

	start, err := svc.Start(context.Background(), exam.ID, 7, "t1")
	require.NoError(t, err)
	require.Len(t, start.Questions, 3)
	assert.NotNil(t, start.Submission.StartedAt)

	qs := start.Questions
	res, err := svc.Submit(context.Background(), exam.ID, 7, "t1", Answers{qs[0].ID: 1, qs[1].ID: 0, qs[2].ID: 0})
	require.NoError(t, err)
	assert.Equal(t, 2, res.CorrectAnswers)
	assert.Equal(t, 3, res.TotalQuestions)
	assert.Equal(t, 66.67, res.Score)

	require.Len(t, n.msgs, 2)
	assert.Equal(t, "You have started exam: Algoritma", n.msgs[0].message)
	assert.Equal(t, `Your exam "Algoritma" has been submitted. Score: 66.67%`, n.msgs[1].message)
	assert.Equal(t, "t1", n.msgs[1].tenantID)
}

func TestService_RejectsSecondSubmitAndRestart(t *testing.T) {
	repo := NewMemRepo()
	exam := seedExam(repo)
	svc := NewService(repo, &recordingNotifier{})

	_, err := svc.Start(context.Background(), exam.ID, 7, "t1")
	require.NoError(t, err)
	_, err = svc.Submit(context.Background(), exam.ID, 7, "t1", Answers{})
	require.NoError(t, err)

	_, err = svc.Submit(context.Background(), exam.ID, 7, "t1", Answers{})
	assert.ErrorIs(t, err, ErrAlreadySubmitted)
	_, err = svc.Start(context.Background(), exam.ID, 7, "t1")
	assert.ErrorIs(t, err, ErrAlreadySubmitted)
}

func TestService_SubmitWithoutStart(t *testing.T) {
	repo := NewMemRepo()
	exam := seedExam(repo)
	_, err := NewService(repo, &recordingNotifier{}).Submit(context.Background(), exam.ID, 7, "t1", Answers{})
	assert.ErrorIs(t, err, ErrNotStarted)
}

func TestService_ExamIsTenantScoped(t *testing.T) {
	repo := NewMemRepo()
	exam := seedExam(repo)
	_, err := NewService(repo, &recordingNotifier{}).Start(context.Background(), exam.ID, 7, "t2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_NilAnswers(t *testing.T) {
	_, err := NewService(NewMemRepo(), &recordingNotifier{}).Submit(context.Background(), 1, 7, "t1", nil)
	assert.ErrorIs(t, err, ErrInvalidAnswers)
}

func TestScore(t *testing.T) {
	qs := []Question{{ID: 1, CorrectOption: 2}, {ID: 2, CorrectOption: 0}}
	c, s := Score(qs, Answers{1: 2, 2: 1})
	assert.Equal(t, 1, c)
	assert.Equal(t, 50.0, s)

	c, s = Score(nil, Answers{1: 2})
	assert.Zero(t, c)
	assert.Zero(t, s)
}
