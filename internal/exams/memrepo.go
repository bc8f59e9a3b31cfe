package exams

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemRepo keeps exams in memory; used by STORE_DRIVER=memory and tests.
type MemRepo struct {
	mu        sync.Mutex
	seq       int64
	exams     map[int64]Exam
	questions map[int64][]Question
	subs      map[subKey]Submission
}

type subKey struct {
	examID, userID int64
	tenantID       string
}

func NewMemRepo() *MemRepo {
	return &MemRepo{
		exams:     map[int64]Exam{},
		questions: map[int64][]Question{},
		subs:      map[subKey]Submission{},
	}
}

// AddExam seeds an exam with its questions and returns the stored exam.
func (r *MemRepo) AddExam(e Exam, qs ...Question) Exam {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	e.ID = r.seq
	r.exams[e.ID] = e
	for _, q := range qs {
		r.seq++
		q.ID = r.seq
		q.ExamID = e.ID
		r.questions[e.ID] = append(r.questions[e.ID], q)
	}
	return e
}

func (r *MemRepo) GetExam(_ context.Context, examID int64, tenantID string) (*Exam, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.exams[examID]
	if !ok || e.TenantID != tenantID {
		return nil, ErrNotFound
	}
	return &e, nil
}

func (r *MemRepo) Questions(_ context.Context, examID int64) ([]Question, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := append([]Question(nil), r.questions[examID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemRepo) GetSubmission(_ context.Context, examID, userID int64, tenantID string) (*Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.subs[subKey{examID, userID, tenantID}]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (r *MemRepo) StartSubmission(_ context.Context, examID, userID int64, tenantID string, at time.Time) (*Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := subKey{examID, userID, tenantID}
	s, ok := r.subs[k]
	if ok && s.Submitted() {
		return nil, ErrAlreadySubmitted
	}
	if !ok {
		r.seq++
		s = Submission{ID: r.seq, ExamID: examID, UserID: userID, TenantID: tenantID, Answers: Answers{}}
	}
	s.StartedAt = &at
	r.subs[k] = s
	return &s, nil
}

func (r *MemRepo) SaveResult(_ context.Context, sub *Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := subKey{sub.ExamID, sub.UserID, sub.TenantID}
	cur, ok := r.subs[k]
	if !ok {
		return ErrNotFound
	}
	if cur.Submitted() {
		return ErrAlreadySubmitted
	}
	r.subs[k] = *sub
	return nil
}
