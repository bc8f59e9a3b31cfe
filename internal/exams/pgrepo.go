package exams

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PGRepo struct{ DB *pgxpool.Pool }

var _ Repo = (*PGRepo)(nil)

func (r *PGRepo) GetExam(ctx context.Context, examID int64, tenantID string) (*Exam, error) {
	var e Exam
	err := r.DB.QueryRow(ctx, `
		SELECT id, title, created_by, start_time, duration, tenant_id
		FROM exams WHERE id = $1 AND tenant_id = $2`, examID, tenantID,
	).Scan(&e.ID, &e.Title, &e.CreatedBy, &e.StartTime, &e.Duration, &e.TenantID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *PGRepo) Questions(ctx context.Context, examID int64) ([]Question, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, exam_id, text, options, correct_option
		FROM questions WHERE exam_id = $1 ORDER BY id`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Question
	for rows.Next() {
		var q Question
		var opts []byte
		if err := rows.Scan(&q.ID, &q.ExamID, &q.Text, &opts, &q.CorrectOption); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(opts, &q.Options); err != nil {
			return nil, fmt.Errorf("question %d options: %w", q.ID, err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

const submissionCols = `id, exam_id, user_id, answers, score::float8, started_at, submitted_at, tenant_id`

func scanSubmission(row pgx.Row) (*Submission, error) {
	var s Submission
	var answers []byte
	if err := row.Scan(&s.ID, &s.ExamID, &s.UserID, &answers, &s.Score, &s.StartedAt, &s.SubmittedAt, &s.TenantID); err != nil {
		return nil, err
	}
	s.Answers = Answers{}
	if len(answers) > 0 {
		if err := json.Unmarshal(answers, &s.Answers); err != nil {
			return nil, fmt.Errorf("submission %d answers: %w", s.ID, err)
		}
	}
	return &s, nil
}

func (r *PGRepo) GetSubmission(ctx context.Context, examID, userID int64, tenantID string) (*Submission, error) {
	s, err := scanSubmission(r.DB.QueryRow(ctx, `
		SELECT `+submissionCols+`
		FROM submissions WHERE exam_id = $1 AND user_id = $2 AND tenant_id = $3`,
		examID, userID, tenantID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return s, err
}

func (r *PGRepo) StartSubmission(ctx context.Context, examID, userID int64, tenantID string, at time.Time) (*Submission, error) {
	s, err := scanSubmission(r.DB.QueryRow(ctx, `
		INSERT INTO submissions (exam_id, user_id, answers, started_at, tenant_id)
		VALUES ($1, $2, '{}', $3, $4)
		ON CONFLICT (exam_id, user_id, tenant_id)
		DO UPDATE SET started_at = EXCLUDED.started_at
		WHERE submissions.submitted_at IS NULL
		RETURNING `+submissionCols, examID, userID, at, tenantID))
	if errors.Is(err, pgx.ErrNoRows) {
		// conflict dengan submission yang sudah submitted: WHERE menolak update
		return nil, ErrAlreadySubmitted
	}
	return s, err
}

func (r *PGRepo) SaveResult(ctx context.Context, sub *Submission) error {
	answers, err := json.Marshal(sub.Answers)
	if err != nil {
		return err
	}
	ct, err := r.DB.Exec(ctx, `
		UPDATE submissions
		SET answers = $1::jsonb, score = $2, submitted_at = $3
		WHERE exam_id = $4 AND user_id = $5 AND tenant_id = $6 AND submitted_at IS NULL`,
		string(answers), sub.Score, sub.SubmittedAt, sub.ExamID, sub.UserID, sub.TenantID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrAlreadySubmitted
	}
	return nil
}
