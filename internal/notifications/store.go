package notifications

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrInvalid = errors.New("user id and message are required")

type Notification struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"userId"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	TenantID  string    `json:"tenantId"`
	CreatedAt time.Time `json:"createdAt"`
}

type Store interface {
	Insert(ctx context.Context, n *Notification) error
	List(ctx context.Context, userID int64, tenantID string) ([]Notification, error)
}

type PGStore struct{ DB *pgxpool.Pool }

func (s *PGStore) Insert(ctx context.Context, n *Notification) error {
	return s.DB.QueryRow(ctx, `
		INSERT INTO notifications (user_id, message, tenant_id)
		VALUES ($1, $2, $3)
		RETURNING id, read, created_at`,
		n.UserID, n.Message, n.TenantID,
	).Scan(&n.ID, &n.Read, &n.CreatedAt)
}

func (s *PGStore) List(ctx context.Context, userID int64, tenantID string) ([]Notification, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, user_id, message, read, tenant_id, created_at
		FROM notifications
		WHERE user_id = $1 AND tenant_id = $2
		ORDER BY created_at DESC, id DESC`, userID, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Notification, 0)
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Message, &n.Read, &n.TenantID, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

type MemStore struct {
	mu   sync.Mutex
	seq  int64
	rows []Notification
}

func (s *MemStore) Insert(_ context.Context, n *Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	n.ID = s.seq
	n.CreatedAt = time.Now().UTC()
	s.rows = append(s.rows, *n)
	return nil
}

func (s *MemStore) List(_ context.Context, userID int64, tenantID string) ([]Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Notification, 0)
	for _, n := range s.rows {
		if n.UserID == userID && n.TenantID == tenantID {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}
