package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ariefcatur/go-marketplace-checkout/internal/breaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Notify(t *testing.T) {
	var got notifyRequest
	var tenant string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/notify", r.URL.Path)
		tenant = r.Header.Get("X-Tenant-Id")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	err := NewClient(srv.URL, time.Second).Notify(context.Background(), 7, "t1", "hello")
	require.NoError(t, err)
	assert.Equal(t, notifyRequest{UserID: 7, Message: "hello"}, got)
	assert.Equal(t, "t1", tenant)
}

func TestClient_NonSuccessStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := NewClient(srv.URL, time.Second).Notify(context.Background(), 7, "t1", "hello")
	assert.ErrorContains(t, err, "status 503")
}

// Layanan notifikasi mati: tiga kegagalan membuka breaker, panggilan berikutnya
// tidak sampai ke server, dan caller tidak pernah menerima error.
func TestGuarded_OpensAfterThresholdAndSkipsCalls(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	now := time.Unix(1_700_000_000, 0)
	b := breaker.New("notification",
		breaker.WithFailureThreshold(3),
		breaker.WithResetTimeout(30*time.Second),
		breaker.WithClock(func() time.Time { return now }),
	)
	g := NewGuarded(NewClient(srv.URL, time.Second), b)

	for i := 0; i < 5; i++ {
		g.Notify(context.Background(), 7, "t1", "exam started")
	}
	assert.Equal(t, int32(3), hits.Load())
	assert.Equal(t, breaker.StateOpen, g.Breaker().Snapshot().State)

	// setelah reset timeout satu trial lewat; masih gagal jadi open lagi
	now = now.Add(31 * time.Second)
	g.Notify(context.Background(), 7, "t1", "exam submitted")
	assert.Equal(t, int32(4), hits.Load())
	assert.Equal(t, breaker.StateOpen, b.Snapshot().State)
}

func TestGuarded_RecoversWhenServiceComesBack(t *testing.T) {
	var healthy atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !healthy.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	now := time.Unix(1_700_000_000, 0)
	b := breaker.New("notification",
		breaker.WithFailureThreshold(2),
		breaker.WithClock(func() time.Time { return now }),
	)
	g := NewGuarded(NewClient(srv.URL, time.Second), b)
	g.Notify(context.Background(), 1, "t1", "a")
	g.Notify(context.Background(), 1, "t1", "b")
	require.Equal(t, breaker.StateOpen, b.Snapshot().State)

	healthy.Store(true)
	now = now.Add(breaker.DefaultResetTimeout + time.Second)
	g.Notify(context.Background(), 1, "t1", "c")
	snap := b.Snapshot()
	assert.Equal(t, breaker.StateClosed, snap.State)
	assert.Zero(t, snap.FailureCount)
}
