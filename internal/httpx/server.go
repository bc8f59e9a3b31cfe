package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ariefcatur/go-marketplace-checkout/internal/exams"
	"github.com/ariefcatur/go-marketplace-checkout/internal/marketplace"
	"github.com/ariefcatur/go-marketplace-checkout/internal/notifications"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

// Identity is what the gateway attaches after verifying the caller.
type Identity struct {
	UserID   int64
	TenantID string
}

type identityKey struct{}

// RequireIdentity reads X-User-Id and X-Tenant-Id; missing or malformed -> 401.
func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid, err := strconv.ParseInt(r.Header.Get("X-User-Id"), 10, 64)
		tenant := r.Header.Get("X-Tenant-Id")
		if err != nil || uid <= 0 || tenant == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
			return
		}
		ctx := context.WithValue(r.Context(), identityKey{}, Identity{UserID: uid, TenantID: tenant})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func IdentityFrom(ctx context.Context) Identity {
	id, _ := ctx.Value(identityKey{}).(Identity)
	return id
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors to status codes. 5xx bodies never carry the
// underlying cause, only the class.
func writeError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	msg := err.Error()
	if code >= 500 {
		msg = "Internal server error"
		for _, class := range []error{marketplace.ErrOrderCreate, marketplace.ErrOrderConfirm} {
			if errors.Is(err, class) {
				msg = class.Error()
			}
		}
	}
	writeJSON(w, code, map[string]string{"error": msg})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, marketplace.ErrEmptyCart),
		errors.Is(err, marketplace.ErrNotFound),
		errors.Is(err, exams.ErrNotFound),
		errors.Is(err, exams.ErrNotStarted):
		return http.StatusNotFound
	case errors.Is(err, marketplace.ErrInsufficientStock):
		return http.StatusConflict
	case errors.Is(err, marketplace.ErrInvalidInput),
		errors.Is(err, exams.ErrInvalidAnswers),
		errors.Is(err, exams.ErrAlreadySubmitted),
		errors.Is(err, notifications.ErrInvalid):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}
