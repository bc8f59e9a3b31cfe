package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/ariefcatur/go-marketplace-checkout/internal/breaker"
	"github.com/ariefcatur/go-marketplace-checkout/internal/exams"
	"github.com/go-chi/chi/v5"
)

type ExamsHandler struct {
	Service *exams.Service
	// Breaker guarding the notification call, exposed read-only.
	Breaker *breaker.Breaker
}

type SubmitReq struct {
	Answers exams.Answers `json:"answers"`
}

func (h *ExamsHandler) Register(r chi.Router) {
	r.Get("/circuit-breaker/status", h.breakerStatus)
	r.Group(func(r chi.Router) {
		r.Use(RequireIdentity)
		r.Post("/exams/{id}/start", h.start)
		r.Post("/exams/{id}/submit", h.submit)
	})
}

func (h *ExamsHandler) start(w http.ResponseWriter, r *http.Request) {
	examID, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid exam id"})
		return
	}
	id := IdentityFrom(r.Context())
	res, err := h.Service.Start(r.Context(), examID, id.UserID, id.TenantID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *ExamsHandler) submit(w http.ResponseWriter, r *http.Request) {
	examID, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid exam id"})
		return
	}
	var req SubmitReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	id := IdentityFrom(r.Context())
	res, err := h.Service.Submit(r.Context(), examID, id.UserID, id.TenantID, req.Answers)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *ExamsHandler) breakerStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Breaker.Snapshot())
}
