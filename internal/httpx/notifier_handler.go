package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/ariefcatur/go-marketplace-checkout/internal/notifications"
	"github.com/go-chi/chi/v5"
)

type NotifierHandler struct {
	Service *notifications.Service
}

type NotifyReq struct {
	UserID  int64  `json:"userId"`
	Message string `json:"message"`
}

func (h *NotifierHandler) Register(r chi.Router) {
	r.Post("/notify", h.notify)
	r.With(RequireIdentity).Get("/notifications", h.list)
}

// notify dipanggil service lain, bukan lewat gateway: cukup X-Tenant-Id.
func (h *NotifierHandler) notify(w http.ResponseWriter, r *http.Request) {
	tenant := r.Header.Get("X-Tenant-Id")
	if tenant == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "X-Tenant-Id is required"})
		return
	}
	var req NotifyReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	n, err := h.Service.Create(r.Context(), req.UserID, tenant, req.Message)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

func (h *NotifierHandler) list(w http.ResponseWriter, r *http.Request) {
	id := IdentityFrom(r.Context())
	list, err := h.Service.List(r.Context(), id.UserID, id.TenantID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
