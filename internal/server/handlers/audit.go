package handlers

import (
	"net/http"
	"strconv"
	"time"

	"membergate/api/internal/apperr"
	auditrepo "membergate/api/internal/audit/repository"
	"membergate/api/internal/server/middleware"
)

const (
	activityDefaultLimit = 20
	activityMaxLimit     = 100
)

// AuditHandler exposes a user's own security activity.
type AuditHandler struct {
	audits auditrepo.Repository
}

// NewAuditHandler returns the handler for the activity route.
func NewAuditHandler(audits auditrepo.Repository) *AuditHandler {
	return &AuditHandler{audits: audits}
}

type activityEntry struct {
	Action    string    `json:"action"`
	Resource  string    `json:"resource"`
	IP        string    `json:"ip,omitempty"`
	Metadata  string    `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Activity handles GET /v1/auth/activity. Requires auth; only the caller's
// own events are visible.
func (h *AuditHandler) Activity(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetClaims(r.Context())
	if !ok {
		writeError(w, r, apperr.ErrUnauthorized)
		return
	}

	limit := queryInt(r, "limit", activityDefaultLimit, activityMaxLimit)
	offset := queryInt(r, "offset", 0, 1<<30)

	events, err := h.audits.ListByUser(r.Context(), claims.Subject, limit, offset)
	if err != nil {
		writeError(w, r, apperr.FromError(err))
		return
	}

	out := make([]activityEntry, len(events))
	for i, e := range events {
		out[i] = activityEntry{
			Action:    e.Action,
			Resource:  e.Resource,
			IP:        e.IP,
			Metadata:  e.Metadata,
			CreatedAt: e.CreatedAt,
		}
	}
	writeSuccess(w, r, http.StatusOK, out)
}

func queryInt(r *http.Request, name string, fallback, ceiling int32) int32 {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.ParseInt(raw, 10, 32)
	if err != nil || n < 0 {
		return fallback
	}
	if int32(n) > ceiling {
		return ceiling
	}
	return int32(n)
}
