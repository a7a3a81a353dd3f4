// Package handlers holds the HTTP handlers and the shared JSON envelope.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"membergate/api/internal/apperr"
	"membergate/api/internal/server/middleware"
)

// apiResponse is the envelope every endpoint returns.
type apiResponse struct {
	Success bool          `json:"success"`
	Data    any           `json:"data,omitempty"`
	Error   *errorPayload `json:"error,omitempty"`
	Meta    responseMeta  `json:"meta"`
}

type errorPayload struct {
	Code       apperr.Code `json:"code"`
	Message    string      `json:"message"`
	Field      string      `json:"field,omitempty"`
	RetryAfter int64       `json:"retry_after,omitempty"`
}

type responseMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, body apiResponse) {
	body.Meta = responseMeta{
		RequestID: middleware.GetRequestID(r.Context()),
		Timestamp: time.Now().UTC(),
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeSuccess(w http.ResponseWriter, r *http.Request, status int, data any) {
	writeJSON(w, r, status, apiResponse{Success: true, Data: data})
}

// writeError converts any error to the envelope via the apperr taxonomy.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	e := apperr.FromError(err)
	if e.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.FormatInt(e.RetryAfter, 10))
	}
	writeJSON(w, r, e.Status(), apiResponse{
		Success: false,
		Error: &errorPayload{
			Code:       e.Code,
			Message:    e.Message,
			Field:      e.Field,
			RetryAfter: e.RetryAfter,
		},
	})
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperr.Validation("body", "invalid request body")
	}
	return nil
}
