// Package shared holds the response helpers every handler uses.
package shared

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"recaudo/internal/platform/middleware"
	domainerrors "recaudo/pkg/domain-errors"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// WriteJSON writes v as the JSON response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// WriteError translates a service error into an HTTP response. Coded domain
// errors map by code and keep their message; everything else is logged and
// answered with an opaque 500.
func WriteError(ctx context.Context, w http.ResponseWriter, logger *slog.Logger, err error) {
	code := domainerrors.CodeOf(err)
	if code == domainerrors.CodeInternal {
		logger.ErrorContext(ctx, "internal error",
			"error", err,
			"request_id", middleware.GetRequestID(ctx),
		)
		WriteJSON(w, http.StatusInternalServerError, errorResponse{Error: string(code)})
		return
	}

	var de domainerrors.Error
	message := ""
	if errors.As(err, &de) {
		message = de.Message
	}
	WriteJSON(w, domainerrors.ToHTTPStatus(code), errorResponse{Error: string(code), Message: message})
}

// DecodeJSON decodes the request body into dst, rejecting unknown fields.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return domainerrors.New(domainerrors.CodeBadRequest, "invalid JSON body: "+err.Error())
	}
	return nil
}
