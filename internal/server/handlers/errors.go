package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/wgwall/walld/internal/server/dto"
	"github.com/wgwall/walld/internal/users"
	"github.com/wgwall/walld/internal/wall"
)

// apiError maps domain errors onto the API error taxonomy. Errors that
// already carry a status pass through; anything unrecognized becomes a
// generic 500 so internals never leak into responses.
func apiError(err error) error {
	var withStatus dto.ErrorWithStatus
	if errors.As(err, &withStatus) {
		return err
	}
	var validation *wall.ValidationError
	if errors.As(err, &validation) {
		return dto.BadRequest(validation.Error()).Wrap(err)
	}
	switch {
	case errors.Is(err, wall.ErrPostNotFound):
		return dto.NotFound("post").Wrap(err)
	case errors.Is(err, wall.ErrCommentNotFound):
		return dto.NotFound("comment").Wrap(err)
	case errors.Is(err, users.ErrNotFound):
		return dto.NotFound("user").Wrap(err)
	case errors.Is(err, users.ErrNameTaken):
		return dto.Conflict(err.Error()).Wrap(err)
	case errors.Is(err, users.ErrBadCredentials):
		return dto.NewAPIError(http.StatusUnauthorized, dto.ErrorCodeUnauthorized, err.Error()).Wrap(err)
	case errors.Is(err, users.ErrInvalidName),
		errors.Is(err, users.ErrShortPassword),
		errors.Is(err, users.ErrInvalidGender):
		return dto.BadRequest(err.Error()).Wrap(err)
	default:
		return dto.InternalWithError("internal server error", err)
	}
}

// writeJSON writes a success payload. Used by the raw multipart handlers;
// the wrapped handlers go through the server package's response writer.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "err", err)
	}
}

// writeError maps err through apiError and writes the error envelope.
func writeError(w http.ResponseWriter, err error) {
	mapped := apiError(err)
	status := http.StatusInternalServerError
	code := dto.ErrorCodeInternal
	var withStatus dto.ErrorWithStatus
	if errors.As(mapped, &withStatus) {
		status = withStatus.StatusCode()
		code = withStatus.Code()
	}
	msg := mapped.Error()
	if status >= http.StatusInternalServerError {
		slog.Error("Request failed", "status", status, "err", err)
		msg = "internal server error"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := dto.ErrorResponse{Status: dto.StatusError, Code: code, Msg: msg}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("Failed to encode error response", "err", err)
	}
}
