// Package respond holds the JSON and error helpers shared by the HTTP handlers.
package respond

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/errs"
)

// HeaderUserID carries the authenticated user id set by the gateway in front of the service.
const HeaderUserID = "X-User-ID"

var validate = validator.New(validator.WithRequiredStructEnabled())

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Status maps an error kind to an HTTP status code.
func Status(kind errs.Kind) int {
	switch kind {
	case errs.KindValidation, errs.KindSerialization:
		return http.StatusBadRequest
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindInsufficientStock, errs.KindInvalidTransition:
		return http.StatusConflict
	case errs.KindUnauthorized:
		return http.StatusForbidden
	case errs.KindEmptyCart:
		return http.StatusUnprocessableEntity
	case errs.KindGateway:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error sending response", "error", err)
	}
}

// Error writes err as {"error": {"kind", "message"}}. Internal details are not exposed.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	kind := errs.KindOf(err)
	status := Status(kind)
	msg := errs.Message(err)
	if status == http.StatusInternalServerError {
		msg = "internal error"
		slog.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	} else {
		slog.Warn("Request rejected", "method", r.Method, "path", r.URL.Path, "kind", kind, "error", err)
	}

	JSON(w, status, errorBody{Error: errorDetail{Kind: kind.String(), Message: msg}})
}

// UserID returns the caller's user id.
func UserID(r *http.Request) (string, error) {
	id := strings.TrimSpace(r.Header.Get(HeaderUserID))
	if id == "" {
		return "", errs.E(errs.KindValidation, "respond.UserID", HeaderUserID+" header is required")
	}

	return id, nil
}

// PathUUID parses a uuid route parameter.
func PathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, errs.Errorf(errs.KindValidation, "respond.PathUUID", "invalid %s", name)
	}

	return id, nil
}

// Decode reads a JSON body into dst and validates it. An empty body is accepted when optional is set.
func Decode(r *http.Request, dst any, optional bool) error {
	const op = "respond.Decode"

	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) && optional {
		return nil
	}
	if err != nil {
		return errs.Errorf(errs.KindValidation, op, "malformed request body: %v", err)
	}

	if err := validate.Struct(dst); err != nil {
		return errs.Errorf(errs.KindValidation, op, "%v", err)
	}

	return nil
}
