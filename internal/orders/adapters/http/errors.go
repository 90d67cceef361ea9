package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/dejobratic/garment-orders/internal/orders/domain"
)

var kindStatus = map[error]int{
	domain.ErrValidation:        http.StatusBadRequest,
	domain.ErrNotFound:          http.StatusNotFound,
	domain.ErrInsufficientStock: http.StatusConflict,
	domain.ErrBelowMinimumOrder: http.StatusBadRequest,
	domain.ErrUnauthorized:      http.StatusForbidden,
	domain.ErrInvalidTransition: http.StatusConflict,
	domain.ErrConflict:          http.StatusServiceUnavailable,
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// writeDomainError renders err as {"error": kind, "message": reason}.
// Errors outside the domain taxonomy are reported without detail.
func writeDomainError(w http.ResponseWriter, err error) {
	kind := domain.Kind(err)
	if kind == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	writeError(w, kindStatus[kind], kind.Error(), reason(err, kind))
}

// genericReason is shown when an error carries text the client must not see.
var genericReason = map[error]string{
	domain.ErrValidation: "invalid request",
	domain.ErrConflict:   "storage unavailable, retry the request",
}

// reason strips the "kind: " prefix that fmt.Errorf("%w: ...") leaves.
// Storage errors report their own reason; errors that wrap a cause from
// outside the domain taxonomy fall back to a generic reason.
func reason(err, kind error) string {
	var se *domain.StorageError
	if errors.As(err, &se) {
		return se.Reason
	}
	if wrapsForeign(err) {
		if generic, ok := genericReason[kind]; ok {
			return generic
		}
		return kind.Error()
	}
	msg := err.Error()
	if trimmed, ok := strings.CutPrefix(msg, kind.Error()+": "); ok {
		return trimmed
	}
	return msg
}

// wrapsForeign reports whether any leaf of err's chain is something other
// than a domain kind.
func wrapsForeign(err error) bool {
	switch e := err.(type) {
	case interface{ Unwrap() error }:
		if next := e.Unwrap(); next != nil {
			return wrapsForeign(next)
		}
	case interface{ Unwrap() []error }:
		for _, next := range e.Unwrap() {
			if wrapsForeign(next) {
				return true
			}
		}
		return false
	}
	return domain.Kind(err) == nil
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, errorResponse{Error: kind, Message: message})
}
