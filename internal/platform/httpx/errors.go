package httpx

import (
	"errors"
	"net/http"

	"github.com/capiplan/capiplan/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807.
// Conflict is used for illegal transitions so the client can distinguish a
// stale view of the entity from a rejected input.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrDuplicate):
		Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, shared.ErrRevisionConflict):
		Problem(w, http.StatusConflict, "Revision Conflict", err.Error())
	case shared.IsIllegalTransition(err):
		Problem(w, http.StatusConflict, "Illegal Transition", err.Error())
	case shared.IsPermissionDenied(err):
		Problem(w, http.StatusForbidden, "Permission Denied", err.Error())
	case shared.IsPreconditionFailed(err):
		Problem(w, http.StatusUnprocessableEntity, "Precondition Failed", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
