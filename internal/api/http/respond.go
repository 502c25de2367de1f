package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/mind-engage/hireflow/internal/application"
	"github.com/mind-engage/hireflow/internal/backend"
	"github.com/mind-engage/hireflow/internal/exam"
	"github.com/mind-engage/hireflow/internal/session"
	syncx "github.com/mind-engage/hireflow/internal/sync"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var fe *application.FieldError
	var se *backend.StatusError
	switch {
	case errors.Is(err, session.ErrNotFound), errors.Is(err, syncx.ErrNotFound),
		errors.Is(err, session.ErrGuardDisabled):
		return http.StatusNotFound
	case errors.Is(err, session.ErrClosed):
		return http.StatusGone
	case errors.Is(err, session.ErrWrongStage), errors.Is(err, session.ErrSubmitting),
		errors.Is(err, session.ErrNotLoaded), errors.Is(err, session.ErrNotRetryable),
		errors.Is(err, session.ErrEnded):
		return http.StatusConflict
	case errors.Is(err, exam.ErrNoSelection), errors.Is(err, exam.ErrOptionRange),
		errors.Is(err, exam.ErrQuestionRange):
		return http.StatusUnprocessableEntity
	case errors.As(err, &fe), errors.Is(err, application.ErrResumeRequired),
		errors.Is(err, application.ErrResumeType), errors.Is(err, application.ErrInvalidEmail),
		errors.Is(err, application.ErrOfferRequired):
		return http.StatusBadRequest
	case errors.Is(err, application.ErrNoCandidateID):
		return http.StatusUnprocessableEntity
	case errors.As(err, &se):
		if se.Code == http.StatusNotFound {
			return http.StatusNotFound
		}
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorBody{Error: err.Error()})
}

func int64Param(r *http.Request, name string) (int64, bool) {
	v, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return v, err == nil && v > 0
}
