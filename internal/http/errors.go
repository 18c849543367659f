package http

import (
	"context"
	"errors"
	"net/http"

	"ledgerly/internal/auth"
	"ledgerly/internal/core"
	applog "ledgerly/internal/log"
	"ledgerly/internal/services"
	"ledgerly/internal/storage"
)

// statusFor maps a service error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errMalformedBody):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, services.ErrUnknownCollection):
		return http.StatusNotFound
	case errors.Is(err, services.ErrCategoryExists), errors.Is(err, auth.ErrEmailTaken):
		return http.StatusConflict
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError answers with the mapped status. Server-side failures are logged
// and hidden behind a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error, operation string) {
	status := statusFor(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		logger := applog.FromContext(r.Context())
		applog.NewStructuredLogger(logger).LogError(r.Context(), "Request failed", err,
			applog.ComponentHTTP, operation,
			applog.NewFields().
				WithUser(userID(r)).
				WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.UserAgent()))
		msg = http.StatusText(status)
	}
	ErrorResponse(status, msg).Write(w)
}

func writeUnauthorized(w http.ResponseWriter, _ *http.Request) {
	ErrorResponse(http.StatusUnauthorized, auth.ErrInvalidToken.Error()).Write(w)
}
