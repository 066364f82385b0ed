package api

import (
	"errors"

	"SignalRelay/internal/domain/models"
	xhttp "SignalRelay/pkg/http"
)

// AppErrorFromDomain maps domain sentinels to HTTP errors.
func AppErrorFromDomain(err error) *xhttp.AppError {
	var appErr *xhttp.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	switch {
	case errors.Is(err, models.ErrValidation):
		return xhttp.BadRequestError(err.Error()).WithError(err)
	case errors.Is(err, models.ErrNotFound):
		return xhttp.NotFoundError(err.Error()).WithError(err)
	case errors.Is(err, models.ErrAuthentication):
		return xhttp.UnauthorizedError("authentication failed").WithError(err)
	case errors.Is(err, models.ErrNotEntitled):
		return xhttp.ForbiddenError(err.Error()).WithError(err)
	case errors.Is(err, models.ErrStaleTransition), errors.Is(err, models.ErrPrecondition):
		return xhttp.ConflictError(err.Error()).WithError(err)
	}
	return xhttp.InternalError("internal error").WithError(err)
}
