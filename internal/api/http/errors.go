package http

import (
	stderrors "errors"
	"net/http"

	"github.com/wms-platform/production-tracking/internal/domain"
	"github.com/wms-platform/production-tracking/pkg/errors"
)

// Error codes specific to the tracking API
const (
	CodeIllegalTransition  = "ILLEGAL_TRANSITION"
	CodeInspectionRequired = "INSPECTION_REQUIRED"
	CodeAlreadyFinished    = "ALREADY_FINISHED"
	CodeAlreadyCompleted   = "ALREADY_COMPLETED"
)

// MapDomainError translates domain sentinel errors into API errors
func MapDomainError(err error) *errors.AppError {
	var appErr *errors.AppError
	switch {
	case stderrors.Is(err, domain.ErrConflict):
		appErr = errors.ErrConflict(domain.ErrConflict.Error())
	case stderrors.Is(err, domain.ErrNotFound):
		appErr = errors.NewAppError(errors.CodeNotFound, err.Error(), http.StatusNotFound)
	case stderrors.Is(err, domain.ErrValidation):
		appErr = errors.ErrValidation(err.Error())
	case stderrors.Is(err, domain.ErrIllegalTransition):
		appErr = errors.ErrUnprocessable(CodeIllegalTransition, err.Error())
	case stderrors.Is(err, domain.ErrInspectionRequired):
		appErr = errors.ErrUnprocessable(CodeInspectionRequired, err.Error())
	case stderrors.Is(err, domain.ErrAlreadyFinished):
		appErr = errors.NewAppError(CodeAlreadyFinished, err.Error(), http.StatusConflict)
	case stderrors.Is(err, domain.ErrAlreadyCompleted):
		appErr = errors.NewAppError(CodeAlreadyCompleted, err.Error(), http.StatusConflict)
	default:
		return nil
	}
	return appErr.Wrap(err)
}
