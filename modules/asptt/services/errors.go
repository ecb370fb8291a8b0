package services

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/iota-uz/asptt-sync/modules/asptt/domain/linkage"
	"github.com/iota-uz/asptt-sync/modules/asptt/domain/review"
	"github.com/iota-uz/asptt-sync/modules/asptt/infrastructure/csvfile"
	"github.com/iota-uz/asptt-sync/modules/asptt/infrastructure/previewstate"
	"github.com/iota-uz/asptt-sync/modules/asptt/infrastructure/staging"
)

const (
	CodeFileNotFound         = "ASPTT_FILE_NOT_FOUND"
	CodeFileTooLarge         = "ASPTT_FILE_TOO_LARGE"
	CodeFileType             = "ASPTT_FILE_TYPE"
	CodeFileUnreadable       = "ASPTT_FILE_UNREADABLE"
	CodeInvalidParams        = "ASPTT_INVALID_PARAMS"
	CodeRollbackDisabled     = "ASPTT_ROLLBACK_DISABLED"
	CodeNoBatch              = "ASPTT_NO_BATCH"
	CodeInvalidTransition    = "ASPTT_INVALID_TRANSITION"
	CodeRelinkNoMatch        = "ASPTT_RELINK_NO_MATCH"
	CodeNotFound             = "ASPTT_NOT_FOUND"
	CodeConfirmationRequired = "ASPTT_CONFIRMATION_REQUIRED"
	CodeConflict             = "ASPTT_CONFLICT"
	CodeInternal             = "ASPTT_INTERNAL"
)

type ServiceError struct {
	Status  int
	Code    string
	Message string
	Cause   error
}

func (e *ServiceError) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *ServiceError) Unwrap() error { return e.Cause }

func newServiceError(status int, code, message string, cause error) *ServiceError {
	return &ServiceError{Status: status, Code: code, Message: message, Cause: cause}
}

// ErrorCode is the stable code of err, CodeInternal for anything unmapped.
func ErrorCode(err error) string {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.Code
	}
	return CodeInternal
}

// mapFileError classifies staging and CSV failures as file-level fatal errors.
func mapFileError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, staging.ErrNotFound), errors.Is(err, staging.ErrInvalidHandle):
		return newServiceError(http.StatusNotFound, CodeFileNotFound, "staged file not found", err)
	case errors.Is(err, staging.ErrOutsideRoot):
		return newServiceError(http.StatusNotFound, CodeFileNotFound, "staged file is no longer in the storage root", err)
	case errors.Is(err, staging.ErrTooLarge):
		return newServiceError(http.StatusRequestEntityTooLarge, CodeFileTooLarge, "file exceeds the upload size limit", err)
	case errors.Is(err, staging.ErrFileType):
		return newServiceError(http.StatusUnsupportedMediaType, CodeFileType, "file must be a delimited text export", err)
	case errors.Is(err, csvfile.ErrMissingHeader):
		return newServiceError(http.StatusUnprocessableEntity, CodeFileUnreadable, "file has no header row", err)
	default:
		return newServiceError(http.StatusUnprocessableEntity, CodeFileUnreadable, "file could not be read", err)
	}
}

func mapStorageError(err error) error {
	if err == nil {
		return nil
	}
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return err
	}
	switch {
	case errors.Is(err, staging.ErrInvalidHandle), errors.Is(err, staging.ErrNotFound), errors.Is(err, staging.ErrOutsideRoot):
		return mapFileError(err)
	case errors.Is(err, linkage.ErrNotFound), errors.Is(err, pgx.ErrNoRows), errors.Is(err, previewstate.ErrNotFound):
		return newServiceError(http.StatusNotFound, CodeNotFound, "not found", err)
	case errors.Is(err, review.ErrInvalidTransition):
		return newServiceError(http.StatusConflict, CodeInvalidTransition, "review transition not allowed", err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return newServiceError(http.StatusConflict, CodeConflict, "unique constraint violated", err)
		case "23503": // foreign_key_violation
			return newServiceError(http.StatusUnprocessableEntity, CodeNotFound, "referenced row not found", err)
		default:
			return newServiceError(http.StatusInternalServerError, CodeInternal, fmt.Sprintf("database error (%s)", pgErr.Code), err)
		}
	}
	return newServiceError(http.StatusInternalServerError, CodeInternal, "storage error", err)
}

func invalidParams(format string, args ...any) *ServiceError {
	return newServiceError(http.StatusBadRequest, CodeInvalidParams, fmt.Sprintf(format, args...), nil)
}
