package errors

import (
	stderrors "errors"
	"fmt"
)

type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches on Code so wrapped copies of the predefined errors compare equal.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithCause returns a copy of e carrying cause.
func (e *AppError) WithCause(cause error) *AppError {
	return &AppError{Code: e.Code, Message: e.Message, Cause: cause}
}

func New(code, message string, cause ...error) *AppError {
	var c error
	if len(cause) > 0 {
		c = cause[0]
	}
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   c,
	}
}

var (
	ErrConfigNotFound = &AppError{Code: "CONFIG_001", Message: "configuration not found"}
	ErrConfigInvalid  = &AppError{Code: "CONFIG_002", Message: "invalid configuration"}

	ErrUnsupportedFormat = &AppError{Code: "INPUT_001", Message: "unsupported output format"}
	ErrUnsupportedFile   = &AppError{Code: "INPUT_002", Message: "unsupported file type"}
	ErrContentMismatch   = &AppError{Code: "INPUT_003", Message: "file content does not match its extension"}

	ErrPageCount   = &AppError{Code: "DOC_001", Message: "failed to read page count"}
	ErrRasterize   = &AppError{Code: "DOC_002", Message: "failed to rasterize pdf"}
	ErrDecodeImage = &AppError{Code: "DOC_003", Message: "failed to decode image"}
	ErrTableDetect = &AppError{Code: "DOC_004", Message: "table detection failed"}
	ErrOCR         = &AppError{Code: "DOC_005", Message: "text recognition failed"}

	ErrExport = &AppError{Code: "EXPORT_001", Message: "export failed"}
	ErrRender = &AppError{Code: "EXPORT_002", Message: "pdf rendering failed"}

	ErrStore = &AppError{Code: "STORE_001", Message: "audit log write failed"}

	ErrNotFound   = &AppError{Code: "GEN_001", Message: "resource not found"}
	ErrBadRequest = &AppError{Code: "GEN_002", Message: "bad request"}
	ErrInternal   = &AppError{Code: "GEN_003", Message: "internal error"}
)

func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

func GetCode(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return "UNKNOWN"
}

func Wrap(err error, code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}
