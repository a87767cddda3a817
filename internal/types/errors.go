package types

import (
	"errors"
	"fmt"
)

// ErrorCode 错误代码枚举
type ErrorCode string

const (
	ErrDetection   ErrorCode = "DETECTION_ERROR"
	ErrExtraction  ErrorCode = "EXTRACTION_ERROR"
	ErrTranslation ErrorCode = "TRANSLATION_ERROR"
	ErrRender      ErrorCode = "RENDER_ERROR"
	ErrPage        ErrorCode = "PAGE_ERROR"
	ErrDocument    ErrorCode = "DOCUMENT_ERROR"
	ErrConfig      ErrorCode = "CONFIG_ERROR"
	ErrAPICall     ErrorCode = "API_CALL_ERROR"
	ErrCache       ErrorCode = "CACHE_ERROR"
	ErrInternal    ErrorCode = "INTERNAL_ERROR"
)

// AppError 应用错误
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
	Page    int       `json:"page,omitempty"` // 1-based，0 表示与具体页面无关
	Cause   error     `json:"-"`
}

// Error implements the error interface for AppError
func (e *AppError) Error() string {
	msg := e.Message
	if e.Page > 0 {
		msg = fmt.Sprintf("page %d: %s", e.Page, msg)
	}
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause of the error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewAppError creates a new AppError with the given code, message, and optional cause
func NewAppError(code ErrorCode, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewAppErrorWithDetails creates a new AppError with details
func NewAppErrorWithDetails(code ErrorCode, message, details string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Details: details,
		Cause:   cause,
	}
}

// NewPageScopedError creates an AppError attached to a 1-based page number
func NewPageScopedError(code ErrorCode, page int, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Page:    page,
		Cause:   cause,
	}
}

// NewDetectionError reports an unavailable or failing layout detector.
// Recovered by falling back to heuristic detection.
func NewDetectionError(message string, cause error) *AppError {
	return NewAppError(ErrDetection, message, cause)
}

// NewExtractionError reports a region without usable text. The block is dropped.
func NewExtractionError(message, text string) *AppError {
	return NewAppErrorWithDetails(ErrExtraction, message, fmt.Sprintf("%q", text), nil)
}

// NewTranslationError reports exhausted retries. The block keeps its source text.
func NewTranslationError(message string, cause error) *AppError {
	return NewAppError(ErrTranslation, message, cause)
}

// NewRenderError reports text forced in at the floor size.
func NewRenderError(message, details string) *AppError {
	return NewAppErrorWithDetails(ErrRender, message, details, nil)
}

// NewPageError marks a page as failed; the document continues.
func NewPageError(page int, message string, cause error) *AppError {
	return NewPageScopedError(ErrPage, page, message, cause)
}

// NewDocumentError reports an unreadable or missing input. Fatal.
func NewDocumentError(message string, cause error) *AppError {
	return NewAppError(ErrDocument, message, cause)
}

// IsCode reports whether any AppError in err's chain carries code
func IsCode(err error, code ErrorCode) bool {
	var appErr *AppError
	for err != nil {
		if !errors.As(err, &appErr) {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Cause
	}
	return false
}

// CodeOf returns the code of the outermost AppError in err's chain
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}
