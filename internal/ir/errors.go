package ir

import (
	"errors"
	"fmt"
	"time"
)

// Error represents a fatal pipeline error.
//
// Errors include:
//   - Intake: duplicate content, unsupported extension, unreadable stream
//   - Materializer: aborted transaction, violated invariant
//   - Synchronizer: partial projection
//
// Non-fatal findings are never errors; they travel as Warning, Skip and
// conflict values.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// ProvenanceID identifies the affected import, when one exists.
	ProvenanceID int64

	// Details contains additional context.
	Details map[string]string

	// Err is the underlying cause.
	Err error
}

// ErrorCode categorizes pipeline errors.
type ErrorCode string

const (
	ErrCodeDuplicateFile        ErrorCode = "DuplicateFile"
	ErrCodeUnsupportedExtension ErrorCode = "UnsupportedExtension"
	ErrCodeUnreadableStream     ErrorCode = "UnreadableStream"
	ErrCodeTransactionAborted   ErrorCode = "TransactionAborted"
	ErrCodeInvariantViolation   ErrorCode = "InvariantViolation"
	ErrCodePartialProjection    ErrorCode = "PartialProjection"
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.ProvenanceID != 0 {
		msg = fmt.Sprintf("%s (import=%d)", msg, e.ProvenanceID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// IsDuplicateFile reports whether err is a duplicate-content rejection.
func IsDuplicateFile(err error) bool { return CodeOf(err) == ErrCodeDuplicateFile }

// IsMalformedFile reports whether err means the file itself was rejected:
// an unsupported extension or an unreadable stream.
func IsMalformedFile(err error) bool {
	code := CodeOf(err)
	return code == ErrCodeUnsupportedExtension || code == ErrCodeUnreadableStream
}

// IsTransactionFailure reports whether err aborted a materialization or
// sync transaction.
func IsTransactionFailure(err error) bool {
	switch CodeOf(err) {
	case ErrCodeTransactionAborted, ErrCodeInvariantViolation, ErrCodePartialProjection:
		return true
	}
	return false
}

// NewDuplicateError reports content already recorded by an earlier import.
func NewDuplicateError(prior int64, importedAt time.Time, records int) *Error {
	return &Error{
		Code:         ErrCodeDuplicateFile,
		Message:      "file was already imported",
		ProvenanceID: prior,
		Details: map[string]string{
			"imported_at": importedAt.Format(time.RFC3339),
			"records":     fmt.Sprintf("%d", records),
		},
	}
}

// NewUnsupportedExtensionError rejects a file by its extension.
func NewUnsupportedExtensionError(name string) *Error {
	return &Error{
		Code:    ErrCodeUnsupportedExtension,
		Message: fmt.Sprintf("%q is not an .xls, .xlsx or .pdf file", name),
	}
}

// NewUnreadableError reports a stream or workbook that could not be read.
func NewUnreadableError(provenanceID int64, err error) *Error {
	return &Error{Code: ErrCodeUnreadableStream, Message: "cannot read file", ProvenanceID: provenanceID, Err: err}
}

// NewAbortedError reports a rolled-back materialization.
func NewAbortedError(provenanceID int64, err error) *Error {
	return &Error{Code: ErrCodeTransactionAborted, Message: "transaction rolled back", ProvenanceID: provenanceID, Err: err}
}

// NewInvariantError reports a write refused by a canonical-store invariant.
func NewInvariantError(provenanceID int64, format string, args ...any) *Error {
	return &Error{Code: ErrCodeInvariantViolation, Message: fmt.Sprintf(format, args...), ProvenanceID: provenanceID}
}

// NewProjectionError reports a failed derived-view sync.
func NewProjectionError(runID string, err error) *Error {
	return &Error{
		Code:    ErrCodePartialProjection,
		Message: "derived view sync failed",
		Details: map[string]string{"sync_run_id": runID},
		Err:     err,
	}
}
