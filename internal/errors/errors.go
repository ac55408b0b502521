package errors

import "fmt"

// ErrorCode represents a photodex error code.
type ErrorCode string

const (
	ErrScopeViolation     ErrorCode = "SCOPE_VIOLATION"     // folder outside catalog root
	ErrInvalidRequest     ErrorCode = "INVALID_REQUEST"     // malformed input
	ErrNotFound           ErrorCode = "NOT_FOUND"           // missing session/image/file
	ErrDecodeFailed       ErrorCode = "DECODE_FAILED"       // unreadable or corrupt image
	ErrCheckpointMismatch ErrorCode = "CHECKPOINT_MISMATCH" // checkpoint from a different folder set
	ErrUniqueConstraint   ErrorCode = "UNIQUE_CONSTRAINT"   // content hash collision at insert time
	ErrJobNotFound        ErrorCode = "JOB_NOT_FOUND"       // unknown job id
	ErrInternal           ErrorCode = "INTERNAL"
)

// CatalogError represents a structured error with code and details.
type CatalogError struct {
	Code    ErrorCode
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *CatalogError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewScopeViolation creates an error for a folder outside the catalog root.
func NewScopeViolation(folder, root string) *CatalogError {
	return &CatalogError{
		Code:    ErrScopeViolation,
		Message: fmt.Sprintf("folder %q is outside catalog root %q", folder, root),
		Details: map[string]any{"folder": folder, "root": root},
	}
}

// NewInvalidRequest creates an error for invalid request parameters.
func NewInvalidRequest(msg string) *CatalogError {
	return &CatalogError{
		Code:    ErrInvalidRequest,
		Message: msg,
	}
}

// NewNotFound creates an error for a missing session, image, or file.
func NewNotFound(identifier string) *CatalogError {
	return &CatalogError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewDecodeFailed creates an error for a file that could not be read or decoded.
func NewDecodeFailed(path string, err error) *CatalogError {
	msg := "decode failed"
	if err != nil {
		msg = err.Error()
	}
	return &CatalogError{
		Code:    ErrDecodeFailed,
		Message: fmt.Sprintf("%s: %s", path, msg),
		Details: map[string]any{"path": path},
	}
}

// NewCheckpointMismatch creates an error for a checkpoint produced by a
// different folder set or recursion flag than the current request.
func NewCheckpointMismatch(msg string) *CatalogError {
	return &CatalogError{
		Code:    ErrCheckpointMismatch,
		Message: msg,
	}
}

// NewUniqueConstraint creates an error for a content-hash uniqueness
// violation at insert time. Should only occur if two writers race past the
// dedup pre-check.
func NewUniqueConstraint(msg string) *CatalogError {
	return &CatalogError{
		Code:    ErrUniqueConstraint,
		Message: msg,
	}
}

// NewJobNotFound creates an error for an unknown job id.
func NewJobNotFound(id string) *CatalogError {
	return &CatalogError{
		Code:    ErrJobNotFound,
		Message: fmt.Sprintf("unknown job: %s", id),
		Details: map[string]any{"job_id": id},
	}
}

// NewInternal creates an error for unexpected internal failures.
func NewInternal(err error) *CatalogError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &CatalogError{
		Code:    ErrInternal,
		Message: msg,
	}
}

// Is checks if an error is a CatalogError with the given code.
func Is(err error, code ErrorCode) bool {
	if cErr, ok := err.(*CatalogError); ok {
		return cErr.Code == code
	}
	return false
}
