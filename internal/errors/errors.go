package errors

import "fmt"

// ErrorCode represents a Schematica error code.
type ErrorCode string

const (
	ErrInvalidRequest   ErrorCode = "INVALID_REQUEST"   // 400
	ErrNotFound         ErrorCode = "NOT_FOUND"         // 404
	ErrAlreadyExists    ErrorCode = "ALREADY_EXISTS"    // 409
	ErrIDExhausted      ErrorCode = "ID_EXHAUSTED"      // 409
	ErrInvalidPredicate ErrorCode = "INVALID_PREDICATE" // 422
	ErrInvalidCategory  ErrorCode = "INVALID_CATEGORY"  // 422
	ErrInvalidStatus    ErrorCode = "INVALID_STATUS"    // 422
	ErrInternal         ErrorCode = "INTERNAL"          // 500
	ErrStoreUnavailable ErrorCode = "STORE_UNAVAILABLE" // 503
)

// Error represents a structured error with code, status, and details.
type Error struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
// It is the only error the retrieval pipeline surfaces to callers;
// everything else degrades at the stage boundary.
func NewInvalidRequest(msg string) *Error {
	return &Error{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for a missing schematic or entity.
func NewNotFound(identifier string) *Error {
	return &Error{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewAlreadyExists creates a 409 error for duplicate catalog records.
func NewAlreadyExists(id string) *Error {
	return &Error{
		Code:    ErrAlreadyExists,
		Status:  409,
		Message: fmt.Sprintf("schematic %q already exists", id),
		Details: map[string]any{"id": id},
	}
}

// NewIDExhausted creates a 409 error when no catalog IDs remain.
func NewIDExhausted() *Error {
	return &Error{
		Code:    ErrIDExhausted,
		Status:  409,
		Message: "schematic ID space exhausted",
	}
}

// NewInvalidPredicate creates a 422 error for an unknown relationship predicate.
func NewInvalidPredicate(predicate string, valid []string) *Error {
	return &Error{
		Code:    ErrInvalidPredicate,
		Status:  422,
		Message: fmt.Sprintf("invalid predicate %q", predicate),
		Details: map[string]any{"predicate": predicate, "valid": valid},
	}
}

// NewInvalidCategory creates a 422 error for an unknown schematic category.
func NewInvalidCategory(category string, valid []string) *Error {
	return &Error{
		Code:    ErrInvalidCategory,
		Status:  422,
		Message: fmt.Sprintf("invalid category %q", category),
		Details: map[string]any{"category": category, "valid": valid},
	}
}

// NewInvalidStatus creates a 422 error for an unknown schematic status.
func NewInvalidStatus(status string, valid []string) *Error {
	return &Error{
		Code:    ErrInvalidStatus,
		Status:  422,
		Message: fmt.Sprintf("invalid status %q", status),
		Details: map[string]any{"status": status, "valid": valid},
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *Error {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &Error{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// NewStoreUnavailable creates a 503 error for a degraded backing store.
// Pipeline stages catch this locally and convert it to an empty result;
// it never propagates past a stage boundary.
func NewStoreUnavailable(store string, err error) *Error {
	msg := fmt.Sprintf("%s store unavailable", store)
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	return &Error{
		Code:    ErrStoreUnavailable,
		Status:  503,
		Message: msg,
		Details: map[string]any{"store": store},
	}
}

// Is checks if an error is an Error with the given code.
func Is(err error, code ErrorCode) bool {
	if e, ok := err.(*Error); ok {
		return e.Code == code
	}
	return false
}
