package domain

import (
	"errors"
	"fmt"
)

// Application error codes.
// These map to HTTP status codes and determine envelope messages.
const (
	ECONFLICT      = "conflict"      // 409 - Resource conflict (duplicate order, etc.)
	EINTERNAL      = "internal"      // 500 - Internal server error (hide details)
	EINVALID       = "invalid"       // 400 - Validation error (bad input)
	ENOTFOUND      = "not_found"     // 404 - Resource not found
	EUNAUTHORIZED  = "unauthorized"  // 401 - Authentication required
	EFORBIDDEN     = "forbidden"     // 403 - Authenticated but not permitted
	EUNPROCESSABLE = "unprocessable" // 422 - Business-rule failure
)

// Numeric wire codes the payment authority expects in failure envelopes.
// The 2001xxx range is reserved for the order-create hook; the 6xxx range
// for the cart-update hooks.
const (
	HookCodeGeneral             = 2001001
	HookCodeOrderAlreadyExists  = 2001002
	HookCodeCartExpired         = 2001003
	HookCodePriceUpdated        = 2001004
	HookCodeOutOfInventory      = 2001005
	HookCodeDiscountCannotApply = 2001006
	HookCodeDiscountNotFound    = 2001007

	HookCodeService          = 6001
	HookCodeUnprocessable    = 6009
	HookCodeInsufficientInfo = 6200
	HookCodeInvalidCode      = 6202
	HookCodeCodeExpired      = 6203
	HookCodeCodeNotAvailable = 6204
	HookCodeCodeLimitReached = 6205
)

// Error represents an application error with a code and message.
// It implements the error interface and supports error wrapping.
type Error struct {
	// Code is a machine-readable error code (e.g., EINVALID, ENOTFOUND).
	Code string

	// HookCode is the numeric code the authority expects in the failure
	// envelope. Zero means "use the handler's general code".
	HookCode int

	// Message is a human-readable message safe to return to the authority.
	Message string

	// Op is the operation where the error occurred (e.g., "order.create").
	// Used for debugging and logging.
	Op string

	// Err is the underlying error, if any. Used for error wrapping.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		if e.Op != "" {
			return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
		}
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap implements error unwrapping for errors.Is and errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorCode extracts the error code from an error.
// Returns EINTERNAL for non-domain errors.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}

	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}

	return EINTERNAL
}

// ErrorHookCode extracts the authority wire code from an error,
// falling back to the given default for plain errors.
func ErrorHookCode(err error, fallback int) int {
	var e *Error
	if errors.As(err, &e) && e.HookCode != 0 {
		return e.HookCode
	}
	return fallback
}

// ErrorMessage extracts a message from an error suitable for the failure
// envelope. Internal error details are hidden.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	var e *Error
	if errors.As(err, &e) {
		if e.Code == EINTERNAL {
			return "An internal error occurred."
		}
		return e.Message
	}

	return "An internal error occurred."
}

// ErrorStatus maps an error to the HTTP status used in hook responses.
// Business-rule failures are 422, lookups 404; everything else 500.
func ErrorStatus(err error) int {
	switch ErrorCode(err) {
	case EINVALID, EUNPROCESSABLE, ECONFLICT:
		return 422
	case ENOTFOUND:
		return 404
	case EUNAUTHORIZED:
		return 401
	case EFORBIDDEN:
		return 403
	default:
		return 500
	}
}

// Errorf creates a new domain error with formatted message.
// Example: domain.Errorf(domain.EINVALID, "discount.apply", "invalid code: %s", code)
func Errorf(code, op, format string, args ...interface{}) error {
	return &Error{
		Code:    code,
		Op:      op,
		Message: fmt.Sprintf(format, args...),
	}
}

// HookErrorf creates a domain error carrying an authority wire code.
func HookErrorf(code string, hookCode int, op, format string, args ...interface{}) error {
	return &Error{
		Code:     code,
		HookCode: hookCode,
		Op:       op,
		Message:  fmt.Sprintf(format, args...),
	}
}

// WrapError wraps an existing error with a domain error code and operation.
// Preserves the underlying error for logging while providing structure.
// Returns nil if err is nil.
func WrapError(err error, code, op, message string) error {
	if err == nil {
		return nil
	}

	return &Error{
		Code:    code,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// IsCode returns true if err has the given error code.
func IsCode(err error, code string) bool {
	return ErrorCode(err) == code
}

// Internal creates an internal error (wraps underlying error).
// The envelope message will be generic; the underlying error is for logging.
func Internal(err error, op, message string) error {
	return &Error{
		Code:    EINTERNAL,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// NotFound creates a not found error for a resource.
// Example: domain.NotFound("quote.get", "quote", "1234")
func NotFound(op, resource, identifier string) error {
	return &Error{
		Code:    ENOTFOUND,
		Op:      op,
		Message: fmt.Sprintf("%s not found: %s", resource, identifier),
	}
}

// Unauthorized creates an unauthorized error.
func Unauthorized(op, message string) error {
	return &Error{
		Code:    EUNAUTHORIZED,
		Op:      op,
		Message: message,
	}
}
