// Package result defines the success/failure envelope returned by every
// command and query handler. The transport layer needs a single mapping
// rule: success with a value renders the value, success without a value
// renders not-found, and a failure renders a client error.
package result

// Unit is the empty payload for commands that return nothing on success.
type Unit = struct{}

// FieldViolation is one field-level validation error.
type FieldViolation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type Result[T any] struct {
	value      T
	hasValue   bool
	failed     bool
	message    string
	violations []FieldViolation
}

// Ok returns a success carrying value.
func Ok[T any](value T) Result[T] {
	return Result[T]{value: value, hasValue: true}
}

// Empty returns a success carrying no value. Used by queries that ran
// fine but matched nothing; the transport renders it as not-found.
func Empty[T any]() Result[T] {
	return Result[T]{}
}

// Done returns a success for commands with no payload.
func Done() Result[Unit] {
	return Ok(Unit{})
}

// Fail returns a domain failure with a single message.
func Fail[T any](message string) Result[T] {
	return Result[T]{failed: true, message: message}
}

// Invalid returns a validation failure aggregating every violation.
func Invalid[T any](violations []FieldViolation) Result[T] {
	return Result[T]{failed: true, message: "validation failed", violations: violations}
}

func (r Result[T]) IsSuccess() bool { return !r.failed }

// HasValue reports whether a successful result carries a value.
func (r Result[T]) HasValue() bool { return !r.failed && r.hasValue }

// Value is only meaningful when HasValue is true.
func (r Result[T]) Value() T { return r.value }

func (r Result[T]) Message() string { return r.message }

func (r Result[T]) IsValidationError() bool { return r.failed && len(r.violations) > 0 }

func (r Result[T]) Violations() []FieldViolation { return r.violations }
