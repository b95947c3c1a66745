// Package mediator routes typed request objects to their single handler.
// The dispatch table is built once at process start; wiring mistakes
// (duplicate handler, handler missing for a dispatched type) surface as
// errors instead of silently picking one of several candidates.
package mediator

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"gatherly/internal/result"
)

var ErrNoHandler = errors.New("no handler registered for request type")

type entry struct {
	handle   func(ctx context.Context, req any) (any, error)
	validate func(req any) []result.FieldViolation
}

type Mediator struct {
	entries map[reflect.Type]*entry
}

func New() *Mediator {
	return &Mediator{entries: map[reflect.Type]*entry{}}
}

// Register binds a request type to exactly one handler. The returned error
// from a handler is reserved for unexpected store-level failures; expected
// domain outcomes travel inside the Result. Registering a second handler
// for the same type is a configuration error.
func Register[Req any, T any](m *Mediator, handle func(ctx context.Context, req Req) (result.Result[T], error)) error {
	key := reflect.TypeOf((*Req)(nil)).Elem()
	if e, ok := m.entries[key]; ok && e.handle != nil {
		return fmt.Errorf("duplicate handler for %s", key)
	}
	e := m.entry(key)
	e.handle = func(ctx context.Context, req any) (any, error) {
		return handle(ctx, req.(Req))
	}
	return nil
}

// RegisterValidator binds at most one validator to a request type. The
// validator produces the ordered field violations for a command (empty
// means valid) and runs strictly before the handler on every dispatch.
func RegisterValidator[Req any](m *Mediator, v func(req Req) []result.FieldViolation) error {
	key := reflect.TypeOf((*Req)(nil)).Elem()
	if e, ok := m.entries[key]; ok && e.validate != nil {
		return fmt.Errorf("duplicate validator for %s", key)
	}
	e := m.entry(key)
	e.validate = func(req any) []result.FieldViolation {
		return v(req.(Req))
	}
	return nil
}

func (m *Mediator) entry(key reflect.Type) *entry {
	e, ok := m.entries[key]
	if !ok {
		e = &entry{}
		m.entries[key] = e
	}
	return e
}

// Ensure verifies that every given request value has a handler bound.
// Called once after wiring so missing registrations fail at startup.
func (m *Mediator) Ensure(reqs ...any) error {
	for _, req := range reqs {
		key := reflect.TypeOf(req)
		if e, ok := m.entries[key]; !ok || e.handle == nil {
			return fmt.Errorf("%w: %s", ErrNoHandler, key)
		}
	}
	return nil
}

// Send dispatches req to its handler, running the validator first. Any
// violation short-circuits dispatch and yields a validation Failure
// aggregating every violation. The type parameter must match the response
// type the handler was registered with.
func Send[T any](ctx context.Context, m *Mediator, req any) (result.Result[T], error) {
	key := reflect.TypeOf(req)
	e, ok := m.entries[key]
	if !ok || e.handle == nil {
		return result.Result[T]{}, fmt.Errorf("%w: %s", ErrNoHandler, key)
	}
	if e.validate != nil {
		if violations := e.validate(req); len(violations) > 0 {
			return result.Invalid[T](violations), nil
		}
	}
	res, err := e.handle(ctx, req)
	if err != nil {
		return result.Result[T]{}, err
	}
	typed, ok := res.(result.Result[T])
	if !ok {
		return result.Result[T]{}, fmt.Errorf("handler for %s returned %T, caller expected result.Result[%s]",
			key, res, reflect.TypeOf((*T)(nil)).Elem())
	}
	return typed, nil
}
