package mediator_test

import (
	"context"
	"errors"
	"testing"

	"gatherly/internal/mediator"
	"gatherly/internal/result"
)

type greetQuery struct{ Name string }
type unboundQuery struct{}

func greetHandler(_ context.Context, q greetQuery) (result.Result[string], error) {
	return result.Ok("hello " + q.Name), nil
}

func TestDispatchRoutesToRegisteredHandler(t *testing.T) {
	m := mediator.New()
	if err := mediator.Register(m, greetHandler); err != nil {
		t.Fatalf("register: %v", err)
	}
	res, err := mediator.Send[string](context.Background(), m, greetQuery{Name: "ada"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !res.HasValue() || res.Value() != "hello ada" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestDuplicateHandlerIsConfigurationError(t *testing.T) {
	m := mediator.New()
	if err := mediator.Register(m, greetHandler); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := mediator.Register(m, greetHandler); err == nil {
		t.Fatal("expected duplicate registration error")
	}
}

func TestMissingHandler(t *testing.T) {
	m := mediator.New()
	_, err := mediator.Send[string](context.Background(), m, unboundQuery{})
	if !errors.Is(err, mediator.ErrNoHandler) {
		t.Fatalf("expected ErrNoHandler, got %v", err)
	}
	if err := m.Ensure(unboundQuery{}); !errors.Is(err, mediator.ErrNoHandler) {
		t.Fatalf("expected Ensure to fail, got %v", err)
	}
}

func TestValidatorShortCircuitsAndAggregates(t *testing.T) {
	m := mediator.New()
	called := false
	if err := mediator.Register(m, func(_ context.Context, q greetQuery) (result.Result[string], error) {
		called = true
		return result.Ok("hi"), nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := mediator.RegisterValidator(m, func(q greetQuery) []result.FieldViolation {
		return []result.FieldViolation{
			{Field: "name", Message: "name is required"},
			{Field: "name", Message: "name must be lowercase"},
		}
	}); err != nil {
		t.Fatalf("register validator: %v", err)
	}
	res, err := mediator.Send[string](context.Background(), m, greetQuery{})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if called {
		t.Fatal("handler ran despite validation failure")
	}
	if !res.IsValidationError() {
		t.Fatalf("expected validation failure, got %+v", res)
	}
	if got := len(res.Violations()); got != 2 {
		t.Fatalf("expected both violations aggregated, got %d", got)
	}
}

func TestHandlerErrorPropagates(t *testing.T) {
	m := mediator.New()
	boom := errors.New("boom")
	if err := mediator.Register(m, func(_ context.Context, q greetQuery) (result.Result[string], error) {
		return result.Result[string]{}, boom
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	_, err := mediator.Send[string](context.Background(), m, greetQuery{})
	if !errors.Is(err, boom) {
		t.Fatalf("expected handler error, got %v", err)
	}
}

func TestResponseTypeMismatch(t *testing.T) {
	m := mediator.New()
	if err := mediator.Register(m, greetHandler); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := mediator.Send[int](context.Background(), m, greetQuery{}); err == nil {
		t.Fatal("expected response type mismatch error")
	}
}
