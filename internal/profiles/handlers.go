// Package profiles serves user profile lookups.
package profiles

import (
	"context"
	"errors"

	"gatherly/internal/domain"
	"gatherly/internal/mediator"
	"gatherly/internal/result"
	"gatherly/internal/store"
)

// DetailsQuery looks up one profile by username. An unknown username is a
// successful query with no value, not a failure.
type DetailsQuery struct {
	Username string
}

type Env struct {
	Store store.Store
}

// Register wires the profile requests into the mediator.
func Register(m *mediator.Mediator, env Env) error {
	if err := mediator.Register(m, DetailsHandler{env}.Handle); err != nil {
		return err
	}
	return m.Ensure(DetailsQuery{})
}

type DetailsHandler struct{ env Env }

func (h DetailsHandler) Handle(ctx context.Context, q DetailsQuery) (result.Result[domain.Profile], error) {
	u, err := h.env.Store.GetUserByUsername(ctx, q.Username)
	if errors.Is(err, store.ErrNotFound) {
		return result.Empty[domain.Profile](), nil
	}
	if err != nil {
		return result.Result[domain.Profile]{}, err
	}
	return result.Ok(u.Profile()), nil
}
