package activities

import (
	"context"
	"errors"
	"time"

	"gatherly/internal/domain"
	"gatherly/internal/events"
	"gatherly/internal/mediator"
	"gatherly/internal/result"
	"gatherly/internal/store"
)

// Env is the unit-of-work context shared by every handler: the store, the
// event log, and a clock override for tests.
type Env struct {
	Store  store.Store
	Events events.Writer
	Now    func() time.Time
}

func (e Env) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// Register wires every activity request into the mediator and verifies the
// table is complete. Any wiring error is fatal at startup.
func Register(m *mediator.Mediator, env Env) error {
	if err := mediator.Register(m, ListHandler{env}.Handle); err != nil {
		return err
	}
	if err := mediator.Register(m, DetailsHandler{env}.Handle); err != nil {
		return err
	}
	if err := mediator.Register(m, CreateHandler{env}.Handle); err != nil {
		return err
	}
	if err := mediator.Register(m, EditHandler{env}.Handle); err != nil {
		return err
	}
	if err := mediator.Register(m, DeleteHandler{env}.Handle); err != nil {
		return err
	}
	if err := mediator.Register(m, AttendHandler{env}.Handle); err != nil {
		return err
	}
	if err := mediator.RegisterValidator(m, ValidateCreate); err != nil {
		return err
	}
	if err := mediator.RegisterValidator(m, ValidateEdit); err != nil {
		return err
	}
	return m.Ensure(ListQuery{}, DetailsQuery{}, CreateCommand{}, EditCommand{}, DeleteCommand{}, AttendCommand{})
}

type ListHandler struct{ env Env }

func (h ListHandler) Handle(ctx context.Context, _ ListQuery) (result.Result[[]domain.Activity], error) {
	items, err := h.env.Store.ListActivities(ctx)
	if err != nil {
		return result.Result[[]domain.Activity]{}, err
	}
	if items == nil {
		items = []domain.Activity{}
	}
	return result.Ok(items), nil
}

type DetailsHandler struct{ env Env }

func (h DetailsHandler) Handle(ctx context.Context, q DetailsQuery) (result.Result[domain.Activity], error) {
	a, err := h.env.Store.GetActivity(ctx, q.ID)
	if errors.Is(err, store.ErrNotFound) {
		return result.Empty[domain.Activity](), nil
	}
	if err != nil {
		return result.Result[domain.Activity]{}, err
	}
	return result.Ok(a), nil
}

type CreateHandler struct{ env Env }

func (h CreateHandler) Handle(ctx context.Context, cmd CreateCommand) (result.Result[result.Unit], error) {
	a := cmd.Activity
	a.HostUsername = cmd.Actor
	a.IsCancelled = false

	tx, err := h.env.Store.DB.BeginTx(ctx, nil)
	if err != nil {
		return result.Result[result.Unit]{}, err
	}
	defer tx.Rollback()

	if err := h.env.Store.InsertActivity(ctx, tx, a); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return result.Fail[result.Unit]("Failed to create activity"), nil
		}
		return result.Result[result.Unit]{}, err
	}
	if err := h.env.Store.AddAttendee(ctx, tx, a.ID, cmd.Actor, h.env.now()); err != nil {
		return result.Result[result.Unit]{}, err
	}
	if err := h.env.Events.Append(ctx, tx, "activity.created", "activity", a.ID, cmd.Actor, events.EventPayload{"title": a.Title}); err != nil {
		return result.Result[result.Unit]{}, err
	}
	if err := tx.Commit(); err != nil {
		return result.Result[result.Unit]{}, err
	}
	return result.Done(), nil
}

type EditHandler struct{ env Env }

func (h EditHandler) Handle(ctx context.Context, cmd EditCommand) (result.Result[result.Unit], error) {
	a := cmd.Activity
	a.ID = cmd.ID

	if _, err := h.env.Store.GetActivity(ctx, a.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return result.Empty[result.Unit](), nil
		}
		return result.Result[result.Unit]{}, err
	}

	tx, err := h.env.Store.DB.BeginTx(ctx, nil)
	if err != nil {
		return result.Result[result.Unit]{}, err
	}
	defer tx.Rollback()

	if err := h.env.Store.UpdateActivity(ctx, tx, a); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return result.Fail[result.Unit]("Failed to update activity"), nil
		}
		return result.Result[result.Unit]{}, err
	}
	if err := h.env.Events.Append(ctx, tx, "activity.updated", "activity", a.ID, cmd.Actor, events.EventPayload{"title": a.Title}); err != nil {
		return result.Result[result.Unit]{}, err
	}
	if err := tx.Commit(); err != nil {
		return result.Result[result.Unit]{}, err
	}
	return result.Done(), nil
}

type DeleteHandler struct{ env Env }

func (h DeleteHandler) Handle(ctx context.Context, cmd DeleteCommand) (result.Result[result.Unit], error) {
	if _, err := h.env.Store.GetActivity(ctx, cmd.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return result.Empty[result.Unit](), nil
		}
		return result.Result[result.Unit]{}, err
	}

	tx, err := h.env.Store.DB.BeginTx(ctx, nil)
	if err != nil {
		return result.Result[result.Unit]{}, err
	}
	defer tx.Rollback()

	if err := h.env.Store.DeleteActivity(ctx, tx, cmd.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return result.Fail[result.Unit]("Failed to delete activity"), nil
		}
		return result.Result[result.Unit]{}, err
	}
	if err := h.env.Events.Append(ctx, tx, "activity.deleted", "activity", cmd.ID, cmd.Actor, nil); err != nil {
		return result.Result[result.Unit]{}, err
	}
	if err := tx.Commit(); err != nil {
		return result.Result[result.Unit]{}, err
	}
	return result.Done(), nil
}

type AttendHandler struct{ env Env }

// Handle flips the actor's relationship to the activity: the host toggles
// cancellation, an attendee leaves, anyone else joins.
func (h AttendHandler) Handle(ctx context.Context, cmd AttendCommand) (result.Result[result.Unit], error) {
	a, err := h.env.Store.GetActivity(ctx, cmd.ID)
	if errors.Is(err, store.ErrNotFound) {
		return result.Empty[result.Unit](), nil
	}
	if err != nil {
		return result.Result[result.Unit]{}, err
	}

	tx, err := h.env.Store.DB.BeginTx(ctx, nil)
	if err != nil {
		return result.Result[result.Unit]{}, err
	}
	defer tx.Rollback()

	var action string
	switch {
	case cmd.Actor == a.HostUsername:
		if err := h.env.Store.SetCancelled(ctx, tx, a.ID, !a.IsCancelled); err != nil {
			return result.Result[result.Unit]{}, err
		}
		action = "cancel_toggled"
	case a.IsAttendedBy(cmd.Actor):
		if err := h.env.Store.RemoveAttendee(ctx, tx, a.ID, cmd.Actor); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return result.Fail[result.Unit]("Failed to update attendance"), nil
			}
			return result.Result[result.Unit]{}, err
		}
		action = "left"
	default:
		if a.IsCancelled {
			return result.Fail[result.Unit]("Cannot join a cancelled activity"), nil
		}
		if err := h.env.Store.AddAttendee(ctx, tx, a.ID, cmd.Actor, h.env.now()); err != nil {
			return result.Result[result.Unit]{}, err
		}
		action = "joined"
	}
	if err := h.env.Events.Append(ctx, tx, "attendance.toggled", "activity", a.ID, cmd.Actor, events.EventPayload{"action": action}); err != nil {
		return result.Result[result.Unit]{}, err
	}
	if err := tx.Commit(); err != nil {
		return result.Result[result.Unit]{}, err
	}
	return result.Done(), nil
}
