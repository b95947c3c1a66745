package activities

import "gatherly/internal/domain"

// Request objects dispatched through the mediator. Each carries its input
// data; the bound handler decides the response type.

// ListQuery returns every activity, date-sorted.
type ListQuery struct{}

// DetailsQuery looks up one activity. An unknown id is a successful query
// with no value, not a failure.
type DetailsQuery struct {
	ID string
}

// CreateCommand persists a fully populated activity. The id is pre-assigned
// by the caller so clients can render it before the write confirms.
type CreateCommand struct {
	Activity domain.Activity
	Actor    string
}

// EditCommand overwrites an activity. ID comes from the route and is
// authoritative over any id carried in the payload.
type EditCommand struct {
	ID       string
	Activity domain.Activity
	Actor    string
}

// DeleteCommand removes an activity. Hard delete, not an archive.
type DeleteCommand struct {
	ID    string
	Actor string
}

// AttendCommand toggles the actor's attendance. When the actor hosts the
// activity it toggles the cancellation flag instead.
type AttendCommand struct {
	ID    string
	Actor string
}
