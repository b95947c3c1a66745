package gatherlysdk

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ActivityStore is the normalized client-side cache of activities. It keeps
// one registry entry per id, exposes derived date-sorted and day-grouped
// views, and performs optimistic mutations with rollback. Change
// notification is an explicit subscription callback, fired after every
// registry mutation.
//
// Operations release the internal lock across network calls, so the store
// stays responsive while a call is in flight; every operation re-validates
// its assumptions against current state after the call returns.
type ActivityStore struct {
	mu       sync.Mutex
	api      *Client
	session  User
	registry map[string]Activity

	selectedID string
	loadTarget string

	loadingInitial bool
	mutating       bool
	serverErr      *ServerError

	subs    map[int]func()
	nextSub int
}

func NewActivityStore(api *Client) *ActivityStore {
	return &ActivityStore{
		api:      api,
		registry: map[string]Activity{},
		subs:     map[int]func(){},
	}
}

// SetSession records the logged-in user and attaches its token to the
// underlying client. One store instance serves one session.
func (s *ActivityStore) SetSession(u User) {
	s.mu.Lock()
	s.session = u
	s.mu.Unlock()
	s.api.SetToken(u.Token)
	s.notify()
}

// Subscribe registers a change callback and returns an unsubscribe func.
// Callbacks run after each registry mutation, outside the store lock.
func (s *ActivityStore) Subscribe(fn func()) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *ActivityStore) notify() {
	s.mu.Lock()
	fns := make([]func(), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// LoadAll fetches every activity into the registry. The loading flag is
// cleared on every exit path, including failure, by the call that set it.
func (s *ActivityStore) LoadAll(ctx context.Context) error {
	s.mu.Lock()
	owns := !s.loadingInitial
	s.loadingInitial = true
	s.mu.Unlock()
	s.notify()

	items, err := s.api.ListActivities(ctx)

	s.mu.Lock()
	if owns {
		s.loadingInitial = false
	}
	if err != nil {
		s.captureFatalLocked(err)
		s.mu.Unlock()
		s.notify()
		return err
	}
	for _, a := range items {
		s.registry[a.ID] = a
	}
	s.mu.Unlock()
	s.notify()
	return nil
}

// Load returns the activity with the given id and selects it. A cache hit
// is served straight from the registry with no network call; a miss
// fetches and merges, which is the deep-link/refresh path.
func (s *ActivityStore) Load(ctx context.Context, id string) (Activity, error) {
	s.mu.Lock()
	if a, ok := s.registry[id]; ok {
		s.selectedID = id
		s.loadTarget = id
		view := s.decorateLocked(a)
		s.mu.Unlock()
		s.notify()
		return view, nil
	}
	owns := !s.loadingInitial
	s.loadingInitial = true
	s.loadTarget = id
	s.mu.Unlock()
	s.notify()

	a, err := s.api.GetActivity(ctx, id)

	s.mu.Lock()
	if owns {
		s.loadingInitial = false
	}
	if err != nil {
		s.captureFatalLocked(err)
		s.mu.Unlock()
		s.notify()
		return Activity{}, err
	}
	s.registry[a.ID] = a
	// A later Load may have retargeted the selection while this fetch was
	// in flight; never clobber it.
	if s.loadTarget == id {
		s.selectedID = id
	}
	view := s.decorateLocked(a)
	s.mu.Unlock()
	s.notify()
	return view, nil
}

// Create persists a new activity. The id is assigned client-side before
// the network call and the tentative entity is visible immediately; on
// failure it is rolled back out of the registry.
func (s *ActivityStore) Create(ctx context.Context, a Activity) (Activity, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}

	s.mu.Lock()
	a.HostUsername = s.session.Username
	a.IsCancelled = false
	a.Attendees = []Profile{{Username: s.session.Username, DisplayName: s.session.DisplayName, Image: s.session.Image}}
	owns := !s.mutating
	s.mutating = true
	s.registry[a.ID] = a
	s.mu.Unlock()
	s.notify()

	err := s.api.CreateActivity(ctx, a)

	s.mu.Lock()
	if owns {
		s.mutating = false
	}
	if err != nil {
		delete(s.registry, a.ID)
		if s.selectedID == a.ID {
			s.selectedID = ""
		}
		s.captureFatalLocked(err)
		s.mu.Unlock()
		s.notify()
		return Activity{}, err
	}
	s.selectedID = a.ID
	s.loadTarget = a.ID
	view := s.decorateLocked(s.registry[a.ID])
	s.mu.Unlock()
	s.notify()
	return view, nil
}

// Update edits an activity. Not optimistic: the registry entry changes
// only after the server confirms, and the patch is shallow-merged so
// fields omitted from the edit form are preserved. The merge cannot tell
// a cleared field from an omitted one; to blank a text field like
// Description, send the full record and reload from the server.
func (s *ActivityStore) Update(ctx context.Context, patch Activity) error {
	s.mu.Lock()
	owns := !s.mutating
	s.mutating = true
	s.mu.Unlock()
	s.notify()

	err := s.api.UpdateActivity(ctx, patch)

	s.mu.Lock()
	if owns {
		s.mutating = false
	}
	if err != nil {
		s.captureFatalLocked(err)
		s.mu.Unlock()
		s.notify()
		return err
	}
	if current, ok := s.registry[patch.ID]; ok {
		s.registry[patch.ID] = mergeActivity(current, patch)
	}
	s.mu.Unlock()
	s.notify()
	return nil
}

// Delete removes an activity after server confirmation. If the deleted
// entity was selected, the selection is cleared.
func (s *ActivityStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	owns := !s.mutating
	s.mutating = true
	s.mu.Unlock()
	s.notify()

	err := s.api.DeleteActivity(ctx, id)

	s.mu.Lock()
	if owns {
		s.mutating = false
	}
	if err != nil {
		s.captureFatalLocked(err)
		s.mu.Unlock()
		s.notify()
		return err
	}
	delete(s.registry, id)
	if s.selectedID == id {
		s.selectedID = ""
	}
	s.mu.Unlock()
	s.notify()
	return nil
}

// ToggleAttendance optimistically flips the session user's attendance (or,
// for the host, the cancellation flag) and confirms in the background. On
// failure the exact prior attendee set and flag are restored, not merely
// the boolean re-flipped.
func (s *ActivityStore) ToggleAttendance(ctx context.Context, id string) error {
	s.mu.Lock()
	a, ok := s.registry[id]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	priorAttendees := make([]Profile, len(a.Attendees))
	copy(priorAttendees, a.Attendees)
	priorCancelled := a.IsCancelled

	username := s.session.Username
	switch {
	case username == a.HostUsername:
		a.IsCancelled = !a.IsCancelled
	case attends(a.Attendees, username):
		a.Attendees = removeAttendee(a.Attendees, username)
	default:
		a.Attendees = append(a.Attendees, Profile{Username: username, DisplayName: s.session.DisplayName, Image: s.session.Image})
	}
	s.registry[id] = a
	owns := !s.mutating
	s.mutating = true
	s.mu.Unlock()
	s.notify()

	err := s.api.ToggleAttendance(ctx, id)

	s.mu.Lock()
	if owns {
		s.mutating = false
	}
	if err != nil {
		// Restore the exact pre-toggle state if the entity is still here.
		if current, stillThere := s.registry[id]; stillThere {
			current.Attendees = priorAttendees
			current.IsCancelled = priorCancelled
			s.registry[id] = current
		}
		s.captureFatalLocked(err)
		s.mu.Unlock()
		s.notify()
		return err
	}
	s.mu.Unlock()
	s.notify()
	return nil
}

// Selected returns the decorated selected activity, if any.
func (s *ActivityStore) Selected() (Activity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selectedID == "" {
		return Activity{}, false
	}
	a, ok := s.registry[s.selectedID]
	if !ok {
		return Activity{}, false
	}
	return s.decorateLocked(a), true
}

// ActivitiesByDate returns every known activity sorted by date, with the
// per-session flags computed.
func (s *ActivityStore) ActivitiesByDate() []Activity {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := make([]Activity, 0, len(s.registry))
	for _, a := range s.registry {
		res = append(res, s.decorateLocked(a))
	}
	sort.Slice(res, func(i, j int) bool {
		if !res[i].Date.Equal(res[j].Date) {
			return res[i].Date.Before(res[j].Date)
		}
		return res[i].ID < res[j].ID
	})
	return res
}

// DayGroup is one calendar day of activities, in date order.
type DayGroup struct {
	Day        time.Time
	Activities []Activity
}

// GroupedByDate partitions ActivitiesByDate by calendar day without
// reordering within a day; concatenating the groups reproduces the flat
// date-sorted list.
func (s *ActivityStore) GroupedByDate() []DayGroup {
	flat := s.ActivitiesByDate()
	var groups []DayGroup
	for _, a := range flat {
		day := truncateToDay(a.Date)
		if len(groups) == 0 || !groups[len(groups)-1].Day.Equal(day) {
			groups = append(groups, DayGroup{Day: day})
		}
		groups[len(groups)-1].Activities = append(groups[len(groups)-1].Activities, a)
	}
	return groups
}

func (s *ActivityStore) LoadingInitial() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadingInitial
}

func (s *ActivityStore) Mutating() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mutating
}

// ServerError returns the captured fatal error state, if any. Recoverable
// failures (validation, 4xx) never set it.
func (s *ActivityStore) ServerError() *ServerError {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serverErr
}

// Len reports the registry size.
func (s *ActivityStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.registry)
}

func (s *ActivityStore) captureFatalLocked(err error) {
	var se *ServerError
	if errors.As(err, &se) {
		s.serverErr = se
	}
}

// decorateLocked computes the per-session derived flags on a copy.
func (s *ActivityStore) decorateLocked(a Activity) Activity {
	attendees := make([]Profile, len(a.Attendees))
	copy(attendees, a.Attendees)
	a.Attendees = attendees
	a.IsGoing = attends(a.Attendees, s.session.Username)
	a.IsHost = s.session.Username != "" && s.session.Username == a.HostUsername
	return a
}

// mergeActivity overlays the non-zero fields of patch onto current,
// preserving server-owned state (host, cancellation, attendees).
func mergeActivity(current, patch Activity) Activity {
	if patch.Title != "" {
		current.Title = patch.Title
	}
	if !patch.Date.IsZero() {
		current.Date = patch.Date
	}
	if patch.Category != "" {
		current.Category = patch.Category
	}
	if patch.Description != "" {
		current.Description = patch.Description
	}
	if patch.City != "" {
		current.City = patch.City
	}
	if patch.Venue != "" {
		current.Venue = patch.Venue
	}
	return current
}

func attends(attendees []Profile, username string) bool {
	if username == "" {
		return false
	}
	for _, p := range attendees {
		if p.Username == username {
			return true
		}
	}
	return false
}

func removeAttendee(attendees []Profile, username string) []Profile {
	out := make([]Profile, 0, len(attendees))
	for _, p := range attendees {
		if p.Username != username {
			out = append(out, p)
		}
	}
	return out
}

func truncateToDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
