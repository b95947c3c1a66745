package activities_test

import (
	"context"
	"testing"
	"time"

	"gatherly/internal/activities"
	"gatherly/internal/db"
	"gatherly/internal/domain"
	"gatherly/internal/events"
	"gatherly/internal/mediator"
	"gatherly/internal/migrate"
	"gatherly/internal/result"
	"gatherly/internal/store"
)

type testEnv struct {
	M   *mediator.Mediator
	St  store.Store
	Ctx context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	st := store.Store{DB: conn}
	ctx := context.Background()
	for _, u := range []domain.User{
		{Username: "tester", DisplayName: "Tester", Email: "tester@example.com", PasswordHash: "x", CreatedAt: "2024-01-01T00:00:00Z"},
		{Username: "friend", DisplayName: "Friend", Email: "friend@example.com", PasswordHash: "x", CreatedAt: "2024-01-01T00:00:00Z"},
	} {
		if err := st.InsertUser(ctx, u); err != nil {
			t.Fatalf("seed user %s: %v", u.Username, err)
		}
	}
	m := mediator.New()
	env := activities.Env{
		Store:  st,
		Events: events.Writer{DB: conn},
		Now:    func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) },
	}
	if err := activities.Register(m, env); err != nil {
		t.Fatalf("register handlers: %v", err)
	}
	return testEnv{M: m, St: st, Ctx: ctx}
}

func sampleActivity(id string) domain.Activity {
	return domain.Activity{
		ID:       id,
		Title:    "Run",
		Date:     time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC),
		Category: "sports",
		City:     "Lyon",
		Venue:    "Park",
	}
}

func mustCreate(t *testing.T, env testEnv, a domain.Activity, actor string) {
	t.Helper()
	res, err := mediator.Send[result.Unit](env.Ctx, env.M, activities.CreateCommand{Activity: a, Actor: actor})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !res.IsSuccess() {
		t.Fatalf("create failed: %s", res.Message())
	}
}

func details(t *testing.T, env testEnv, id string) result.Result[domain.Activity] {
	t.Helper()
	res, err := mediator.Send[domain.Activity](env.Ctx, env.M, activities.DetailsQuery{ID: id})
	if err != nil {
		t.Fatalf("details: %v", err)
	}
	return res
}

func TestCreateThenDetailsRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	a := sampleActivity("act-1")
	mustCreate(t, env, a, "tester")

	res := details(t, env, "act-1")
	if !res.HasValue() {
		t.Fatal("expected details to find created activity")
	}
	got := res.Value()
	if got.Title != a.Title || got.Category != a.Category || got.City != a.City || got.Venue != a.Venue {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if !got.Date.Equal(a.Date) {
		t.Fatalf("date mismatch: got %v want %v", got.Date, a.Date)
	}
	if got.HostUsername != "tester" {
		t.Fatalf("host mismatch: %s", got.HostUsername)
	}
	if len(got.Attendees) != 1 || got.Attendees[0].Username != "tester" {
		t.Fatalf("expected host in attendee set, got %+v", got.Attendees)
	}
}

func TestDetailsUnknownIsSuccessWithoutValue(t *testing.T) {
	env := newTestEnv(t)
	res := details(t, env, "nope")
	if !res.IsSuccess() {
		t.Fatalf("expected success, got failure: %s", res.Message())
	}
	if res.HasValue() {
		t.Fatal("expected no value for unknown id")
	}
}

func TestDeleteThenDetailsEmpty(t *testing.T) {
	env := newTestEnv(t)
	mustCreate(t, env, sampleActivity("act-1"), "tester")

	res, err := mediator.Send[result.Unit](env.Ctx, env.M, activities.DeleteCommand{ID: "act-1", Actor: "tester"})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !res.IsSuccess() || !res.HasValue() {
		t.Fatalf("delete failed: %+v", res)
	}
	after := details(t, env, "act-1")
	if !after.IsSuccess() || after.HasValue() {
		t.Fatalf("expected success-without-value after delete, got %+v", after)
	}
}

func TestDeleteUnknownReturnsEmpty(t *testing.T) {
	env := newTestEnv(t)
	res, err := mediator.Send[result.Unit](env.Ctx, env.M, activities.DeleteCommand{ID: "ghost", Actor: "tester"})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !res.IsSuccess() || res.HasValue() {
		t.Fatalf("expected success-without-value for unknown id, got %+v", res)
	}
}

func TestCreateValidationAggregatesViolations(t *testing.T) {
	env := newTestEnv(t)
	a := sampleActivity("act-1")
	a.Title = ""
	a.City = ""
	res, err := mediator.Send[result.Unit](env.Ctx, env.M, activities.CreateCommand{Activity: a, Actor: "tester"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !res.IsValidationError() {
		t.Fatalf("expected validation failure, got %+v", res)
	}
	fields := map[string]bool{}
	for _, v := range res.Violations() {
		fields[v.Field] = true
	}
	if !fields["title"] || !fields["city"] {
		t.Fatalf("expected title and city violations, got %+v", res.Violations())
	}
	// nothing persisted
	if after := details(t, env, "act-1"); after.HasValue() {
		t.Fatal("invalid command must not persist")
	}
}

func TestEditRouteIDIsAuthoritative(t *testing.T) {
	env := newTestEnv(t)
	mustCreate(t, env, sampleActivity("act-1"), "tester")

	patch := sampleActivity("smuggled-id")
	patch.Title = "Evening run"
	res, err := mediator.Send[result.Unit](env.Ctx, env.M, activities.EditCommand{ID: "act-1", Activity: patch, Actor: "tester"})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if !res.IsSuccess() || !res.HasValue() {
		t.Fatalf("edit failed: %+v", res)
	}
	if got := details(t, env, "act-1"); !got.HasValue() || got.Value().Title != "Evening run" {
		t.Fatalf("edit not applied: %+v", got)
	}
	if got := details(t, env, "smuggled-id"); got.HasValue() {
		t.Fatal("payload id must be ignored")
	}
}

func TestEditUnknownReturnsEmpty(t *testing.T) {
	env := newTestEnv(t)
	res, err := mediator.Send[result.Unit](env.Ctx, env.M, activities.EditCommand{ID: "ghost", Activity: sampleActivity("ghost"), Actor: "tester"})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if !res.IsSuccess() || res.HasValue() {
		t.Fatalf("expected success-without-value, got %+v", res)
	}
}

func TestAttendToggleJoinAndLeave(t *testing.T) {
	env := newTestEnv(t)
	mustCreate(t, env, sampleActivity("act-1"), "tester")

	// friend joins
	if res, err := mediator.Send[result.Unit](env.Ctx, env.M, activities.AttendCommand{ID: "act-1", Actor: "friend"}); err != nil || !res.IsSuccess() {
		t.Fatalf("join: err=%v res=%+v", err, res)
	}
	got := details(t, env, "act-1").Value()
	if !got.IsAttendedBy("friend") {
		t.Fatalf("friend should attend: %+v", got.Attendees)
	}

	// friend toggles again and leaves
	if res, err := mediator.Send[result.Unit](env.Ctx, env.M, activities.AttendCommand{ID: "act-1", Actor: "friend"}); err != nil || !res.IsSuccess() {
		t.Fatalf("leave: err=%v res=%+v", err, res)
	}
	got = details(t, env, "act-1").Value()
	if got.IsAttendedBy("friend") {
		t.Fatalf("friend should have left: %+v", got.Attendees)
	}
	if !got.IsAttendedBy("tester") {
		t.Fatal("host must remain an attendee")
	}
}

func TestHostToggleCancels(t *testing.T) {
	env := newTestEnv(t)
	mustCreate(t, env, sampleActivity("act-1"), "tester")

	if res, err := mediator.Send[result.Unit](env.Ctx, env.M, activities.AttendCommand{ID: "act-1", Actor: "tester"}); err != nil || !res.IsSuccess() {
		t.Fatalf("cancel: err=%v res=%+v", err, res)
	}
	if got := details(t, env, "act-1").Value(); !got.IsCancelled {
		t.Fatal("host toggle should cancel")
	}

	// joining a cancelled activity is a domain failure
	res, err := mediator.Send[result.Unit](env.Ctx, env.M, activities.AttendCommand{ID: "act-1", Actor: "friend"})
	if err != nil {
		t.Fatalf("join cancelled: %v", err)
	}
	if res.IsSuccess() {
		t.Fatal("expected failure joining a cancelled activity")
	}

	if res, err := mediator.Send[result.Unit](env.Ctx, env.M, activities.AttendCommand{ID: "act-1", Actor: "tester"}); err != nil || !res.IsSuccess() {
		t.Fatalf("uncancel: err=%v res=%+v", err, res)
	}
	if got := details(t, env, "act-1").Value(); got.IsCancelled {
		t.Fatal("host toggle should reinstate")
	}
}

func TestListSortedByDate(t *testing.T) {
	env := newTestEnv(t)
	later := sampleActivity("act-later")
	later.Date = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	mustCreate(t, env, later, "tester")
	mustCreate(t, env, sampleActivity("act-earlier"), "tester")

	res, err := mediator.Send[[]domain.Activity](env.Ctx, env.M, activities.ListQuery{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	items := res.Value()
	if len(items) != 2 {
		t.Fatalf("expected 2 activities, got %d", len(items))
	}
	if items[0].ID != "act-earlier" || items[1].ID != "act-later" {
		t.Fatalf("expected date order, got %s, %s", items[0].ID, items[1].ID)
	}
}
