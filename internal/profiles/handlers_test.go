package profiles_test

import (
	"context"
	"testing"

	"gatherly/internal/db"
	"gatherly/internal/domain"
	"gatherly/internal/mediator"
	"gatherly/internal/migrate"
	"gatherly/internal/profiles"
	"gatherly/internal/store"
)

func newMediator(t *testing.T) *mediator.Mediator {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	st := store.Store{DB: conn}
	image := "https://example.com/avatar.png"
	u := domain.User{
		Username:     "tester",
		DisplayName:  "Tester",
		Email:        "tester@example.com",
		PasswordHash: "x",
		Image:        &image,
		CreatedAt:    "2024-01-01T00:00:00Z",
	}
	if err := st.InsertUser(context.Background(), u); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	m := mediator.New()
	if err := profiles.Register(m, profiles.Env{Store: st}); err != nil {
		t.Fatalf("register: %v", err)
	}
	return m
}

func TestProfileDetails(t *testing.T) {
	m := newMediator(t)
	res, err := mediator.Send[domain.Profile](context.Background(), m, profiles.DetailsQuery{Username: "tester"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !res.HasValue() {
		t.Fatal("expected profile")
	}
	p := res.Value()
	if p.Username != "tester" || p.DisplayName != "Tester" {
		t.Fatalf("unexpected profile %+v", p)
	}
	if p.Image == nil || *p.Image != "https://example.com/avatar.png" {
		t.Fatalf("image lost: %+v", p.Image)
	}
}

func TestProfileDetailsUnknownIsSuccessWithoutValue(t *testing.T) {
	m := newMediator(t)
	res, err := mediator.Send[domain.Profile](context.Background(), m, profiles.DetailsQuery{Username: "nobody"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !res.IsSuccess() || res.HasValue() {
		t.Fatalf("expected success-without-value, got %+v", res)
	}
}
