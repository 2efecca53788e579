package session

import (
	"context"
	"testing"
	"time"

	"salesportal/internal/domain"
)

func TestMemoryStorePutGetDelete(t *testing.T) {
	s := NewMemoryStore(time.Hour)
	ctx := context.Background()

	if _, ok, err := s.Get(ctx, "amina"); err != nil || ok {
		t.Fatalf("expected empty store, got ok=%v err=%v", ok, err)
	}

	sess := &domain.UploadSession{Username: "amina", UpdatedAt: time.Now()}
	if err := s.Put(ctx, "amina", sess); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok, err := s.Get(ctx, "amina")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if got.Username != "amina" {
		t.Fatalf("unexpected session: %+v", got)
	}

	// returned value is a copy, mutating it must not touch the store
	got.Username = "changed"
	again, _, _ := s.Get(ctx, "amina")
	if again.Username != "amina" {
		t.Fatal("expected stored session to be isolated from callers")
	}

	if err := s.Delete(ctx, "amina"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "amina"); ok {
		t.Fatal("expected session gone after delete")
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	now := time.Date(2025, time.March, 8, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	if err := s.Put(ctx, "amina", &domain.UploadSession{Username: "amina"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if _, ok, _ := s.Get(ctx, "amina"); ok {
		t.Fatal("expected session to expire")
	}
}
