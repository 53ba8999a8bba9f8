package memorystore

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/PaulFidika/meterkit/entitlements"
)

func TestUpdate_MissingRowWithoutSeed(t *testing.T) {
	s := NewEntitlementStore(0)
	called := false
	_, err := s.Update(context.Background(), "u1", "PDF", nil, func(e *entitlements.Entitlement) (bool, error) {
		called = true
		return true, nil
	})
	if !errors.Is(err, entitlements.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if called {
		t.Fatalf("mutate func must not run for a missing row")
	}
	if s.Len() != 0 {
		t.Fatalf("expected no rows, got %d", s.Len())
	}
}

func TestUpdate_SeedCreatesRow(t *testing.T) {
	s := NewEntitlementStore(0)
	e, err := s.Update(context.Background(), "u1", "PDF", &entitlements.Entitlement{}, func(e *entitlements.Entitlement) (bool, error) {
		e.Remaining += 2
		return true, nil
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if e.ID == "" || e.Remaining != 2 {
		t.Fatalf("unexpected row: %+v", e)
	}
	got, _ := s.Find(context.Background(), "u1", "PDF")
	if got == nil || got.Remaining != 2 {
		t.Fatalf("expected stored remaining 2, got %+v", got)
	}
	got.Remaining = 99
	again, _ := s.Find(context.Background(), "u1", "PDF")
	if again.Remaining != 2 {
		t.Fatalf("Find must return a copy")
	}
}

func TestUpdate_FailedMutationWritesNothing(t *testing.T) {
	s := NewEntitlementStore(0)
	boom := errors.New("boom")
	_, err := s.Update(context.Background(), "u1", "PDF", &entitlements.Entitlement{}, func(e *entitlements.Entitlement) (bool, error) {
		e.Remaining = 5
		return false, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if s.Len() != 0 {
		t.Fatalf("expected seed row rolled back, got %d rows", s.Len())
	}
}

func TestUpdate_BoundedLockWait(t *testing.T) {
	s := NewEntitlementStore(30 * time.Millisecond)
	ctx := context.Background()
	if _, err := s.Update(ctx, "u1", "PDF", &entitlements.Entitlement{}, func(*entitlements.Entitlement) (bool, error) { return true, nil }); err != nil {
		t.Fatalf("seed: %v", err)
	}

	held := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.Update(ctx, "u1", "PDF", nil, func(*entitlements.Entitlement) (bool, error) {
			close(held)
			<-release
			return false, nil
		})
	}()
	<-held

	_, err := s.Update(ctx, "u1", "PDF", nil, func(*entitlements.Entitlement) (bool, error) { return false, nil })
	if !errors.Is(err, entitlements.ErrContention) {
		t.Fatalf("expected ErrContention, got %v", err)
	}

	// Other keys are not blocked by the held lock.
	if _, err := s.Update(ctx, "u2", "PDF", &entitlements.Entitlement{}, func(*entitlements.Entitlement) (bool, error) { return true, nil }); err != nil {
		t.Fatalf("independent key blocked: %v", err)
	}

	close(release)
	<-done
}

func TestUpdate_LockEntriesReleased(t *testing.T) {
	s := NewEntitlementStore(20 * time.Millisecond)
	ctx := context.Background()
	for i := 0; i < 100; i++ {
		user := fmt.Sprintf("u%d", i)
		if _, err := s.Update(ctx, user, "PDF", &entitlements.Entitlement{}, func(*entitlements.Entitlement) (bool, error) { return true, nil }); err != nil {
			t.Fatalf("Update: %v", err)
		}
		if _, err := s.Update(ctx, user, "PDF", nil, func(*entitlements.Entitlement) (bool, error) { return false, nil }); err != nil {
			t.Fatalf("Update: %v", err)
		}
	}
	if _, err := s.Update(ctx, "ghost", "PDF", nil, func(*entitlements.Entitlement) (bool, error) { return false, nil }); !errors.Is(err, entitlements.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if n := s.LockedKeys(); n != 0 {
		t.Fatalf("expected idle lock entries pruned, got %d", n)
	}
	if s.Len() != 100 {
		t.Fatalf("expected 100 rows, got %d", s.Len())
	}
}
