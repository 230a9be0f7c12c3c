package vault

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/folioscope/portfolio-chat/internal/store/memory"
)

const testCredential = "pplx-0123456789abcdef0123456789abcdef"

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func newTestVault(t *testing.T) (*Vault, *memory.MemoryStore, *fakeClock) {
	t.Helper()
	state := memory.New()
	v, err := New(state, []byte(strings.Repeat("k", 32)), 0)
	if err != nil {
		t.Fatalf("new vault: %v", err)
	}
	clock := &fakeClock{now: time.Date(2024, 7, 22, 9, 0, 0, 0, time.UTC)}
	v.now = clock.Now
	return v, state, clock
}

func TestSaveLoad(t *testing.T) {
	ctx := context.Background()
	v, state, _ := newTestVault(t)

	if err := v.Save(ctx, "  "+testCredential+"\n"); err != nil {
		t.Fatalf("save: %v", err)
	}
	sealed, ok, _ := state.GetState(ctx, KeyCredential)
	if !ok || strings.Contains(sealed, testCredential) {
		t.Fatalf("credential should be stored sealed, got %q", sealed)
	}
	expiry, _, _ := state.GetState(ctx, KeyCredentialExpiry)
	if expiry != "2024-07-23T09:00:00Z" {
		t.Fatalf("unexpected expiry %q", expiry)
	}
	if got := v.Load(ctx); got != testCredential {
		t.Fatalf("expected credential back, got %q", got)
	}
}

func TestSave_Empty(t *testing.T) {
	v, _, _ := newTestVault(t)
	if err := v.Save(context.Background(), "   "); !errors.Is(err, ErrEmptyCredential) {
		t.Fatalf("expected ErrEmptyCredential, got %v", err)
	}
}

func TestLoad_ExpiresAfterTTL(t *testing.T) {
	ctx := context.Background()
	v, state, clock := newTestVault(t)
	if err := v.Save(ctx, testCredential); err != nil {
		t.Fatalf("save: %v", err)
	}

	clock.now = clock.now.Add(23 * time.Hour)
	if got := v.Load(ctx); got != testCredential {
		t.Fatalf("credential should still be live, got %q", got)
	}

	clock.now = clock.now.Add(2 * time.Hour)
	if got := v.Load(ctx); got != "" {
		t.Fatalf("expected empty credential after expiry, got %q", got)
	}
	if _, ok, _ := state.GetState(ctx, KeyCredential); ok {
		t.Fatal("expired credential should be purged")
	}
	if _, ok, _ := state.GetState(ctx, KeyCredentialExpiry); ok {
		t.Fatal("expired expiry should be purged")
	}
}

func TestCheckExpiry(t *testing.T) {
	ctx := context.Background()
	v, _, clock := newTestVault(t)
	if v.CheckExpiry(ctx) {
		t.Fatal("nothing stored yet")
	}
	if err := v.Save(ctx, testCredential); err != nil {
		t.Fatalf("save: %v", err)
	}
	if !v.CheckExpiry(ctx) {
		t.Fatal("expected live credential")
	}
	clock.now = clock.now.Add(DefaultTTL + time.Second)
	if v.CheckExpiry(ctx) {
		t.Fatal("expected expired credential")
	}
}

func TestLoad_CorruptCiphertext(t *testing.T) {
	ctx := context.Background()
	v, state, _ := newTestVault(t)
	if err := v.Save(ctx, testCredential); err != nil {
		t.Fatalf("save: %v", err)
	}
	_ = state.PutState(ctx, KeyCredential, "not-a-sealed-value")
	if got := v.Load(ctx); got != "" {
		t.Fatalf("expected empty credential, got %q", got)
	}
}

func TestLoad_MissingExpiryPurges(t *testing.T) {
	ctx := context.Background()
	v, state, _ := newTestVault(t)
	if err := v.Save(ctx, testCredential); err != nil {
		t.Fatalf("save: %v", err)
	}
	_ = state.DeleteState(ctx, KeyCredentialExpiry)
	if got := v.Load(ctx); got != "" {
		t.Fatalf("expected empty credential, got %q", got)
	}
	if _, ok, _ := state.GetState(ctx, KeyCredential); ok {
		t.Fatal("credential without expiry should be purged")
	}
}

func TestInvalidate(t *testing.T) {
	ctx := context.Background()
	v, _, _ := newTestVault(t)
	if err := v.Save(ctx, testCredential); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := v.Invalidate(ctx); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if got := v.Load(ctx); got != "" {
		t.Fatalf("expected empty credential after invalidate, got %q", got)
	}
}

func TestStatus(t *testing.T) {
	ctx := context.Background()
	v, _, _ := newTestVault(t)
	if status := v.Status(ctx); status.Present {
		t.Fatalf("expected absent status, got %+v", status)
	}
	if err := v.Save(ctx, testCredential); err != nil {
		t.Fatalf("save: %v", err)
	}
	status := v.Status(ctx)
	if !status.Present || status.Hint != "****cdef" || status.ExpiresAt != "2024-07-23T09:00:00Z" {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestValidateFormat(t *testing.T) {
	if err := ValidateFormat(""); !errors.Is(err, ErrEmptyCredential) {
		t.Fatalf("expected ErrEmptyCredential, got %v", err)
	}
	if err := ValidateFormat("pplx-short"); !errors.Is(err, ErrTooShort) {
		t.Fatalf("expected ErrTooShort, got %v", err)
	}
	if err := ValidateFormat(testCredential); err != nil {
		t.Fatalf("expected valid credential, got %v", err)
	}
	if err := ValidateFormat(strings.Repeat("x", 40)); err != nil {
		t.Fatalf("unknown prefix should only warn, got %v", err)
	}
}
