// Package vault keeps the remote API credential sealed at rest with a fixed
// lifetime. Expired or unreadable credentials behave as absent.
package vault

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/folioscope/portfolio-chat/internal/secrets"
	"github.com/folioscope/portfolio-chat/internal/store"
)

const (
	KeyCredential       = "credential"
	KeyCredentialExpiry = "credentialExpiry"

	DefaultTTL   = 24 * time.Hour
	MinKeyLength = 32
)

var (
	ErrEmptyCredential = errors.New("API key cannot be empty")
	ErrTooShort        = errors.New("API key is too short")

	knownPrefixes = []string{"pplx-", "sk-", "AIza"}
)

type Status struct {
	Present   bool   `json:"present"`
	Hint      string `json:"hint,omitempty"`
	ExpiresAt string `json:"expires_at,omitempty"`
}

type Vault struct {
	mu    sync.Mutex
	state store.StateStore
	box   *secrets.Box
	ttl   time.Duration
	now   func() time.Time
}

func New(state store.StateStore, key []byte, ttl time.Duration) (*Vault, error) {
	box, err := secrets.NewBox(key, KeyCredential)
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Vault{state: state, box: box, ttl: ttl, now: time.Now}, nil
}

// ValidateFormat rejects keys that cannot be real. An unfamiliar prefix is
// only worth a warning since providers change formats.
func ValidateFormat(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ErrEmptyCredential
	}
	if len(raw) < MinKeyLength {
		return ErrTooShort
	}
	for _, prefix := range knownPrefixes {
		if strings.HasPrefix(raw, prefix) {
			return nil
		}
	}
	log.Printf("vault: credential %s has an unrecognized prefix", secrets.Hint(raw))
	return nil
}

// Save seals raw and starts a fresh lifetime.
func (v *Vault) Save(ctx context.Context, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ErrEmptyCredential
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	sealed, err := v.box.Seal(raw)
	if err != nil {
		return err
	}
	expiry := v.now().UTC().Add(v.ttl).Format(time.RFC3339Nano)
	if err := v.state.PutState(ctx, KeyCredential, sealed); err != nil {
		return err
	}
	return v.state.PutState(ctx, KeyCredentialExpiry, expiry)
}

// Load returns the credential, or "" when it is missing, expired or cannot
// be opened.
func (v *Vault) Load(ctx context.Context) string {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.checkExpiryLocked(ctx) {
		return ""
	}
	sealed, ok, err := v.state.GetState(ctx, KeyCredential)
	if err != nil || !ok {
		return ""
	}
	raw, err := v.box.Open(sealed)
	if err != nil {
		log.Printf("vault: stored credential could not be opened: %v", err)
		return ""
	}
	return raw
}

// CheckExpiry reports whether a live credential is stored, purging it when
// its lifetime has passed.
func (v *Vault) CheckExpiry(ctx context.Context) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.checkExpiryLocked(ctx)
}

// Invalidate drops the credential after the remote side rejected it.
func (v *Vault) Invalidate(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.purgeLocked(ctx)
}

func (v *Vault) Status(ctx context.Context) Status {
	raw := v.Load(ctx)
	if raw == "" {
		return Status{}
	}
	expiry, _, _ := v.state.GetState(ctx, KeyCredentialExpiry)
	return Status{Present: true, Hint: secrets.Hint(raw), ExpiresAt: expiry}
}

func (v *Vault) checkExpiryLocked(ctx context.Context) bool {
	value, ok, err := v.state.GetState(ctx, KeyCredentialExpiry)
	if err != nil {
		return false
	}
	if !ok {
		if _, present, _ := v.state.GetState(ctx, KeyCredential); present {
			_ = v.purgeLocked(ctx)
		}
		return false
	}
	expiry, err := time.Parse(time.RFC3339Nano, value)
	if err != nil || v.now().After(expiry) {
		_ = v.purgeLocked(ctx)
		return false
	}
	return true
}

func (v *Vault) purgeLocked(ctx context.Context) error {
	if err := v.state.DeleteState(ctx, KeyCredential); err != nil {
		return err
	}
	return v.state.DeleteState(ctx, KeyCredentialExpiry)
}
