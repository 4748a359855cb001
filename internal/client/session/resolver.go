// Package session resolves the agent's current auth token across the two
// storage slots.
//
// A "remember me" login writes the proxy's signed cookie value into the
// durable slot; a plain login keeps the raw token in the ephemeral slot
// only. The two are mutually exclusive: saving into one slot always clears
// the other, and when both somehow hold a token the ephemeral one wins and
// evicts the durable leftover.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/portalkeeper/portalkeeper/internal/client/storage"
)

// ErrNoToken означает, что ни один slot не содержит токена - агент не залогинен
var ErrNoToken = errors.New("no stored auth token")

// Token is a resolved auth token. Session reports which slot it came from:
// ephemeral tokens are raw and the proxy must not try to unsign them.
type Token struct {
	Value   string
	Session bool
}

// Resolver реализует two-slot token storage для одной организации
type Resolver struct {
	durable   storage.Store
	ephemeral storage.Store
	orgSlug   string
}

// New создает resolver поверх двух slots
func New(durable, ephemeral storage.Store, orgSlug string) *Resolver {
	return &Resolver{
		durable:   durable,
		ephemeral: ephemeral,
		orgSlug:   orgSlug,
	}
}

// Resolve returns the current token. The ephemeral slot has precedence: a
// session login supersedes whatever an earlier "remember me" login left in
// the durable slot, and the stale durable copy is deleted on the spot.
func (r *Resolver) Resolve(ctx context.Context) (Token, error) {
	key := storage.AuthTokenKey(r.orgSlug)

	value, err := r.ephemeral.Get(ctx, key)
	switch {
	case err == nil:
		if err := r.durable.Delete(ctx, key); err != nil {
			return Token{}, fmt.Errorf("evict durable token: %w", err)
		}
		return Token{Value: value, Session: true}, nil
	case !errors.Is(err, storage.ErrKeyNotFound):
		return Token{}, fmt.Errorf("read ephemeral slot: %w", err)
	}

	value, err = r.durable.Get(ctx, key)
	switch {
	case err == nil:
		return Token{Value: value, Session: false}, nil
	case errors.Is(err, storage.ErrKeyNotFound):
		return Token{}, ErrNoToken
	default:
		return Token{}, fmt.Errorf("read durable slot: %w", err)
	}
}

// Save stores the token into the slot matching rememberMe and clears the
// other slot, so a login always leaves exactly one copy behind.
func (r *Resolver) Save(ctx context.Context, token string, rememberMe bool) error {
	key := storage.AuthTokenKey(r.orgSlug)

	if rememberMe {
		if err := r.durable.Set(ctx, key, token); err != nil {
			return fmt.Errorf("write durable slot: %w", err)
		}
		if err := r.durable.Set(ctx, storage.KeyRememberMe, "true"); err != nil {
			return fmt.Errorf("write remember-me flag: %w", err)
		}
		if err := r.ephemeral.Delete(ctx, key); err != nil {
			return fmt.Errorf("clear ephemeral slot: %w", err)
		}
		return nil
	}

	if err := r.ephemeral.Set(ctx, key, token); err != nil {
		return fmt.Errorf("write ephemeral slot: %w", err)
	}
	if err := r.durable.Delete(ctx, key); err != nil {
		return fmt.Errorf("clear durable slot: %w", err)
	}
	if err := r.durable.Set(ctx, storage.KeyRememberMe, "false"); err != nil {
		return fmt.Errorf("write remember-me flag: %w", err)
	}
	return nil
}

// RememberMe reports whether the last login asked to be remembered.
func (r *Resolver) RememberMe(ctx context.Context) bool {
	value, err := r.durable.Get(ctx, storage.KeyRememberMe)
	return err == nil && value == "true"
}

// Clear wipes the token from both slots along with the remember-me and
// SMS sent flags. Used on logout and on failed revalidation.
func (r *Resolver) Clear(ctx context.Context) error {
	key := storage.AuthTokenKey(r.orgSlug)

	if err := r.ephemeral.Delete(ctx, key); err != nil {
		return fmt.Errorf("clear ephemeral slot: %w", err)
	}
	if err := r.durable.Delete(ctx, key); err != nil {
		return fmt.Errorf("clear durable slot: %w", err)
	}
	if err := r.durable.Delete(ctx, storage.KeyRememberMe); err != nil {
		return fmt.Errorf("clear remember-me flag: %w", err)
	}
	if err := r.ephemeral.Delete(ctx, storage.KeyPhoneTokenSent); err != nil {
		return fmt.Errorf("clear sent flag: %w", err)
	}
	return nil
}

// SetMacaddr persists the MAC address captured from the gateway reply.
// Lives in the ephemeral slot: it is only meaningful within one portal
// session.
func (r *Resolver) SetMacaddr(ctx context.Context, macaddr string) error {
	return r.ephemeral.Set(ctx, storage.MacaddrKey(r.orgSlug), macaddr)
}

// Macaddr returns the captured MAC address, or "".
func (r *Resolver) Macaddr(ctx context.Context) string {
	value, err := r.ephemeral.Get(ctx, storage.MacaddrKey(r.orgSlug))
	if err != nil {
		return ""
	}
	return value
}

// SaveUsername remembers who logged in last. The name lives in the
// durable slot and survives logout: it is a prompt prefill, not a
// credential.
func (r *Resolver) SaveUsername(ctx context.Context, username string) error {
	return r.durable.Set(ctx, storage.UsernameKey(r.orgSlug), username)
}

// LastUsername returns the last logged-in username, or "".
func (r *Resolver) LastUsername(ctx context.Context) string {
	value, err := r.durable.Get(ctx, storage.UsernameKey(r.orgSlug))
	if err != nil {
		return ""
	}
	return value
}

// MarkPhoneTokenSent records that an SMS code was already requested in
// this session.
func (r *Resolver) MarkPhoneTokenSent(ctx context.Context) error {
	return r.ephemeral.Set(ctx, storage.KeyPhoneTokenSent, "true")
}

// PhoneTokenSent reports whether an SMS code was requested in this session.
func (r *Resolver) PhoneTokenSent(ctx context.Context) bool {
	value, err := r.ephemeral.Get(ctx, storage.KeyPhoneTokenSent)
	return err == nil && value == "true"
}
