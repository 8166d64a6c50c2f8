// Package otp implements the one-time passcode challenge store.
//
// The store is the transient half of the auth flow: a keyed, expiring,
// single-use token store living in process memory. Nothing here survives a
// restart, and state is not shared across instances — both are deliberate
// (the 5-minute self-expiry bounds the damage of any lost state).
//
// SINGLE-USE SEMANTICS:
// A challenge can be checked at most once. Consume removes the entry from
// the map in the same critical section as the lookup, so two concurrent
// verify calls for the same email cannot both get the entry. Whether the
// subsequent expiry/code checks pass or fail, the entry is already gone —
// a failed attempt requires a fresh issuance, not a retry.
//
// CODES AT REST:
// Only a bcrypt hash of the code is kept in memory; the plaintext exists
// solely in the outbound email. Match compares through
// bcrypt.CompareHashAndPassword, which is constant-time.
package otp

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// codeSpan is the size of the 6-digit code range: codes are uniform over
// [100000, 999999], i.e. codeMin + [0, codeSpan).
const (
	codeMin  = 100000
	codeSpan = 900000
)

// defaultCost is the bcrypt work factor for hashing codes.
//
// This is lower than what we'd use for passwords: a 6-digit code has only
// 10^6 possibilities and expires in minutes, so the hash is about keeping
// plaintext codes out of memory dumps, not surviving offline cracking.
const defaultCost = 10

// Challenge is a consumed challenge entry, handed to the caller by Consume
// for the expiry and code checks. By the time the caller holds one, the
// store no longer does.
type Challenge struct {
	codeHash  []byte
	ExpiresAt time.Time
}

// Match reports whether the submitted code matches the issued one.
// The submission is textual (form input); it is compared against the
// stored hash without any numeric coercion.
func (c Challenge) Match(code string) bool {
	return bcrypt.CompareHashAndPassword(c.codeHash, []byte(code)) == nil
}

// Expired reports whether the challenge's expiry instant has passed at
// the given time.
func (c Challenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// Store holds at most one live challenge per email address.
//
// The map is shared mutable state across concurrent requests, so every
// read-modify-write runs under the mutex — Issue's overwrite and Consume's
// lookup+delete are each atomic per email.
type Store struct {
	mu         sync.Mutex
	challenges map[string]Challenge

	ttl  time.Duration
	cost int
	now  func() time.Time // injectable clock for expiry tests
}

// NewStore creates a Store whose challenges expire ttl after issuance.
func NewStore(ttl time.Duration) *Store {
	return &Store{
		challenges: make(map[string]Challenge),
		ttl:        ttl,
		cost:       defaultCost,
		now:        time.Now,
	}
}

// NewStoreForTest creates a Store with the minimum bcrypt cost and an
// injectable clock. Test helper — do not use in production.
func NewStoreForTest(ttl time.Duration, now func() time.Time) *Store {
	return &Store{
		challenges: make(map[string]Challenge),
		ttl:        ttl,
		cost:       bcrypt.MinCost,
		now:        now,
	}
}

// Issue generates a fresh 6-digit code for the email, stores its hash with
// expiry now+ttl, and returns the plaintext code for delivery.
//
// Any prior challenge for the email is overwritten — the previously issued
// code stops working immediately.
func (s *Store) Issue(email string) (string, error) {
	code, err := generateCode()
	if err != nil {
		return "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.cost)
	if err != nil {
		return "", fmt.Errorf("otp: hashing code: %w", err)
	}

	s.mu.Lock()
	s.challenges[email] = Challenge{
		codeHash:  hash,
		ExpiresAt: s.now().Add(s.ttl),
	}
	s.mu.Unlock()

	return code, nil
}

// Consume atomically looks up AND removes the challenge for the email.
// Returns false if no challenge exists — never issued, or already consumed
// by a previous verify call.
//
// Note the removal is unconditional: expiry and code matching happen on
// the returned Challenge, after the entry is gone from the store.
func (s *Store) Consume(email string) (Challenge, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := s.challenges[email]
	if ok {
		delete(s.challenges, email)
	}
	return ch, ok
}

// Len reports the number of live challenges. Used by tests.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.challenges)
}

// generateCode returns a uniformly random 6-digit code as a string.
//
// crypto/rand.Int is uniform over [0, codeSpan) — no modulo bias — and
// shifting by codeMin lands the result in [100000, 999999]. The %d format
// needs no zero-padding since the minimum is already six digits.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeSpan))
	if err != nil {
		return "", fmt.Errorf("otp: generating code: %w", err)
	}
	return fmt.Sprintf("%d", n.Int64()+codeMin), nil
}
