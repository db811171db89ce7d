package ratelimit

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/ManuelReschke/CourseSeat/internal/pkg/config"
)

// Status is the verdict for a login attempt.
type Status int

const (
	Allowed Status = iota
	Limited
	Locked
)

func (s Status) String() string {
	switch s {
	case Limited:
		return "limited"
	case Locked:
		return "locked"
	}
	return "allowed"
}

type Decision struct {
	Status     Status
	RetryAfter time.Duration
}

func (d Decision) Allowed() bool {
	return d.Status == Allowed
}

// RetryAfterSeconds rounds up so that a client never retries too early.
func (d Decision) RetryAfterSeconds() int {
	secs := int(math.Ceil(d.RetryAfter.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

type Policy struct {
	MaxAttempts      int
	AttemptWindow    time.Duration
	LockoutThreshold int
	LockoutWindow    time.Duration
	LockoutDuration  time.Duration
}

func PolicyFromConfig(cfg config.Auth) Policy {
	return Policy{
		MaxAttempts:      cfg.MaxAttempts,
		AttemptWindow:    cfg.AttemptWindow,
		LockoutThreshold: cfg.LockoutThreshold,
		LockoutWindow:    cfg.LockoutWindow,
		LockoutDuration:  cfg.LockoutDuration,
	}
}

// Guard throttles login attempts per client and email, and locks an account
// after repeated failures regardless of the client address.
type Guard struct {
	store  Store
	policy Policy
}

func NewGuard(store Store, policy Policy) *Guard {
	return &Guard{store: store, policy: policy}
}

func attemptKey(ip, email string) string { return "login:attempt:" + ip + ":" + normalize(email) }
func failureKey(email string) string     { return "login:fail:" + normalize(email) }
func lockKey(email string) string        { return "login:lock:" + normalize(email) }

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Allow counts an attempt and decides whether it may proceed. A locked
// account is reported before the attempt window is consulted.
func (g *Guard) Allow(ctx context.Context, ip, email string) (Decision, error) {
	lockTTL, err := g.store.TTL(ctx, lockKey(email))
	if err != nil {
		return Decision{}, err
	}
	if lockTTL > 0 {
		return Decision{Status: Locked, RetryAfter: lockTTL}, nil
	}

	count, ttl, err := g.store.Incr(ctx, attemptKey(ip, email), g.policy.AttemptWindow)
	if err != nil {
		return Decision{}, err
	}
	if count > int64(g.policy.MaxAttempts) {
		return Decision{Status: Limited, RetryAfter: ttl}, nil
	}
	return Decision{Status: Allowed}, nil
}

// Fail records a failed credential check for the account and locks it once
// the threshold is reached within the lockout window.
func (g *Guard) Fail(ctx context.Context, email string) (Decision, error) {
	count, _, err := g.store.Incr(ctx, failureKey(email), g.policy.LockoutWindow)
	if err != nil {
		return Decision{}, err
	}
	if count < int64(g.policy.LockoutThreshold) {
		return Decision{Status: Allowed}, nil
	}
	if err := g.store.Set(ctx, lockKey(email), g.policy.LockoutDuration); err != nil {
		return Decision{}, err
	}
	if err := g.store.Delete(ctx, failureKey(email)); err != nil {
		return Decision{}, err
	}
	return Decision{Status: Locked, RetryAfter: g.policy.LockoutDuration}, nil
}

// Reset clears the attempt and failure counters after a successful login.
func (g *Guard) Reset(ctx context.Context, ip, email string) error {
	return g.store.Delete(ctx, attemptKey(ip, email), failureKey(email))
}
