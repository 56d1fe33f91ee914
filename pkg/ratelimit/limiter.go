package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	HourWindow = time.Hour
	DayWindow  = 24 * time.Hour
)

// ErrRateLimited is matched with errors.Is against a *LimitError.
var ErrRateLimited = errors.New("rate limited")

// LimitError is returned by Check when a window is exhausted.
type LimitError struct {
	Window     string // "hour" or "day"
	RetryAfter time.Duration
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s window, retry after %s", e.Window, e.RetryAfter.Round(time.Second))
}

func (e *LimitError) Is(target error) bool {
	return target == ErrRateLimited
}

// Entry holds the counters of one (account, destination) pair. The two
// windows reset independently, each on its own clock from first use.
type Entry struct {
	CountHour       int       `json:"count_hour"`
	HourWindowStart time.Time `json:"hour_window_start"`
	CountDay        int       `json:"count_day"`
	DayWindowStart  time.Time `json:"day_window_start"`
}

// roll applies the lazy fixed-window reset.
func (e *Entry) roll(now time.Time) {
	if now.Sub(e.HourWindowStart) >= HourWindow {
		e.CountHour = 0
		e.HourWindowStart = now
	}
	if now.Sub(e.DayWindowStart) >= DayWindow {
		e.CountDay = 0
		e.DayWindowStart = now
	}
}

// Store persists entries. Implementations need no locking of their own:
// the Limiter serialises every call.
type Store interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Put(ctx context.Context, key string, entry Entry) error
	Delete(ctx context.Context, key string) error
}

type Limits struct {
	MaxPerHour int
	MaxPerDay  int
}

type Option func(*Limiter)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithStore replaces the default in-memory store.
func WithStore(store Store) Option {
	return func(l *Limiter) { l.store = store }
}

// Limiter enforces per (account, destination) hourly and daily send caps.
//
// Check and Increment are separate calls: two concurrent sends to the same
// destination may both pass Check before either increments, overshooting the
// limit by the number of in-flight sends. Callers wanting a strict cap must
// serialise sends per destination themselves.
type Limiter struct {
	mu     sync.Mutex
	store  Store
	limits Limits
	now    func() time.Time
}

func NewLimiter(limits Limits, opts ...Option) *Limiter {
	l := &Limiter{
		store:  NewMemoryStore(),
		limits: limits,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func Key(accountID, destination string) string {
	return accountID + "|" + destination
}

// Check evaluates the current windows without mutating them. A pair never
// seen before is always allowed.
func (l *Limiter) Check(ctx context.Context, accountID, destination string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok, err := l.store.Get(ctx, Key(accountID, destination))
	if err != nil {
		return fmt.Errorf("ratelimit check: %w", err)
	}
	if !ok {
		return nil
	}

	now := l.now()
	entry.roll(now)

	if l.limits.MaxPerHour > 0 && entry.CountHour >= l.limits.MaxPerHour {
		return &LimitError{Window: "hour", RetryAfter: entry.HourWindowStart.Add(HourWindow).Sub(now)}
	}
	if l.limits.MaxPerDay > 0 && entry.CountDay >= l.limits.MaxPerDay {
		return &LimitError{Window: "day", RetryAfter: entry.DayWindowStart.Add(DayWindow).Sub(now)}
	}
	return nil
}

// Increment records one successful send.
func (l *Limiter) Increment(ctx context.Context, accountID, destination string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := Key(accountID, destination)
	now := l.now()

	entry, ok, err := l.store.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("ratelimit increment: %w", err)
	}
	if !ok {
		entry = Entry{HourWindowStart: now, DayWindowStart: now}
	}
	entry.roll(now)
	entry.CountHour++
	entry.CountDay++

	if err := l.store.Put(ctx, key, entry); err != nil {
		return fmt.Errorf("ratelimit increment: %w", err)
	}
	return nil
}

// Reset forgets the pair entirely.
func (l *Limiter) Reset(ctx context.Context, accountID, destination string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.store.Delete(ctx, Key(accountID, destination)); err != nil {
		return fmt.Errorf("ratelimit reset: %w", err)
	}
	logrus.WithFields(logrus.Fields{"account_id": accountID, "to": destination}).Info("[RATELIMIT] Counters reset")
	return nil
}

func (l *Limiter) Limits() Limits {
	return l.limits
}
