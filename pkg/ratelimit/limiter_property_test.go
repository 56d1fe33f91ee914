package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// Sending exactly max messages within one hour succeeds; the next is
// denied with a positive retry_after; after the window it succeeds again.
func TestLimiterHourBoundaryProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("limit sends pass, limit+1 is denied until the window elapses", prop.ForAll(
		func(limit int, stepSeconds int) bool {
			ctx := context.Background()
			l, clock := newTestLimiter(limit, limit*10)
			step := time.Duration(stepSeconds) * time.Second

			for i := 0; i < limit; i++ {
				if l.Check(ctx, "acct", "dest") != nil {
					return false
				}
				if l.Increment(ctx, "acct", "dest") != nil {
					return false
				}
				clock.Advance(step)
			}

			var limitErr *LimitError
			if !errors.As(l.Check(ctx, "acct", "dest"), &limitErr) || limitErr.RetryAfter <= 0 {
				return false
			}

			clock.Advance(time.Hour)
			return l.Check(ctx, "acct", "dest") == nil
		},
		gen.IntRange(1, 50),
		gen.IntRange(0, 60),
	))

	properties.TestingRun(t)
}

// Exhausting one pair never affects another destination or another account.
func TestLimiterIndependenceProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	nonEmpty := gen.AlphaString().SuchThat(func(s string) bool {
		return len(s) > 0 && len(s) <= 20
	})

	properties.Property("limits are keyed per (account, destination)", prop.ForAll(
		func(account, destA, destB string) bool {
			if destA == destB {
				return true
			}
			ctx := context.Background()
			l, _ := newTestLimiter(3, 30)

			for i := 0; i < 3; i++ {
				_ = l.Increment(ctx, account, destA)
			}

			return errors.Is(l.Check(ctx, account, destA), ErrRateLimited) &&
				l.Check(ctx, account, destB) == nil &&
				l.Check(ctx, account+"-other", destA) == nil
		},
		nonEmpty, nonEmpty, nonEmpty,
	))

	properties.TestingRun(t)
}
