package profile

import (
	"context"
	"errors"

	"github.com/openidx/hijackguard/internal/common/resilience"
)

// GuardedRepository routes lookups through a circuit breaker so a failing
// backing store is shed quickly. A miss is an answer, not a failure, and
// never trips the breaker.
type GuardedRepository struct {
	next    Repository
	breaker *resilience.CircuitBreaker
}

// NewGuardedRepository wraps next with breaker
func NewGuardedRepository(next Repository, breaker *resilience.CircuitBreaker) *GuardedRepository {
	return &GuardedRepository{next: next, breaker: breaker}
}

// Get loads a profile through the breaker. ErrNotFound is passed back
// without counting as a failure.
func (g *GuardedRepository) Get(ctx context.Context, userID string) (*UserProfile, error) {
	var (
		p       *UserProfile
		missErr error
	)
	err := g.breaker.Execute(func() error {
		var err error
		p, err = g.next.Get(ctx, userID)
		if errors.Is(err, ErrNotFound) {
			missErr = err
			return nil
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	if missErr != nil {
		return nil, missErr
	}
	return p, nil
}
