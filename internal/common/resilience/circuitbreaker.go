// Package resilience provides a circuit breaker for calls to backing stores.
package resilience

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// ErrCircuitOpen is returned without calling through while a breaker is open
var ErrCircuitOpen = errors.New("circuit breaker open")

// CircuitState represents the state of a circuit breaker
type CircuitState string

const (
	StateClosed   CircuitState = "closed"
	StateOpen     CircuitState = "open"
	StateHalfOpen CircuitState = "half-open"
)

var (
	cbStateGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "hijackguard",
			Name:      "circuit_breaker_state",
			Help:      "Current state of circuit breaker (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	cbRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hijackguard",
			Name:      "circuit_breaker_requests_total",
			Help:      "Requests through circuit breaker by result",
		},
		[]string{"name", "result"},
	)
)

var stateValues = map[CircuitState]float64{
	StateClosed:   0,
	StateHalfOpen: 1,
	StateOpen:     2,
}

// CircuitBreakerConfig configures a CircuitBreaker
type CircuitBreakerConfig struct {
	Name         string
	Threshold    int           // consecutive failures before opening
	ResetTimeout time.Duration // how long to stay open before a trial call
	Logger       *zap.Logger
}

// CircuitBreaker stops calling a failing dependency after Threshold
// consecutive failures and lets one trial call through after ResetTimeout.
type CircuitBreaker struct {
	mu           sync.Mutex
	name         string
	failures     int
	threshold    int
	resetTimeout time.Duration
	openedAt     time.Time
	state        CircuitState
	trialRunning bool
	now          func() time.Time
	logger       *zap.Logger
}

// NewCircuitBreaker creates a closed CircuitBreaker
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	threshold := cfg.Threshold
	if threshold <= 0 {
		threshold = 1
	}
	cbStateGauge.WithLabelValues(cfg.Name).Set(0)
	return &CircuitBreaker{
		name:         cfg.Name,
		threshold:    threshold,
		resetTimeout: cfg.ResetTimeout,
		state:        StateClosed,
		now:          time.Now,
		logger:       log.With(zap.String("breaker", cfg.Name)),
	}
}

// Name returns the breaker name
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// Execute runs fn unless the circuit is open. Only one trial call runs while
// half-open; concurrent callers are rejected until it completes.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.admit(); err != nil {
		cbRequestsTotal.WithLabelValues(cb.name, "rejected").Inc()
		return err
	}

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.trialRunning = false

	if err != nil {
		cb.failures++
		if cb.state == StateHalfOpen || cb.failures >= cb.threshold {
			cb.openedAt = cb.now()
			cb.transition(StateOpen)
			cb.logger.Error("Circuit breaker opened",
				zap.Int("failures", cb.failures),
				zap.Duration("reset_timeout", cb.resetTimeout),
				zap.Error(err))
		}
		cbRequestsTotal.WithLabelValues(cb.name, "failure").Inc()
		return err
	}

	if cb.state == StateHalfOpen {
		cb.logger.Info("Circuit breaker recovered")
	}
	cb.failures = 0
	cb.transition(StateClosed)
	cbRequestsTotal.WithLabelValues(cb.name, "success").Inc()
	return nil
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.openedAt) < cb.resetTimeout {
			return fmt.Errorf("%w: %s", ErrCircuitOpen, cb.name)
		}
		cb.transition(StateHalfOpen)
		cb.trialRunning = true
	case StateHalfOpen:
		if cb.trialRunning {
			return fmt.Errorf("%w: %s (trial in progress)", ErrCircuitOpen, cb.name)
		}
		cb.trialRunning = true
	}
	return nil
}

// must be called with cb.mu held
func (cb *CircuitBreaker) transition(to CircuitState) {
	if cb.state == to {
		return
	}
	cb.logger.Debug("Circuit breaker transition",
		zap.String("from", string(cb.state)),
		zap.String("to", string(to)))
	cb.state = to
	cbStateGauge.WithLabelValues(cb.name).Set(stateValues[to])
}

// State returns the current state of the circuit breaker
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset closes the breaker and clears its failure count
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
	cb.trialRunning = false
	cb.openedAt = time.Time{}
	cb.transition(StateClosed)
}
