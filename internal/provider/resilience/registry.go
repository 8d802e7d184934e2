package resilience

import (
	"sort"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Status summarises a provider's circuit for health reporting.
type Status int

const (
	// StatusHealthy means the circuit is closed.
	StatusHealthy Status = iota
	// StatusDegraded means the circuit is half-open and probing.
	StatusDegraded
	// StatusUnhealthy means the circuit is open and calls fail fast.
	StatusUnhealthy
)

func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	default:
		return "unhealthy"
	}
}

// CircuitReporter exposes a circuit breaker's state. *Client implements it.
type CircuitReporter interface {
	CircuitBreakerState() gobreaker.State
	CircuitBreakerCounts() gobreaker.Counts
}

// ProviderHealth is a point-in-time view of one provider. Zero times mean
// the event has not happened since registration.
type ProviderHealth struct {
	Name          string
	CircuitState  gobreaker.State
	Counts        gobreaker.Counts
	LastSuccessAt time.Time
	LastFailureAt time.Time
	LastError     string
}

// Status derives the provider status from its circuit state.
func (h ProviderHealth) Status() Status {
	switch h.CircuitState {
	case gobreaker.StateClosed:
		return StatusHealthy
	case gobreaker.StateHalfOpen:
		return StatusDegraded
	default:
		return StatusUnhealthy
	}
}

// Registry tracks upstream providers and the outcome of their last calls.
// Clients register themselves when ClientConfig.Registry is set.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]*providerEntry
	now       func() time.Time
}

type providerEntry struct {
	circuit       CircuitReporter
	lastSuccessAt time.Time
	lastFailureAt time.Time
	lastError     string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]*providerEntry),
		now:       time.Now,
	}
}

// Register adds or replaces a provider. Replacing resets its history.
func (r *Registry) Register(name string, circuit CircuitReporter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = &providerEntry{circuit: circuit}
}

// RecordSuccess notes a successful call. Unknown providers are ignored.
func (r *Registry) RecordSuccess(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.providers[name]; ok {
		p.lastSuccessAt = r.now()
	}
}

// RecordFailure notes a failed call and its error. Unknown providers are
// ignored.
func (r *Registry) RecordFailure(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.providers[name]; ok {
		p.lastFailureAt = r.now()
		if err != nil {
			p.lastError = err.Error()
		}
	}
}

// Health returns the health of one provider.
func (r *Registry) Health(name string) (ProviderHealth, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return ProviderHealth{}, false
	}
	return p.health(name), true
}

// All returns the health of every provider, sorted by name.
func (r *Registry) All() []ProviderHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]ProviderHealth, 0, len(r.providers))
	for name, p := range r.providers {
		all = append(all, p.health(name))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return all
}

// Healthy reports whether no provider has an open circuit.
func (r *Registry) Healthy() bool {
	for _, h := range r.All() {
		if h.Status() == StatusUnhealthy {
			return false
		}
	}
	return true
}

func (p *providerEntry) health(name string) ProviderHealth {
	return ProviderHealth{
		Name:          name,
		CircuitState:  p.circuit.CircuitBreakerState(),
		Counts:        p.circuit.CircuitBreakerCounts(),
		LastSuccessAt: p.lastSuccessAt,
		LastFailureAt: p.lastFailureAt,
		LastError:     p.lastError,
	}
}
