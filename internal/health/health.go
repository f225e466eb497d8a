package health

import (
	"context"
	"sync"
	"time"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
)

type ComponentHealth struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

type Report struct {
	Status     Status                     `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Components map[string]ComponentHealth `json:"components"`
}

func (r Report) Healthy() bool {
	return r.Status == StatusHealthy
}

type Checker interface {
	Name() string
	Check(ctx context.Context) ComponentHealth
}

// Pinger is satisfied by the SQL and Redis adapters.
type Pinger interface {
	Ping(ctx context.Context) error
}

type PingChecker struct {
	name   string
	pinger Pinger
}

func NewPingChecker(name string, pinger Pinger) *PingChecker {
	return &PingChecker{name: name, pinger: pinger}
}

func (p *PingChecker) Name() string {
	return p.name
}

func (p *PingChecker) Check(ctx context.Context) ComponentHealth {
	start := time.Now()
	err := p.pinger.Ping(ctx)
	latency := time.Since(start)

	if err != nil {
		return ComponentHealth{
			Status:  StatusUnhealthy,
			Message: err.Error(),
			Latency: latency.String(),
		}
	}
	return ComponentHealth{Status: StatusHealthy, Latency: latency.String()}
}

// Registry runs every registered checker; one unhealthy component makes the
// whole report unhealthy.
type Registry struct {
	mu       sync.RWMutex
	checkers []Checker
	timeout  time.Duration
}

func NewRegistry(timeout time.Duration, checkers ...Checker) *Registry {
	return &Registry{checkers: checkers, timeout: timeout}
}

func (r *Registry) Register(c Checker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkers = append(r.checkers, c)
}

func (r *Registry) Check(ctx context.Context) Report {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	r.mu.RLock()
	checkers := r.checkers
	r.mu.RUnlock()

	report := Report{
		Status:     StatusHealthy,
		Timestamp:  time.Now().UTC(),
		Components: make(map[string]ComponentHealth, len(checkers)),
	}
	for _, c := range checkers {
		h := c.Check(ctx)
		report.Components[c.Name()] = h
		if h.Status == StatusUnhealthy {
			report.Status = StatusUnhealthy
		}
	}
	return report
}
