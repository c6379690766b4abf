package health

import (
	"context"
	"fmt"
	"time"
)

// Checkable is implemented by store and broker adapters.
type Checkable interface {
	HealthCheck(ctx context.Context) error
}

// CheckableFunc adapts a function to Checkable.
type CheckableFunc func(ctx context.Context) error

// HealthCheck calls f.
func (f CheckableFunc) HealthCheck(ctx context.Context) error {
	return f(ctx)
}

// AdapterChecker runs a Checkable under a timeout. A check that succeeds but
// takes longer than the slow threshold reports StatusDegraded.
type AdapterChecker struct {
	name    string
	adapter Checkable
	timeout time.Duration
	slow    time.Duration
}

// NewAdapterChecker creates a checker; a zero timeout means five seconds and
// a zero slow threshold disables degraded reporting.
func NewAdapterChecker(name string, adapter Checkable, timeout, slow time.Duration) *AdapterChecker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &AdapterChecker{name: name, adapter: adapter, timeout: timeout, slow: slow}
}

// NewStoreChecker checks the record store. Pings slower than one second
// degrade the service.
func NewStoreChecker(name string, store Checkable) *AdapterChecker {
	return NewAdapterChecker(name, store, 5*time.Second, time.Second)
}

// NewMessageBrokerChecker checks an ingest transport.
func NewMessageBrokerChecker(name string, broker Checkable) *AdapterChecker {
	return NewAdapterChecker(name, broker, 5*time.Second, 2*time.Second)
}

func (c *AdapterChecker) Name() string {
	return c.name
}

func (c *AdapterChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.adapter.HealthCheck(checkCtx)
	elapsed := time.Since(start)
	result := CheckResult{
		Name:      c.name,
		Status:    StatusHealthy,
		Message:   "OK",
		Timestamp: time.Now(),
		Duration:  elapsed,
	}
	switch {
	case err != nil:
		result.Status = StatusUnhealthy
		result.Message = ""
		result.Error = err.Error()
	case c.slow > 0 && elapsed > c.slow:
		result.Status = StatusDegraded
		result.Message = fmt.Sprintf("slow response: %s exceeds %s", elapsed.Round(time.Millisecond), c.slow)
	}
	return result
}
