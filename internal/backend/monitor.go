package backend

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/iisharvard/a2b-sub002/internal/domain"
)

// HealthChecker is the collaborator polled by the Monitor.
type HealthChecker interface {
	CheckHealth(ctx context.Context) (domain.HealthStatus, error)
}

// HealthReport is the last observed backend health.
type HealthReport struct {
	Status    domain.HealthStatus `json:"status"`
	Healthy   bool                `json:"healthy"`
	Error     string              `json:"error,omitempty"`
	CheckedAt time.Time           `json:"checkedAt"`
}

// Monitor polls backend health on a fixed interval for status display.
type Monitor struct {
	Checker  HealthChecker
	Interval time.Duration
	Logger   *slog.Logger
	// OnReport, if set, receives every report after it is recorded.
	OnReport func(HealthReport)

	mu       sync.RWMutex
	last     HealthReport
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewMonitor creates a Monitor. A zero interval defaults to 30 seconds.
func NewMonitor(checker HealthChecker, interval time.Duration, logger *slog.Logger) *Monitor {
	if interval == 0 {
		interval = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		Checker:  checker,
		Interval: interval,
		Logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Check polls the backend once and records the result.
func (m *Monitor) Check(ctx context.Context) HealthReport {
	status, err := m.Checker.CheckHealth(ctx)
	report := HealthReport{Status: status, CheckedAt: time.Now()}
	if err != nil {
		report.Error = err.Error()
		m.Logger.Warn("backend health check failed", "err", err)
	} else {
		report.Healthy = status.Healthy()
		if !report.Healthy {
			m.Logger.Warn("backend reports degraded health", "status", status.Status, "services", status.Services)
		}
	}

	m.mu.Lock()
	m.last = report
	m.mu.Unlock()
	if m.OnReport != nil {
		m.OnReport(report)
	}
	return report
}

// Last returns the most recent report.
func (m *Monitor) Last() HealthReport {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last
}

// Start checks immediately, then spawns a goroutine polling on Interval.
func (m *Monitor) Start(ctx context.Context) {
	m.Check(ctx)
	ticker := time.NewTicker(m.Interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-m.stopCh:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Check(ctx)
			}
		}
	}()
}

// Stop ends polling. Safe to call multiple times.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}
