package middleware

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Metrics stores application counters. It also records provider attempts
// made by the fallback chain.
type Metrics struct {
	RequestsTotal      uint64
	RequestsInProgress uint64
	RequestsSuccess    uint64
	RequestsFailed     uint64
	AnalysesTotal      uint64
	AnalysesFailed     uint64
	Fallbacks          uint64
	StartTime          time.Time

	mu       sync.Mutex
	attempts map[string]*providerCounters
}

type providerCounters struct {
	calls    uint64
	failures uint64
}

func NewMetrics() *Metrics {
	return &Metrics{
		StartTime: time.Now(),
		attempts:  make(map[string]*providerCounters),
	}
}

// RecordAttempt counts one provider call.
func (m *Metrics) RecordAttempt(provider string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pc, ok := m.attempts[provider]
	if !ok {
		pc = &providerCounters{}
		m.attempts[provider] = pc
	}
	pc.calls++
	if err != nil {
		pc.failures++
	}
}

// RecordFallback counts a call to a provider other than the first.
func (m *Metrics) RecordFallback() {
	atomic.AddUint64(&m.Fallbacks, 1)
}

// RecordAnalysis counts a finished analysis.
func (m *Metrics) RecordAnalysis(err error) {
	atomic.AddUint64(&m.AnalysesTotal, 1)
	if err != nil {
		atomic.AddUint64(&m.AnalysesFailed, 1)
	}
}

// Snapshot returns current metrics
func (m *Metrics) Snapshot() map[string]interface{} {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	m.mu.Lock()
	providers := make(map[string]interface{}, len(m.attempts))
	for name, pc := range m.attempts {
		providers[name] = map[string]uint64{
			"calls":    pc.calls,
			"failures": pc.failures,
		}
	}
	m.mu.Unlock()

	return map[string]interface{}{
		"requests_total":       atomic.LoadUint64(&m.RequestsTotal),
		"requests_in_progress": atomic.LoadUint64(&m.RequestsInProgress),
		"requests_success":     atomic.LoadUint64(&m.RequestsSuccess),
		"requests_failed":      atomic.LoadUint64(&m.RequestsFailed),
		"analyses_total":       atomic.LoadUint64(&m.AnalysesTotal),
		"analyses_failed":      atomic.LoadUint64(&m.AnalysesFailed),
		"fallbacks":            atomic.LoadUint64(&m.Fallbacks),
		"providers":            providers,
		"uptime_seconds":       time.Since(m.StartTime).Seconds(),
		"memory": map[string]interface{}{
			"alloc_bytes":       mem.Alloc,
			"total_alloc_bytes": mem.TotalAlloc,
			"sys_bytes":         mem.Sys,
			"num_gc":            mem.NumGC,
		},
		"goroutines": runtime.NumGoroutine(),
	}
}

// Middleware tracks request metrics
func (m *Metrics) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		atomic.AddUint64(&m.RequestsTotal, 1)
		atomic.AddUint64(&m.RequestsInProgress, 1)
		defer atomic.AddUint64(&m.RequestsInProgress, ^uint64(0))

		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}
		if status >= 200 && status < 400 {
			atomic.AddUint64(&m.RequestsSuccess, 1)
		} else {
			atomic.AddUint64(&m.RequestsFailed, 1)
		}
		return err
	}
}

// Handler returns metrics as JSON
func (m *Metrics) Handler(c *fiber.Ctx) error {
	return c.JSON(m.Snapshot())
}
