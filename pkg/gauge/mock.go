package gauge

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/solab/hvgagent/pkg/config"
)

// Mock simulates an HVG-2020 gauge for testing and development. It answers
// every probe positively and produces a base pressure with deterministic
// noise on top.
type Mock struct {
	cfg *config.MockConfig

	mu        sync.Mutex
	connected bool
	start     time.Time
}

// NewMock creates a simulated gauge. A nil config gets sensible defaults.
func NewMock(cfg *config.MockConfig) *Mock {
	if cfg == nil {
		cfg = &config.MockConfig{
			BasePressure: 1013.25,
			Noise:        0.5,
		}
	}

	return &Mock{
		cfg:       cfg,
		connected: true,
		start:     time.Now(),
	}
}

// ReadPressure returns a simulated pressure reading in mbar.
func (m *Mock) ReadPressure() (Reading, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return Reading{}, ErrClosed
	}

	now := time.Now()
	elapsed := now.Sub(m.start).Seconds()
	noise := (math.Sin(elapsed*1.7) + math.Cos(elapsed*2.3)) * m.cfg.Noise * 0.5
	value := m.cfg.BasePressure + noise

	return Reading{
		Value:     value,
		Raw:       fmt.Sprintf("%.2f", value),
		Timestamp: now,
	}, nil
}

// CheckConnection always succeeds, reopening the simulated channel if it
// was closed.
func (m *Mock) CheckConnection() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = true
	return true
}

// Close closes the simulated channel. Safe to call more than once.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
	return nil
}

// IsConnected reports whether the simulated channel is open.
func (m *Mock) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}
