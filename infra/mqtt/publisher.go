package mqtt

import (
	"fmt"
	"sync"

	coremqtt "github.com/kilianp07/vpp/core/mqtt"
)

// Client mirrors the core mqtt.Client interface.
type Client = coremqtt.Client

// MockPublisher is a simple publisher used in tests.
type MockPublisher struct {
	Messages map[int]float64
	FailIDs  map[int]bool
	mu       sync.Mutex
}

// NewMockPublisher creates a new MockPublisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{
		Messages: make(map[int]float64),
		FailIDs:  make(map[int]bool),
	}
}

// SendSetpoint records the setpoint or returns an error if configured to fail.
func (m *MockPublisher) SendSetpoint(dispatchID string, plantID int, powerKW float64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailIDs[plantID] {
		return "", fmt.Errorf("%w: plant %d", coremqtt.ErrRetriesExhausted, plantID)
	}
	m.Messages[plantID] = powerKW
	return fmt.Sprintf("cmd-%s-%d", dispatchID, plantID), nil
}

// Sent returns a copy of the recorded setpoints.
func (m *MockPublisher) Sent() map[int]float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[int]float64, len(m.Messages))
	for k, v := range m.Messages {
		out[k] = v
	}
	return out
}
