package events

import (
	"time"

	"github.com/kilianp07/vpp/core/model"
)

// PlantRegistered is published after a plant has been stored in the registry.
type PlantRegistered struct {
	Plant model.Plant
}

// DispatchCompleted is published after each successful dispatch computation.
type DispatchCompleted struct {
	DispatchID string
	Demand     float64
	Allocation model.DispatchAllocation
	Duration   time.Duration
	Time       time.Time
}
