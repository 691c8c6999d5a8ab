package metrics

import (
	"time"

	"github.com/kilianp07/vpp/core/model"
)

// PlantAllocation is the share of a dispatch assigned to a single plant.
type PlantAllocation struct {
	PlantID     int
	PlantName   string
	AllocatedKW float64
	MaxCapacity float64
}

// DispatchSummary describes one completed dispatch.
type DispatchSummary struct {
	DispatchID      string
	Demand          float64
	TotalDispatched float64
	UnmetDemand     float64
	Plants          []PlantAllocation
	Duration        time.Duration
	Time            time.Time
}

// MetricsSink records dispatch results for observability purposes.
type MetricsSink interface {
	RecordDispatch(s DispatchSummary) error
}

// PlantEvent captures a registry change.
type PlantEvent struct {
	Plant model.Plant
	Time  time.Time
}

// PlantRecorder records plant registrations.
type PlantRecorder interface {
	RecordPlantRegistered(ev PlantEvent) error
}

// CapacityRecorder records the aggregate capacity of active plants.
type CapacityRecorder interface {
	RecordAvailableCapacity(kw float64) error
}

// PlantOutput is a power reading reported by a plant.
type PlantOutput struct {
	PlantID  int
	OutputKW float64
	Time     time.Time
}

// PlantOutputRecorder records telemetry readings reported by plants.
type PlantOutputRecorder interface {
	RecordPlantOutput(o PlantOutput) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordDispatch(DispatchSummary) error   { return nil }
func (NopSink) RecordPlantRegistered(PlantEvent) error { return nil }
func (NopSink) RecordAvailableCapacity(float64) error  { return nil }
func (NopSink) RecordPlantOutput(PlantOutput) error    { return nil }

// Summarize builds a DispatchSummary from an allocation and the plant
// snapshot it was computed from. Plants are listed in ascending id order.
func Summarize(id string, demand float64, alloc model.DispatchAllocation, plants []model.Plant) DispatchSummary {
	byID := make(map[int]model.Plant, len(plants))
	for _, p := range plants {
		byID[p.ID] = p
	}
	s := DispatchSummary{
		DispatchID:      id,
		Demand:          demand,
		TotalDispatched: alloc.TotalDispatched,
		UnmetDemand:     alloc.UnmetDemand,
		Plants:          make([]PlantAllocation, 0, len(alloc.Allocations)),
	}
	for _, pid := range alloc.Allocations.IDs() {
		p := byID[pid]
		s.Plants = append(s.Plants, PlantAllocation{
			PlantID:     pid,
			PlantName:   p.Name,
			AllocatedKW: alloc.Allocations[pid],
			MaxCapacity: p.MaxCapacity,
		})
	}
	return s
}
