package dispatch

import (
	"math"
	"sort"

	"github.com/kilianp07/vpp/core/model"
)

// Dispatcher distributes a demand over a set of active plants. Implementations
// must be pure: no registry access and no side effects.
type Dispatcher interface {
	Allocate(plants []model.Plant, demand float64) model.DispatchAllocation
}

// MeritOrderDispatcher fills the largest plants first. Plants with equal max
// capacity are ordered by ascending id. Every plant passed in appears in the
// result, plants reached after the demand is covered get 0.
type MeritOrderDispatcher struct{}

// Allocate implements Dispatcher.
func (MeritOrderDispatcher) Allocate(plants []model.Plant, demand float64) model.DispatchAllocation {
	res := model.DispatchAllocation{Allocations: make(model.Allocations, len(plants))}
	if len(plants) == 0 {
		res.UnmetDemand = demand
		return res
	}

	order := MeritOrder(plants)
	remaining := demand
	for _, p := range order {
		if remaining <= 0 {
			res.Allocations[p.ID] = 0
			continue
		}
		kw := math.Min(p.MaxCapacity, remaining)
		res.Allocations[p.ID] = kw
		remaining -= kw
	}
	if remaining < 0 {
		remaining = 0
	}
	res.TotalDispatched = demand - remaining
	res.UnmetDemand = remaining
	return res
}

// MeritOrder returns a copy of plants sorted by max capacity descending, then
// id ascending.
func MeritOrder(plants []model.Plant) []model.Plant {
	order := append([]model.Plant(nil), plants...)
	sort.SliceStable(order, func(i, j int) bool {
		if order[i].MaxCapacity != order[j].MaxCapacity {
			return order[i].MaxCapacity > order[j].MaxCapacity
		}
		return order[i].ID < order[j].ID
	})
	return order
}
