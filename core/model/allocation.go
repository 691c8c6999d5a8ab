package model

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
)

// DispatchRequest carries the demand to be covered, in kW.
type DispatchRequest struct {
	Demand float64 `json:"demand"`
}

// Validate rejects non-positive and non-finite demand.
func (r DispatchRequest) Validate() error {
	if !isFinite(r.Demand) {
		return &ValidationError{Field: "demand", Value: r.Demand, Reason: "must be a finite number"}
	}
	if !(r.Demand > 0) {
		return &ValidationError{Field: "demand", Value: r.Demand, Reason: "must be greater than 0"}
	}
	return nil
}

func isFinite(x float64) bool {
	return !math.IsInf(x, 0) && !math.IsNaN(x)
}

// Allocations maps a plant id to the power assigned to it in kW. JSON object
// keys are the decimal plant ids.
type Allocations map[int]float64

// IDs returns the plant ids in ascending order.
func (a Allocations) IDs() []int {
	ids := make([]int, 0, len(a))
	for id := range a {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// MarshalJSON always emits an object, even for a nil map.
func (a Allocations) MarshalJSON() ([]byte, error) {
	out := make(map[string]float64, len(a))
	for id, kw := range a {
		out[strconv.Itoa(id)] = kw
	}
	return json.Marshal(out)
}

func (a *Allocations) UnmarshalJSON(data []byte) error {
	var raw map[string]float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	res := make(Allocations, len(raw))
	for k, kw := range raw {
		id, err := strconv.Atoi(k)
		if err != nil {
			return fmt.Errorf("allocation key %q: %w", k, err)
		}
		res[id] = kw
	}
	*a = res
	return nil
}

// DispatchAllocation is the outcome of a single dispatch computation.
type DispatchAllocation struct {
	Allocations     Allocations `json:"allocations"`
	TotalDispatched float64     `json:"total_dispatched"`
	UnmetDemand     float64     `json:"unmet_demand"`
}
