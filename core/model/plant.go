package model

import "strings"

// PlantStatus is the operating state reported for a plant.
type PlantStatus string

const (
	StatusIdle    PlantStatus = "idle"
	StatusRunning PlantStatus = "running"
	StatusDown    PlantStatus = "down"
)

// ParseStatus converts s into a PlantStatus. An empty value maps to
// StatusIdle. Matching is case-insensitive.
func ParseStatus(s string) (PlantStatus, error) {
	switch PlantStatus(strings.ToLower(strings.TrimSpace(s))) {
	case "", StatusIdle:
		return StatusIdle, nil
	case StatusRunning:
		return StatusRunning, nil
	case StatusDown:
		return StatusDown, nil
	default:
		return "", &ValidationError{Field: "status", Value: s, Reason: "must be one of idle, running, down"}
	}
}

// String returns the wire representation of the status.
func (s PlantStatus) String() string { return string(s) }

// Plant represents a generation unit managed by the registry.
type Plant struct {
	ID          int         `json:"id"`
	Name        string      `json:"name"`
	MaxCapacity float64     `json:"max_capacity"` // kW
	MinCapacity float64     `json:"min_capacity"` // kW, informational only
	Status      PlantStatus `json:"status"`
}

// Active reports whether the plant takes part in aggregation and dispatch.
func (p Plant) Active() bool {
	return p.Status != StatusDown
}

// Validate checks the capacity bounds and status of the plant and normalizes
// an empty status to idle.
func (p *Plant) Validate() error {
	if !isFinite(p.MaxCapacity) {
		return &ValidationError{Field: "max_capacity", Value: p.MaxCapacity, Reason: "must be a finite number"}
	}
	if !(p.MaxCapacity > 0) {
		return &ValidationError{Field: "max_capacity", Value: p.MaxCapacity, Reason: "must be greater than 0"}
	}
	if !isFinite(p.MinCapacity) {
		return &ValidationError{Field: "min_capacity", Value: p.MinCapacity, Reason: "must be a finite number"}
	}
	if !(p.MinCapacity >= 0) {
		return &ValidationError{Field: "min_capacity", Value: p.MinCapacity, Reason: "must be greater than or equal to 0"}
	}
	st, err := ParseStatus(string(p.Status))
	if err != nil {
		return err
	}
	p.Status = st
	return nil
}
