package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// PlantSpec identifies a simulated plant and its rated power.
type PlantSpec struct {
	ID    int
	MaxKW float64
}

// Config holds parameters for the simulator.
type Config struct {
	Broker      string
	TopicPrefix string
	Plants      []PlantSpec
	Interval    time.Duration
	// RampKWPerSec bounds how fast the output follows the setpoint. Zero
	// means the setpoint is reached immediately.
	RampKWPerSec float64
	// Noise is the relative standard deviation applied to the output.
	Noise   float64
	Verbose bool
}

// Validate checks the simulator parameters.
func (c *Config) Validate() error {
	if c.Broker == "" {
		return fmt.Errorf("broker is required")
	}
	if len(c.Plants) == 0 {
		return fmt.Errorf("at least one plant is required")
	}
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be positive")
	}
	if c.RampKWPerSec < 0 || c.Noise < 0 {
		return fmt.Errorf("ramp and noise must be non-negative")
	}
	seen := make(map[int]bool, len(c.Plants))
	for _, p := range c.Plants {
		if seen[p.ID] {
			return fmt.Errorf("duplicate plant %d", p.ID)
		}
		seen[p.ID] = true
	}
	return nil
}

// ParsePlants reads a comma separated list of id:max_kw pairs.
func ParsePlants(s string) ([]PlantSpec, error) {
	var out []PlantSpec
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		idStr, maxStr, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("invalid plant %q, want id:max_kw", part)
		}
		id, err := strconv.Atoi(idStr)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid plant id %q", idStr)
		}
		maxKW, err := strconv.ParseFloat(maxStr, 64)
		if err != nil || maxKW <= 0 {
			return nil, fmt.Errorf("invalid max power %q for plant %d", maxStr, id)
		}
		out = append(out, PlantSpec{ID: id, MaxKW: maxKW})
	}
	return out, nil
}
