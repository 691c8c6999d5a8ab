package main

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// SimulatedPlant follows the setpoints it receives within its rated power.
type SimulatedPlant struct {
	ID    int
	MaxKW float64
	Ramp  float64
	Noise float64

	mu       sync.Mutex
	setpoint float64
	output   float64
	rng      *rand.Rand
}

// NewSimulatedPlant creates an idle plant.
func NewSimulatedPlant(spec PlantSpec, ramp, noise float64, seed int64) *SimulatedPlant {
	return &SimulatedPlant{
		ID:    spec.ID,
		MaxKW: spec.MaxKW,
		Ramp:  ramp,
		Noise: noise,
		rng:   rand.New(rand.NewSource(seed)),
	}
}

// ApplySetpoint stores the new target, clamped to [0, MaxKW].
func (p *SimulatedPlant) ApplySetpoint(kw float64) float64 {
	kw = math.Max(0, math.Min(kw, p.MaxKW))
	p.mu.Lock()
	p.setpoint = kw
	p.mu.Unlock()
	return kw
}

// Setpoint returns the current target.
func (p *SimulatedPlant) Setpoint() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.setpoint
}

// Step advances the plant by dt and returns the measured output.
func (p *SimulatedPlant) Step(dt time.Duration) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	diff := p.setpoint - p.output
	if p.Ramp > 0 {
		limit := p.Ramp * dt.Seconds()
		diff = math.Max(-limit, math.Min(diff, limit))
	}
	p.output += diff
	measured := p.output
	if p.Noise > 0 && measured > 0 {
		measured *= 1 + p.rng.NormFloat64()*p.Noise
	}
	return math.Max(0, math.Min(measured, p.MaxKW))
}
