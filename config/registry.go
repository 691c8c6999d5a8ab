package config

import (
	"fmt"

	"github.com/kilianp07/vpp/core/model"
)

// PlantSeed describes a plant registered at startup.
type PlantSeed struct {
	Name        string  `json:"name"`
	MaxCapacity float64 `json:"max_capacity"`
	MinCapacity float64 `json:"min_capacity"`
	Status      string  `json:"status"`
}

// RegistryConfig lists the plants loaded into the registry on startup.
type RegistryConfig struct {
	Seed []PlantSeed `json:"seed"`
}

// Validate checks every seed the same way the registry would.
func (c RegistryConfig) Validate() error {
	for i, s := range c.Seed {
		status, err := model.ParseStatus(s.Status)
		if err != nil {
			return fmt.Errorf("registry.seed[%d]: %w", i, err)
		}
		p := model.Plant{Name: s.Name, MaxCapacity: s.MaxCapacity, MinCapacity: s.MinCapacity, Status: status}
		if err := p.Validate(); err != nil {
			return fmt.Errorf("registry.seed[%d]: %w", i, err)
		}
	}
	return nil
}
