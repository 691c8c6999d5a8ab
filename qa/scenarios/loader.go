package scenarios

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type PlantDef struct {
	Name        string  `yaml:"name"`
	MaxCapacity float64 `yaml:"max_capacity"`
	MinCapacity float64 `yaml:"min_capacity"`
	Status      string  `yaml:"status"`
	// Rejected is the field named by the expected ValidationError, if any.
	Rejected string `yaml:"rejected,omitempty"`
}

type DispatchDef struct {
	Demand      float64         `yaml:"demand"`
	Rejected    string          `yaml:"rejected,omitempty"`
	Allocations map[int]float64 `yaml:"allocations"`
	Dispatched  float64         `yaml:"total_dispatched"`
	Unmet       float64         `yaml:"unmet_demand"`
	// FailPlants makes the setpoint publisher reject these plants.
	FailPlants []int `yaml:"fail_plants,omitempty"`
	// Setpoints lists the setpoints expected to reach the publisher.
	Setpoints map[int]float64 `yaml:"setpoints,omitempty"`
}

type Expected struct {
	Plants    int     `yaml:"plants"`
	Aggregate float64 `yaml:"aggregate"`
}

type Scenario struct {
	Name        string        `yaml:"name"`
	Description string        `yaml:"description,omitempty"`
	Plants      []PlantDef    `yaml:"plants"`
	Dispatches  []DispatchDef `yaml:"dispatches"`
	Expected    Expected      `yaml:"expected"`
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	if err := sc.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &sc, nil
}

// validate catches scenario files that would silently assert nothing.
func (sc *Scenario) validate() error {
	if sc.Name == "" {
		return fmt.Errorf("scenario name is required")
	}
	for i, d := range sc.Dispatches {
		if d.Rejected == "" && d.Allocations == nil {
			return fmt.Errorf("dispatch %d: expected allocations or rejected field", i)
		}
	}
	return nil
}
