// Package registry keeps the set of known plants in memory. Identifiers are
// assigned sequentially starting at 1 and are never reused.
package registry

import (
	"sync"

	"gonum.org/v1/gonum/floats"

	"github.com/kilianp07/vpp/core/events"
	"github.com/kilianp07/vpp/core/logger"
	"github.com/kilianp07/vpp/core/model"
	"github.com/kilianp07/vpp/internal/eventbus"
)

// Registry exposes plant registration and read access.
type Registry interface {
	Register(name string, maxCapacity, minCapacity float64, status model.PlantStatus) (model.Plant, error)
	List() []model.Plant
	Get(id int) (model.Plant, error)
	Aggregate() float64
	Active() []model.Plant
}

// MemoryRegistry is the in-memory Registry implementation. It is safe for
// concurrent use.
type MemoryRegistry struct {
	mu     sync.RWMutex
	plants map[int]model.Plant
	order  []int
	nextID int
	log    logger.Logger
	bus    *eventbus.TypedBus[events.PlantRegistered]
}

// Option customizes a MemoryRegistry.
type Option func(*MemoryRegistry)

// WithLogger sets the logger used for registration messages.
func WithLogger(l logger.Logger) Option {
	return func(r *MemoryRegistry) {
		if l != nil {
			r.log = l
		}
	}
}

// WithBus publishes a PlantRegistered event for each stored plant.
func WithBus(b *eventbus.TypedBus[events.PlantRegistered]) Option {
	return func(r *MemoryRegistry) { r.bus = b }
}

// New returns an empty registry.
func New(opts ...Option) *MemoryRegistry {
	r := &MemoryRegistry{
		plants: make(map[int]model.Plant),
		nextID: 1,
		log:    logger.NopLogger{},
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Register validates the plant attributes, assigns the next identifier and
// stores the plant. On validation failure the registry is left untouched.
func (r *MemoryRegistry) Register(name string, maxCapacity, minCapacity float64, status model.PlantStatus) (model.Plant, error) {
	p := model.Plant{Name: name, MaxCapacity: maxCapacity, MinCapacity: minCapacity, Status: status}
	if err := p.Validate(); err != nil {
		r.log.Warnf("rejected plant %q: %v", name, err)
		return model.Plant{}, err
	}

	r.mu.Lock()
	p.ID = r.nextID
	r.nextID++
	r.plants[p.ID] = p
	r.order = append(r.order, p.ID)
	r.mu.Unlock()

	r.log.Infof("registered plant %d %q (%.2f kW, %s)", p.ID, p.Name, p.MaxCapacity, p.Status)
	if r.bus != nil {
		r.bus.Publish(events.PlantRegistered{Plant: p})
	}
	return p, nil
}

// List returns every plant in registration order.
func (r *MemoryRegistry) List() []model.Plant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := make([]model.Plant, 0, len(r.order))
	for _, id := range r.order {
		res = append(res, r.plants[id])
	}
	return res
}

// Get returns the plant with the given id or a *model.NotFoundError.
func (r *MemoryRegistry) Get(id int) (model.Plant, error) {
	r.mu.RLock()
	p, ok := r.plants[id]
	r.mu.RUnlock()
	if !ok {
		return model.Plant{}, &model.NotFoundError{ID: id}
	}
	return p, nil
}

// Active returns the plants whose status is not down, in registration order.
func (r *MemoryRegistry) Active() []model.Plant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var res []model.Plant
	for _, id := range r.order {
		if p := r.plants[id]; p.Active() {
			res = append(res, p)
		}
	}
	return res
}

// Aggregate returns the total max capacity of the active plants.
func (r *MemoryRegistry) Aggregate() float64 {
	return TotalCapacity(r.Active())
}

// TotalCapacity sums the max capacity of the given plants.
func TotalCapacity(plants []model.Plant) float64 {
	if len(plants) == 0 {
		return 0
	}
	caps := make([]float64, len(plants))
	for i, p := range plants {
		caps[i] = p.MaxCapacity
	}
	return floats.Sum(caps)
}
