package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/vpp/core/dispatch/logging"
	"github.com/kilianp07/vpp/core/events"
	"github.com/kilianp07/vpp/core/logger"
	"github.com/kilianp07/vpp/core/metrics"
	"github.com/kilianp07/vpp/core/model"
	"github.com/kilianp07/vpp/core/monitoring"
	"github.com/kilianp07/vpp/core/mqtt"
	"github.com/kilianp07/vpp/internal/eventbus"
)

// PlantSource provides the snapshot of active plants a dispatch works on.
// It is satisfied by registry.Registry.
type PlantSource interface {
	Active() []model.Plant
}

// Engine runs dispatches against a PlantSource.
type Engine struct {
	source     PlantSource
	dispatcher Dispatcher
	logger     logger.Logger
	metrics    metrics.MetricsSink

	mu        sync.RWMutex
	store     logging.LogStore
	setpoints *setpointPool
	bus       *eventbus.TypedBus[events.DispatchCompleted]

	now   func() time.Time
	newID func() string
}

// NewEngine creates a new engine. A nil sink or logger falls back to no-op
// implementations.
func NewEngine(source PlantSource, dispatcher Dispatcher, sink metrics.MetricsSink, log logger.Logger) (*Engine, error) {
	if source == nil || dispatcher == nil {
		return nil, fmt.Errorf("dispatch: nil parameter provided to NewEngine")
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Engine{
		source:     source,
		dispatcher: dispatcher,
		logger:     log,
		metrics:    sink,
		now:        time.Now,
		newID:      uuid.NewString,
	}, nil
}

// SetLogStore configures the store used to persist dispatch decisions.
func (e *Engine) SetLogStore(store logging.LogStore) {
	e.mu.Lock()
	e.store = store
	e.mu.Unlock()
}

// SetPublisher enables setpoint publication. Setpoints are sent in the
// background by workers goroutines; Dispatch does not wait for them. A
// previously configured publisher is drained and stopped.
func (e *Engine) SetPublisher(p mqtt.Client, workers int) {
	if workers <= 0 {
		workers = 1
	}
	e.mu.Lock()
	prev := e.setpoints
	e.setpoints = newSetpointPool(p, workers, e.logger)
	e.mu.Unlock()
	if prev != nil {
		prev.stop()
	}
}

// FlushSetpoints blocks until every setpoint queued so far has been
// published or has failed.
func (e *Engine) FlushSetpoints() {
	e.mu.RLock()
	pool := e.setpoints
	e.mu.RUnlock()
	if pool != nil {
		pool.wait()
	}
}

// SetBus configures the bus receiving DispatchCompleted events.
func (e *Engine) SetBus(bus *eventbus.TypedBus[events.DispatchCompleted]) {
	e.mu.Lock()
	e.bus = bus
	e.mu.Unlock()
}

// Close drains pending setpoints and releases the log store.
func (e *Engine) Close() error {
	e.mu.Lock()
	store, pool := e.store, e.setpoints
	e.store, e.setpoints = nil, nil
	e.mu.Unlock()
	if pool != nil {
		pool.stop()
	}
	if store != nil {
		return store.Close()
	}
	return nil
}

// Dispatch allocates demand across the active plants. A non-positive or
// non-finite demand returns a *model.ValidationError before any work is done.
// Errors from the metrics sink, log store or publisher are logged and never
// fail the call. Setpoints are only queued; publishing happens after return.
func (e *Engine) Dispatch(ctx context.Context, demand float64) (model.DispatchAllocation, error) {
	if err := (model.DispatchRequest{Demand: demand}).Validate(); err != nil {
		dispatchRequests.WithLabelValues("invalid").Inc()
		e.logger.Warnf("dispatch rejected: %v", err)
		return model.DispatchAllocation{}, err
	}
	start := e.now()
	plants := e.source.Active()
	alloc := e.dispatcher.Allocate(plants, demand)
	id := e.newID()

	e.logger.Infof("dispatch %s: demand %.2f kW over %d plants, dispatched %.2f kW, unmet %.2f kW",
		id, demand, len(plants), alloc.TotalDispatched, alloc.UnmetDemand)
	for _, pid := range alloc.Allocations.IDs() {
		e.logger.Debugw("plant allocation", map[string]any{
			"dispatch_id":  id,
			"plant_id":     pid,
			"allocated_kw": alloc.Allocations[pid],
		})
	}

	e.mu.RLock()
	store, pool, bus := e.store, e.setpoints, e.bus
	e.mu.RUnlock()

	if store != nil {
		rec := logging.LogRecord{
			DispatchID:   id,
			Timestamp:    start,
			Demand:       demand,
			ActivePlants: plantIDs(plants),
			Allocation:   alloc,
		}
		// The audit record outlives a cancelled request.
		if err := store.Append(context.WithoutCancel(ctx), rec); err != nil {
			e.logger.Errorf("dispatch log append: %v", err)
			monitoring.CaptureException(err, map[string]string{"module": "dispatch", "dispatch_id": id})
		}
	}
	if pool != nil {
		e.queueSetpoints(id, alloc, pool)
	}

	elapsed := e.now().Sub(start)
	outcome := "met"
	if alloc.UnmetDemand > 0 {
		outcome = "unmet"
	}
	dispatchRequests.WithLabelValues(outcome).Inc()
	dispatchLatency.Observe(elapsed.Seconds())
	unmetDemand.Set(alloc.UnmetDemand)

	summary := metrics.Summarize(id, demand, alloc, plants)
	summary.Duration = elapsed
	summary.Time = start
	if err := e.metrics.RecordDispatch(summary); err != nil {
		e.logger.Errorf("metrics error: %v", err)
		monitoring.CaptureException(err, map[string]string{"module": "metrics", "dispatch_id": id})
	}
	if bus != nil {
		bus.Publish(events.DispatchCompleted{
			DispatchID: id,
			Demand:     demand,
			Allocation: alloc,
			Duration:   elapsed,
			Time:       start,
		})
	}
	return alloc, nil
}

// queueSetpoints hands every non-zero allocation to the setpoint pool.
func (e *Engine) queueSetpoints(id string, alloc model.DispatchAllocation, pool *setpointPool) {
	for _, pid := range alloc.Allocations.IDs() {
		kw := alloc.Allocations[pid]
		if kw <= 0 {
			continue
		}
		if !pool.enqueue(setpointJob{dispatchID: id, plantID: pid, kw: kw}) {
			setpointFailure.Inc()
			e.logger.Errorf("setpoint for plant %d dropped: publisher queue full or stopped", pid)
		}
	}
}

func plantIDs(plants []model.Plant) []int {
	ids := make([]int, len(plants))
	for i, p := range plants {
		ids[i] = p.ID
	}
	return ids
}
