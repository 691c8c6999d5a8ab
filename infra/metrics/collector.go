package metrics

import (
	"context"
	"time"

	"github.com/kilianp07/vpp/core/events"
	coremetrics "github.com/kilianp07/vpp/core/metrics"
	"github.com/kilianp07/vpp/infra/logger"
	"github.com/kilianp07/vpp/internal/eventbus"
)

// StartPlantCollector subscribes to registry events and forwards them to the
// sink. After each registration the available capacity reported by capacity
// is recorded as well. It stops when the context is canceled or the bus is
// closed.
func StartPlantCollector(ctx context.Context, bus *eventbus.TypedBus[events.PlantRegistered], capacity func() float64, sink coremetrics.MetricsSink, log logger.Logger) {
	if bus == nil || sink == nil {
		return
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	plants, _ := sink.(coremetrics.PlantRecorder)
	capRec, _ := sink.(coremetrics.CapacityRecorder)
	if plants == nil && capRec == nil {
		return
	}
	if capRec != nil && capacity != nil {
		if err := capRec.RecordAvailableCapacity(capacity()); err != nil {
			log.Errorf("record capacity: %v", err)
		}
	}
	sub := bus.Subscribe()
	go func() {
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if plants != nil {
					if err := plants.RecordPlantRegistered(coremetrics.PlantEvent{Plant: ev.Plant, Time: time.Now()}); err != nil {
						log.Errorf("record plant %d: %v", ev.Plant.ID, err)
					}
				}
				if capRec != nil && capacity != nil {
					if err := capRec.RecordAvailableCapacity(capacity()); err != nil {
						log.Errorf("record capacity: %v", err)
					}
				}
			}
		}
	}()
}
