package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/vpp/core/metrics"
)

// PromSink records dispatch results and registry changes in Prometheus metrics.
type PromSink struct {
	allocated  *prometheus.GaugeVec
	dispatched *prometheus.CounterVec
	demand     prometheus.Gauge
	available  prometheus.Gauge
	registered *prometheus.CounterVec
	output     *prometheus.GaugeVec
}

// NewPromSink registers plant metrics on the default Prometheus registerer.
// The Prometheus server should be started separately using StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer. Collectors
// already registered by a previous sink are reused.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	allocated := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "vpp_plant_allocated_kw",
		Help: "Power allocated to each plant by the last dispatch",
	}, []string{"plant_id"})
	dispatched := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vpp_plant_dispatched_kw_total",
		Help: "Cumulative power allocated to each plant",
	}, []string{"plant_id"})
	demand := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "vpp_dispatch_demand_kw",
		Help: "Demand of the last dispatch in kW",
	})
	available := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "vpp_available_capacity_kw",
		Help: "Sum of max capacity over active plants",
	})
	registered := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vpp_plants_registered_total",
		Help: "Number of plants registered by initial status",
	}, []string{"status"})
	output := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "vpp_plant_output_kw",
		Help: "Last output reported by each plant",
	}, []string{"plant_id"})

	var err error
	if allocated, err = register(reg, allocated); err != nil {
		return nil, err
	}
	if dispatched, err = register(reg, dispatched); err != nil {
		return nil, err
	}
	if demand, err = register(reg, demand); err != nil {
		return nil, err
	}
	if available, err = register(reg, available); err != nil {
		return nil, err
	}
	if registered, err = register(reg, registered); err != nil {
		return nil, err
	}
	if output, err = register(reg, output); err != nil {
		return nil, err
	}
	return &PromSink{
		allocated:  allocated,
		dispatched: dispatched,
		demand:     demand,
		available:  available,
		registered: registered,
		output:     output,
	}, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordDispatch updates the per-plant gauges and counters.
func (s *PromSink) RecordDispatch(sum coremetrics.DispatchSummary) error {
	s.demand.Set(sum.Demand)
	for _, p := range sum.Plants {
		id := strconv.Itoa(p.PlantID)
		s.allocated.WithLabelValues(id).Set(p.AllocatedKW)
		s.dispatched.WithLabelValues(id).Add(p.AllocatedKW)
	}
	return nil
}

// RecordPlantRegistered counts a registration by status.
func (s *PromSink) RecordPlantRegistered(ev coremetrics.PlantEvent) error {
	s.registered.WithLabelValues(string(ev.Plant.Status)).Inc()
	return nil
}

// RecordAvailableCapacity sets the available capacity gauge.
func (s *PromSink) RecordAvailableCapacity(kw float64) error {
	s.available.Set(kw)
	return nil
}

// RecordPlantOutput sets the output gauge of the plant.
func (s *PromSink) RecordPlantOutput(o coremetrics.PlantOutput) error {
	s.output.WithLabelValues(strconv.Itoa(o.PlantID)).Set(o.OutputKW)
	return nil
}
