package metrics

import "errors"

// MultiSink fanouts records to multiple sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordDispatch forwards the summary to all sinks, returning the first error encountered.
func (m *MultiSink) RecordDispatch(s DispatchSummary) error {
	for _, sink := range m.Sinks {
		if err := sink.RecordDispatch(s); err != nil {
			return err
		}
	}
	return nil
}

// RecordPlantRegistered forwards registry events to sinks supporting them.
func (m *MultiSink) RecordPlantRegistered(ev PlantEvent) error {
	for _, sink := range m.Sinks {
		if rec, ok := sink.(PlantRecorder); ok {
			if err := rec.RecordPlantRegistered(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordAvailableCapacity forwards capacity updates to sinks supporting them.
func (m *MultiSink) RecordAvailableCapacity(kw float64) error {
	for _, sink := range m.Sinks {
		if rec, ok := sink.(CapacityRecorder); ok {
			if err := rec.RecordAvailableCapacity(kw); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordPlantOutput forwards telemetry readings to sinks supporting them.
func (m *MultiSink) RecordPlantOutput(o PlantOutput) error {
	for _, sink := range m.Sinks {
		if rec, ok := sink.(PlantOutputRecorder); ok {
			if err := rec.RecordPlantOutput(o); err != nil {
				return err
			}
		}
	}
	return nil
}

// Close closes every sink holding resources.
func (m *MultiSink) Close() error {
	var errs []error
	for _, sink := range m.Sinks {
		if err := CloseSink(sink); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// CloseSink releases the resources of s when it has any.
func CloseSink(s MetricsSink) error {
	switch c := s.(type) {
	case interface{ Close() error }:
		return c.Close()
	case interface{ Close() }:
		c.Close()
	}
	return nil
}
