package scenarios

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/vpp/core/dispatch"
	"github.com/kilianp07/vpp/core/model"
	"github.com/kilianp07/vpp/core/registry"
	"github.com/kilianp07/vpp/infra/logger"
	"github.com/kilianp07/vpp/infra/metrics"
	"github.com/kilianp07/vpp/infra/mqtt"
)

const tolerance = 1e-9

func RunScenario(t *testing.T, sc *Scenario) {
	sink, err := metrics.NewPromSinkWithRegistry(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("prom sink: %v", err)
	}

	reg := registry.New(registry.WithLogger(logger.NopLogger{}))
	for i, p := range sc.Plants {
		_, err := reg.Register(p.Name, p.MaxCapacity, p.MinCapacity, model.PlantStatus(p.Status))
		checkRejected(t, "plant", i, p.Rejected, err)
	}

	eng, err := dispatch.NewEngine(reg, dispatch.MeritOrderDispatcher{}, sink, logger.NopLogger{})
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	defer func() { _ = eng.Close() }()

	for i, d := range sc.Dispatches {
		pub := mqtt.NewMockPublisher()
		for _, id := range d.FailPlants {
			pub.FailIDs[id] = true
		}
		eng.SetPublisher(pub, 2)

		before := reg.List()
		res, err := eng.Dispatch(context.Background(), d.Demand)
		checkRejected(t, "dispatch", i, d.Rejected, err)
		if d.Rejected != "" {
			continue
		}
		if len(res.Allocations) != len(d.Allocations) {
			t.Errorf("dispatch %d: expected %d allocations, got %v", i, len(d.Allocations), res.Allocations)
		}
		for id, kw := range d.Allocations {
			if got, ok := res.Allocations[id]; !ok || math.Abs(got-kw) > tolerance {
				t.Errorf("dispatch %d: plant %d expected %g, got %g", i, id, kw, got)
			}
		}
		if math.Abs(res.TotalDispatched-d.Dispatched) > tolerance {
			t.Errorf("dispatch %d: expected total %g, got %g", i, d.Dispatched, res.TotalDispatched)
		}
		if math.Abs(res.UnmetDemand-d.Unmet) > tolerance {
			t.Errorf("dispatch %d: expected unmet %g, got %g", i, d.Unmet, res.UnmetDemand)
		}
		if d.Setpoints != nil {
			eng.FlushSetpoints()
			sent := pub.Sent()
			if len(sent) != len(d.Setpoints) {
				t.Errorf("dispatch %d: expected %d setpoints, got %v", i, len(d.Setpoints), sent)
			}
			for id, kw := range d.Setpoints {
				if math.Abs(sent[id]-kw) > tolerance {
					t.Errorf("dispatch %d: setpoint %d expected %g, got %g", i, id, kw, sent[id])
				}
			}
		}
		if after := reg.List(); !samePlants(before, after) {
			t.Errorf("dispatch %d mutated the registry", i)
		}
	}

	if n := len(reg.List()); n != sc.Expected.Plants {
		t.Errorf("scenario %s expected %d plants, got %d", sc.Name, sc.Expected.Plants, n)
	}
	if got := reg.Aggregate(); math.Abs(got-sc.Expected.Aggregate) > tolerance {
		t.Errorf("scenario %s expected aggregate %g, got %g", sc.Name, sc.Expected.Aggregate, got)
	}
}

func checkRejected(t *testing.T, what string, i int, field string, err error) {
	t.Helper()
	if field == "" {
		if err != nil {
			t.Fatalf("%s %d: unexpected error %v", what, i, err)
		}
		return
	}
	var ve *model.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("%s %d: expected ValidationError, got %v", what, i, err)
	}
	if ve.Field != field {
		t.Errorf("%s %d: expected field %s, got %s", what, i, field, ve.Field)
	}
}

func samePlants(a, b []model.Plant) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
