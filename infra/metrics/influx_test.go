package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coremetrics "github.com/kilianp07/vpp/core/metrics"
	"github.com/kilianp07/vpp/core/model"
)

type lineRecorder struct {
	mu    sync.Mutex
	lines []string
}

func (l *lineRecorder) server(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		l.mu.Lock()
		for _, line := range strings.Split(string(data), "\n") {
			if line = strings.TrimSpace(line); line != "" {
				l.lines = append(l.lines, line)
			}
		}
		l.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func (l *lineRecorder) sorted() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := append([]string(nil), l.lines...)
	sort.Strings(out)
	return out
}

func lineOf(p *write.Point) string {
	return strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond))
}

func TestInfluxSink_RecordDispatch(t *testing.T) {
	rec := &lineRecorder{}
	srv := rec.server(t)
	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	defer sink.Close()

	now := time.Now()
	sum := coremetrics.DispatchSummary{
		DispatchID:      "d-1",
		Demand:          120,
		TotalDispatched: 120,
		Plants: []coremetrics.PlantAllocation{
			{PlantID: 1, PlantName: "A", AllocatedKW: 100, MaxCapacity: 100},
			{PlantID: 2, PlantName: "B", AllocatedKW: 20, MaxCapacity: 50},
		},
		Duration: 1500 * time.Microsecond,
		Time:     now,
	}
	require.NoError(t, sink.RecordDispatch(sum))

	want := []string{
		lineOf(write.NewPointWithMeasurement("dispatch_summary").
			AddTag("dispatch_id", "d-1").
			AddTag("component", "dispatch_engine").
			AddField("demand_kw", 120.0).
			AddField("dispatched_kw", 120.0).
			AddField("unmet_kw", 0.0).
			AddField("plants", 2).
			AddField("duration_ms", 1.5).
			SetTime(now)),
		lineOf(write.NewPointWithMeasurement("dispatch_allocation").
			AddTag("dispatch_id", "d-1").
			AddTag("plant_id", "1").
			AddTag("plant_name", "A").
			AddField("allocated_kw", 100.0).
			AddField("max_capacity_kw", 100.0).
			SetTime(now)),
		lineOf(write.NewPointWithMeasurement("dispatch_allocation").
			AddTag("dispatch_id", "d-1").
			AddTag("plant_id", "2").
			AddTag("plant_name", "B").
			AddField("allocated_kw", 20.0).
			AddField("max_capacity_kw", 50.0).
			SetTime(now)),
	}
	sort.Strings(want)
	assert.Equal(t, want, rec.sorted())
}

func TestInfluxSink_RecordPlantRegistered(t *testing.T) {
	rec := &lineRecorder{}
	srv := rec.server(t)
	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	defer sink.Close()

	now := time.Now()
	p := model.Plant{ID: 3, Name: "Hydro", MaxCapacity: 80.1234, MinCapacity: 5, Status: model.StatusRunning}
	require.NoError(t, sink.RecordPlantRegistered(coremetrics.PlantEvent{Plant: p, Time: now}))

	want := lineOf(write.NewPointWithMeasurement("plant_registered").
		AddTag("plant_id", "3").
		AddTag("status", "running").
		AddField("name", "Hydro").
		AddField("max_capacity_kw", 80.123).
		AddField("min_capacity_kw", 5.0).
		SetTime(now))
	assert.Equal(t, []string{want}, rec.sorted())
}

func TestInfluxSink_RecordAvailableCapacity(t *testing.T) {
	rec := &lineRecorder{}
	srv := rec.server(t)
	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	defer sink.Close()
	now := time.Now()
	sink.now = func() time.Time { return now }

	require.NoError(t, sink.RecordAvailableCapacity(150))
	want := lineOf(write.NewPointWithMeasurement("available_capacity").
		AddField("capacity_kw", 150.0).
		SetTime(now))
	assert.Equal(t, []string{want}, rec.sorted())
}

func TestNewInfluxSinkWithFallback(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			called = true
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}))
	defer srv.Close()

	sink := NewInfluxSinkWithFallback(srv.URL+"/api/v2/write", "tok", "org", "bucket")
	if _, ok := sink.(*InfluxSink); ok {
		t.Fatalf("expected NopSink on failing health check")
	}
	if !called {
		t.Fatalf("health endpoint not called")
	}
}

func TestRound3(t *testing.T) {
	assert.Equal(t, 1.235, round3(1.23456))
	assert.Equal(t, -0.5, round3(-0.5))
}

func TestInfluxSink_RecordPlantOutput(t *testing.T) {
	rec := &lineRecorder{}
	srv := rec.server(t)
	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	defer sink.Close()

	now := time.Now()
	require.NoError(t, sink.RecordPlantOutput(coremetrics.PlantOutput{PlantID: 2, OutputKW: 19.9999, Time: now}))
	want := lineOf(write.NewPointWithMeasurement("plant_output").
		AddTag("plant_id", "2").
		AddTag("component", "telemetry").
		AddField("output_kw", 20.0).
		SetTime(now))
	assert.Equal(t, []string{want}, rec.sorted())
}
