package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/vpp/core/metrics"
	"github.com/kilianp07/vpp/infra/logger"
)

// InfluxSink writes dispatch results to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
	now      func() time.Time
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
		now:      time.Now,
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordDispatch writes one dispatch_summary point and one
// dispatch_allocation point per plant.
func (s *InfluxSink) RecordDispatch(sum coremetrics.DispatchSummary) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	ts := sum.Time
	if ts.IsZero() {
		ts = s.now()
	}
	points := make([]*write.Point, 0, len(sum.Plants)+1)
	points = append(points, write.NewPointWithMeasurement("dispatch_summary").
		AddTag("dispatch_id", sum.DispatchID).
		AddTag("component", "dispatch_engine").
		AddField("demand_kw", round3(sum.Demand)).
		AddField("dispatched_kw", round3(sum.TotalDispatched)).
		AddField("unmet_kw", round3(sum.UnmetDemand)).
		AddField("plants", len(sum.Plants)).
		AddField("duration_ms", round3(float64(sum.Duration.Microseconds())/1000)).
		SetTime(ts))
	for _, p := range sum.Plants {
		points = append(points, write.NewPointWithMeasurement("dispatch_allocation").
			AddTag("dispatch_id", sum.DispatchID).
			AddTag("plant_id", strconv.Itoa(p.PlantID)).
			AddTag("plant_name", p.PlantName).
			AddField("allocated_kw", round3(p.AllocatedKW)).
			AddField("max_capacity_kw", round3(p.MaxCapacity)).
			SetTime(ts))
	}
	return s.writeAPI.WritePoint(ctx, points...)
}

// RecordPlantRegistered persists a registration.
func (s *InfluxSink) RecordPlantRegistered(ev coremetrics.PlantEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("plant_registered").
		AddTag("plant_id", strconv.Itoa(ev.Plant.ID)).
		AddTag("status", string(ev.Plant.Status)).
		AddField("name", ev.Plant.Name).
		AddField("max_capacity_kw", round3(ev.Plant.MaxCapacity)).
		AddField("min_capacity_kw", round3(ev.Plant.MinCapacity)).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordAvailableCapacity writes the aggregate capacity of active plants.
func (s *InfluxSink) RecordAvailableCapacity(kw float64) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("available_capacity").
		AddField("capacity_kw", round3(kw)).
		SetTime(s.now())
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordPlantOutput writes a telemetry reading.
func (s *InfluxSink) RecordPlantOutput(o coremetrics.PlantOutput) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("plant_output").
		AddTag("plant_id", strconv.Itoa(o.PlantID)).
		AddTag("component", "telemetry").
		AddField("output_kw", round3(o.OutputKW)).
		SetTime(o.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// Close releases the underlying client.
func (s *InfluxSink) Close() {
	s.client.Close()
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
