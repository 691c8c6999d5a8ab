package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/vpp/core/dispatch/logging"
	"github.com/kilianp07/vpp/core/events"
	"github.com/kilianp07/vpp/core/logger"
	"github.com/kilianp07/vpp/core/metrics"
	"github.com/kilianp07/vpp/core/model"
	"github.com/kilianp07/vpp/core/registry"
	"github.com/kilianp07/vpp/infra/mqtt"
	"github.com/kilianp07/vpp/internal/eventbus"
)

type recordSink struct {
	mu        sync.Mutex
	summaries []metrics.DispatchSummary
	err       error
}

func (r *recordSink) RecordDispatch(s metrics.DispatchSummary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summaries = append(r.summaries, s)
	return r.err
}

type memStore struct {
	mu      sync.Mutex
	records []logging.LogRecord
	err     error
	closed  bool
}

func (m *memStore) Append(_ context.Context, rec logging.LogRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, rec)
	return nil
}

func (m *memStore) Query(context.Context, logging.LogQuery) ([]logging.LogRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]logging.LogRecord(nil), m.records...), nil
}

func (m *memStore) Close() error {
	m.closed = true
	return nil
}

func newTestEngine(t *testing.T, reg registry.Registry, sink metrics.MetricsSink) *Engine {
	t.Helper()
	ResetMetrics(prometheus.NewRegistry())
	t.Cleanup(func() { ResetMetrics(nil) })
	eng, err := NewEngine(reg, MeritOrderDispatcher{}, sink, logger.NopLogger{})
	require.NoError(t, err)
	return eng
}

func TestNewEngineNilParams(t *testing.T) {
	_, err := NewEngine(nil, MeritOrderDispatcher{}, nil, nil)
	assert.Error(t, err)
	_, err = NewEngine(registry.New(), nil, nil, nil)
	assert.Error(t, err)
}

func TestEngineDispatch_TwoPlants(t *testing.T) {
	reg := registry.New()
	a, _ := reg.Register("A", 100, 0, model.StatusIdle)
	b, _ := reg.Register("B", 50, 0, model.StatusIdle)
	eng := newTestEngine(t, reg, nil)

	res, err := eng.Dispatch(context.Background(), 120)
	require.NoError(t, err)
	assert.Equal(t, model.Allocations{a.ID: 100, b.ID: 20}, res.Allocations)
	assert.Equal(t, 120.0, res.TotalDispatched)
	assert.Equal(t, 0.0, res.UnmetDemand)
	assert.Equal(t, 1.0, testutil.ToFloat64(dispatchRequests.WithLabelValues("met")))
	assert.Equal(t, 0.0, testutil.ToFloat64(unmetDemand))
}

func TestEngineDispatch_OnlyDownPlants(t *testing.T) {
	reg := registry.New()
	_, _ = reg.Register("A", 50, 0, model.StatusDown)
	eng := newTestEngine(t, reg, nil)

	res, err := eng.Dispatch(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, res.Allocations)
	assert.Equal(t, 0.0, res.TotalDispatched)
	assert.Equal(t, 10.0, res.UnmetDemand)
	assert.Equal(t, 1.0, testutil.ToFloat64(dispatchRequests.WithLabelValues("unmet")))
	assert.Equal(t, 10.0, testutil.ToFloat64(unmetDemand))
}

func TestEngineDispatch_DownPlantsExcluded(t *testing.T) {
	reg := registry.New()
	_, _ = reg.Register("A", 100, 0, model.StatusDown)
	b, _ := reg.Register("B", 40, 0, model.StatusRunning)
	eng := newTestEngine(t, reg, nil)

	res, err := eng.Dispatch(context.Background(), 60)
	require.NoError(t, err)
	assert.Equal(t, model.Allocations{b.ID: 40}, res.Allocations)
	assert.Equal(t, 20.0, res.UnmetDemand)
}

func TestEngineDispatch_InvalidDemand(t *testing.T) {
	reg := registry.New()
	_, _ = reg.Register("A", 100, 0, model.StatusIdle)
	sink := &recordSink{}
	eng := newTestEngine(t, reg, sink)
	store := &memStore{}
	eng.SetLogStore(store)

	for _, d := range []float64{0, -5} {
		_, err := eng.Dispatch(context.Background(), d)
		require.Error(t, err)
		assert.True(t, errors.Is(err, model.ErrValidation))
		var ve *model.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "demand", ve.Field)
	}
	assert.Equal(t, 2.0, testutil.ToFloat64(dispatchRequests.WithLabelValues("invalid")))
	assert.Empty(t, sink.summaries)
	assert.Empty(t, store.records)
}

func TestEngineDispatch_DoesNotMutateRegistry(t *testing.T) {
	reg := registry.New()
	_, _ = reg.Register("A", 100, 0, model.StatusIdle)
	_, _ = reg.Register("B", 50, 0, model.StatusRunning)
	before := reg.List()
	eng := newTestEngine(t, reg, nil)
	_, err := eng.Dispatch(context.Background(), 500)
	require.NoError(t, err)
	assert.Equal(t, before, reg.List())
	assert.Equal(t, 150.0, reg.Aggregate())
}

func TestEngineDispatch_SideEffects(t *testing.T) {
	reg := registry.New()
	a, _ := reg.Register("A", 100, 0, model.StatusIdle)
	b, _ := reg.Register("B", 50, 0, model.StatusIdle)
	c, _ := reg.Register("C", 10, 0, model.StatusIdle)

	sink := &recordSink{}
	eng := newTestEngine(t, reg, sink)
	eng.newID = func() string { return "d-1" }
	store := &memStore{}
	eng.SetLogStore(store)
	pub := mqtt.NewMockPublisher()
	eng.SetPublisher(pub, 2)
	bus := eventbus.NewTyped[events.DispatchCompleted]()
	defer bus.Close()
	ch := bus.Subscribe()
	eng.SetBus(bus)

	res, err := eng.Dispatch(context.Background(), 120)
	require.NoError(t, err)
	eng.FlushSetpoints()

	require.Len(t, sink.summaries, 1)
	s := sink.summaries[0]
	assert.Equal(t, "d-1", s.DispatchID)
	assert.Equal(t, 120.0, s.Demand)
	require.Len(t, s.Plants, 3)
	assert.Equal(t, "A", s.Plants[0].PlantName)

	require.Len(t, store.records, 1)
	assert.Equal(t, []int{a.ID, b.ID, c.ID}, store.records[0].ActivePlants)
	assert.Equal(t, res, store.records[0].Allocation)

	assert.Equal(t, map[int]float64{a.ID: 100, b.ID: 20}, pub.Sent(), "zero allocations are not published")
	assert.Equal(t, 2.0, testutil.ToFloat64(setpointSuccess))

	select {
	case ev := <-ch:
		assert.Equal(t, "d-1", ev.DispatchID)
		assert.Equal(t, res, ev.Allocation)
	case <-time.After(time.Second):
		t.Fatal("no DispatchCompleted event")
	}

	require.NoError(t, eng.Close())
	assert.True(t, store.closed)
}

func TestEngineDispatch_SideEffectFailuresIgnored(t *testing.T) {
	reg := registry.New()
	a, _ := reg.Register("A", 100, 0, model.StatusIdle)
	sink := &recordSink{err: errors.New("sink down")}
	eng := newTestEngine(t, reg, sink)
	eng.SetLogStore(&memStore{err: errors.New("disk full")})
	pub := mqtt.NewMockPublisher()
	pub.FailIDs[a.ID] = true
	eng.SetPublisher(pub, 1)

	res, err := eng.Dispatch(context.Background(), 30)
	require.NoError(t, err)
	eng.FlushSetpoints()
	assert.Equal(t, model.Allocations{a.ID: 30}, res.Allocations)
	assert.Equal(t, 1.0, testutil.ToFloat64(setpointFailure))
	assert.Equal(t, 0.0, testutil.ToFloat64(setpointSuccess))
}

func TestEngineDispatch_Concurrent(t *testing.T) {
	reg := registry.New()
	for i := 0; i < 10; i++ {
		_, _ = reg.Register("p", float64(10*(i+1)), 0, model.StatusIdle)
	}
	eng := newTestEngine(t, reg, &recordSink{})
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_, _ = reg.Register("late", 5, 0, model.StatusIdle)
			}
			res, err := eng.Dispatch(context.Background(), 200)
			if err != nil {
				t.Errorf("dispatch: %v", err)
				return
			}
			if d := res.TotalDispatched + res.UnmetDemand - 200; d > tol || d < -tol {
				t.Errorf("conservation violated: %v", res)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 16.0, testutil.ToFloat64(dispatchRequests.WithLabelValues("met")))
}

// blockingPublisher holds every setpoint until release is closed.
type blockingPublisher struct {
	release chan struct{}
	mu      sync.Mutex
	sent    map[int]float64
}

func (b *blockingPublisher) SendSetpoint(_ string, plantID int, kw float64) (string, error) {
	<-b.release
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent[plantID] = kw
	return "cmd", nil
}

func TestEngineDispatch_DoesNotWaitForPublisher(t *testing.T) {
	reg := registry.New()
	a, _ := reg.Register("A", 100, 0, model.StatusIdle)
	b, _ := reg.Register("B", 50, 0, model.StatusIdle)
	eng := newTestEngine(t, reg, nil)
	pub := &blockingPublisher{release: make(chan struct{}), sent: map[int]float64{}}
	eng.SetPublisher(pub, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	res, err := eng.Dispatch(ctx, 120)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 50*time.Millisecond, "dispatch waited on the broker")
	assert.Equal(t, model.Allocations{a.ID: 100, b.ID: 20}, res.Allocations)

	close(pub.release)
	require.NoError(t, eng.Close())
	assert.Equal(t, map[int]float64{a.ID: 100, b.ID: 20}, pub.sent, "close drains queued setpoints")
}

func TestEngineDispatch_AfterCloseDropsSetpoints(t *testing.T) {
	reg := registry.New()
	_, _ = reg.Register("A", 10, 0, model.StatusIdle)
	eng := newTestEngine(t, reg, nil)
	pub := mqtt.NewMockPublisher()
	eng.SetPublisher(pub, 1)
	require.NoError(t, eng.Close())

	_, err := eng.Dispatch(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, pub.Sent())
}

// ctxStore fails appends whose context is already cancelled, like a SQL
// transaction would.
type ctxStore struct{ memStore }

func (c *ctxStore) Append(ctx context.Context, rec logging.LogRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.memStore.Append(ctx, rec)
}

func TestEngineDispatch_AuditSurvivesCancelledRequest(t *testing.T) {
	reg := registry.New()
	_, _ = reg.Register("A", 10, 0, model.StatusIdle)
	eng := newTestEngine(t, reg, nil)
	store := &ctxStore{}
	eng.SetLogStore(store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := eng.Dispatch(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, store.records, 1)
}
