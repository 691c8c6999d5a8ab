package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	apidispatch "github.com/kilianp07/vpp/api/dispatch"
	"github.com/kilianp07/vpp/api/plants"
	"github.com/kilianp07/vpp/app/plugins"
	"github.com/kilianp07/vpp/config"
	"github.com/kilianp07/vpp/core/dispatch"
	dispatchlog "github.com/kilianp07/vpp/core/dispatch/logging"
	"github.com/kilianp07/vpp/core/events"
	coremetrics "github.com/kilianp07/vpp/core/metrics"
	"github.com/kilianp07/vpp/core/model"
	coremon "github.com/kilianp07/vpp/core/monitoring"
	"github.com/kilianp07/vpp/core/registry"
	"github.com/kilianp07/vpp/infra/logger"
	inframetrics "github.com/kilianp07/vpp/infra/metrics"
	"github.com/kilianp07/vpp/infra/monitoring"
	"github.com/kilianp07/vpp/infra/mqtt"
	"github.com/kilianp07/vpp/infra/telemetry"
	"github.com/kilianp07/vpp/internal/eventbus"
)

// Service wires the plant registry, the dispatch engine and the HTTP API.
type Service struct {
	Registry  *registry.MemoryRegistry
	Engine    *dispatch.Engine
	Telemetry *telemetry.Manager

	cfg         *config.Config
	handler     http.Handler
	sink        coremetrics.MetricsSink
	store       dispatchlog.LogStore
	publisher   *mqtt.PahoClient
	plantBus    *eventbus.TypedBus[events.PlantRegistered]
	dispatchBus *eventbus.TypedBus[events.DispatchCompleted]
	log         logger.Logger
}

// New creates a Service from the configuration. Seed plants are registered
// when Run starts.
func New(cfg *config.Config) (*Service, error) {
	if err := logger.SetLevel(cfg.Logging.Level); err != nil {
		return nil, err
	}
	logg := logger.New("service")

	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(mon)

	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, err
	}

	plantBus := eventbus.NewTyped[events.PlantRegistered]()
	reg := registry.New(registry.WithLogger(logger.New("registry")), registry.WithBus(plantBus))

	d, err := plugins.NewDispatcher(cfg.Dispatch.Algorithm, nil)
	if err != nil {
		_ = coremetrics.CloseSink(sink)
		return nil, err
	}
	engine, err := dispatch.NewEngine(reg, d, sink, logger.New("dispatch"))
	if err != nil {
		_ = coremetrics.CloseSink(sink)
		return nil, fmt.Errorf("dispatch engine: %w", err)
	}
	dispatchBus := eventbus.NewTyped[events.DispatchCompleted]()
	engine.SetBus(dispatchBus)

	svc := &Service{
		Registry:    reg,
		Engine:      engine,
		cfg:         cfg,
		sink:        sink,
		plantBus:    plantBus,
		dispatchBus: dispatchBus,
		log:         logg,
	}

	store, err := plugins.NewLogStore(cfg.Logging)
	if err != nil {
		_ = svc.Close()
		return nil, fmt.Errorf("dispatch log: %w", err)
	}
	if store != nil {
		engine.SetLogStore(store)
		svc.store = store
	}

	if cfg.Dispatch.PublishSetpoints {
		pub, err := mqtt.NewPahoClient(cfg.MQTT)
		if err != nil {
			_ = svc.Close()
			return nil, fmt.Errorf("mqtt client: %w", err)
		}
		engine.SetPublisher(pub, cfg.Dispatch.SetpointWorkers)
		svc.publisher = pub
	}

	var tel plants.TelemetrySource
	if cfg.Telemetry.Enabled {
		rec, _ := sink.(coremetrics.PlantOutputRecorder)
		tm := telemetry.NewManager(cfg.Telemetry, reg, rec)
		svc.Telemetry = tm
		if err := tm.Connect(cfg.MQTT); err != nil {
			_ = svc.Close()
			return nil, fmt.Errorf("telemetry: %w", err)
		}
		tel = tm
	}

	mux := http.NewServeMux()
	plants.NewHandler(reg, engine, tel, logger.New("api")).Register(mux)
	if store != nil {
		mux.Handle("/api/dispatch/logs", apidispatch.NewLogHandler(store, cfg.HTTP.LogToken))
	}
	apiLog := logger.New("http")
	svc.handler = plants.WithRecovery(plants.WithLogging(mux, apiLog), apiLog)
	return svc, nil
}

// Handler returns the HTTP API.
func (s *Service) Handler() http.Handler { return s.handler }

// Seed registers the configured plants in order.
func Seed(reg registry.Registry, seeds []config.PlantSeed) error {
	for i, p := range seeds {
		if _, err := reg.Register(p.Name, p.MaxCapacity, p.MinCapacity, model.PlantStatus(p.Status)); err != nil {
			return fmt.Errorf("seed plant %d: %w", i, err)
		}
	}
	return nil
}

// Run starts the background workers and the HTTP server and blocks until the
// context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	inframetrics.StartPlantCollector(ctx, s.plantBus, s.Registry.Aggregate, s.sink, logger.New("plant_collector"))
	if err := Seed(s.Registry, s.cfg.Registry.Seed); err != nil {
		return err
	}
	go s.watchDispatches(ctx)
	if s.Telemetry != nil {
		go s.Telemetry.Start(ctx)
	}
	if addr := s.cfg.Metrics.PrometheusAddr; addr != "" {
		go func() {
			if err := inframetrics.StartPromServer(ctx, addr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:         s.cfg.HTTP.Addr,
		Handler:      s.handler,
		ReadTimeout:  time.Duration(s.cfg.HTTP.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(s.cfg.HTTP.WriteTimeoutSeconds) * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("serving API on %s", s.cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

func (s *Service) watchDispatches(ctx context.Context) {
	sub := s.dispatchBus.Subscribe()
	defer s.dispatchBus.Unsubscribe(sub)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub:
			if !ok {
				return
			}
			s.log.Debugw("dispatch completed", map[string]any{
				"dispatch_id":      ev.DispatchID,
				"demand":           ev.Demand,
				"total_dispatched": ev.Allocation.TotalDispatched,
				"unmet_demand":     ev.Allocation.UnmetDemand,
				"duration_ms":      ev.Duration.Milliseconds(),
			})
		}
	}
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	var errs []error
	if err := s.Engine.Close(); err != nil {
		errs = append(errs, fmt.Errorf("dispatch log: %w", err))
	}
	if s.publisher != nil {
		s.publisher.Disconnect()
	}
	if s.Telemetry != nil {
		s.Telemetry.Close()
	}
	if err := coremetrics.CloseSink(s.sink); err != nil {
		errs = append(errs, fmt.Errorf("metrics sink: %w", err))
	}
	if n := s.plantBus.Dropped() + s.dispatchBus.Dropped(); n > 0 {
		s.log.Warnf("%d events were not delivered to slow subscribers", n)
	}
	s.dispatchBus.Close()
	s.plantBus.Close()
	coremon.Flush(time.Duration(s.cfg.Sentry.FlushTimeoutMS) * time.Millisecond)
	return errors.Join(errs...)
}
