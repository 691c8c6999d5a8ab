package monitoring

import (
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/kilianp07/vpp/config"
	coremon "github.com/kilianp07/vpp/core/monitoring"
)

// NewSentryMonitor reports VPP failures to Sentry. Events carry the
// configured site as a tag. An empty DSN yields a NopMonitor.
func NewSentryMonitor(cfg config.SentryConfig) (coremon.Monitor, error) {
	if cfg.DSN == "" {
		return coremon.NopMonitor{}, nil
	}
	cfg.SetDefaults()
	mon, err := newSentryMonitor(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		TracesSampleRate: cfg.TracesSampleRate,
		Release:          cfg.Release,
	}, cfg.Site, time.Duration(cfg.FlushTimeoutMS)*time.Millisecond)
	if err != nil {
		return nil, err
	}
	return mon, nil
}

func newSentryMonitor(opts sentry.ClientOptions, site string, flush time.Duration) (*sentryMonitor, error) {
	if err := sentry.Init(opts); err != nil {
		return nil, err
	}
	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("service", "vpp")
		if site != "" {
			scope.SetTag("site", site)
		}
	})
	return &sentryMonitor{flush: flush}, nil
}

type sentryMonitor struct {
	flush time.Duration
}

// CaptureException sends err with the given tags. Plant and dispatch
// identifiers are passed as tags by the engine and HTTP layer.
func (s *sentryMonitor) CaptureException(err error, tags map[string]string) {
	if err == nil {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		if pid, ok := tags["plant_id"]; ok {
			scope.SetFingerprint([]string{"{{ default }}", "plant", pid})
		}
		sentry.CaptureException(err)
	})
}

// CapturePanic records a recovered panic and blocks until it is delivered so
// a crashing process does not lose it.
func (s *sentryMonitor) CapturePanic(v any) {
	sentry.CurrentHub().Recover(v)
	sentry.Flush(s.flush)
}

func (s *sentryMonitor) Flush(timeout time.Duration) { sentry.Flush(timeout) }
