package plugins

import (
	"fmt"
	"sort"

	"github.com/kilianp07/vpp/config"
	"github.com/kilianp07/vpp/core/dispatch"
	dispatchlog "github.com/kilianp07/vpp/core/dispatch/logging"
)

// DispatcherFactory builds a dispatcher from a raw configuration map.
type DispatcherFactory func(name string, conf map[string]any) (dispatch.Dispatcher, error)

// LogStoreFactory builds a dispatch log store from the logging config. A nil
// store with a nil error disables the audit log.
type LogStoreFactory func(cfg config.LoggingConfig) (dispatchlog.LogStore, error)

var (
	Dispatchers = map[string]DispatcherFactory{}
	LogStores   = map[string]LogStoreFactory{}
)

func RegisterDispatcher(name string, f DispatcherFactory) { Dispatchers[name] = f }
func RegisterLogStore(name string, f LogStoreFactory)     { LogStores[name] = f }

// NewDispatcher looks up the dispatcher registered under name.
func NewDispatcher(name string, conf map[string]any) (dispatch.Dispatcher, error) {
	f, ok := Dispatchers[name]
	if !ok {
		return nil, fmt.Errorf("unknown dispatcher %q (known: %v)", name, names(Dispatchers))
	}
	return f(name, conf)
}

// NewLogStore builds the store selected by cfg.Backend.
func NewLogStore(cfg config.LoggingConfig) (dispatchlog.LogStore, error) {
	f, ok := LogStores[cfg.Backend]
	if !ok {
		return nil, fmt.Errorf("unknown log backend %q (known: %v)", cfg.Backend, names(LogStores))
	}
	return f(cfg)
}

func names[F any](m map[string]F) []string {
	out := make([]string, 0, len(m))
	for n := range m {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
