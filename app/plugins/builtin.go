package plugins

import (
	"github.com/kilianp07/vpp/config"
	"github.com/kilianp07/vpp/core/dispatch"
	dispatchlog "github.com/kilianp07/vpp/core/dispatch/logging"
)

func init() {
	RegisterDispatcher(dispatch.AlgorithmMeritOrder, func(string, map[string]any) (dispatch.Dispatcher, error) {
		return dispatch.MeritOrderDispatcher{}, nil
	})

	RegisterLogStore("none", func(config.LoggingConfig) (dispatchlog.LogStore, error) {
		return nil, nil
	})
	RegisterLogStore("jsonl", func(cfg config.LoggingConfig) (dispatchlog.LogStore, error) {
		if cfg.MaxSizeMB > 0 {
			return dispatchlog.NewRotatingJSONLStore(cfg.Path, cfg.MaxSizeMB, cfg.MaxBackups, cfg.MaxAgeDays)
		}
		return dispatchlog.NewJSONLStore(cfg.Path)
	})
	RegisterLogStore("sqlite", func(cfg config.LoggingConfig) (dispatchlog.LogStore, error) {
		return dispatchlog.NewSQLiteStore(cfg.Path)
	})
}
