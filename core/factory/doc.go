// Package factory maps a module type name to a constructor. Configuration
// lists modules as a type plus a raw settings map, and each factory decodes
// its settings with Decode before building the implementation. Metrics sinks
// are the main user:
//
//	reg := factory.NewRegistry[metrics.MetricsSink]()
//	_ = reg.Register("redis", func(conf map[string]any) (metrics.MetricsSink, error) {
//	    var c RedisConfig
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return NewRedisSink(c)
//	})
//	sink, err := reg.Create(factory.ModuleConfig{Type: "redis", Conf: map[string]any{"address": "localhost:6379"}})
package factory
