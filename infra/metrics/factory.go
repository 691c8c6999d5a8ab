package metrics

import (
	"fmt"

	"github.com/kilianp07/vpp/core/factory"
	coremetrics "github.com/kilianp07/vpp/core/metrics"
)

// InfluxConfig configures the "influx" sink. Unless Strict is set, an
// unreachable server degrades to a NopSink so dispatches keep working.
type InfluxConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
	Strict bool   `json:"strict"`
}

func (c InfluxConfig) Validate() error {
	if c.URL == "" || c.Bucket == "" {
		return fmt.Errorf("influx sink requires url and bucket")
	}
	return nil
}

func newInflux(conf map[string]any) (coremetrics.MetricsSink, error) {
	var c InfluxConfig
	if err := factory.Decode(conf, &c); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if c.Strict {
		return NewInfluxSink(c.URL, c.Token, c.Org, c.Bucket), nil
	}
	return NewInfluxSinkWithFallback(c.URL, c.Token, c.Org, c.Bucket), nil
}

func newRedis(conf map[string]any) (coremetrics.MetricsSink, error) {
	var c RedisConfig
	if err := factory.Decode(conf, &c); err != nil {
		return nil, err
	}
	return NewRedisSink(c)
}

var builtinSinks = map[string]factory.Factory[coremetrics.MetricsSink]{
	"nop": func(map[string]any) (coremetrics.MetricsSink, error) {
		return coremetrics.NopSink{}, nil
	},
	"prometheus": func(map[string]any) (coremetrics.MetricsSink, error) {
		return NewPromSink()
	},
	"influx": newInflux,
	"redis":  newRedis,
}

func init() {
	for name, f := range builtinSinks {
		_ = coremetrics.RegisterMetricsSink(name, f)
	}
}
