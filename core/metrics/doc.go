// Package metrics defines the sinks that observe registry and dispatch
// activity. Sinks like PromSink, InfluxSink and RedisSink (infra/metrics)
// record dispatch summaries and capacity changes and can be combined with
// NewMultiSink. The factory helpers return a MultiSink automatically when
// multiple sinks are configured.
package metrics
