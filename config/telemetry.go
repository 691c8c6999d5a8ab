package config

import "fmt"

// TelemetryConfig holds configuration for the plant telemetry listener.
type TelemetryConfig struct {
	Enabled bool `json:"enabled"`
	// TopicPrefix is the root of per-plant topics; readings are expected on
	// <prefix>/<id>/telemetry.
	TopicPrefix string `json:"topic_prefix"`
	QoS         byte   `json:"qos"`
	// StaleSeconds marks readings older than this as stale in the API.
	StaleSeconds int `json:"stale_seconds"`
}

// SetDefaults applies sane defaults.
func (c *TelemetryConfig) SetDefaults() {
	if c.TopicPrefix == "" {
		c.TopicPrefix = "vpp/plants"
	}
	if c.StaleSeconds <= 0 {
		c.StaleSeconds = 60
	}
}

// Validate checks the QoS range.
func (c TelemetryConfig) Validate() error {
	if c.QoS > 2 {
		return fmt.Errorf("telemetry.qos must be 0, 1 or 2")
	}
	return nil
}
