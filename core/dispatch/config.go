package dispatch

// AlgorithmMeritOrder selects MeritOrderDispatcher.
const AlgorithmMeritOrder = "merit_order"

// Config defines dispatch-related settings.
type Config struct {
	// Algorithm names the allocation policy.
	Algorithm string `json:"algorithm"`
	// PublishSetpoints sends each allocation to its plant over MQTT.
	PublishSetpoints bool `json:"publish_setpoints"`
	// SetpointWorkers bounds the number of concurrent setpoint publications.
	SetpointWorkers int `json:"setpoint_workers"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Algorithm == "" {
		c.Algorithm = AlgorithmMeritOrder
	}
	if c.SetpointWorkers <= 0 {
		c.SetpointWorkers = 4
	}
}
