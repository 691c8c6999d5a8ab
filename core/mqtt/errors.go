package mqtt

import "errors"

// ErrRetriesExhausted is returned when a setpoint could not be published
// within the configured number of attempts.
var ErrRetriesExhausted = errors.New("publish retries exhausted")
