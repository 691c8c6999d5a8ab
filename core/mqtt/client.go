package mqtt

// Client publishes dispatch setpoints to plants.
type Client interface {
	// SendSetpoint publishes the power target for a plant and returns the
	// command identifier attached to the message.
	SendSetpoint(dispatchID string, plantID int, powerKW float64) (commandID string, err error)
}
