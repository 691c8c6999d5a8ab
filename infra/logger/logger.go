// Package logger builds the zerolog-backed loggers used by the VPP services.
// Every entry carries a component field; plant-scoped loggers add plant_id.
package logger

import corelogger "github.com/kilianp07/vpp/core/logger"

type Logger = corelogger.Logger

type NopLogger = corelogger.NopLogger

// New returns a Logger for the given component. APP_ENV=dev switches to the
// console format.
func New(component string) Logger {
	return NewZerologLogger(component)
}

// ForPlant returns a component logger whose entries are tagged with the
// plant id, for code that acts on behalf of a single plant.
func ForPlant(component string, plantID int) Logger {
	z := newZerolog(component).With().Int("plant_id", plantID).Logger()
	return &ZerologLogger{log: z}
}
