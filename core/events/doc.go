// Package events defines the events emitted on the event bus.
//
// Available event types:
//   - PlantRegistered: a plant was added to the registry
//   - DispatchCompleted: a demand was allocated across the active plants
package events
