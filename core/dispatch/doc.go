// Package dispatch allocates a power demand across the active plants of the
// registry.
//
// Key components:
//   - Dispatcher: pure allocation policy over a plant snapshot.
//   - MeritOrderDispatcher: greedy largest-capacity-first allocation.
//   - Engine: validates the demand, takes the snapshot, runs the dispatcher
//     and fans the result out to metrics, the audit log, the event bus and the
//     optional setpoint publisher.
//
// Dispatch flow:
//  1. Validate demand (> 0)
//  2. Snapshot active plants
//  3. Allocate
//  4. Record metrics and audit log
//  5. Publish setpoints and events
//
// A dispatch never mutates the registry. Failures in steps 4 and 5 are logged
// and do not change the returned allocation.
package dispatch
