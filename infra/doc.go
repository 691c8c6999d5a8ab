// Package infra groups the adapters that connect the VPP core to the outside
// world:
//
//   - logger: zerolog loggers tagged by component and plant
//   - metrics: Prometheus, InfluxDB and Redis sinks plus the plant collector
//   - monitoring: Sentry error reporting
//   - mqtt: setpoint publication to plants
//   - telemetry: read-only plant output readings
//
// Sub-packages implement interfaces from core and are wired together by app.
package infra
