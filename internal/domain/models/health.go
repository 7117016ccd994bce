package models

import "time"

// GateState tracks the backend health check lifecycle.
type GateState string

const (
	GateUnknown   GateState = "unknown"
	GateChecking  GateState = "checking"
	GateHealthy   GateState = "healthy"
	GateUnhealthy GateState = "unhealthy"
)

// HealthStatus is the gate's externally visible state. CanQuery lags
// Healthy by the configured settle delay and never becomes true after a
// failed check.
type HealthStatus struct {
	State     GateState
	Healthy   bool
	CanQuery  bool
	CheckedAt time.Time
	Err       string
}
