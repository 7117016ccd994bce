package models

import "time"

// NavigationRequest is one routed intent. Seq is a process-monotonic
// counter used for consumed-once bookkeeping; wall-clock At is
// informational only.
type NavigationRequest struct {
	ID     string
	Screen string
	Params map[string]any
	At     time.Time
	Seq    uint64
}

// NavigationOutcome labels what happened to a request, for telemetry.
const (
	NavDelivered  = "delivered"
	NavPending    = "pending"
	NavSuperseded = "superseded"
	NavExpired    = "expired"
)
