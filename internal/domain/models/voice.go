package models

import "time"

// BackendState is the per-backend lifecycle within a cascade run.
// Unavailable means the backend could not be loaded at all (probe failed);
// FailedToStart means it loaded but refused to begin listening.
type BackendState string

const (
	BackendNotTried      BackendState = "not_tried"
	BackendUnavailable   BackendState = "unavailable"
	BackendActive        BackendState = "active"
	BackendFailedToStart BackendState = "failed_to_start"
)

// CascadeState is the overall wake-word feature state.
type CascadeState string

const (
	CascadeIdle      CascadeState = "idle"
	CascadeStarting  CascadeState = "starting"
	CascadeListening CascadeState = "listening"
	CascadeExhausted CascadeState = "exhausted"
	CascadeStopped   CascadeState = "stopped"
)

// BackendStatus pairs a backend name with its last observed state.
type BackendStatus struct {
	Name   string
	State  BackendState
	Detail string // probe/start error text, if any
}

// WakeEvent is one debounced wake-word detection.
type WakeEvent struct {
	Backend string
	Keyword string
	At      time.Time
}
