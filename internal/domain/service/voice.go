package service

import (
	"context"

	"FinSight/internal/domain/models"
)

// WakeWordBackend is one engine in the wake-word cascade.
//
// Available distinguishes "cannot be loaded at all" (wrap
// repository.ErrBackendUnavailable) from transient probe errors; either
// way a non-nil return skips the backend without a start attempt.
// Start returns (false, nil) or (false, err) when the engine loaded but
// refused to begin listening. After a successful Start the engine emits
// detections on the Detections channel until Stop.
type WakeWordBackend interface {
	Name() string
	Available(ctx context.Context) error
	Start(ctx context.Context) (bool, error)
	Detections() <-chan models.WakeEvent
	Stop(ctx context.Context) error
}

// Releaser is implemented by backends that hold native resources beyond
// Stop. The cascade calls Release during teardown when present.
type Releaser interface {
	Release(ctx context.Context) error
}

// IntentMatcher maps a detected phrase to a navigation target screen.
type IntentMatcher interface {
	Match(phrase string) (screen string, ok bool)
}
