package repository

import "errors"

var (
	// ErrBackendUnavailable means a voice backend cannot be loaded at all,
	// as opposed to loading and then failing to start.
	ErrBackendUnavailable = errors.New("voice backend unavailable")

	// ErrHealthCheckFailed marks a failed or timed-out backend probe.
	ErrHealthCheckFailed = errors.New("backend health check failed")

	// ErrQueryBlocked is returned when a live query is attempted before the
	// gate has opened.
	ErrQueryBlocked = errors.New("query blocked by health gate")

	// ErrNavigationUnresolved marks a pending navigation that expired
	// before any handler bound.
	ErrNavigationUnresolved = errors.New("navigation target unresolved")

	// ErrStreamClosed is returned by push stream reads after Close.
	ErrStreamClosed = errors.New("push stream closed")
)
