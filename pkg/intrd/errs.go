package intrd

import "errors"

var (
	// ErrNoStatsHandle indicates the daemon was built without a statistics
	// handle.
	ErrNoStatsHandle = errors.New("intrd: no statistics handle")

	// ErrNoBinder indicates the daemon was built without an interrupt binder.
	ErrNoBinder = errors.New("intrd: no interrupt binder")

	// ErrInvalidConfig wraps configuration validation failures.
	ErrInvalidConfig = errors.New("intrd: invalid config")
)
