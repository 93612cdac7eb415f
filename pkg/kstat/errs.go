package kstat

import "errors"

var (
	// ErrNoField indicates a named field absent from a kstat.
	ErrNoField = errors.New("kstat: no such field")

	// ErrFieldType indicates a named field of an unexpected kind.
	ErrFieldType = errors.New("kstat: unexpected field type")

	// ErrNotFound indicates a kstat that no longer exists.
	ErrNotFound = errors.New("kstat: not found")

	// ErrUnsupported indicates no statistics backend for this platform.
	ErrUnsupported = errors.New("kstat: unsupported platform")

	// ErrScenarioDone is returned by Player.Update after the last step.
	ErrScenarioDone = errors.New("kstat: scenario exhausted")
)
