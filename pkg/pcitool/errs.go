package pcitool

import "errors"

var (
	// ErrUnsupported indicates no interrupt binder for this platform.
	ErrUnsupported = errors.New("pcitool: unsupported platform")

	// ErrNotMovable indicates the interrupt controller refused to retarget
	// an interrupt.
	ErrNotMovable = errors.New("pcitool: interrupt cannot be moved")
)
