package intrstat

import (
	"errors"
	"fmt"
)

// ErrTooFewCPUs is returned by Reader.Take when fewer than two CPUs are
// online; there is nothing to balance.
var ErrTooFewCPUs = errors.New("intrstat: fewer than two cpus online")

// ReadError is a missing or malformed field on a kstat that should be well
// formed. The tick that hit it is skipped.
type ReadError struct {
	Kstat string
	Field string
	Err   error
}

func (e *ReadError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("intrstat: read %s: %v", e.Kstat, e.Err)
	}
	return fmt.Sprintf("intrstat: read %s field %s: %v", e.Kstat, e.Field, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }
