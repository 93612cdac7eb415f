package kstat

import "time"

// DefaultNominalIntrCost is the service time charged per interrupt by
// backends that only count interrupts.
const DefaultNominalIntrCost = 2 * time.Microsecond

// Options configure the platform handle returned by Open.
type Options struct {
	ProcRoot string // default /proc
	SysRoot  string // default /sys

	// NominalIntrCost converts interrupt counts to service time where the
	// platform does not account time per vector.
	NominalIntrCost time.Duration
}

func (o Options) withDefaults() Options {
	if o.ProcRoot == "" {
		o.ProcRoot = "/proc"
	}
	if o.SysRoot == "" {
		o.SysRoot = "/sys"
	}
	if o.NominalIntrCost <= 0 {
		o.NominalIntrCost = DefaultNominalIntrCost
	}
	return o
}
