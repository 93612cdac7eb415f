// Package pcitool retargets hardware interrupts to CPUs and reports whether
// the platform's interrupt controller supports per-interrupt binding.
package pcitool

import (
	"context"
	"fmt"
	"strings"
)

// CtlrType is the interrupt controller class.
type CtlrType uint8

const (
	CtlrUnknown  CtlrType = 0
	CtlrPCPlusMP CtlrType = 3
	CtlrAPIX     CtlrType = 4
)

func (c CtlrType) String() string {
	switch c {
	case CtlrPCPlusMP:
		return "pcplusmp"
	case CtlrAPIX:
		return "apix"
	default:
		return "unknown"
	}
}

// SupportsBinding reports whether interrupts can be bound to single CPUs.
func (c CtlrType) SupportsBinding() bool {
	return c == CtlrPCPlusMP || c == CtlrAPIX
}

// ClassifyChip maps a Linux interrupt chip name to a controller class:
// IO-APIC routed lines behave like pcplusmp, message signaled interrupts
// (with or without remapping) like apix.
func ClassifyChip(chip string) CtlrType {
	switch {
	case strings.Contains(chip, "MSI"):
		return CtlrAPIX
	case strings.Contains(chip, "IO-APIC"):
		return CtlrPCPlusMP
	default:
		return CtlrUnknown
	}
}

// MoveRequest retargets one interrupt. NumIno > 1 moves the whole group of
// vectors sharing the device.
type MoveRequest struct {
	BusPath string
	OldCPU  int
	CPU     int
	Ino     uint64
	NumIno  uint64
}

// Group reports whether the request moves a multi-vector group.
func (r MoveRequest) Group() bool { return r.NumIno > 1 }

func (r MoveRequest) String() string {
	s := fmt.Sprintf("%s ino %d cpu %d->%d", r.BusPath, r.Ino, r.OldCPU, r.CPU)
	if r.Group() {
		s += fmt.Sprintf(" (group of %d)", r.NumIno)
	}
	return s
}

// Binder is the privileged interrupt reassignment interface.
type Binder interface {
	MoveIntr(ctx context.Context, req MoveRequest) error
	IsAPIC(busPath string) (bool, error)
}
