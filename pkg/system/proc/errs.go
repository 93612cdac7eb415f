package proc

import "errors"

var (
	// ErrNoHeader indicates that /proc/interrupts had no CPU header line.
	ErrNoHeader = errors.New("proc: no cpu header in interrupts")

	// ErrBadCPUList indicates a malformed CPU list such as "0-3,x".
	ErrBadCPUList = errors.New("proc: malformed cpu list")

	// ErrNoAffinity indicates that neither effective_affinity_list nor
	// smp_affinity_list could be read for an IRQ.
	ErrNoAffinity = errors.New("proc: no irq affinity")

	// ErrEmptyAffinity indicates an affinity write with no CPUs.
	ErrEmptyAffinity = errors.New("proc: empty affinity")
)
