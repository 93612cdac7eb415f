//go:build linux

package proc

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	DefaultProcRoot = "/proc"
	DefaultSysRoot  = "/sys"
)

// Interrupt is one numbered row of /proc/interrupts.
type Interrupt struct {
	IRQ     int
	Counts  map[int]uint64 // per online CPU id
	Chip    string         // e.g. "IR-PCI-MSIX-0000:3b:00.0", "IO-APIC"
	Actions string         // driver action names, e.g. "nvme0q1"
}

// Total returns the interrupt count summed over all CPUs.
func (i Interrupt) Total() uint64 {
	var t uint64
	for _, v := range i.Counts {
		t += v
	}
	return t
}

// IsPCI reports whether the interrupt is delivered by a PCI interrupt chip
// (legacy INTx routed through an IO-APIC, MSI or MSI-X).
func (i Interrupt) IsPCI() bool {
	return strings.Contains(i.Chip, "PCI") || strings.Contains(i.Chip, "IO-APIC")
}

// Kind classifies the delivery mechanism as "msix", "msi" or "fixed".
func (i Interrupt) Kind() string {
	switch {
	case strings.Contains(i.Chip, "MSIX") || strings.Contains(i.Chip, "MSI-X"):
		return "msix"
	case strings.Contains(i.Chip, "MSI"):
		return "msi"
	default:
		return "fixed"
	}
}

// ReadInterrupts parses <procRoot>/interrupts.
func ReadInterrupts(procRoot string) ([]Interrupt, error) {
	f, err := os.Open(filepath.Join(procRoot, "interrupts"))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseInterrupts(f)
}

// ReadCPUList reads a cpu list file such as
// /sys/devices/system/cpu/online.
func ReadCPUList(path string) ([]int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseCPUList(string(b))
}

// OnlineCPUs returns the CPUs currently online.
func OnlineCPUs(sysRoot string) ([]int, error) {
	return ReadCPUList(filepath.Join(sysRoot, "devices/system/cpu/online"))
}

// PresentCPUs returns the CPUs physically present, online or not.
func PresentCPUs(sysRoot string) ([]int, error) {
	return ReadCPUList(filepath.Join(sysRoot, "devices/system/cpu/present"))
}

// IRQDir returns <procRoot>/irq/<irq>.
func IRQDir(procRoot string, irq int) string {
	return filepath.Join(procRoot, "irq", strconv.Itoa(irq))
}

// ReadIRQAffinity returns the CPUs an IRQ is delivered to. It prefers
// effective_affinity_list (the CPUs the chip actually targets) and falls back
// to smp_affinity_list on kernels without it.
func ReadIRQAffinity(procRoot string, irq int) ([]int, error) {
	dir := IRQDir(procRoot, irq)
	for _, name := range []string{"effective_affinity_list", "smp_affinity_list"} {
		cpus, err := ReadCPUList(filepath.Join(dir, name))
		if err == nil && len(cpus) > 0 {
			return cpus, nil
		}
	}
	return nil, fmt.Errorf("%w: irq %d", ErrNoAffinity, irq)
}

// WriteIRQAffinity binds an IRQ to the given CPUs via smp_affinity_list.
func WriteIRQAffinity(procRoot string, irq int, cpus []int) error {
	if len(cpus) == 0 {
		return fmt.Errorf("%w: irq %d", ErrEmptyAffinity, irq)
	}
	path := filepath.Join(IRQDir(procRoot, irq), "smp_affinity_list")
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(FormatCPUList(cpus) + "\n"); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
