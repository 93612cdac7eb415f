//go:build linux

package kstat

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/shirou/gopsutil/v3/cpu"
	"golang.org/x/sys/unix"

	"github.com/ja7ad/intrd/pkg/system/proc"
)

// IntrNexus is the nexus name under which Linux IRQs are published.
const IntrNexus = "irq"

// Open returns the platform statistics handle, already updated once.
func Open(opts Options) (Handle, error) {
	h := NewLinux(opts)
	if err := h.Update(); err != nil {
		return nil, err
	}
	return h, nil
}

type irqOrigin struct {
	sig    string
	crtime uint64
}

// Linux synthesizes the cpu_info, cpu and pci_intrs kstats from procfs and
// sysfs. Every Update takes a fresh sample; Read returns data from the last
// Update.
//
// CPU busy counters come from /proc/stat through gopsutil: user+nice as
// user, system+irq+softirq+steal as kernel, idle+iowait as idle. Each PCI
// interrupt row of /proc/interrupts becomes pci_intrs:<irq>:irq, attached to
// the first CPU of its effective affinity, with time = count * nominal cost.
type Linux struct {
	opts Options

	times func() ([]cpu.TimesStat, error)
	now   func() uint64

	mu      sync.Mutex
	view    *Fake
	origins map[int]irqOrigin
}

var _ Handle = (*Linux)(nil)

func NewLinux(opts Options) *Linux {
	return &Linux{
		opts:    opts.withDefaults(),
		times:   func() ([]cpu.TimesStat, error) { return cpu.Times(true) },
		now:     monotonicNow,
		view:    NewFake(),
		origins: make(map[int]irqOrigin),
	}
}

func monotonicNow() uint64 {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return 0
	}
	return uint64(ts.Nano())
}

func (l *Linux) Update() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	present, err := proc.PresentCPUs(l.opts.SysRoot)
	if err != nil {
		return fmt.Errorf("kstat: present cpus: %w", err)
	}
	online, err := proc.OnlineCPUs(l.opts.SysRoot)
	if err != nil {
		return fmt.Errorf("kstat: online cpus: %w", err)
	}
	times, err := l.times()
	if err != nil {
		return fmt.Errorf("kstat: cpu times: %w", err)
	}
	intrs, err := proc.ReadInterrupts(l.opts.ProcRoot)
	if err != nil {
		return fmt.Errorf("kstat: interrupts: %w", err)
	}
	snap := l.now()

	view := NewFake()
	isOnline := make(map[int]bool, len(online))
	for _, id := range online {
		isOnline[id] = true
	}
	for _, id := range present {
		state := StateOffline
		if isOnline[id] {
			state = StateOnline
		}
		view.Set(CPUInfoKstat(id), snap, 0, map[string]Value{"state": Char([]byte(state))})
	}
	for _, t := range times {
		id, err := strconv.Atoi(strings.TrimPrefix(t.CPU, "cpu"))
		if err != nil {
			continue
		}
		view.Set(CPUSysKstat(id), snap, 0, map[string]Value{
			"cpu_nsec_user":   U64(secToNanos(t.User + t.Nice)),
			"cpu_nsec_kernel": U64(secToNanos(t.System + t.Irq + t.Softirq + t.Steal)),
			"cpu_nsec_idle":   U64(secToNanos(t.Idle + t.Iowait)),
		})
	}

	cost := uint64(l.opts.NominalIntrCost.Nanoseconds())
	seen := make(map[int]bool, len(intrs))
	for _, in := range intrs {
		if !in.IsPCI() {
			continue
		}
		aff, err := proc.ReadIRQAffinity(l.opts.ProcRoot, in.IRQ)
		if err != nil {
			// vanished between the two reads
			continue
		}
		seen[in.IRQ] = true

		// A new chip or driver behind the same number is a new interrupt.
		sig := in.Chip + "|" + in.Actions
		origin, ok := l.origins[in.IRQ]
		if !ok || origin.sig != sig {
			origin = irqOrigin{sig: sig, crtime: snap}
			l.origins[in.IRQ] = origin
		}

		view.SetIntr(IntrStat{
			Instance: in.IRQ,
			Nexus:    IntrNexus,
			CPU:      aff[0],
			Time:     in.Total() * cost,
			Ino:      uint64(in.IRQ),
			NumIno:   1,
			BusPath:  in.Chip,
			Name:     in.Actions,
			Type:     in.Kind(),
			Crtime:   origin.crtime,
			Snaptime: snap,
		})
	}
	for irq := range l.origins {
		if !seen[irq] {
			delete(l.origins, irq)
		}
	}

	l.view = view
	return nil
}

func (l *Linux) Filter(module string, instance int, name string) []*Kstat {
	l.mu.Lock()
	view := l.view
	l.mu.Unlock()
	return view.Filter(module, instance, name)
}

func (l *Linux) Read(ks *Kstat) (*Data, error) {
	l.mu.Lock()
	view := l.view
	l.mu.Unlock()
	return view.Read(ks)
}

func secToNanos(s float64) uint64 {
	if s <= 0 {
		return 0
	}
	return uint64(s * 1e9)
}
