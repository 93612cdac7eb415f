//go:build linux

package proc

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// ParseCPUList parses the kernel's cpu list format ("0-3,8,10-11") into a
// sorted, de-duplicated slice of CPU ids. Empty input yields an empty list.
func ParseCPUList(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	set := map[int]struct{}{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi, isRange := strings.Cut(part, "-")
		first, err := strconv.Atoi(lo)
		if err != nil || first < 0 {
			return nil, fmt.Errorf("%w: %q", ErrBadCPUList, s)
		}
		last := first
		if isRange {
			last, err = strconv.Atoi(hi)
			if err != nil || last < first {
				return nil, fmt.Errorf("%w: %q", ErrBadCPUList, s)
			}
		}
		for c := first; c <= last; c++ {
			set[c] = struct{}{}
		}
	}
	out := make([]int, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Ints(out)
	return out, nil
}

// FormatCPUList renders CPU ids in the kernel's list format, collapsing runs.
func FormatCPUList(cpus []int) string {
	if len(cpus) == 0 {
		return ""
	}
	sorted := append([]int(nil), cpus...)
	sort.Ints(sorted)

	var b strings.Builder
	start, prev := sorted[0], sorted[0]
	flush := func() {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		if start == prev {
			b.WriteString(strconv.Itoa(start))
		} else {
			fmt.Fprintf(&b, "%d-%d", start, prev)
		}
	}
	for _, c := range sorted[1:] {
		if c == prev {
			continue
		}
		if c == prev+1 {
			prev = c
			continue
		}
		flush()
		start, prev = c, c
	}
	flush()
	return b.String()
}

// ParseInterrupts parses the "/proc/interrupts" format.
//
// The first line names the online CPUs ("CPU0 CPU1 ..."); each following line
// starting with a numeric IRQ carries one counter per online CPU, then the
// interrupt chip, the hardware irq/trigger and the action (driver) names.
// Architecture specific rows (NMI, LOC, ERR, ...) are skipped.
func ParseInterrupts(r io.Reader) ([]Interrupt, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, err
		}
		return nil, ErrNoHeader
	}
	var cpus []int
	for _, f := range strings.Fields(sc.Text()) {
		id, err := strconv.Atoi(strings.TrimPrefix(f, "CPU"))
		if err != nil || !strings.HasPrefix(f, "CPU") {
			continue
		}
		cpus = append(cpus, id)
	}
	if len(cpus) == 0 {
		return nil, ErrNoHeader
	}

	var out []Interrupt
	for sc.Scan() {
		label, rest, ok := strings.Cut(sc.Text(), ":")
		if !ok {
			continue
		}
		irq, err := strconv.Atoi(strings.TrimSpace(label))
		if err != nil {
			continue
		}
		fields := strings.Fields(rest)
		in := Interrupt{IRQ: irq, Counts: make(map[int]uint64, len(cpus))}
		n := 0
		for n < len(cpus) && n < len(fields) {
			v, err := strconv.ParseUint(fields[n], 10, 64)
			if err != nil {
				break
			}
			in.Counts[cpus[n]] = v
			n++
		}
		tail := fields[n:]
		if len(tail) > 0 {
			in.Chip = tail[0]
		}
		// tail[1] is the hwirq and trigger, e.g. "327680-edge".
		if len(tail) > 2 {
			in.Actions = strings.Join(tail[2:], " ")
		}
		out = append(out, in)
	}
	return out, sc.Err()
}
