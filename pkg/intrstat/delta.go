package intrstat

import (
	"fmt"
	"log/slog"

	"github.com/ja7ad/intrd/pkg/system/util"
	"github.com/ja7ad/intrd/pkg/types"
)

// IvecDelta is one vector's service time over a delta, attached to the CPU
// that serviced it at the end of the delta.
type IvecDelta struct {
	Key    IvecKey
	CPU    CPUID
	Time   types.Nanos
	NumIno uint64
	Pil    uint64
	Name   string
	Nexus  string
}

// CPUDelta is one CPU's change over a delta. Intrs is the service time of
// the vectors attached to it and BigIntr the largest of them.
type CPUDelta struct {
	ID      CPUID
	Tot     types.Nanos
	Intrs   types.Nanos
	BigIntr types.Nanos
	Ivecs   map[IvecKey]*IvecDelta
}

// Load is the CPU's interrupt load fraction, Intrs over Tot with Tot floored
// at eps nanoseconds.
func (c *CPUDelta) Load(eps float64) float64 {
	if eps < 1 {
		eps = 1
	}
	return util.SafeDiv(float64(c.Intrs), float64(c.Tot), eps)
}

// Delta is the change between two snapshots. Missing is set when the set of
// CPUs or vectors changed or a counter was reset; such a delta carries no
// per-entity data and invalidates the window.
type Delta struct {
	Elapsed       types.Nanos
	Missing       bool
	MissingReason string
	AvgIntrLoad   float64
	CPUs          map[CPUID]*CPUDelta
}

// SortedCPUs returns CPU ids in ascending order.
func (d *Delta) SortedCPUs() []CPUID {
	return sortedIDs(d.CPUs)
}

func missing(elapsed types.Nanos, format string, args ...any) *Delta {
	return &Delta{Elapsed: elapsed, Missing: true, MissingReason: fmt.Sprintf(format, args...)}
}

// GenerateDelta computes cur minus prev. Vectors are matched by key, so a
// vector that moved between CPUs is not missing; its time is charged to the
// CPU serving it in cur. Elapsed is zero unless cur is later than prev.
func GenerateDelta(prev, cur *Snapshot) *Delta {
	var elapsed types.Nanos
	if cur.Snaptime > prev.Snaptime {
		elapsed = types.Nanos(cur.Snaptime - prev.Snaptime)
	}

	if len(prev.CPUs) != len(cur.CPUs) {
		return missing(elapsed, "cpu count changed from %d to %d", len(prev.CPUs), len(cur.CPUs))
	}
	for id, pc := range prev.CPUs {
		cc, ok := cur.CPUs[id]
		if !ok {
			return missing(elapsed, "cpu %d went away", id)
		}
		if cc.Crtime != pc.Crtime {
			return missing(elapsed, "cpu %d counters recreated", id)
		}
	}

	prevIvecs := indexIvecs(prev)
	curIvecs := indexIvecs(cur)
	if len(prevIvecs) != len(curIvecs) {
		return missing(elapsed, "ivec count changed from %d to %d", len(prevIvecs), len(curIvecs))
	}

	d := &Delta{Elapsed: elapsed, CPUs: make(map[CPUID]*CPUDelta, len(cur.CPUs))}
	for id, cc := range cur.CPUs {
		tot, ok := util.SubU64(uint64(cc.Tot), uint64(prev.CPUs[id].Tot))
		if !ok {
			return missing(elapsed, "cpu %d counters went backwards", id)
		}
		d.CPUs[id] = &CPUDelta{ID: id, Tot: types.Nanos(tot), Ivecs: make(map[IvecKey]*IvecDelta)}
	}

	for key, civ := range curIvecs {
		piv, ok := prevIvecs[key]
		if !ok {
			return missing(elapsed, "ivec %s appeared", key)
		}
		if piv.Crtime != civ.Crtime {
			return missing(elapsed, "ivec %s recreated", key)
		}
		t, ok := util.SubU64(uint64(civ.Time), uint64(piv.Time))
		if !ok {
			return missing(elapsed, "ivec %s time went backwards", key)
		}
		cd := d.CPUs[civ.CPU]
		cd.Ivecs[key] = &IvecDelta{
			Key:    key,
			CPU:    civ.CPU,
			Time:   types.Nanos(t),
			NumIno: civ.NumIno,
			Pil:    civ.Pil,
			Name:   civ.Name,
			Nexus:  civ.Nexus,
		}
	}

	d.finish()
	return d
}

func indexIvecs(s *Snapshot) map[IvecKey]*Ivec {
	out := make(map[IvecKey]*Ivec, s.NumIvecs())
	for _, c := range s.CPUs {
		for k, iv := range c.Ivecs {
			out[k] = iv
		}
	}
	return out
}

// finish recomputes Intrs, BigIntr and AvgIntrLoad from the vectors.
func (d *Delta) finish() {
	if len(d.CPUs) == 0 {
		d.AvgIntrLoad = 0
		return
	}
	var sum float64
	for _, c := range d.CPUs {
		c.Intrs, c.BigIntr = 0, 0
		for _, iv := range c.Ivecs {
			c.Intrs += iv.Time
			if iv.Time > c.BigIntr {
				c.BigIntr = iv.Time
			}
		}
		sum += c.Load(1)
	}
	d.AvgIntrLoad = sum / float64(len(d.CPUs))
}

// Compress sums a run of deltas into one spanning all of them. A CPU or
// vector absent from some members means the window should have been
// discarded; it is left out of the result and logged. Vectors are attached
// to the CPU serving them in the latest member.
func Compress(logger *slog.Logger, deltas []*Delta) *Delta {
	if logger == nil {
		logger = slog.Default()
	}
	out := &Delta{CPUs: make(map[CPUID]*CPUDelta)}
	if len(deltas) == 0 {
		return out
	}

	cpuSeen := make(map[CPUID]int)
	ivecSeen := make(map[IvecKey]int)
	ivecs := make(map[IvecKey]*IvecDelta)
	for _, d := range deltas {
		out.Elapsed += d.Elapsed
		out.Missing = out.Missing || d.Missing
		for id, c := range d.CPUs {
			cpuSeen[id]++
			oc, ok := out.CPUs[id]
			if !ok {
				oc = &CPUDelta{ID: id, Ivecs: make(map[IvecKey]*IvecDelta)}
				out.CPUs[id] = oc
			}
			oc.Tot += c.Tot
			for k, iv := range c.Ivecs {
				ivecSeen[k]++
				acc, ok := ivecs[k]
				if !ok {
					cp := *iv
					cp.Time = 0
					acc = &cp
					ivecs[k] = acc
				}
				acc.Time += iv.Time
				acc.CPU = iv.CPU
				acc.NumIno = iv.NumIno
			}
		}
	}

	for id, n := range cpuSeen {
		if n != len(deltas) {
			logger.Warn("cpu missing from part of the delta window", "cpu", id, "present", n, "window", len(deltas))
			delete(out.CPUs, id)
		}
	}
	for k, iv := range ivecs {
		if ivecSeen[k] != len(deltas) {
			logger.Warn("ivec missing from part of the delta window", "ivec", k.String(), "present", ivecSeen[k], "window", len(deltas))
			continue
		}
		c, ok := out.CPUs[iv.CPU]
		if !ok {
			continue
		}
		c.Ivecs[k] = iv
	}

	out.finish()
	return out
}
