// Package intrstat turns kernel statistics into per-CPU interrupt load
// snapshots, computes deltas between them and keeps a sliding window of
// deltas covering at least a fixed horizon.
package intrstat

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/ja7ad/intrd/pkg/kstat"
	"github.com/ja7ad/intrd/pkg/types"
)

// CPUID identifies a CPU while it stays online.
type CPUID int

// IvecKey identifies an interrupt vector independently of the CPU
// servicing it.
type IvecKey struct {
	BusPath string
	Ino     uint64
	Cookie  int
}

func (k IvecKey) String() string {
	return fmt.Sprintf("%s ino %d cookie %d", k.BusPath, k.Ino, k.Cookie)
}

// Less orders keys by bus path, ino, cookie.
func (k IvecKey) Less(o IvecKey) bool {
	if k.BusPath != o.BusPath {
		return k.BusPath < o.BusPath
	}
	if k.Ino != o.Ino {
		return k.Ino < o.Ino
	}
	return k.Cookie < o.Cookie
}

// Ivec is one interrupt vector as sampled.
type Ivec struct {
	Key    IvecKey
	CPU    CPUID
	Time   types.Nanos // cumulative service time
	Crtime uint64
	Pil    uint64
	NumIno uint64 // vectors sharing Key.BusPath and Key.Ino
	Name   string
	IHS    uint64
	Nexus  string
}

// CPU is one online CPU as sampled. Tot is user+kernel+idle, so interrupt
// load is a share of all time, not of busy time.
type CPU struct {
	ID     CPUID
	Tot    types.Nanos
	Crtime uint64
	Ivecs  map[IvecKey]*Ivec
}

// Snapshot is every online CPU and the vectors attached to it.
//
// kstats are not sampled atomically. MinSnap and MaxSnap bound the snaptimes
// seen during the read; LowConfidence is set when that spread exceeds the
// configured fraction of the sampling interval.
type Snapshot struct {
	Snaptime      uint64
	MinSnap       uint64
	MaxSnap       uint64
	LowConfidence bool
	CPUs          map[CPUID]*CPU
}

// NumIvecs returns the number of vectors across all CPUs.
func (s *Snapshot) NumIvecs() int {
	n := 0
	for _, c := range s.CPUs {
		n += len(c.Ivecs)
	}
	return n
}

// SortedCPUs returns CPU ids in ascending order.
func (s *Snapshot) SortedCPUs() []CPUID {
	return sortedIDs(s.CPUs)
}

func sortedIDs[V any](m map[CPUID]V) []CPUID {
	ids := make([]CPUID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Reader builds snapshots from a kstat handle. It never writes through it.
type Reader struct {
	Handle kstat.Handle
	Logger *slog.Logger

	// TimeRangeTooHigh is the fraction of the sampling interval the
	// snaptime spread may reach before a snapshot is low confidence.
	TimeRangeTooHigh float64
}

type snapRange struct {
	min, max uint64
	seen     bool
}

func (r *snapRange) add(t uint64) {
	if !r.seen || t < r.min {
		r.min = t
	}
	if !r.seen || t > r.max {
		r.max = t
	}
	r.seen = true
}

// Take samples the handle. interval is the time since the previous sample
// and only feeds the breadth check. It returns ErrTooFewCPUs when fewer than
// two CPUs are on-line and a *ReadError when a kstat is malformed.
func (r *Reader) Take(interval time.Duration) (*Snapshot, error) {
	online, err := r.onlineCPUs()
	if err != nil {
		return nil, err
	}
	if len(online) < 2 {
		return nil, ErrTooFewCPUs
	}

	var span snapRange
	snap := &Snapshot{CPUs: make(map[CPUID]*CPU, len(online))}
	for _, id := range online {
		c, snaptime, err := r.readCPU(id)
		if err != nil {
			return nil, err
		}
		span.add(snaptime)
		snap.CPUs[id] = c
	}

	groups := make(map[groupKey][]*Ivec)
	for _, ks := range r.Handle.Filter(kstat.ModPCIIntrs, kstat.AnyInstance, "") {
		iv, snaptime, err := r.readIvec(ks)
		if err != nil {
			return nil, err
		}
		if iv == nil {
			continue
		}
		c, ok := snap.CPUs[iv.CPU]
		if !ok {
			continue
		}
		span.add(snaptime)
		if c.Ivecs == nil {
			c.Ivecs = make(map[IvecKey]*Ivec)
		}
		c.Ivecs[iv.Key] = iv
		gk := groupKey{iv.Key.BusPath, iv.Key.Ino}
		groups[gk] = append(groups[gk], iv)
	}

	// Vectors without num_ino get the number of vectors sharing their ino.
	for _, ivs := range groups {
		for _, iv := range ivs {
			if iv.NumIno == 0 {
				iv.NumIno = uint64(len(ivs))
			}
		}
	}

	snap.MinSnap, snap.MaxSnap = span.min, span.max
	snap.Snaptime = span.max
	if interval > 0 && r.TimeRangeTooHigh > 0 {
		limit := r.TimeRangeTooHigh * float64(interval.Nanoseconds())
		if float64(span.max-span.min) > limit {
			snap.LowConfidence = true
			r.logger().Debug("kstat sampling spread is high",
				"spread", types.Nanos(span.max-span.min).Humanized(), "interval", interval)
		}
	}
	return snap, nil
}

type groupKey struct {
	busPath string
	ino     uint64
}

func (r *Reader) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

func (r *Reader) onlineCPUs() ([]CPUID, error) {
	var out []CPUID
	for _, ks := range r.Handle.Filter(kstat.ModCPUInfo, kstat.AnyInstance, "") {
		d, err := r.Handle.Read(ks)
		if err != nil {
			return nil, &ReadError{Kstat: ks.String(), Err: err}
		}
		state, err := d.String("state")
		if err != nil {
			return nil, &ReadError{Kstat: ks.String(), Field: "state", Err: err}
		}
		if state == kstat.StateOnline {
			out = append(out, CPUID(ks.Instance))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

var cpuTimeFields = []string{"cpu_nsec_user", "cpu_nsec_kernel", "cpu_nsec_idle"}

func (r *Reader) readCPU(id CPUID) (*CPU, uint64, error) {
	name := kstat.CPUSysKstat(int(id)).String()
	kss := r.Handle.Filter(kstat.ModCPU, int(id), kstat.NameSys)
	if len(kss) == 0 {
		return nil, 0, &ReadError{Kstat: name, Err: kstat.ErrNotFound}
	}
	d, err := r.Handle.Read(kss[0])
	if err != nil {
		return nil, 0, &ReadError{Kstat: name, Err: err}
	}
	var tot uint64
	for _, f := range cpuTimeFields {
		v, err := d.Uint64(f)
		if err != nil {
			return nil, 0, &ReadError{Kstat: name, Field: f, Err: err}
		}
		tot += v
	}
	return &CPU{ID: id, Tot: types.Nanos(tot), Crtime: d.Crtime}, d.Snaptime, nil
}

// readIvec returns nil for disabled vectors.
func (r *Reader) readIvec(ks *kstat.Kstat) (*Ivec, uint64, error) {
	d, err := r.Handle.Read(ks)
	if err != nil {
		return nil, 0, &ReadError{Kstat: ks.String(), Err: err}
	}
	if typ, err := d.String("type"); err == nil && strings.EqualFold(typ, kstat.StateDisabled) {
		return nil, 0, nil
	}

	u := func(f string) uint64 {
		if err != nil {
			return 0
		}
		var v uint64
		v, err = d.Uint64(f)
		if err != nil {
			err = &ReadError{Kstat: ks.String(), Field: f, Err: err}
		}
		return v
	}
	s := func(f string) string {
		if err != nil {
			return ""
		}
		var v string
		v, err = d.String(f)
		if err != nil {
			err = &ReadError{Kstat: ks.String(), Field: f, Err: err}
		}
		return v
	}

	iv := &Ivec{
		CPU:    CPUID(u("cpu")),
		Time:   types.Nanos(u("time")),
		Pil:    u("pil"),
		IHS:    u("ihs"),
		Name:   s("name"),
		Crtime: d.Crtime,
		Nexus:  ks.Name,
		Key: IvecKey{
			Ino:     u("ino"),
			BusPath: s("buspath"),
			Cookie:  ks.Instance,
		},
	}
	if err != nil {
		return nil, 0, err
	}
	if d.Has("num_ino") {
		if iv.NumIno, err = d.Uint64("num_ino"); err != nil {
			return nil, 0, &ReadError{Kstat: ks.String(), Field: "num_ino", Err: err}
		}
	}
	return iv, d.Snaptime, nil
}
