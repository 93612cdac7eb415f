package intrd

import (
	"io"
	"log/slog"
	"math"
	"time"

	"github.com/ja7ad/intrd/pkg/kstat"
	"github.com/ja7ad/intrd/pkg/pcitool"
)

// sim drives a kstat.Fake like a kernel: every advance moves time forward
// by step, charging each interrupt its load fraction of the step.
type sim struct {
	f     *kstat.Fake
	step  time.Duration
	now   uint64
	cpus  map[int]*kstat.CPUStat
	intrs map[int]*kstat.IntrStat
	load  map[int]float64
}

func newSim(ncpu int, step time.Duration) *sim {
	s := &sim{
		f:     kstat.NewFake(),
		step:  step,
		now:   1_000_000_000,
		cpus:  make(map[int]*kstat.CPUStat),
		intrs: make(map[int]*kstat.IntrStat),
		load:  make(map[int]float64),
	}
	for id := 0; id < ncpu; id++ {
		s.cpus[id] = &kstat.CPUStat{ID: id, State: kstat.StateOnline}
	}
	return s
}

// addIntr attaches interrupt inst to cpu with a load fraction of its time.
func (s *sim) addIntr(inst, cpu int, load float64) {
	s.intrs[inst] = &kstat.IntrStat{
		Instance: inst,
		Nexus:    "npe",
		CPU:      cpu,
		Ino:      uint64(inst),
		BusPath:  "/pci@0,0",
		Name:     "dev",
	}
	s.load[inst] = load
}

func (s *sim) publish() {
	s.f.Reset()
	for _, c := range s.cpus {
		c.Snaptime = s.now
		s.f.SetCPU(*c)
	}
	for _, in := range s.intrs {
		if s.cpus[in.CPU].State != kstat.StateOnline {
			continue
		}
		in.Snaptime = s.now
		s.f.SetIntr(*in)
	}
}

func (s *sim) advance() {
	ns := uint64(s.step.Nanoseconds())
	s.now += ns
	for _, c := range s.cpus {
		c.Idle += ns
	}
	for inst, in := range s.intrs {
		in.Time += uint64(math.Round(s.load[inst] * float64(ns)))
	}
	s.publish()
}

// follow applies recorded moves to the simulated routing table.
func (s *sim) follow(b *pcitool.Fake) {
	for _, m := range b.Moves() {
		for _, in := range s.intrs {
			if in.BusPath == m.BusPath && in.Ino == m.Ino {
				in.CPU = m.CPU
			}
		}
	}
	b.Reset()
}

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.StatsLen = 20 * time.Second
	cfg.MaxDeltaSpan = 60 * time.Second
	return cfg
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
