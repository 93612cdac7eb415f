package balance

import (
	"github.com/ja7ad/intrd/pkg/intrstat"
	"github.com/ja7ad/intrd/pkg/types"
)

func ivd(bus string, ino uint64, cookie int, time uint64, numIno uint64) *intrstat.IvecDelta {
	return &intrstat.IvecDelta{
		Key:    intrstat.IvecKey{BusPath: bus, Ino: ino, Cookie: cookie},
		Time:   types.Nanos(time),
		NumIno: numIno,
		Name:   bus,
	}
}

func cpuD(id intrstat.CPUID, tot uint64, ivecs ...*intrstat.IvecDelta) *intrstat.CPUDelta {
	c := &intrstat.CPUDelta{ID: id, Tot: types.Nanos(tot), Ivecs: make(map[intrstat.IvecKey]*intrstat.IvecDelta)}
	for _, iv := range ivecs {
		iv.CPU = id
		c.Ivecs[iv.Key] = iv
		c.Intrs += iv.Time
		c.BigIntr = max(c.BigIntr, iv.Time)
	}
	return c
}

func deltaOf(cpus ...*intrstat.CPUDelta) *intrstat.Delta {
	d := &intrstat.Delta{Elapsed: 60e9, CPUs: make(map[intrstat.CPUID]*intrstat.CPUDelta)}
	for _, c := range cpus {
		d.CPUs[c.ID] = c
	}
	return d
}

// scenarioA is two CPUs at interrupt load 0.9 and 0.1.
func scenarioA() *intrstat.Delta {
	return deltaOf(
		cpuD(0, 1e9, ivd("/pci@0,0", 1, 1, 5e8, 1), ivd("/pci@0,0", 2, 2, 3e8, 1), ivd("/pci@0,0", 3, 3, 1e8, 1)),
		cpuD(1, 1e9, ivd("/pci@1,0", 1, 4, 1e8, 1)),
	)
}
