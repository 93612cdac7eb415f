package intrstat

import (
	"github.com/ja7ad/intrd/pkg/types"
)

func iv(bus string, ino uint64, cookie int, time uint64) *Ivec {
	return &Ivec{Key: IvecKey{BusPath: bus, Ino: ino, Cookie: cookie}, Time: types.Nanos(time), NumIno: 1, Name: bus}
}

func cpuAt(id CPUID, tot uint64, ivecs ...*Ivec) *CPU {
	c := &CPU{ID: id, Tot: types.Nanos(tot), Ivecs: make(map[IvecKey]*Ivec)}
	for _, v := range ivecs {
		cp := *v
		cp.CPU = id
		c.Ivecs[cp.Key] = &cp
	}
	return c
}

func snapAt(t uint64, cpus ...*CPU) *Snapshot {
	s := &Snapshot{Snaptime: t, MinSnap: t, MaxSnap: t, CPUs: make(map[CPUID]*CPU)}
	for _, c := range cpus {
		s.CPUs[c.ID] = c
	}
	return s
}
