package kstat

import "fmt"

// Well-known modules, names and field values consumed by the daemon.
const (
	ModCPUInfo  = "cpu_info"
	ModCPU      = "cpu"
	ModPCIIntrs = "pci_intrs"
	NameSys     = "sys"

	StateOnline   = "on-line"
	StateOffline  = "off-line"
	StateDisabled = "disabled"
)

// CPUInfoKstat is cpu_info:<id>:cpu_info<id>.
func CPUInfoKstat(id int) Kstat {
	return Kstat{Module: ModCPUInfo, Instance: id, Name: fmt.Sprintf("cpu_info%d", id), Class: "misc"}
}

// CPUSysKstat is cpu:<id>:sys.
func CPUSysKstat(id int) Kstat {
	return Kstat{Module: ModCPU, Instance: id, Name: NameSys, Class: "misc"}
}

// IntrKstat is pci_intrs:<instance>:<nexus>.
func IntrKstat(instance int, nexus string) Kstat {
	return Kstat{Module: ModPCIIntrs, Instance: instance, Name: nexus, Class: "interrupts"}
}

// CPUStat is the content of one CPU's cpu_info and cpu:sys kstats.
type CPUStat struct {
	ID       int    `yaml:"id"`
	State    string `yaml:"state"`
	User     uint64 `yaml:"user"`
	Kernel   uint64 `yaml:"kernel"`
	Idle     uint64 `yaml:"idle"`
	Crtime   uint64 `yaml:"crtime"`
	Snaptime uint64 `yaml:"snaptime"`
}

// IntrStat is the content of one pci_intrs kstat. NumIno of zero leaves the
// num_ino field out, as older kernels do.
type IntrStat struct {
	Instance int    `yaml:"instance"`
	Nexus    string `yaml:"nexus"`
	CPU      int    `yaml:"cpu"`
	Time     uint64 `yaml:"time"`
	Pil      uint64 `yaml:"pil"`
	Ino      uint64 `yaml:"ino"`
	NumIno   uint64 `yaml:"num_ino"`
	BusPath  string `yaml:"buspath"`
	Name     string `yaml:"name"`
	IHS      uint64 `yaml:"ihs"`
	Type     string `yaml:"type"`
	Crtime   uint64 `yaml:"crtime"`
	Snaptime uint64 `yaml:"snaptime"`
}

// SetCPU stores cpu_info:<id> and cpu:<id>:sys.
func (f *Fake) SetCPU(c CPUStat) {
	state := c.State
	if state == "" {
		state = StateOnline
	}
	f.Set(CPUInfoKstat(c.ID), c.Snaptime, c.Crtime, map[string]Value{
		"state": Char([]byte(state)),
	})
	f.Set(CPUSysKstat(c.ID), c.Snaptime, c.Crtime, map[string]Value{
		"cpu_nsec_user":   U64(c.User),
		"cpu_nsec_kernel": U64(c.Kernel),
		"cpu_nsec_idle":   U64(c.Idle),
	})
}

// SetIntr stores pci_intrs:<instance>:<nexus>.
func (f *Fake) SetIntr(in IntrStat) {
	typ := in.Type
	if typ == "" {
		typ = "fixed"
	}
	named := map[string]Value{
		"cpu":     U64(uint64(in.CPU)),
		"time":    U64(in.Time),
		"pil":     U64(in.Pil),
		"ino":     U64(in.Ino),
		"buspath": Str(in.BusPath),
		"name":    Char([]byte(in.Name)),
		"ihs":     U64(in.IHS),
		"type":    Char([]byte(typ)),
	}
	if in.NumIno > 0 {
		named["num_ino"] = U64(in.NumIno)
	}
	f.Set(IntrKstat(in.Instance, in.Nexus), in.Snaptime, in.Crtime, named)
}
