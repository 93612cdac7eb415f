package kstat

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFake_FilterOrderAndMatch(t *testing.T) {
	f := NewFake()
	f.SetCPU(CPUStat{ID: 2})
	f.SetCPU(CPUStat{ID: 0})
	f.SetIntr(IntrStat{Instance: 9, Nexus: "npe"})
	f.SetIntr(IntrStat{Instance: 3, Nexus: "pcieb"})

	all := f.Filter("", AnyInstance, "")
	require.Len(t, all, 6)
	assert.Equal(t, "cpu:0:sys", all[0].String())
	assert.Equal(t, "pci_intrs:9:npe", all[5].String())

	intrs := f.Filter(ModPCIIntrs, AnyInstance, "")
	require.Len(t, intrs, 2)
	assert.Equal(t, 3, intrs[0].Instance)

	assert.Len(t, f.Filter(ModCPUInfo, 2, ""), 1)
	assert.Len(t, f.Filter(ModPCIIntrs, AnyInstance, "npe"), 1)
	assert.Empty(t, f.Filter("nope", AnyInstance, ""))
}

func TestFake_ReadReturnsCopy(t *testing.T) {
	f := NewFake()
	ks := CPUSysKstat(0)
	f.Set(ks, 10, 1, map[string]Value{"cpu_nsec_idle": U64(5)})

	d, err := f.Read(&ks)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), d.Snaptime)
	assert.Equal(t, uint64(1), d.Crtime)
	d.Named["cpu_nsec_idle"] = U64(99)

	d2, err := f.Read(&ks)
	require.NoError(t, err)
	v, _ := d2.Uint64("cpu_nsec_idle")
	assert.Equal(t, uint64(5), v)
}

func TestFake_RemoveAndNotFound(t *testing.T) {
	f := NewFake()
	f.SetIntr(IntrStat{Instance: 1, Nexus: "npe", NumIno: 2})
	ks := IntrKstat(1, "npe")

	d, err := f.Read(&ks)
	require.NoError(t, err)
	n, err := d.Uint64("num_ino")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)
	typ, _ := d.String("type")
	assert.Equal(t, "fixed", typ)

	f.Remove(ModPCIIntrs, 1, "npe")
	_, err = f.Read(&ks)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFake_OnUpdate(t *testing.T) {
	f := NewFake()
	f.OnUpdate = func(f *Fake) error {
		f.SetCPU(CPUStat{ID: f.Updates()})
		if f.Updates() == 3 {
			return errors.New("boom")
		}
		return nil
	}
	require.NoError(t, f.Update())
	require.NoError(t, f.Update())
	assert.Error(t, f.Update())
	assert.Equal(t, 3, f.Updates())
	assert.Len(t, f.Filter(ModCPU, AnyInstance, ""), 3)
}
