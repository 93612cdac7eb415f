//go:build linux

package pcitool

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/cenkalti/backoff/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/ja7ad/intrd/pkg/system/proc"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func readAffinity(t *testing.T, root string, irq int) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(proc.IRQDir(root, irq), "smp_affinity_list"))
	require.NoError(t, err)
	return string(b)
}

func newRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "interrupts"), `   CPU0  CPU1
 40:  1  0  PCI-MSIX-0000:3b:00.0 0-edge  nvme0q0
 41:  1  0  PCI-MSIX-0000:3b:00.0 1-edge  nvme0q1
 50:  9  0  IR-PCI-MSI 1-edge  eth0
`)
	for _, irq := range []int{40, 41, 50} {
		writeFile(t, filepath.Join(proc.IRQDir(root, irq), "smp_affinity_list"), "0-1\n")
	}
	writeFile(t, filepath.Join(root, "irq", "default_smp_affinity"), "3\n")
	return root
}

func TestLinux_MoveIntr(t *testing.T) {
	root := newRoot(t)
	l := NewLinux(root, nil)
	ctx := context.Background()

	t.Run("single", func(t *testing.T) {
		require.NoError(t, l.MoveIntr(ctx, MoveRequest{BusPath: "IR-PCI-MSI", OldCPU: 0, CPU: 1, Ino: 50, NumIno: 1}))
		assert.Equal(t, "1\n", readAffinity(t, root, 50))
		assert.Equal(t, "0-1\n", readAffinity(t, root, 40))
	})
	t.Run("group", func(t *testing.T) {
		require.NoError(t, l.MoveIntr(ctx, MoveRequest{BusPath: "PCI-MSIX-0000:3b:00.0", CPU: 1, Ino: 40, NumIno: 2}))
		assert.Equal(t, "1\n", readAffinity(t, root, 40))
		assert.Equal(t, "1\n", readAffinity(t, root, 41))
	})
	t.Run("missing_irq", func(t *testing.T) {
		err := l.MoveIntr(ctx, MoveRequest{BusPath: "x", CPU: 1, Ino: 99, NumIno: 1})
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestLinux_IsAPIC(t *testing.T) {
	root := newRoot(t)
	l := NewLinux(root, nil)

	ok, err := l.IsAPIC("IR-PCI-MSI")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.IsAPIC("GICv3")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = NewLinux(t.TempDir(), nil).IsAPIC("IO-APIC")
	assert.Error(t, err)
}

func TestLinux_CanBind(t *testing.T) {
	assert.NoError(t, NewLinux(newRoot(t), nil).CanBind())
	assert.Error(t, NewLinux(t.TempDir(), nil).CanBind())
}

// scriptedWriter fails with errs in order, then succeeds.
func scriptedWriter(calls *int, errs ...error) func(string, int, []int) error {
	return func(string, int, []int) error {
		*calls++
		if *calls <= len(errs) {
			return &os.PathError{Op: "write", Path: "smp_affinity_list", Err: errs[*calls-1]}
		}
		return nil
	}
}

func TestLinux_SetAffinityRetries(t *testing.T) {
	ctx := context.Background()
	newBinder := func(write func(string, int, []int) error) *Linux {
		l := NewLinux(t.TempDir(), nil)
		l.newBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
		l.write = write
		return l
	}
	req := MoveRequest{BusPath: "IR-PCI-MSI", CPU: 1, Ino: 50, NumIno: 1}

	t.Run("transient_then_ok", func(t *testing.T) {
		for _, errno := range []error{unix.EBUSY, unix.EAGAIN, unix.EINTR} {
			calls := 0
			l := newBinder(scriptedWriter(&calls, errno, errno))
			require.NoError(t, l.MoveIntr(ctx, req), "errno=%v", errno)
			assert.Equal(t, 3, calls)
		}
	})
	t.Run("transient_exhausts_tries", func(t *testing.T) {
		calls := 0
		busy := make([]error, 10)
		for i := range busy {
			busy[i] = unix.EBUSY
		}
		err := newBinder(scriptedWriter(&calls, busy...)).MoveIntr(ctx, req)
		assert.ErrorIs(t, err, unix.EBUSY)
		assert.Equal(t, defaultMaxTries, calls)
	})
	t.Run("not_movable", func(t *testing.T) {
		for _, errno := range []error{unix.EIO, unix.EINVAL} {
			calls := 0
			err := newBinder(scriptedWriter(&calls, errno)).MoveIntr(ctx, req)
			assert.ErrorIs(t, err, ErrNotMovable, "errno=%v", errno)
			assert.Equal(t, 1, calls, "permanent errors are not retried")
		}
	})
	t.Run("other_error_is_permanent", func(t *testing.T) {
		calls := 0
		err := newBinder(scriptedWriter(&calls, unix.EPERM)).MoveIntr(ctx, req)
		assert.ErrorIs(t, err, unix.EPERM)
		assert.False(t, errors.Is(err, ErrNotMovable))
		assert.Equal(t, 1, calls)
	})
}
