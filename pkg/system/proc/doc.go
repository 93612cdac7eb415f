// Package proc reads interrupt and CPU topology state from Linux procfs and
// sysfs. It is the raw data source behind the Linux statistics handle
// (pkg/kstat) and the Linux interrupt binder (pkg/pcitool).
//
// # Sources
//
//   - /proc/interrupts: one row per IRQ with a counter per online CPU, the
//     interrupt chip, the hardware irq and the action (driver) names.
//     ParseInterrupts skips the architecture rows (NMI, LOC, ERR, MIS, ...).
//
//   - /proc/irq/<n>/effective_affinity_list: the CPUs the chip actually
//     delivers to. Older kernels lack it; ReadIRQAffinity then falls back to
//     smp_affinity_list, which is the requested mask.
//
//   - /sys/devices/system/cpu/{present,online}: CPU lists in the kernel list
//     format ("0-3,8,10-11").
//
// # Writes
//
// WriteIRQAffinity writes smp_affinity_list. It needs CAP_SYS_ADMIN and fails
// with EIO for interrupts the chip cannot move (for example a per-CPU timer)
// and with EBUSY/EAGAIN while a previous move is still pending.
//
// # Roots
//
// Every reader takes the procfs or sysfs root explicitly (DefaultProcRoot,
// DefaultSysRoot) so tests can point them at a temporary tree.
//
// # Errors (errs.go)
//
//	ErrNoHeader      : /proc/interrupts had no CPU header
//	ErrBadCPUList    : malformed cpu list
//	ErrNoAffinity    : neither affinity file was readable
//	ErrEmptyAffinity : WriteIRQAffinity called with no CPUs
//
// Package import path: github.com/ja7ad/intrd/pkg/system/proc
package proc
