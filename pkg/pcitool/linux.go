//go:build linux

package pcitool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sys/unix"

	"github.com/ja7ad/intrd/pkg/system/proc"
)

const defaultMaxTries = 5

// Open returns the platform binder.
func Open(procRoot string, logger *slog.Logger) (Binder, error) {
	return NewLinux(procRoot, logger), nil
}

// Linux binds interrupts through /proc/irq/<n>/smp_affinity_list. The ino of
// a request is the Linux IRQ number; group requests move every IRQ whose chip
// equals the request's bus path.
type Linux struct {
	procRoot string
	logger   *slog.Logger
	maxTries uint

	newBackOff func() backoff.BackOff
	write      func(procRoot string, irq int, cpus []int) error
}

var _ Binder = (*Linux)(nil)

func NewLinux(procRoot string, logger *slog.Logger) *Linux {
	if procRoot == "" {
		procRoot = proc.DefaultProcRoot
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Linux{
		procRoot: procRoot,
		logger:   logger,
		maxTries: defaultMaxTries,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 10 * time.Millisecond
			b.MaxInterval = 250 * time.Millisecond
			return b
		},
		write: proc.WriteIRQAffinity,
	}
}

func (l *Linux) MoveIntr(ctx context.Context, req MoveRequest) error {
	irqs := []int{int(req.Ino)}
	if req.Group() {
		group, err := l.groupIRQs(req.BusPath)
		if err != nil {
			return err
		}
		if len(group) > 0 {
			irqs = group
		}
	}
	for _, irq := range irqs {
		if err := l.setAffinity(ctx, irq, req.CPU); err != nil {
			return err
		}
	}
	return nil
}

// IsAPIC classifies the chip named by busPath. It fails when the kernel has
// no per-IRQ affinity interface at all.
func (l *Linux) IsAPIC(busPath string) (bool, error) {
	if _, err := os.Stat(filepath.Join(l.procRoot, "irq")); err != nil {
		return false, fmt.Errorf("pcitool: %w", err)
	}
	ctlr := ClassifyChip(busPath)
	l.logger.Debug("interrupt controller", "buspath", busPath, "type", ctlr.String())
	return ctlr.SupportsBinding(), nil
}

// CanBind reports whether this process may write IRQ affinities.
func (l *Linux) CanBind() error {
	path := filepath.Join(l.procRoot, "irq", "default_smp_affinity")
	if err := unix.Access(path, unix.W_OK); err != nil {
		return fmt.Errorf("pcitool: %s: %w", path, err)
	}
	return nil
}

func (l *Linux) groupIRQs(busPath string) ([]int, error) {
	intrs, err := proc.ReadInterrupts(l.procRoot)
	if err != nil {
		return nil, fmt.Errorf("pcitool: %w", err)
	}
	var out []int
	for _, in := range intrs {
		if in.Chip == busPath {
			out = append(out, in.IRQ)
		}
	}
	return out, nil
}

func (l *Linux) setAffinity(ctx context.Context, irq, cpu int) error {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := l.write(l.procRoot, irq, []int{cpu})
		switch {
		case err == nil:
			return struct{}{}, nil
		case isTransient(err):
			l.logger.Debug("irq affinity busy, retrying", "irq", irq, "cpu", cpu, "error", err)
			return struct{}{}, err
		case errors.Is(err, unix.EIO), errors.Is(err, unix.EINVAL):
			return struct{}{}, backoff.Permanent(fmt.Errorf("%w: irq %d: %v", ErrNotMovable, irq, err))
		default:
			return struct{}{}, backoff.Permanent(err)
		}
	}, backoff.WithBackOff(l.newBackOff()), backoff.WithMaxTries(l.maxTries))
	return err
}

func isTransient(err error) bool {
	return errors.Is(err, unix.EBUSY) || errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR)
}
