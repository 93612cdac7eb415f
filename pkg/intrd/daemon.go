// Package intrd is the interrupt balancing control loop: it samples
// interrupt load on a cadence, keeps a window of deltas, scores the window
// and reassigns interrupts when the spread across CPUs degrades.
package intrd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/ja7ad/intrd/pkg/balance"
	"github.com/ja7ad/intrd/pkg/intrstat"
	"github.com/ja7ad/intrd/pkg/kstat"
	"github.com/ja7ad/intrd/pkg/pcitool"
)

// NoInterruptsMessage is printed when there is nothing to balance.
const NoInterruptsMessage = "no interrupts were found; your PCI bus may not yet be supported"

// TickResult is what one sampling tick did.
type TickResult string

const (
	TickTooFewCPUs     TickResult = "too_few_cpus"
	TickReadError      TickResult = "read_error"
	TickUpdateError    TickResult = "update_error"
	TickFirst          TickResult = "first"
	TickReset          TickResult = "reset"
	TickAccumulating   TickResult = "accumulating"
	TickBalanced       TickResult = "balanced"
	TickReconfigured   TickResult = "reconfigured"
	TickAlreadyOptimal TickResult = "already_optimal"
	TickFailed         TickResult = "failed"
)

// Options wire a Daemon to its collaborators. Clock and Logger default to
// the real clock and slog.Default.
type Options struct {
	Config *Config
	Logger *slog.Logger
	Handle kstat.Handle
	Binder pcitool.Binder
	Clock  clockwork.Clock
}

// Daemon runs the sense, decide, act loop. It is not safe for concurrent
// use; Run owns it.
type Daemon struct {
	cfg    *Config
	log    *slog.Logger
	handle kstat.Handle
	binder pcitool.Binder
	clock  clockwork.Clock

	reader   *intrstat.Reader
	detector balance.Detector
	planner  *balance.Planner
	window   *intrstat.Window

	prev     *intrstat.Snapshot
	baseline float64
	sleep    time.Duration
}

func New(opts Options) (*Daemon, error) {
	if opts.Handle == nil {
		return nil, ErrNoStatsHandle
	}
	if opts.Binder == nil {
		return nil, ErrNoBinder
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	d := &Daemon{
		cfg:    cfg,
		log:    log,
		handle: opts.Handle,
		binder: opts.Binder,
		clock:  clock,
		reader: &intrstat.Reader{
			Handle:           opts.Handle,
			Logger:           log,
			TimeRangeTooHigh: cfg.TimeRangeTooHigh,
		},
		detector: balance.Detector{Tolerance: cfg.ImbalanceTolerance, Floor: cfg.GoodnessFloor},
		planner: balance.NewPlanner(balance.PlannerConfig{
			MinLoadGap: cfg.MinLoadGap,
			MaxMoves:   cfg.MaxMoves,
			Eps:        cfg.BusyEpsilonNs,
		}, opts.Binder, log),
		window:   intrstat.NewWindow(cfg.StatsLen),
		baseline: 1,
		sleep:    cfg.NormalSleep,
	}
	BaselineGoodness.Set(d.baseline)
	SleepInterval.Set(d.sleep.Seconds())
	return d, nil
}

// Run blocks until ctx is done. It returns an error only when startup
// fails: the interrupt controller cannot be queried. With no interrupts at
// all it logs NoInterruptsMessage and waits for ctx. Otherwise it samples
// once immediately, then once per sleep interval.
func (d *Daemon) Run(ctx context.Context) error {
	intrs := d.handle.Filter(kstat.ModPCIIntrs, kstat.AnyInstance, "")
	if len(intrs) == 0 {
		d.log.Warn(NoInterruptsMessage)
		<-ctx.Done()
		return nil
	}

	busPath, err := firstBusPath(d.handle, intrs[0])
	if err != nil {
		return err
	}
	apic, err := d.binder.IsAPIC(busPath)
	if err != nil {
		return fmt.Errorf("intrd: interrupt controller type of %s: %w", busPath, err)
	}
	d.log.Debug("APIC system", "apic", apic, "buspath", busPath)
	d.log.Info("intrd is starting", "interrupts", len(intrs), "stats_len", d.cfg.StatsLen)

	// The handle is current when Run starts; the first delta ends one
	// interval from now.
	d.Tick(ctx)

	for {
		select {
		case <-ctx.Done():
			d.log.Info("intrd is stopping")
			return nil
		case <-d.clock.After(d.sleep):
		}

		if err := d.handle.Update(); err != nil {
			d.log.Warn("failed to update kstats", "error", err)
			Ticks.WithLabelValues(string(TickUpdateError)).Inc()
			continue
		}
		d.Tick(ctx)
	}
}

func firstBusPath(h kstat.Handle, ks *kstat.Kstat) (string, error) {
	data, err := h.Read(ks)
	if err != nil {
		return "", fmt.Errorf("intrd: read %s: %w", ks, err)
	}
	busPath, err := data.String("buspath")
	if err != nil {
		return "", fmt.Errorf("intrd: read %s: %w", ks, err)
	}
	return busPath, nil
}

// Tick samples once and acts on the result.
func (d *Daemon) Tick(ctx context.Context) TickResult {
	res := d.tick(ctx)
	Ticks.WithLabelValues(string(res)).Inc()
	SleepInterval.Set(d.sleep.Seconds())
	WindowDeltas.Set(float64(d.window.Len()))
	WindowSeconds.Set(d.window.Total().Seconds())
	return res
}

func (d *Daemon) tick(ctx context.Context) TickResult {
	snap, err := d.reader.Take(d.sleep)
	switch {
	case errors.Is(err, intrstat.ErrTooFewCPUs):
		if d.prev != nil || d.window.Len() > 0 {
			d.log.Info("fewer than two cpus online, balancing suspended")
		}
		d.prev = nil
		d.resetWindow(ResetReasonTooFewCPUs)
		d.sleep = d.cfg.SingleCPUSleep
		return TickTooFewCPUs
	case err != nil:
		d.log.Warn("failed to read kstats, skipping tick", "error", err)
		return TickReadError
	}
	if snap.LowConfidence {
		SnapshotLowConfidence.Inc()
	}

	if d.prev == nil {
		d.prev = snap
		d.sleep = d.cfg.NormalSleep
		return TickFirst
	}
	delta := intrstat.GenerateDelta(d.prev, snap)
	d.prev = snap

	if delta.Missing {
		d.log.Debug("interrupt or cpu configuration changed, discarding deltas", "reason", delta.MissingReason)
		d.resetWindow(ResetReasonMissing)
		return TickReset
	}
	if delta.Elapsed == 0 || delta.Elapsed.Duration() > d.cfg.DeltaSpanLimit() {
		d.log.Debug("delta span out of range, discarding deltas", "elapsed", delta.Elapsed.Humanized())
		d.resetWindow(ResetReasonStale)
		return TickReset
	}

	AvgIntrLoad.Set(delta.AvgIntrLoad)
	if delta.AvgIntrLoad < d.cfg.IdleIntrLoad {
		d.sleep = d.cfg.IdleSleep
	} else {
		d.sleep = d.cfg.NormalSleep
	}

	d.window.Push(delta)
	if !d.window.Full() {
		return TickAccumulating
	}

	cd := d.window.Compress(d.log)
	g := balance.Goodness(cd, d.cfg.BusyEpsilonNs)
	Goodness.Set(g)
	if !d.detector.Imbalanced(g, d.baseline) {
		return TickBalanced
	}

	d.log.Debug("interrupt load imbalanced", "goodness", fmt.Sprintf("%.3f", g), "baseline", fmt.Sprintf("%.3f", d.baseline))
	intrstat.Dump(d.log, cd, d.cfg.BusyEpsilonNs)

	res := d.planner.Reconfigure(ctx, cd)
	Reconfigs.WithLabelValues(res.Outcome.String()).Inc()
	Moves.WithLabelValues("ok").Add(float64(len(res.Moves)))
	Moves.WithLabelValues("failed").Add(float64(len(res.Failures)))

	switch res.Outcome {
	case balance.Reconfigured:
		d.log.Info("interrupts reconfigured", "moves", len(res.Moves), "failures", len(res.Failures),
			"projected_goodness", fmt.Sprintf("%.3f", res.Projected))
		d.resetWindow(ResetReasonReconfig)
		return TickReconfigured
	case balance.Failed:
		d.log.Warn("interrupt reconfiguration failed", "failures", len(res.Failures))
		d.resetWindow(ResetReasonReconfig)
		return TickFailed
	default:
		d.baseline = g
		BaselineGoodness.Set(g)
		return TickAlreadyOptimal
	}
}

func (d *Daemon) resetWindow(reason string) {
	if d.window.Len() == 0 {
		return
	}
	d.window.Clear()
	WindowResets.WithLabelValues(reason).Inc()
}

// Baseline returns the goodness reconfiguration is measured against.
func (d *Daemon) Baseline() float64 { return d.baseline }

// SleepInterval returns the sleep before the next sample.
func (d *Daemon) SleepInterval() time.Duration { return d.sleep }
