package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/ja7ad/intrd/pkg/intrd"
	"github.com/ja7ad/intrd/pkg/kstat"
	"github.com/ja7ad/intrd/pkg/pcitool"
)

var (
	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

type opts struct {
	debug       bool
	configPath  string
	metricsAddr string
	scenario    string
	showVersion bool
}

func main() {
	var o opts

	root := &cobra.Command{
		Use:   "intrd",
		Short: "Interrupt balancing daemon",
		Long: `intrd watches how much time each CPU spends servicing device interrupts
and moves interrupts between CPUs when the load becomes unevenly spread.

It samples interrupt statistics every few seconds, keeps a sliding window
of the last minute, and only rebinds interrupts once the spread in that
window has degraded against the best spread it has seen.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if o.showVersion {
				fmt.Printf("version: %s, commit: %s, date: %s\n", version, commit, date)
				return nil
			}
			return run(cmd.Context(), o)
		},
	}

	root.Flags().BoolVarP(&o.debug, "debug", "D", false, "enable debug logging")
	root.Flags().StringVar(&o.configPath, "config", "", "path to a TOML config file")
	root.Flags().StringVar(&o.metricsAddr, "metrics-addr", "", "address to serve prometheus metrics on")
	root.Flags().StringVar(&o.scenario, "scenario", "", "replay a YAML statistics scenario instead of the live system")
	root.Flags().BoolVar(&o.showVersion, "version", false, "print the version and exit")
	for _, name := range []string{"config", "metrics-addr", "scenario", "version"} {
		_ = root.Flags().MarkHidden(name)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGHUP, syscall.SIGTERM)
	defer cancel()

	if err := root.ExecuteContext(ctx); err != nil {
		slog.Error(err.Error())
		cancel()
		os.Exit(1)
	}
}

func run(ctx context.Context, o opts) error {
	log := newLogger(o.debug)
	slog.SetDefault(log)

	cfg, err := intrd.LoadConfig(o.configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if o.metricsAddr != "" {
		cfg.MetricsAddr = o.metricsAddr
	}
	if cfg.MetricsAddr != "" {
		intrd.BuildInfo.WithLabelValues(version, commit, date).Set(1)
		go serveMetrics(log, cfg.MetricsAddr)
	}

	if o.scenario != "" {
		return runScenario(ctx, log, cfg, o.scenario)
	}

	handle, err := kstat.Open(kstat.Options{NominalIntrCost: cfg.NominalIntrCost})
	if err != nil {
		return fmt.Errorf("failed to open statistics handle: %w", err)
	}
	binder, err := pcitool.Open("", log)
	if err != nil {
		return fmt.Errorf("failed to open interrupt binder: %w", err)
	}
	if b, ok := binder.(interface{ CanBind() error }); ok {
		if err := b.CanBind(); err != nil {
			log.Warn("interrupt affinities are not writable, moves will fail", "error", err)
		}
	}

	d, err := intrd.New(intrd.Options{Config: cfg, Logger: log, Handle: handle, Binder: binder})
	if err != nil {
		return err
	}
	return d.Run(ctx)
}

// runScenario drives the daemon from a scripted statistics file with a
// recording binder and logs what it would have moved.
func runScenario(ctx context.Context, log *slog.Logger, cfg *intrd.Config, path string) error {
	sc, err := kstat.LoadScenario(path)
	if err != nil {
		return err
	}
	binder, d, err := replay(ctx, log, cfg, sc)
	if err != nil || d == nil {
		return err
	}
	for _, m := range binder.Moves() {
		log.Info("scenario move", "move", m.String())
	}
	for _, m := range binder.Failed() {
		log.Info("scenario failed move", "move", m.String())
	}
	log.Info("scenario finished", "steps", len(sc.Steps), "moves", len(binder.Moves()), "baseline", d.Baseline())
	return nil
}

// replay runs the daemon over sc until its last step. Sleeps are skipped: a
// fake clock is advanced as soon as the loop waits. A nil daemon means the
// scenario has no interrupts.
func replay(ctx context.Context, log *slog.Logger, cfg *intrd.Config, sc *kstat.Scenario) (*pcitool.Fake, *intrd.Daemon, error) {
	player := kstat.NewPlayer(sc)
	if len(player.Filter(kstat.ModPCIIntrs, kstat.AnyInstance, "")) == 0 {
		log.Warn(intrd.NoInterruptsMessage)
		return nil, nil, nil
	}
	binder := pcitool.NewFake()
	clock := clockwork.NewFakeClock()

	d, err := intrd.New(intrd.Options{Config: cfg, Logger: log, Handle: player, Binder: binder, Clock: clock})
	if err != nil {
		return nil, nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		step := max(cfg.NormalSleep, cfg.IdleSleep, cfg.SingleCPUSleep)
		for {
			if err := clock.BlockUntilContext(ctx, 1); err != nil {
				return
			}
			select {
			case <-player.Done():
				cancel()
				return
			default:
			}
			clock.Advance(step)
		}
	}()

	if err := d.Run(ctx); err != nil {
		return nil, nil, err
	}
	return binder, d, nil
}

func serveMetrics(log *slog.Logger, addr string) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		log.Error("Failed to start prometheus metrics server listener", "error", err)
		return
	}
	log.Info("Prometheus metrics server listening", "address", listener.Addr().String())
	http.Handle("/metrics", promhttp.Handler())
	if err := http.Serve(listener, nil); err != nil {
		log.Error("Failed to start prometheus metrics server", "error", err)
	}
}

func newLogger(debug bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if debug {
		logLevel = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level: logLevel,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Value = slog.StringValue(formatRFC3339Millis(a.Value.Time()))
			}
			if s, ok := a.Value.Any().(string); ok && s == "" {
				return slog.Attr{}
			}
			return a
		},
	}))
}

func formatRFC3339Millis(t time.Time) string {
	t = t.UTC()
	base := t.Format("2006-01-02T15:04:05")
	ms := t.Nanosecond() / 1_000_000
	return fmt.Sprintf("%s.%03dZ", base, ms)
}
