package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"SignalFuse/internal/di"
	"SignalFuse/internal/repository"
	"SignalFuse/internal/services/adapters"
	"SignalFuse/internal/services/features"
	"SignalFuse/internal/services/fusion"
	"SignalFuse/internal/usecase"
	"SignalFuse/pkg/cache"
	"SignalFuse/pkg/config"
	"SignalFuse/pkg/logger"
	"SignalFuse/pkg/metrics"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:          "signalfuse",
	Short:        "Multi-domain signal fusion engine",
	SilenceUsage: true,
	RunE:         runServe,
}

// serveCmd runs the API, the live collector and the Kafka consumers.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the fusion service",
	RunE:  runServe,
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Replay a synthetic random walk through the engine",
	Long: `Generate regime-switching random-walk trades, feed them through the
feature window and every projection adapter, and resolve each prediction
against the realized price move. Prints a summary of the run.`,
	RunE: runSimulate,
}

var simOpts struct {
	symbols      []string
	steps        int
	interval     time.Duration
	predictEvery time.Duration
	resolveAfter int
	volatility   float64
	drift        float64
	seed         int64
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config/config.yaml", "config file path")

	f := simulateCmd.Flags()
	f.StringSliceVar(&simOpts.symbols, "symbols", []string{"SIM"}, "symbols to simulate")
	f.IntVar(&simOpts.steps, "steps", 5000, "number of ticks per symbol")
	f.DurationVar(&simOpts.interval, "interval", time.Second, "trade time between ticks")
	f.DurationVar(&simOpts.predictEvery, "predict-every", time.Minute, "trade time between predictions per symbol")
	f.IntVar(&simOpts.resolveAfter, "resolve-after", 300, "ticks until a prediction is resolved")
	f.Float64Var(&simOpts.volatility, "volatility", 0.001, "per tick log-return volatility")
	f.Float64Var(&simOpts.drift, "drift", 0.0003, "per tick drift magnitude")
	f.Int64Var(&simOpts.seed, "seed", 1, "random seed")

	rootCmd.AddCommand(serveCmd, simulateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadWithEnv(configPath)
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}

	app, err := di.InitializeApp(cfg)
	if err != nil {
		return fmt.Errorf("app initialization failed: %w", err)
	}
	return app.Run()
}

func runSimulate(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Default()
	if err != nil {
		return err
	}
	if _, statErr := os.Stat(configPath); statErr == nil {
		if cfg, err = config.Load(configPath); err != nil {
			return err
		}
	}
	log, err := logger.New(&logger.Config{Level: "warn", Format: "console", Output: "stderr"})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rec := metrics.New()
	engine := fusion.NewEngine(
		fusion.WithConfig(di.ProvideEngineConfig(cfg)),
		fusion.WithAdapters(adapters.DefaultAdapters()...),
		fusion.WithEventSink(usecase.NewEventRecorder(rec, log)),
	)
	runner := usecase.NewEngineRunner(engine, usecase.WithRunnerLogger(log))
	if err := runner.Start(ctx); err != nil {
		return err
	}
	defer runner.Stop()

	mem := cache.NewMemoryCache()
	defer mem.Close()
	svc := usecase.NewPredictionService(runner,
		usecase.WithSnapshotCache(repository.NewSnapshotCache(mem, 0, 0)),
		usecase.WithServiceMetrics(rec),
		usecase.WithServiceLogger(log),
	)
	proc := usecase.NewTradeProcessor(features.NewWindow(cfg.Finnhub.Window), svc, rec, simOpts.predictEvery, log)

	sim := usecase.NewSimulator(svc, proc, usecase.SimulationConfig{
		Symbols:      simOpts.symbols,
		Steps:        simOpts.steps,
		Interval:     simOpts.interval,
		ResolveAfter: simOpts.resolveAfter,
		Drift:        simOpts.drift,
		Volatility:   simOpts.volatility,
		Seed:         simOpts.seed,
	})
	start := time.Now()
	rep, err := sim.Run(ctx)
	if err != nil && ctx.Err() == nil {
		return err
	}
	return printReport(cmd, rep, time.Since(start))
}

func printReport(cmd *cobra.Command, rep usecase.SimulationReport, elapsed time.Duration) error {
	snap := rep.Snapshot
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "trades\t%d\n", rep.Trades)
	fmt.Fprintf(w, "predictions\t%d\n", rep.Predictions)
	fmt.Fprintf(w, "resolved\t%d\n", rep.Resolved)
	fmt.Fprintf(w, "hit rate\t%.3f\n", rep.HitRate)
	fmt.Fprintf(w, "domains\t%d\n", snap.Domains)
	fmt.Fprintf(w, "calibrated\t%t\n", snap.IsCalibrated)
	fmt.Fprintf(w, "calibration\t%s ece=%.3f factor=%.3f n=%d\n",
		snap.Calibration.Status, snap.Calibration.ECE, snap.Calibration.AdjustmentFactor, snap.Calibration.SampleSize)
	fmt.Fprintf(w, "convergence\t%d events, %d resolved, accuracy=%.3f p=%.3f\n",
		snap.Convergence.TotalEvents, snap.Convergence.ResolvedEvents, snap.Convergence.Accuracy, snap.Convergence.PValue)
	fmt.Fprintf(w, "learning velocity\t%.3f\n", snap.LearningVelocity)
	fmt.Fprintf(w, "elapsed\t%s\n", elapsed.Round(time.Millisecond))
	if len(snap.StrongestPairs) > 0 {
		fmt.Fprintln(w, "\nstrongest pairs\t")
		for _, p := range snap.StrongestPairs {
			fmt.Fprintf(w, "  %s / %s\t%+.3f (n=%d)\n", p.DomainA, p.DomainB, p.Correlation, p.SampleSize)
		}
	}
	return w.Flush()
}
