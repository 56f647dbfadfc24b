package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand/v2"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/signalsfoundry/orbit-attitude-sim/catalog"
	"github.com/signalsfoundry/orbit-attitude-sim/core"
	"github.com/signalsfoundry/orbit-attitude-sim/internal/config"
	"github.com/signalsfoundry/orbit-attitude-sim/internal/health"
	"github.com/signalsfoundry/orbit-attitude-sim/internal/logging"
	"github.com/signalsfoundry/orbit-attitude-sim/internal/observability"
	"github.com/signalsfoundry/orbit-attitude-sim/model"
	"github.com/signalsfoundry/orbit-attitude-sim/render"
	"github.com/signalsfoundry/orbit-attitude-sim/timectrl"
)

type cliFlags struct {
	configPath  string
	catalogPath string
	iterations  int
	controlled  int
	mode        string
	renderer    string
	streamPath  string
	metricsAddr string
	healthAddr  string
	logFile     string
}

func main() {
	var f cliFlags
	fs := newFlagSet(os.Args[0], flag.ExitOnError, &f)
	_ = fs.Parse(os.Args[1:])

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, fs, f); err != nil {
		fmt.Fprintf(os.Stderr, "simulator: %v\n", err)
		os.Exit(1)
	}
}

func newFlagSet(name string, handling flag.ErrorHandling, f *cliFlags) *flag.FlagSet {
	fs := flag.NewFlagSet(name, handling)
	fs.StringVar(&f.configPath, "config", "", "Path to a YAML/TOML/JSON config file")
	fs.StringVar(&f.catalogPath, "catalog", "", "Read TLE records from this file instead of fetching")
	fs.IntVar(&f.iterations, "iterations", 0, "Number of ticks to simulate")
	fs.IntVar(&f.controlled, "controlled", 0, "Attach attitude control to the first N satellites")
	fs.StringVar(&f.mode, "mode", "", "Clock mode: accelerated or realtime")
	fs.StringVar(&f.renderer, "renderer", "", "Renderer: terminal, stream or none")
	fs.StringVar(&f.streamPath, "stream", "", "Output path for the stream renderer")
	fs.StringVar(&f.metricsAddr, "metrics-addr", "", "HTTP address for Prometheus /metrics")
	fs.StringVar(&f.healthAddr, "health-addr", "", "TCP address for the gRPC health service")
	fs.StringVar(&f.logFile, "log-file", "", "Write logs to this file instead of stderr")
	return fs
}

func run(ctx context.Context, fs *flag.FlagSet, f cliFlags) error {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return err
	}
	applyFlags(&cfg, fs, f)
	if err := cfg.Validate(); err != nil {
		return err
	}

	base, closeLog, err := newLogger(f.logFile)
	if err != nil {
		return err
	}
	defer closeLog()
	ctx, log := logging.WithRunLogger(ctx, base)

	tracingCfg := observability.TracingConfigFromEnv()
	tracingCfg.RunID = logging.RunIDFromContext(ctx)
	tracingCfg.Renderer = cfg.Render.Renderer
	shutdownTracing, err := observability.InitTracing(ctx, tracingCfg, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	reg := prometheus.NewRegistry()
	collector, err := observability.NewSimCollector(reg)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	rpcMetrics, err := observability.NewRPCCollector(reg)
	if err != nil {
		return fmt.Errorf("init rpc metrics: %w", err)
	}
	if srv := serveMetrics(ctx, cfg.Server.MetricsAddr, collector, log); srv != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	hs, err := serveHealth(ctx, cfg.Server.HealthAddr, rpcMetrics, log)
	if err != nil {
		return err
	}
	if hs != nil {
		defer hs.Stop()
	}

	records, err := loadCatalog(ctx, cfg, log)
	if err != nil {
		return err
	}

	// Entities are built before the renderer opens so a bad record cannot
	// leave the terminal in raw mode.
	entities, err := buildEntities(cfg, records)
	if err != nil {
		return err
	}

	renderer, term, closeRenderer, err := openRenderer(cfg)
	if err != nil {
		return err
	}
	defer closeRenderer()

	engine, err := newEngine(cfg, entities, renderer, collector, log)
	if err != nil {
		return err
	}

	if hs != nil {
		hs.SetServing()
	}
	summary, runErr := engine.Run(ctx, cfg.Simulation.Iterations)
	if hs != nil {
		hs.SetNotServing()
	}

	log.Info(ctx, "simulation summary",
		logging.Int("ticks", summary.Ticks),
		logging.Int("entities", summary.Entities),
		logging.Int("segments", summary.Segments),
		logging.Int("arrows", summary.Arrows),
		logging.Int("faults", summary.Faults),
		logging.Float64("pointing_error_mean", summary.PointingErrorMean),
		logging.Float64("pointing_error_stddev", summary.PointingErrorStdDev),
	)

	if term != nil {
		term.WaitForKey(ctx)
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

// applyFlags lets explicitly set command-line flags override file and
// environment settings.
func applyFlags(cfg *config.Config, fs *flag.FlagSet, f cliFlags) {
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "catalog":
			cfg.Catalog.Path = f.catalogPath
		case "iterations":
			cfg.Simulation.Iterations = f.iterations
		case "controlled":
			cfg.Attitude.Controlled = f.controlled
		case "mode":
			cfg.Simulation.Mode = f.mode
		case "renderer":
			cfg.Render.Renderer = f.renderer
		case "stream":
			cfg.Render.StreamPath = f.streamPath
		case "metrics-addr":
			cfg.Server.MetricsAddr = f.metricsAddr
		case "health-addr":
			cfg.Server.HealthAddr = f.healthAddr
		}
	})
}

func newLogger(path string) (logging.Logger, func(), error) {
	if path == "" {
		return logging.NewFromEnv(), func() {}, nil
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	l := logging.New(logging.Config{
		Level:  os.Getenv("LOG_LEVEL"),
		Format: os.Getenv("LOG_FORMAT"),
		Output: file,
	})
	return l, func() { _ = file.Close() }, nil
}

func serveMetrics(ctx context.Context, addr string, collector *observability.SimCollector, log logging.Logger) *http.Server {
	if addr == "" || collector == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn(ctx, "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(ctx, "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}

func serveHealth(ctx context.Context, addr string, rpc *observability.RPCCollector, log logging.Logger) (*health.Server, error) {
	if addr == "" {
		return nil, nil
	}
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen for health gRPC on %s: %w", addr, err)
	}
	hs := health.NewServer(health.WithLogger(log), health.WithRPCMetrics(rpc))
	go func() {
		if err := hs.Serve(lis); err != nil {
			log.Error(ctx, "health gRPC server exited", logging.Err(err))
		}
	}()
	return hs, nil
}

// loadCatalog reads every record up front so malformed or duplicate entries
// fail before the first tick.
func loadCatalog(ctx context.Context, cfg config.Config, log logging.Logger) ([]catalog.Record, error) {
	var (
		records []catalog.Record
		err     error
		source  string
	)
	if cfg.Catalog.Path != "" {
		source = cfg.Catalog.Path
		records, err = catalog.ReadFile(cfg.Catalog.Path)
	} else {
		source = cfg.Catalog.URL
		fetcher := catalog.NewFetcher(cfg.Catalog.URL,
			catalog.WithMaxTries(cfg.Catalog.Retries),
			catalog.WithFetchLogger(log),
		)
		records, err = fetcher.FetchRecords(ctx)
	}
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("catalog %s contains no records", source)
	}

	log.Info(ctx, "loaded catalog", logging.String("source", source), logging.Int("records", len(records)))
	return records, nil
}

func openRenderer(cfg config.Config) (core.Renderer, *render.Terminal, func(), error) {
	switch cfg.Render.Renderer {
	case config.RendererTerminal:
		term, err := render.NewTerminal(nil,
			render.WithViewExtent(cfg.Render.ViewExtent),
			render.WithEarth(cfg.Render.EarthRadius, cfg.Render.EarthScale),
		)
		if err != nil {
			return nil, nil, nil, err
		}
		return term, term, func() { _ = term.Close() }, nil
	case config.RendererStream:
		file, err := os.Create(cfg.Render.StreamPath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("create stream output: %w", err)
		}
		s := render.NewStream(file)
		return s, nil, func() { _ = s.Close() }, nil
	default:
		return render.NewMulti(), nil, func() {}, nil
	}
}

// buildEngine builds one entity per record and registers them on a new
// engine.
func buildEngine(cfg config.Config, records []catalog.Record, r core.Renderer, metrics core.SimulationMetricsRecorder, log logging.Logger) (*core.SimulationEngine, error) {
	entities, err := buildEntities(cfg, records)
	if err != nil {
		return nil, err
	}
	return newEngine(cfg, entities, r, metrics, log)
}

func newEngine(cfg config.Config, entities []*core.Entity, r core.Renderer, metrics core.SimulationMetricsRecorder, log logging.Logger) (*core.SimulationEngine, error) {
	mode := timectrl.ParseMode(cfg.Simulation.Mode)
	engine := core.NewSimulationEngine(r,
		core.WithLogger(log),
		core.WithMetricsRecorder(metrics),
		core.WithTimeController(timectrl.NewTimeController(cfg.Simulation.TickInterval, mode)),
	)
	for _, e := range entities {
		if err := engine.Register(e); err != nil {
			return nil, err
		}
	}
	return engine, nil
}

// buildEntities creates one entity per record; the first
// cfg.Attitude.Controlled records also get attitude control.
func buildEntities(cfg config.Config, records []catalog.Record) ([]*core.Entity, error) {
	seed := cfg.Attitude.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	rng := rand.New(rand.NewPCG(seed, seed>>1|1))
	start := timectrl.EpochAt(cfg.Simulation.StartDay, 0, cfg.Simulation.TicksPerDay)

	entities := make([]*core.Entity, 0, len(records))
	for i, rec := range records {
		prop, err := rec.Propagator()
		if err != nil {
			return nil, fmt.Errorf("satellite %q: %w", rec.ID, err)
		}

		color, ok := cfg.ColorFor(rec.ID)
		if !ok {
			color = model.RandomColor(rng)
		}
		opts := []core.EntityOption{
			core.WithTicksPerDay(cfg.Simulation.TicksPerDay),
			core.WithColor(color),
		}

		if i < cfg.Attitude.Controlled {
			state, err := core.SeedPointingState(prop, start)
			if err != nil {
				return nil, fmt.Errorf("seed attitude for %q: %w", rec.ID, err)
			}
			ctrl := core.NewAttitudeController(state,
				core.NewUniformDisturber(rng, cfg.Attitude.DisturbanceBound),
				core.WithArrowScales(cfg.Attitude.DisturbedScale, cfg.Attitude.CorrectedScale),
			)
			opts = append(opts, core.WithAttitudeControl(ctrl))
		}

		entities = append(entities, core.NewEntity(rec.ID, prop, cfg.Simulation.StartDay, opts...))
	}
	return entities, nil
}
