// Package main implements the entry point for the robogen motion
// generator. It wires the configuration, broker connection, metrics
// endpoint, and the per-arm scheduler, and drives them through graceful
// shutdown and SIGHUP configuration reload.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/virtual-origami/pyrobomogen/arm"
	"github.com/virtual-origami/pyrobomogen/config"
	"github.com/virtual-origami/pyrobomogen/emitter"
	"github.com/virtual-origami/pyrobomogen/health"
	"github.com/virtual-origami/pyrobomogen/metric"
	"github.com/virtual-origami/pyrobomogen/natsclient"
	"github.com/virtual-origami/pyrobomogen/scheduler"
)

// Build information constants
const (
	Version   = "2.0.0"
	BuildTime = "dev"
	appName   = "robogen"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	cliCfg, logger, shouldExit, err := initializeCLI()
	if shouldExit || err != nil {
		return err
	}

	for {
		cfg, err := config.NewLoader().LoadFile(cliCfg.ConfigPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		if cliCfg.Validate {
			slog.Info("Configuration is valid", "arms", len(cfg.Arms))
			return nil
		}

		reload, err := runOnce(cfg, cliCfg, logger)
		if err != nil {
			return err
		}
		if !reload {
			slog.Info("Shutdown complete")
			return nil
		}
		slog.Info("Reloading configuration", "config_path", cliCfg.ConfigPath)
	}
}

// initializeCLI parses flags and sets up logging
func initializeCLI() (*CLIConfig, *slog.Logger, bool, error) {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return nil, nil, false, fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil, nil, true, nil
	}

	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil, nil, true, nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	slog.Info("Starting robogen (synthetic robot motion generator)",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath)

	return cliCfg, logger, false, nil
}

// app holds one configuration generation's worth of wired components.
type app struct {
	natsClient    *natsclient.Client
	metricsServer *metric.Server
	sched         *scheduler.Scheduler
}

// runOnce runs the generator with one loaded configuration until a signal
// arrives. Returns true when a SIGHUP asked for a reload.
func runOnce(cfg *config.Config, cliCfg *CLIConfig, logger *slog.Logger) (bool, error) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return false, err
	}
	defer a.shutdown(cliCfg.ShutdownTimeout)

	if err := a.sched.Initialize(); err != nil {
		return false, fmt.Errorf("initialize scheduler: %w", err)
	}
	if err := a.sched.Start(ctx); err != nil {
		return false, fmt.Errorf("start scheduler: %w", err)
	}
	slog.Info("robogen started", "arms", len(cfg.Arms))

	sig := <-sigCh
	slog.Info("Received signal", "signal", sig.String())

	return sig == syscall.SIGHUP, nil
}

// buildApp wires all components from one loaded configuration.
func buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	metricsRegistry := metric.NewRegistry()
	monitor := health.NewMonitor()
	watchdog := health.NewWatchdog(monitor, cfg.Watchdog.Threshold.Std(), cfg.Watchdog.Interval.Std())

	natsClient, err := connectBroker(ctx, cfg, metricsRegistry, logger)
	if err != nil {
		return nil, err
	}

	a := &app{natsClient: natsClient}

	if cfg.Metrics.Enabled {
		a.metricsServer = metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, metricsRegistry,
			func() (bool, any) {
				status := monitor.AggregateHealth(appName)
				return !status.IsUnhealthy(), status
			})
		go func() {
			if err := a.metricsServer.Start(); err != nil {
				slog.Error("Metrics server failed", "error", err)
			}
		}()
		slog.Info("Metrics server listening", "address", a.metricsServer.Address())
	}

	registry, err := arm.NewRegistry(cfg.ArmConfigs())
	if err != nil {
		a.shutdown(5 * time.Second)
		return nil, fmt.Errorf("build arm registry: %w", err)
	}

	if cfg.Geometry.Enabled {
		if err := snapshotGeometry(ctx, natsClient, cfg.Geometry.Bucket, registry); err != nil {
			a.shutdown(5 * time.Second)
			return nil, fmt.Errorf("write geometry snapshot: %w", err)
		}
	}

	em, err := emitter.New(emitter.Deps{
		Publisher: natsClient,
		Policy:    cfg.PublishPolicy(),
		Metrics:   metricsRegistry,
		Logger:    logger,
	})
	if err != nil {
		a.shutdown(5 * time.Second)
		return nil, fmt.Errorf("create emitter: %w", err)
	}

	a.sched, err = scheduler.New(scheduler.Deps{
		Registry:      registry,
		Emitter:       em,
		Metrics:       metricsRegistry,
		Monitor:       monitor,
		Watchdog:      watchdog,
		Logger:        logger,
		Subscriber:    natsClient,
		ControlPrefix: cfg.Control.Prefix,
		TimestampMode: cfg.Timestamps,
	})
	if err != nil {
		a.shutdown(5 * time.Second)
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	return a, nil
}

// connectBroker creates the NATS client from the broker config and waits
// for the connection.
func connectBroker(
	ctx context.Context,
	cfg *config.Config,
	metricsRegistry *metric.Registry,
	logger *slog.Logger,
) (*natsclient.Client, error) {
	opts := []natsclient.ClientOption{
		natsclient.WithName(appName),
		natsclient.WithLogger(&natsLogger{logger: logger.With("component", "natsclient")}),
		natsclient.WithMaxReconnects(cfg.Broker.MaxReconnects),
		natsclient.WithReconnectWait(cfg.Broker.ReconnectWait.Std()),
		natsclient.WithDisconnectHandler(func(error) {
			metricsRegistry.CoreMetrics().RecordBrokerStatus(false)
		}),
		natsclient.WithReconnectHandler(func() {
			metricsRegistry.CoreMetrics().RecordBrokerStatus(true)
			metricsRegistry.CoreMetrics().RecordBrokerReconnect()
		}),
	}
	if cfg.Broker.Username != "" {
		opts = append(opts, natsclient.WithUserCredentials(cfg.Broker.Username, cfg.Broker.Password))
	}
	if cfg.Broker.Token != "" {
		opts = append(opts, natsclient.WithToken(cfg.Broker.Token))
	}
	if cfg.Broker.TLS.Enabled {
		opts = append(opts, natsclient.WithTLS(
			cfg.Broker.TLS.CertFile, cfg.Broker.TLS.KeyFile, cfg.Broker.TLS.CAFile))
	}

	natsClient, err := natsclient.NewClient(cfg.Broker.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("create NATS client: %w", err)
	}

	slog.Info("Connecting to broker", "url", cfg.Broker.URL)
	if err := natsClient.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := natsClient.WaitForConnection(connCtx); err != nil {
		return nil, fmt.Errorf("broker connection timeout: %w", err)
	}

	metricsRegistry.CoreMetrics().RecordBrokerStatus(true)
	return natsClient, nil
}

// snapshotGeometry writes every arm's static geometry to the KV bucket so
// downstream consumers can resolve dimensions without parsing samples.
func snapshotGeometry(ctx context.Context, client *natsclient.Client, bucket string, registry *arm.Registry) error {
	kv, err := client.EnsureKVBucket(ctx, bucket, natsclient.KVOptions{
		Description: "static arm geometry",
	})
	if err != nil {
		return err
	}

	for _, geo := range registry.Geometries() {
		payload, err := geo.Marshal()
		if err != nil {
			return err
		}
		if err := kv.Put(ctx, geo.ArmID, payload); err != nil {
			return err
		}
	}

	slog.Info("Geometry snapshot written", "bucket", bucket, "arms", registry.Len())
	return nil
}

// shutdown stops everything this configuration generation started.
func (a *app) shutdown(timeout time.Duration) {
	if a.sched != nil {
		if err := a.sched.Stop(timeout); err != nil {
			slog.Error("Scheduler stop", "error", err)
		}
	}
	if a.metricsServer != nil {
		if err := a.metricsServer.Stop(); err != nil {
			slog.Error("Metrics server stop", "error", err)
		}
	}
	if a.natsClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := a.natsClient.Close(ctx); err != nil {
			slog.Error("Broker close", "error", err)
		}
	}
}
