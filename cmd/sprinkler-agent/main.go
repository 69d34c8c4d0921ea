// Package main — cmd/sprinkler-agent/main.go
//
// sprinkler-agent entrypoint.
//
// Startup sequence:
//  1. Parse flags (-config, -v repeated, -version).
//  2. Load and validate config from /etc/sprinkler.conf.d/config.toml.
//  3. Initialise structured logger (zap).
//  4. Load the pinned master certificate.
//  5. Start Prometheus metrics server, if configured.
//  6. Build the registry, the Docker Engine API runtime client, the
//     notifier, and the remediation dispatcher.
//  7. Build and activate the DockerOOM-equivalent sprinkler (agent role)
//     plus a CommCheck liveness sprinkler.
//  8. Block on SIGINT/SIGTERM for graceful shutdown.
//
// On config validation failure: exit 1 immediately. On event stream
// termination: that is treated as fatal, so the process exits nonzero
// and relies on an external supervisor to restart it.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/aleozlx/sprinkler/internal/agent"
	"github.com/aleozlx/sprinkler/internal/commcheck"
	"github.com/aleozlx/sprinkler/internal/config"
	"github.com/aleozlx/sprinkler/internal/notify"
	"github.com/aleozlx/sprinkler/internal/observability"
	"github.com/aleozlx/sprinkler/internal/registry"
	"github.com/aleozlx/sprinkler/internal/remediate"
	"github.com/aleozlx/sprinkler/internal/runtimeclient/dockercli"
	"github.com/aleozlx/sprinkler/internal/sprinkler"
	"github.com/aleozlx/sprinkler/internal/transport"
)

// verbosity counts repeated -v flags: 0/1 info, 2 or more debug (zap has
// no trace level, so 3+ is also debug).
type verbosity int

func (v *verbosity) String() string   { return fmt.Sprintf("%d", int(*v)) }
func (v *verbosity) IsBoolFlag() bool { return true }
func (v *verbosity) Set(string) error { *v++; return nil }

func main() {
	configPath := flag.String("config", config.DefaultConfigPath, "Path to config.toml")
	showVersion := flag.Bool("version", false, "Print version and exit")
	var v verbosity
	flag.Var(&v, "v", "Increase log verbosity (repeatable)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("sprinkler-agent %s (commit=%s built=%s)\n",
			config.Version, config.GitCommit, config.BuildTime)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: config load failed: %v\n", err)
		os.Exit(1)
	}

	level := cfg.Observability.LogLevel
	if int(v) > 0 {
		level = observability.VerbosityLevel(int(v))
	}
	log, err := observability.NewLogger(level, cfg.Observability.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	log.Info("sprinkler-agent starting",
		zap.String("version", config.Version),
		zap.String("commit", config.GitCommit),
		zap.String("config", *configPath),
		zap.String("hostname", cfg.Hostname),
		zap.String("master_addr", cfg.Agent.MasterAddr),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pinnedCert, err := transport.LoadPinnedCert(cfg.Agent.MasterCertPath)
	if err != nil {
		log.Fatal("failed to load pinned master certificate", zap.Error(err))
	}

	metrics := observability.NewMetrics()
	if cfg.Observability.MetricsAddr != "" {
		go func() {
			if err := metrics.ServeMetrics(ctx, cfg.Observability.MetricsAddr); err != nil {
				log.Error("metrics server error", zap.Error(err))
			}
		}()
		log.Info("metrics server started", zap.String("addr", cfg.Observability.MetricsAddr))
	}

	reg := registry.New(cfg.Remediation.CatchAllDividerInterval)
	runtimeClient, err := dockercli.New()
	if err != nil {
		log.Fatal("failed to connect to the container runtime", zap.Error(err))
	}
	notifier := notify.NewNotifier(notify.NewTLSDialer(pinnedCert), log).WithMetrics(metrics)

	builder := sprinkler.NewBuilder(cfg.Agent.Heartbeat.Duration)
	watchdogID := builder.NextID()

	dispatcher := remediate.New(reg, runtimeClient, notifier, cfg.Agent.MasterAddr, watchdogID, log).
		WithMetrics(metrics).
		WithTuning(remediate.Tuning{
			RateThresholdHz:    cfg.Remediation.RateThresholdHz,
			PanicThresholdHz:   cfg.Remediation.PanicThresholdHz,
			PodDividerInterval: cfg.Remediation.PodDividerInterval,
			MaxRetry:           cfg.Remediation.MaxRetry,
		})
	runtime := agent.NewRuntime(runtimeClient, dispatcher, metrics, log)
	watchdog := builder.Build(cfg.Hostname, cfg.Agent.MasterAddr, runtime)
	if watchdog.ID() != watchdogID {
		log.Fatal("sprinkler id assignment invariant violated", zap.Uint64("expected", watchdogID), zap.Uint64("got", watchdog.ID()))
	}

	liveness := builder.Build(cfg.Hostname, cfg.Agent.MasterAddr, commcheck.New(log))

	agentDone := make(chan struct{})
	go func() {
		watchdog.ActivateAgent()
		close(agentDone)
	}()
	go liveness.ActivateAgent()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))
		watchdog.Deactivate()
		liveness.Deactivate()
		cancel()
		log.Info("sprinkler-agent shutdown complete")
	case <-agentDone:
		// Event stream termination is fatal: exit nonzero so an external
		// supervisor restarts the process.
		cancel()
		log.Fatal("runtime event stream terminated, exiting for supervisor restart")
	}
}
