// Package main — cmd/sprinkler-master/main.go
//
// sprinkler-master entrypoint.
//
// Startup sequence:
//  1. Parse flags (-config, -v repeated, -version).
//  2. Load and validate config from /etc/sprinkler.conf.d/config.toml.
//  3. Initialise structured logger (zap).
//  4. Start Prometheus metrics server, if configured.
//  5. Start the TLS listener and MasterReceiver.
//  6. Register one inbox per known sprinkler id and log delivered
//     messages as they arrive.
//  7. Block on SIGINT/SIGTERM for graceful shutdown.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/aleozlx/sprinkler/internal/config"
	"github.com/aleozlx/sprinkler/internal/master"
	"github.com/aleozlx/sprinkler/internal/observability"
	"github.com/aleozlx/sprinkler/internal/transport"
)

// drainInbox logs every message delivered to id's inbox until ctx is
// cancelled, standing in for whatever aggregation a real fleet console
// would do with the decoded notification fields.
func drainInbox(ctx context.Context, id uint64, ch <-chan master.Message, log *zap.Logger) {
	for {
		select {
		case m := <-ch:
			fields := transport.DecodeFields(m.Body)
			log.Info("notification received",
				zap.Uint64("sprinkler_id", m.SprinklerID),
				zap.Any("fields", fields))
		case <-ctx.Done():
			return
		}
	}
}

// verbosity counts repeated -v flags.
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
		fmt.Printf("sprinkler-master %s (commit=%s built=%s)\n",
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

	log.Info("sprinkler-master starting",
		zap.String("version", config.Version),
		zap.String("commit", config.GitCommit),
		zap.String("config", *configPath),
		zap.String("listen_addr", cfg.Master.ListenAddr),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := observability.NewMetrics()
	if cfg.Observability.MetricsAddr != "" {
		go func() {
			if err := metrics.ServeMetrics(ctx, cfg.Observability.MetricsAddr); err != nil {
				log.Error("metrics server error", zap.Error(err))
			}
		}()
		log.Info("metrics server started", zap.String("addr", cfg.Observability.MetricsAddr))
	}

	cert, err := transport.LoadServerCert(cfg.Master.CertFile, cfg.Master.KeyFile)
	if err != nil {
		log.Fatal("failed to load master certificate/key", zap.Error(err))
	}

	listener, err := transport.Listen(cfg.Master.ListenAddr, cert)
	if err != nil {
		log.Fatal("failed to start TLS listener", zap.Error(err), zap.String("addr", cfg.Master.ListenAddr))
	}

	inbox := master.NewInboxRegistry()
	receiver := master.NewReceiver(listener, inbox, log)

	for _, id := range cfg.Master.KnownSprinklerIDs {
		ch := inbox.Register(id)
		go drainInbox(ctx, id, ch, log)
	}
	log.Info("registered known sprinklers", zap.Int("count", len(cfg.Master.KnownSprinklerIDs)))

	serveErr := make(chan error, 1)
	go func() { serveErr <- receiver.Serve() }()

	log.Info("listening for agent reports", zap.String("addr", cfg.Master.ListenAddr))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-serveErr:
		log.Error("master receiver stopped unexpectedly", zap.Error(err))
	}

	cancel()
	_ = listener.Close()

	log.Info("sprinkler-master shutdown complete")
}
