// Kunhua Huang 2026

// editorbridge runs the command bridge standalone, standing in for the host
// application that would normally embed it.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/ecstasoy/editorbridge/pkg/config"
	"github.com/ecstasoy/editorbridge/pkg/logger"
	"github.com/ecstasoy/editorbridge/pkg/metrics"
	"github.com/ecstasoy/editorbridge/pkg/registry"
	"github.com/ecstasoy/editorbridge/pkg/registry/etcd"
	"github.com/ecstasoy/editorbridge/pkg/registry/memory"
	"github.com/ecstasoy/editorbridge/pkg/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "editorbridge: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = pflag.StringP("config", "c", "", "path to a YAML config file")
		host       = pflag.String("host", "", "listen host (overrides config)")
		port       = pflag.Uint16P("port", "p", 0, "listen port (overrides config)")
		maxConns   = pflag.Uint32("max-connections", 0, "concurrent connection limit (overrides config)")
		codecName  = pflag.String("codec", "", "payload codec: text, json or protobuf")
		registryT  = pflag.String("registry", "", "announce the endpoint on: none, memory or etcd")
		metricsOn  = pflag.Bool("metrics", false, "serve Prometheus metrics")
		logLevel   = pflag.String("log-level", "", "debug, info, warn or error")
	)
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return err
	}

	// flags win over file and environment
	if *host != "" {
		cfg.Server.Host = *host
	}
	if pflag.CommandLine.Changed("port") {
		cfg.Server.Port = *port
	}
	if *maxConns > 0 {
		cfg.Server.MaxConnections = *maxConns
	}
	if *codecName != "" {
		cfg.Server.Codec = *codecName
	}
	if *registryT != "" {
		cfg.Registry.Type = *registryT
	}
	if *metricsOn {
		cfg.Metrics.Enabled = true
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logger.Init(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []server.Option{server.WithLogger(log)}

	if cfg.Metrics.Enabled {
		collector := metrics.NewCollector(nil)
		opts = append(opts, server.WithMetrics(collector))

		metricsSrv := serveMetrics(cfg.Metrics, collector, log)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = metricsSrv.Shutdown(shutdownCtx)
		}()
	}

	reg, err := openRegistry(cfg, log)
	if err != nil {
		return err
	}
	if reg != nil {
		defer reg.Close()
		opts = append(opts, server.WithRegistry(reg, 3*time.Second))
	}

	bridge, err := server.New(cfg, opts...)
	if err != nil {
		return err
	}

	if err := bridge.Start(ctx); err != nil {
		return err
	}

	log.Info("editorbridge ready",
		"addr", bridge.Addr().String(),
		"codec", cfg.Server.Codec,
		"commands", bridge.Commands(),
	)

	// this process plays the host, so its main goroutine pumps the queue
	q := bridge.HostQueue()
	if q != nil {
		if err := q.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Warn("host queue stopped", "error", err)
		}
	} else {
		<-ctx.Done()
	}

	log.Info("shutting down")
	err = bridge.Stop()
	if q != nil {
		q.Close()
	}
	return err
}

func serveMetrics(cfg config.MetricsConfig, collector *metrics.Collector, log *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, collector.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              cfg.Address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("metrics listening", "addr", cfg.Address, "path", cfg.Path)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", "error", err)
		}
	}()

	return srv
}

func openRegistry(cfg *config.Config, log *slog.Logger) (registry.Registry, error) {
	switch cfg.Registry.Type {
	case "", "none":
		return nil, nil

	case "memory":
		return memory.NewRegistry(), nil

	case "etcd":
		etcdCfg := etcd.DefaultConfig()
		etcdCfg.Endpoints = cfg.Registry.Etcd.Endpoints
		etcdCfg.DialTimeout = cfg.Registry.Etcd.DialTimeout.Duration
		etcdCfg.KeyPrefix = cfg.Registry.Etcd.KeyPrefix
		etcdCfg.LeaseTTL = cfg.Registry.Etcd.LeaseTTL
		etcdCfg.Logger = log

		reg, err := etcd.New(etcdCfg)
		if err != nil {
			return nil, fmt.Errorf("etcd registry: %w", err)
		}
		return reg, nil

	default:
		return nil, fmt.Errorf("%w: unknown registry type %q", config.ErrInvalidConfig, cfg.Registry.Type)
	}
}
