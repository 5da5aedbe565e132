// Command tickstreamd runs the live data distribution server: it
// ingests feed ticks, normalizes them per scheme, caches last known
// values, and fans updates out to subscribed protocol clients.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/tickstream-protocol/tickstream-go/pkg/auth"
	"github.com/tickstream-protocol/tickstream-go/pkg/config"
	"github.com/tickstream-protocol/tickstream-go/pkg/discovery"
	"github.com/tickstream-protocol/tickstream-go/pkg/distributor"
	"github.com/tickstream-protocol/tickstream-go/pkg/feed"
	"github.com/tickstream-protocol/tickstream-go/pkg/lkv"
	"github.com/tickstream-protocol/tickstream-go/pkg/log"
	"github.com/tickstream-protocol/tickstream-go/pkg/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "tickstreamd:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to YAML configuration")
	listenAddr := flag.String("listen", "", "listen address, overrides config")
	metricsAddr := flag.String("metrics", "", "Prometheus endpoint address, overrides config")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if *listenAddr != "" {
		cfg.Listen.Address = *listenAddr
	}
	if *metricsAddr != "" {
		cfg.Metrics.Address = *metricsAddr
	}

	logger := newLogger(cfg.Logging.Level)
	slog.SetDefault(logger)

	eventLogger, closeEvents, err := newEventLogger(cfg.Logging, logger)
	if err != nil {
		return err
	}
	defer closeEvents()

	schemes, err := cfg.BuildSchemes()
	if err != nil {
		return err
	}

	provider := lkv.NewMemoryProvider()
	for _, symbol := range cfg.Feed.Symbols {
		provider.RegisterKnownID(symbol)
	}
	dist := distributor.New(provider, schemes...)
	dist.SetLogger(logger)
	if created := dist.Bootstrap(); created > 0 {
		logger.Info("bootstrapped value cache", "entries", created)
	}

	tlsConfig, err := cfg.TLSConfig()
	if err != nil {
		return err
	}

	var registerer prometheus.Registerer
	registry := prometheus.NewRegistry()
	if cfg.Metrics.Address != "" {
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		registerer = registry
	}

	var peers *discovery.Registry
	if cfg.Discovery.Enabled {
		if cfg.Discovery.InstanceName == "" {
			host, _ := os.Hostname()
			cfg.Discovery.InstanceName = "tickstream-" + host
		}
		peers = discovery.NewRegistry(cfg.Discovery.InstanceName)
	}

	srv, err := server.New(server.Config{
		Address:        cfg.Listen.Address,
		TLSConfig:      tlsConfig,
		MaxMessageSize: cfg.Listen.MaxMessageSize,
		Data:           dist,
		Authenticator:  newAuthenticator(cfg.Auth),
		Peers:          peerLister(peers),
		Logger:         eventLogger,
		AppLogger:      logger,
		FlushWorkers:   cfg.Delivery.Workers,
		FlushQueueSize: cfg.Delivery.QueueSize,
		Metrics:        server.MetricsConfig{Registerer: registerer},
	})
	if err != nil {
		return err
	}
	dist.OnUpdate(srv.LiveDataReceived)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(ctx); err != nil {
		return err
	}

	group, groupCtx := errgroup.WithContext(ctx)

	if cfg.Feed.Simulated {
		adapter := feed.NewStatsAdapter(feed.NewSimulated(feed.SimulatedConfig{
			Symbols:  cfg.Feed.Symbols,
			Interval: cfg.Feed.Interval.Std(),
		}))
		logger.Info("starting feed", "source", adapter.RemoteConnectionDescription())
		group.Go(func() error {
			return adapter.Run(groupCtx, dist)
		})
	}

	if cfg.Discovery.Enabled {
		if err := startDiscovery(groupCtx, group, cfg, peers, logger); err != nil {
			logger.Warn("peer discovery unavailable", "error", err)
		}
	}

	if cfg.Metrics.Address != "" {
		group.Go(func() error {
			return serveMetrics(groupCtx, cfg.Metrics.Address, registry, logger)
		})
	}

	<-groupCtx.Done()
	logger.Info("shutting down")

	stopErr := srv.Stop()
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return stopErr
}

// newLogger builds the application logger at the configured level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// newEventLogger assembles the protocol event logger: slog at debug
// level always, plus a CBOR capture file when configured.
func newEventLogger(cfg config.LoggingConfig, logger *slog.Logger) (log.Logger, func(), error) {
	slogAdapter := log.NewSlogAdapter(logger)
	if cfg.EventFile == "" {
		return slogAdapter, func() {}, nil
	}
	fileLogger, err := log.NewFileLogger(cfg.EventFile)
	if err != nil {
		return nil, nil, fmt.Errorf("opening event log: %w", err)
	}
	closer := func() {
		if err := fileLogger.Close(); err != nil {
			logger.Warn("closing event log", "error", err)
		}
	}
	return log.NewMultiLogger(slogAdapter, fileLogger), closer, nil
}

// newAuthenticator maps the user list to an authenticator; an empty
// list accepts any named user.
func newAuthenticator(cfg config.AuthConfig) auth.Authenticator {
	if len(cfg.Users) == 0 {
		return auth.AllowAll{}
	}
	return auth.NewStaticUsers(cfg.Users...)
}

// peerLister avoids handing the server a typed nil interface.
func peerLister(peers *discovery.Registry) server.PeerLister {
	if peers == nil {
		return nil
	}
	return peers
}

// startDiscovery advertises this instance and browses for peers.
func startDiscovery(ctx context.Context, group *errgroup.Group, cfg *config.Config, peers *discovery.Registry, logger *slog.Logger) error {
	port := 9125
	if _, portStr, err := net.SplitHostPort(cfg.Listen.Address); err == nil {
		if p, err := strconv.Atoi(portStr); err == nil {
			port = p
		}
	}

	instance := cfg.Discovery.InstanceName
	advertiser := discovery.NewAdvertiser(discovery.Config{
		InstanceName: instance,
		Port:         port,
	})
	if err := advertiser.Start(); err != nil {
		return err
	}
	if err := peers.Browse(ctx); err != nil {
		advertiser.Stop()
		return err
	}
	logger.Info("peer discovery started", "instance", instance)

	group.Go(func() error {
		<-ctx.Done()
		advertiser.Stop()
		return nil
	})
	return nil
}

// serveMetrics runs the Prometheus endpoint until ctx ends.
func serveMetrics(ctx context.Context, address string, registry *prometheus.Registry, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	httpServer := &http.Server{
		Addr:              address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()
	logger.Info("metrics endpoint started", "address", address)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
