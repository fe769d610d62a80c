package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"depthbook/internal/config"
	"depthbook/internal/logging"
	"depthbook/internal/metrics"
	"depthbook/internal/net"
	"depthbook/internal/source"
	"depthbook/internal/stream"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

func main() {
	configPath := flag.String("config", os.Getenv("DEPTHBOOK_CONFIG"), "Path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("unable to load config")
	}
	logging.Setup(cfg.Log)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("depthbookd exited")
	}
	log.Info().Msg("depthbookd stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	t, ctx := tomb.WithContext(ctx)

	reg := metrics.NewRegistry()
	feedMetrics := metrics.NewFeed(reg)

	var nc *nats.Conn
	if cfg.NATS.URL != "" {
		var err error
		nc, err = nats.Connect(cfg.NATS.URL, nats.Name(cfg.NATS.Name))
		if err != nil {
			return err
		}
		defer nc.Drain()
	}

	// One synchronizer per symbol, fed by its sources.
	syncs := make([]*stream.Synchronizer, 0, len(cfg.Symbols))
	for _, sc := range cfg.Symbols {
		strategy, err := sc.Strategy()
		if err != nil {
			return err
		}
		sync := stream.New(stream.Config{
			Symbol:       sc.Name,
			Deltas:       strategy,
			MaxPending:   cfg.Stream.MaxPending,
			QueueSize:    cfg.Stream.QueueSize,
			RetryBackoff: cfg.Stream.RetryBackoff,
		}, source.NewHTTPSnapshots(sc.SnapshotURL), feedMetrics)
		syncs = append(syncs, sync)

		t.Go(func() error { return sync.Run(t) })
		if sc.StreamURL != "" {
			ws := &source.WebSocket{URL: sc.StreamURL, Symbol: sync.Symbol(), Backoff: cfg.Stream.ReconnectBackoff}
			t.Go(func() error { return ws.Run(t, sync.Push) })
		}
		if sc.Subject != "" {
			sub := &source.NATS{Conn: nc, Subject: sc.Subject, Symbol: sync.Symbol()}
			t.Go(func() error { return sub.Run(t, sync.Push) })
		}
	}

	srv := net.New(cfg.Query.Address, cfg.Query.Port, cfg.Query.Workers, stream.NewRegistry(syncs...))
	if err := srv.Listen(ctx); err != nil {
		t.Kill(err)
		return t.Wait()
	}
	t.Go(func() error { return srv.Run(t) })

	if cfg.Metrics.Addr != "" {
		t.Go(func() error { return serveMetrics(t, cfg.Metrics, reg) })
	}

	log.Info().Int("symbols", len(syncs)).Msg("depthbookd running")

	// Block until a signal or a fatal component error.
	<-t.Dying()
	if err := t.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func serveMetrics(t *tomb.Tomb, cfg config.MetricsConfig, reg *prometheus.Registry) error {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, metrics.Handler(reg))
	server := &http.Server{Addr: cfg.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	t.Go(func() error {
		<-t.Dying()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	log.Info().Str("address", cfg.Addr).Str("path", cfg.Path).Msg("metrics server running")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
