// Command breezyd serves a breezy application over gRPC for an external
// consensus runtime.
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/blockberries/breezy/config"
	"github.com/blockberries/breezy/engine"
	"github.com/blockberries/breezy/example/accounts"
	"github.com/blockberries/breezy/example/counter"
	breezygrpc "github.com/blockberries/breezy/grpc"
	"github.com/blockberries/breezy/metrics"
	"github.com/blockberries/breezy/store"
)

var apps = map[string]func(*engine.Registry){
	"counter":  counter.Register,
	"accounts": func(reg *engine.Registry) { accounts.Register(reg) },
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	log := cfg.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.WithError(err).Fatal("breezyd stopped")
	}
}

func run(ctx context.Context, cfg config.Config, log *logrus.Logger) error {
	st := store.New(cfg.DataDir(), store.WithLogger(log), store.WithCache(cfg.CacheMB, cfg.Handles))
	defer st.Close()

	reg := engine.NewRegistry()
	apps[cfg.App](reg)

	collector := metrics.NewCollector("breezy")
	app := engine.New(st, reg, engine.WithLogger(log), engine.WithMetrics(collector))

	lis, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return err
	}
	gs := breezygrpc.NewGRPCServer(app, breezygrpc.WithServerLogger(log))

	var ms *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(collector.Registry(), promhttp.HandlerOpts{}))
		ms = &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			log.WithField("addr", cfg.MetricsAddr).Info("serving metrics")
			if err := ms.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.WithError(err).Error("metrics server failed")
			}
		}()
	}

	errc := make(chan error, 1)
	go func() { errc <- gs.Serve(lis) }()

	log.WithFields(logrus.Fields{
		"app":    cfg.App,
		"routes": reg.Routes(),
		"home":   cfg.Home,
	}).Info("breezyd started")

	select {
	case err = <-errc:
	case <-ctx.Done():
		log.Info("shutting down")
		gs.Stop()
		lis.Close()
		<-errc
		err = nil
	}

	if ms != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = ms.Shutdown(shutdownCtx)
	}
	return err
}
