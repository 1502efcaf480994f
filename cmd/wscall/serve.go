package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.arsenm.dev/wscall/config"
	"go.arsenm.dev/wscall/internal/logging"
	"go.arsenm.dev/wscall/metrics"
	"go.arsenm.dev/wscall/server"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var serveConfig string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the demo paths",
	Long:  "Accept WebSocket connections and serve the demo paths on each of them",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveConfig, "config", "c", "", "path to a YAML config file")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := config.Default()
	if serveConfig != "" {
		var err error
		cfg, err = config.Load(serveConfig)
		if err != nil {
			return err
		}
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	m, err := metrics.New(reg, cfg.Metrics.Namespace)
	if err != nil {
		return err
	}

	chOpts, err := cfg.ChannelOptions(logger, m)
	if err != nil {
		return err
	}

	srv := server.New(
		registerDemo,
		server.WithChannelOptions(chOpts...),
		server.WithLogger(logger),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ServeWS(gctx, cfg.Listen)
	})
	if cfg.Metrics.Listen != "" {
		g.Go(func() error {
			return serveMetrics(gctx, logger, cfg.Metrics.Listen, reg)
		})
	}

	return g.Wait()
}

func serveMetrics(ctx context.Context, logger *zap.Logger, addr string, reg *prometheus.Registry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	hs := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		hs.Shutdown(sctx)
	}()

	logger.Info("Serving metrics", zap.String("addr", addr))
	if err := hs.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
