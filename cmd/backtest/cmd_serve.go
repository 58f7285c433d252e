package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ducminhle1904/crypto-backtest-lab/internal/api"
	"github.com/ducminhle1904/crypto-backtest-lab/internal/cache"
	"github.com/ducminhle1904/crypto-backtest-lab/internal/monitoring"
	"github.com/ducminhle1904/crypto-backtest-lab/internal/storage"
)

var (
	serveAddr    string
	serveNoStore bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the engine over HTTP",
	Long: `Expose the engine commands over HTTP:

  POST /v1/{backtest|optimize|walk_forward|risk}   command data as the body
  POST /v1/engine                                  {"command": ..., "data": ...}
  GET  /v1/runs, /v1/runs/{id}                     stored optimize and walk-forward runs
  GET  /healthz, /metrics

Optimize and walk-forward results are cached (Redis when REDIS_ADDR is set)
and stored in the run database (DB_DRIVER, DB_DSN).`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default: HTTP_ADDR)")
	serveCmd.Flags().BoolVar(&serveNoStore, "no-store", false, "Do not persist runs")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := openEngineDeps(ctx, !serveNoStore)
	if err != nil {
		return err
	}
	defer deps.Close()

	health := monitoring.NewHealthChecker()
	health.Register("cache", deps.cache.Ping)
	var runs api.RunReader
	if deps.store != nil {
		health.Register("storage", deps.store.Ping)
		runs = deps.store
	}

	addr := serveAddr
	if addr == "" {
		addr = appConfig.Server.HTTPAddr
	}

	if metricsAddr := appConfig.Server.MetricsAddr; metricsAddr != "" {
		go serveMetrics(ctx, metricsAddr)
	}

	server := api.NewServer(api.DefaultServerConfig(addr), deps.dispatcher(), runs, health)
	return server.Start(ctx)
}

// serveMetrics runs a metrics-only listener next to the API
func serveMetrics(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", monitoring.NewMetricsHandler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Msg("metrics listener started")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Str("addr", addr).Msg("metrics listener failed")
	}
}

// engineDeps are the cache and store shared by serve and engine
type engineDeps struct {
	cache cache.Cache
	store *storage.Store
}

func openEngineDeps(ctx context.Context, withStore bool) (*engineDeps, error) {
	deps := &engineDeps{cache: cache.New(ctx, appConfig.Cache.RedisAddr)}
	if withStore {
		store, err := storage.Open(appConfig.Storage.Driver, appConfig.Storage.DSN)
		if err != nil {
			deps.cache.Close()
			return nil, err
		}
		deps.store = store
	}
	return deps, nil
}

func (d *engineDeps) dispatcher() *api.Dispatcher {
	opts := api.Options{
		Workers:         appConfig.WorkerCount(),
		MaxCombinations: appConfig.Engine.MaxCombinations,
		Cache:           d.cache,
		CacheTTL:        appConfig.Cache.TTL,
	}
	if d.store != nil {
		opts.Store = d.store
	}
	return api.NewDispatcher(opts)
}

func (d *engineDeps) Close() {
	if d.store != nil {
		d.store.Close()
	}
	d.cache.Close()
}
