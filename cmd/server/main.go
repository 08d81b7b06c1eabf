package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sourcegraph/conc"

	"smmpanel/internal/api"
	"smmpanel/internal/api/middleware"
	"smmpanel/pkg/factory"
	"smmpanel/pkg/redis"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	appFactory, err := factory.NewFactory(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build application: %v\n", err)
		os.Exit(1)
	}

	log := appFactory.GetLogger()
	cfg := appFactory.GetConfig()

	log.Info("Starting smmpanel", map[string]interface{}{"env": cfg.AppEnv, "version": version})

	catalog := appFactory.GetCatalogService()
	rates := appFactory.GetExchangeRateService()
	orders := appFactory.GetOrderService()
	reconciler := appFactory.GetOrderReconciler()
	upstream := appFactory.GetResellerClient()

	checks := api.HealthChecks{
		Database: appFactory.GetConnectionManager(),
		Cache:    appFactory.GetCache(),
		Catalog:  catalog,
		Rates:    rates,
		Upstream: upstream,
		Schedulers: map[string]api.SchedulerProbe{
			"catalog_refresh":  catalog,
			"exchange_rate":    rates,
			"order_reconciler": reconciler,
		},
	}
	if client := appFactory.GetRedisClient(); client != nil {
		checks.CachePool = func() map[string]interface{} {
			return redis.PoolStats(client)
		}
	}

	mux := http.NewServeMux()

	api.NewCatalogHandler(catalog, orders, rates, log).RegisterRoutes(mux)
	api.NewOrderHandler(orders, reconciler, log).RegisterRoutes(mux)
	api.NewBalanceHandler(appFactory.GetBalanceService(), appFactory.GetDepositService(), log).RegisterRoutes(mux)
	api.NewAuditLogHandler(appFactory.GetAuditLogService(), log).RegisterRoutes(mux)
	api.NewCacheHandler(appFactory.GetCache(), appFactory.GetWarmUpManager(), log).RegisterRoutes(mux)
	api.NewUpstreamHandler(upstream, log).RegisterRoutes(mux)
	api.NewHealthHandler(checks, version, log).RegisterRoutes(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           middleware.TracingMiddleware(middleware.MetricsMiddleware(mux)),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       2 * time.Minute,
	}

	appFactory.Start(ctx)

	var wg conc.WaitGroup
	serverErr := make(chan error, 1)
	wg.Go(func() {
		log.Info("HTTP server listening", map[string]interface{}{"port": cfg.Server.Port})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	})

	select {
	case <-ctx.Done():
		log.Info("Shutting down", map[string]interface{}{})
	case err := <-serverErr:
		log.Error("HTTP server failed", map[string]interface{}{"error": err.Error()})
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown failed", map[string]interface{}{"error": err.Error()})
	}
	wg.Wait()

	appFactory.Stop()
	if err := appFactory.Close(); err != nil {
		log.Error("Failed to release resources", map[string]interface{}{"error": err.Error()})
	}

	log.Info("Shutdown complete", map[string]interface{}{})
}
