package factory

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	goredis "github.com/redis/go-redis/v9"

	"smmpanel/internal/config"
	internaldb "smmpanel/internal/database"
	"smmpanel/internal/domain"
	"smmpanel/internal/gateway/billing"
	"smmpanel/internal/gateway/fxrate"
	"smmpanel/internal/gateway/reseller"
	"smmpanel/internal/pricing"
	"smmpanel/internal/repository"
	"smmpanel/internal/service"
	"smmpanel/pkg/cache"
	"smmpanel/pkg/database"
	"smmpanel/pkg/logger"
	"smmpanel/pkg/redis"
	"smmpanel/pkg/tracing"
)

type Factory interface {
	GetLogger() logger.Logger
	GetConfig() *config.Config
	GetConnectionManager() *database.ConnectionManager
	GetRedisClient() *goredis.Client
	GetCache() cache.Cache
	GetCacheManager() cache.CacheStrategy
	GetWarmUpManager() *cache.WarmUpManager
	GetResellerClient() *reseller.Client

	GetOrderRepository() domain.OrderRepository
	GetAuditLogRepository() domain.AuditLogRepository

	GetAuditLogService() domain.AuditLogService
	GetExchangeRateService() *service.ExchangeRateService
	GetCatalogService() *service.CatalogService
	GetBalanceService() domain.BalanceService
	GetDepositService() domain.DepositService
	GetOrderService() domain.OrderService
	GetOrderReconciler() *service.OrderReconciler

	Start(ctx context.Context)
	Stop()
	Close() error
}

type AppFactory struct {
	config            *config.Config
	logger            logger.Logger
	connectionManager *database.ConnectionManager
	redisClient       *goredis.Client
	cache             cache.Cache
	cacheManager      cache.CacheStrategy
	warmUpManager     *cache.WarmUpManager
	tracingShutdown   func(context.Context) error

	resellerClient *reseller.Client
	billingClient  *billing.Client
	fxClient       *fxrate.Client

	orderRepository    domain.OrderRepository
	auditLogRepository domain.AuditLogRepository

	auditLogService     domain.AuditLogService
	exchangeRateService *service.ExchangeRateService
	catalogService      *service.CatalogService
	ledgerBalance       domain.BalanceService
	balanceService      domain.BalanceService
	depositService      domain.DepositService
	orderService        domain.OrderService
	orderReconciler     *service.OrderReconciler
}

// NewFactory loads configuration from the environment and builds the application.
func NewFactory(ctx context.Context) (Factory, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log := logger.New(logger.LogLevel(cfg.LogLevel), cfg.AppEnv, nil)
	f, err := New(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// New builds the application from an already validated configuration.
func New(ctx context.Context, cfg *config.Config, log logger.Logger) (*AppFactory, error) {
	f := &AppFactory{
		config: cfg,
		logger: log,
	}

	shutdown, err := tracing.Init(ctx, tracing.Config{
		ServiceName:  cfg.Tracing.ServiceName,
		Environment:  cfg.AppEnv,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialise tracing: %w", err)
	}
	f.tracingShutdown = shutdown

	if err := f.initStorage(ctx); err != nil {
		f.Close()
		return nil, err
	}

	f.initGateways()
	f.initRepositories()
	f.initServices()
	f.initCacheManagers()

	return f, nil
}

func (f *AppFactory) initStorage(ctx context.Context) error {
	cm, err := database.NewConnectionManager(f.config.Database, f.logger)
	if err != nil {
		return err
	}
	f.connectionManager = cm

	migrations := internaldb.NewMigrationService(cm.DB(), cm.Dialect(), f.logger)
	if err := migrations.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if f.config.Redis.Host == "" {
		f.logger.Warn("REDIS_HOST not set, using in-process cache", map[string]interface{}{})
		f.cache = cache.NewMemoryCache()
	} else {
		client, err := redis.NewClient(ctx, f.config.Redis)
		if err != nil {
			return err
		}
		f.redisClient = client
		f.cache = cache.NewRedisCache(client, f.logger, f.config.Redis.Prefix)
	}
	f.cacheManager = cache.NewCacheManager(f.cache, f.logger)
	return nil
}

func (f *AppFactory) initGateways() {
	up := f.config.Upstream
	f.resellerClient = reseller.New(up.URL, up.APIKey,
		reseller.WithHTTPClient(&http.Client{Timeout: up.Timeout}),
		reseller.WithRateLimit(up.RPS, max(1, int(up.RPS))),
		reseller.WithLogger(f.logger),
	)
	f.billingClient = billing.New(f.config.Billing.URL, f.config.Billing.Timeout)
	f.fxClient = fxrate.New(f.config.FX.URL, f.config.FX.Currency, f.config.FX.Timeout)
}

func (f *AppFactory) initRepositories() {
	db := f.connectionManager.DB()
	f.orderRepository = repository.NewOrderRepository(db, f.logger)
	f.auditLogRepository = repository.NewAuditLogRepository(db, f.logger)
}

func (f *AppFactory) initServices() {
	f.auditLogService = service.NewAuditLogService(f.auditLogRepository, f.logger)

	f.exchangeRateService = service.NewExchangeRateService(f.fxClient, service.ExchangeRateConfig{
		Currency:        f.config.FX.Currency,
		DefaultRate:     f.config.FX.DefaultRate,
		RefreshInterval: f.config.FX.RefreshInterval,
	}, f.cache, f.logger)

	f.catalogService = service.NewCatalogService(f.resellerClient, f.cacheManager, f.config.Catalog.RefreshInterval, f.logger)

	// Order placement reads the ledger directly; only display reads go through the cache.
	f.ledgerBalance = service.NewBalanceService(f.billingClient, f.logger)
	f.balanceService = service.NewCachedBalanceService(f.ledgerBalance, f.cache, f.cacheManager, f.logger)

	f.depositService = service.NewDepositService(f.billingClient, f.balanceService, f.cacheManager, f.auditLogService, f.logger)

	f.orderService = service.NewOrderService(
		f.catalogService,
		f.exchangeRateService,
		pricing.NewCalculator(f.config.Pricing.MarkupLocal),
		f.ledgerBalance,
		f.balanceService,
		f.resellerClient,
		f.orderRepository,
		f.auditLogService,
		f.logger,
	)

	f.orderReconciler = service.NewOrderReconciler(f.resellerClient, f.orderRepository, f.auditLogService, service.ReconcilerConfig{
		Interval:    f.config.Reconcile.Interval,
		Concurrency: f.config.Reconcile.Concurrency,
		BatchSize:   f.config.Reconcile.BatchSize,
	}, f.logger)
}

func (f *AppFactory) initCacheManagers() {
	f.warmUpManager = cache.NewWarmUpManager(f.cache, f.logger)
	f.warmUpManager.Register("catalog_snapshot", f.catalogService.WarmUp)
	f.warmUpManager.Register("exchange_rate", f.exchangeRateService.WarmUp)
}

// Start restores cached snapshots, loads the catalog and starts the periodic jobs.
// Failures are logged: the service can run on restored or default data.
func (f *AppFactory) Start(ctx context.Context) {
	if err := f.warmUpManager.WarmUp(ctx); err != nil {
		f.logger.Warn("Cache warm-up incomplete", map[string]interface{}{"error": err.Error()})
	}
	if err := f.catalogService.Refresh(ctx); err != nil {
		f.logger.Error("Initial catalog load failed", map[string]interface{}{"error": err.Error()})
	}

	f.exchangeRateService.Start()
	f.catalogService.Start()
	f.orderReconciler.Start()
}

func (f *AppFactory) Stop() {
	f.orderReconciler.Stop()
	f.catalogService.Stop()
	f.exchangeRateService.Stop()
}

func (f *AppFactory) Close() error {
	var errs []error
	if f.connectionManager != nil {
		errs = append(errs, f.connectionManager.Close())
	}
	if f.redisClient != nil {
		errs = append(errs, f.redisClient.Close())
	}
	if f.tracingShutdown != nil {
		errs = append(errs, f.tracingShutdown(context.Background()))
	}
	return errors.Join(errs...)
}

func (f *AppFactory) GetLogger() logger.Logger {
	return f.logger
}

func (f *AppFactory) GetConfig() *config.Config {
	return f.config
}

func (f *AppFactory) GetConnectionManager() *database.ConnectionManager {
	return f.connectionManager
}

func (f *AppFactory) GetRedisClient() *goredis.Client {
	return f.redisClient
}

func (f *AppFactory) GetCache() cache.Cache {
	return f.cache
}

func (f *AppFactory) GetCacheManager() cache.CacheStrategy {
	return f.cacheManager
}

func (f *AppFactory) GetWarmUpManager() *cache.WarmUpManager {
	return f.warmUpManager
}

func (f *AppFactory) GetResellerClient() *reseller.Client {
	return f.resellerClient
}

func (f *AppFactory) GetOrderRepository() domain.OrderRepository {
	return f.orderRepository
}

func (f *AppFactory) GetAuditLogRepository() domain.AuditLogRepository {
	return f.auditLogRepository
}

func (f *AppFactory) GetAuditLogService() domain.AuditLogService {
	return f.auditLogService
}

func (f *AppFactory) GetExchangeRateService() *service.ExchangeRateService {
	return f.exchangeRateService
}

func (f *AppFactory) GetCatalogService() *service.CatalogService {
	return f.catalogService
}

func (f *AppFactory) GetBalanceService() domain.BalanceService {
	return f.balanceService
}

func (f *AppFactory) GetDepositService() domain.DepositService {
	return f.depositService
}

func (f *AppFactory) GetOrderService() domain.OrderService {
	return f.orderService
}

func (f *AppFactory) GetOrderReconciler() *service.OrderReconciler {
	return f.orderReconciler
}
