package di

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"contact-service/application/ports"
	"contact-service/application/services"
	"contact-service/domain/core/validators"
	"contact-service/infrastructure/config"
	"contact-service/infrastructure/persistence/dynamodb"
	"contact-service/infrastructure/persistence/memory"
	"contact-service/infrastructure/persistence/sqlstore"
	"contact-service/interfaces/http/rest"
	"contact-service/interfaces/http/rest/handlers"
	"contact-service/interfaces/http/rest/middleware"
	"contact-service/pkg/observability"
)

// Logging is the root logger with its adjustable level.
type Logging struct {
	Logger *zap.Logger
	Level  zap.AtomicLevel
}

// ProvideLogging creates the root logger
func ProvideLogging(cfg *config.Config) (*Logging, error) {
	logger, level, err := config.NewLogger(cfg)
	if err != nil {
		return nil, err
	}
	return &Logging{Logger: logger, Level: level}, nil
}

// ProvideLogger exposes the root logger
func ProvideLogger(l *Logging) *zap.Logger {
	return l.Logger
}

// ProvideRegistry creates the Prometheus registry served on /metrics
func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// ProvideMetrics registers the service collectors
func ProvideMetrics(reg *prometheus.Registry) *observability.Metrics {
	return observability.NewMetrics("contacts", reg)
}

// ProvideTelemetry builds and starts the tracing pipeline. The caller owns
// its shutdown.
func ProvideTelemetry(
	ctx context.Context,
	cfg *config.Config,
	logger *zap.Logger,
	metrics *observability.Metrics,
) (*observability.Pipeline, error) {
	telemetry, err := observability.New(ctx, cfg.TelemetryConfig(), logger.Named("telemetry"),
		observability.WithMetrics(metrics))
	if err != nil {
		return nil, fmt.Errorf("failed to create telemetry pipeline: %w", err)
	}
	telemetry.Start()
	return telemetry, nil
}

// ProvideContactStore connects the configured store and wraps it with
// repository spans. The cleanup closes the connection pool.
func ProvideContactStore(
	ctx context.Context,
	cfg *config.Config,
	logger *zap.Logger,
	telemetry *observability.Pipeline,
) (ports.ContactStore, func(), error) {
	var (
		store   ports.ContactStore
		cleanup = func() {}
	)

	switch cfg.Store.Driver {
	case config.DriverPostgres, config.DriverSQLite:
		opts := sqlstore.OpenOptions{
			MaxOpenConns:    cfg.Store.MaxOpenConns,
			MaxIdleConns:    cfg.Store.MaxIdleConns,
			ConnMaxLifetime: cfg.Store.ConnMaxLifetime,
			ConnectTimeout:  cfg.Store.ConnectTimeout,
		}
		db, err := sqlstore.Open(ctx, cfg.Store.Driver, cfg.Store.DSN, opts, logger)
		if err != nil {
			return nil, nil, err
		}
		sqlStore := sqlstore.NewContactStore(db, cfg.Store.Driver)
		if err := sqlStore.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		store = sqlStore
		cleanup = func() {
			if err := db.Close(); err != nil {
				logger.Warn("Failed to close database", zap.Error(err))
			}
		}

	case config.DriverDynamoDB:
		client, err := dynamodb.NewClient(ctx, dynamodb.ClientConfig{
			Region:     cfg.Store.AWSRegion,
			Endpoint:   cfg.Store.DynamoDBEndpoint,
			HTTPClient: telemetry.HTTPClient(),
		})
		if err != nil {
			return nil, nil, err
		}
		store = dynamodb.NewContactStore(client, cfg.Store.DynamoDBTable, logger)

	default:
		store = memory.NewContactStore()
	}

	logger.Info("Contact store ready", zap.String("driver", cfg.Store.Driver))
	return observability.TraceRepository(store, telemetry.Tracer(), cfg.Store.Driver), cleanup, nil
}

// ProvideValidator creates the contact validator
func ProvideValidator() *validators.ContactValidator {
	return validators.NewContactValidator()
}

// ProvideContactService creates the CRUD service over one store
func ProvideContactService(
	store ports.ContactStore,
	validator services.Validator,
	logger *zap.Logger,
) *services.ContactService {
	return services.NewContactService(store, store, validator, logger.Named("contacts"))
}

// ProvideContactHandler creates the HTTP handler for contacts
func ProvideContactHandler(service *services.ContactService, logger *zap.Logger) *handlers.ContactHandler {
	return handlers.NewContactHandler(service, logger)
}

// ProvideRouter creates the HTTP router
func ProvideRouter(
	cfg *config.Config,
	contacts *handlers.ContactHandler,
	store ports.ContactStore,
	telemetry *observability.Pipeline,
	metrics *observability.Metrics,
	reg *prometheus.Registry,
	logger *zap.Logger,
) *rest.Router {
	routerCfg := rest.Config{
		RequestTimeout: cfg.RequestTimeout,
		CORSOrigins:    cfg.CORSOrigins,
		Auth: middleware.AuthConfig{
			Secret: cfg.Auth.JWTSecret,
			Issuer: cfg.Auth.JWTIssuer,
			Public: rest.PublicPaths,
		},
	}
	return rest.NewRouter(routerCfg, contacts, store, telemetry, metrics, reg, logger)
}
