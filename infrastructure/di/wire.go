//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"github.com/google/wire"

	"contact-service/application/services"
	"contact-service/domain/core/validators"
	"contact-service/infrastructure/config"
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogging,
	ProvideLogger,
	ProvideRegistry,
	ProvideMetrics,
	ProvideTelemetry,
	ProvideContactStore,
	ProvideValidator,
	wire.Bind(new(services.Validator), new(*validators.ContactValidator)),
	ProvideContactService,
	ProvideContactHandler,
	ProvideRouter,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, func(), error) {
	wire.Build(SuperSet)
	return nil, nil, nil
}
