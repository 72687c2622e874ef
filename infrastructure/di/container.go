package di

import (
	"go.uber.org/zap"

	"contact-service/application/ports"
	"contact-service/application/services"
	"contact-service/infrastructure/config"
	"contact-service/interfaces/http/rest"
	"contact-service/pkg/observability"
)

// Container holds all application dependencies
type Container struct {
	Config    *config.Config
	Logging   *Logging
	Logger    *zap.Logger
	Metrics   *observability.Metrics
	Telemetry *observability.Pipeline
	Store     ports.ContactStore
	Service   *services.ContactService
	Router    *rest.Router
}
