// Package di provides dependency injection configuration for the Gatherly server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/gatherlyapp/gatherly-server/internal/config"
	"github.com/gatherlyapp/gatherly-server/internal/di/providers"
	"github.com/gatherlyapp/gatherly-server/internal/logger"
	"github.com/gatherlyapp/gatherly-server/internal/service"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideSlogLogger)

	// Database layer
	do.Provide(injector, providers.ProvideNotifyManager)
	do.Provide(injector, providers.ProvideStore)

	// Business services
	do.Provide(injector, providers.ProvideLinkService)
	do.Provide(injector, providers.ProvideAdmissionService)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and returns handles for lifecycle management.
// This triggers lazy initialization of all core services.
func Bootstrap(injector *do.RootScope) error {
	if _, err := do.Invoke[*config.Config](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*providers.NotifyManagerHandle](injector)
	_ = do.MustInvoke[*providers.StoreHandle](injector)

	// Business services
	_ = do.MustInvoke[*service.LinkService](injector)
	_ = do.MustInvoke[*service.AdmissionService](injector)

	// Server
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	return nil
}
