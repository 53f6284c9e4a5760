package providers

import (
	"github.com/samber/do/v2"

	"github.com/gatherlyapp/gatherly-server/internal/config"
	"github.com/gatherlyapp/gatherly-server/internal/logger"
	"github.com/gatherlyapp/gatherly-server/internal/service"
)

// ProvideLinkService provides the admin-side link lifecycle service.
func ProvideLinkService(i do.Injector) (*service.LinkService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	notifyHandle := do.MustInvoke[*NotifyManagerHandle](i)

	return service.NewLinkService(
		storeHandle.Store,
		notifyHandle.Manager,
		log.Logger,
		cfg.Links.ValidityWindow,
		cfg.Links.SlugLength,
		cfg.Server.PublicURL,
	), nil
}

// ProvideAdmissionService provides the guest-side admission service.
func ProvideAdmissionService(i do.Injector) (*service.AdmissionService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	notifyHandle := do.MustInvoke[*NotifyManagerHandle](i)

	return service.NewAdmissionService(
		storeHandle.Store,
		notifyHandle.Manager,
		log.Logger,
		cfg.Links.DedupWindow,
	), nil
}
