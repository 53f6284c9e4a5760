package providers

import (
	"context"
	"path/filepath"

	"github.com/samber/do/v2"

	"github.com/gatherlyapp/gatherly-server/internal/config"
	"github.com/gatherlyapp/gatherly-server/internal/logger"
	"github.com/gatherlyapp/gatherly-server/internal/notify"
	"github.com/gatherlyapp/gatherly-server/internal/store/sqlite"
)

// NotifyManagerHandle wraps the event manager with its context for lifecycle management.
type NotifyManagerHandle struct {
	*notify.Manager
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *NotifyManagerHandle) Shutdown() error {
	h.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Manager.Shutdown(ctx)
}

// ProvideNotifyManager provides the admission event manager.
func ProvideNotifyManager(i do.Injector) (*NotifyManagerHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)

	manager := notify.NewManager(log.Logger)

	// Start in background
	ctx, cancel := context.WithCancel(context.Background())
	go manager.Start(ctx)

	log.Info("Event manager started")

	return &NotifyManagerHandle{
		Manager: manager,
		cancel:  cancel,
	}, nil
}

// StoreHandle wraps the store with shutdown capability.
type StoreHandle struct {
	*sqlite.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore provides the database store.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	dbPath := filepath.Join(cfg.Storage.DataPath, "gatherly.db")
	db, err := sqlite.Open(dbPath, log.Logger)
	if err != nil {
		return nil, err
	}

	log.Info("Database initialized", "path", dbPath)

	return &StoreHandle{Store: db}, nil
}
