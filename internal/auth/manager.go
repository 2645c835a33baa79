package auth

import (
	"log/slog"
	"sync"

	"github.com/ricemart/ricemart-auth/internal/audit"
	"github.com/ricemart/ricemart-auth/internal/backend"
	"github.com/ricemart/ricemart-auth/internal/otp"
	"github.com/ricemart/ricemart-auth/internal/session"
)

// StoreFactory builds the session store scoped to one device.
type StoreFactory func(deviceID string) session.Store

// BridgeFactory builds the provider bridge owned by one controller.
type BridgeFactory func() *otp.Bridge

// Manager hands out one Controller per device. The storefront's notion of
// "this browser tab" becomes the device identifier here; each controller is
// the singleton for its device and nothing leaks between them.
type Manager struct {
	api      backend.Client
	stores   StoreFactory
	bridges  BridgeFactory
	recorder *audit.Recorder
	logger   *slog.Logger

	mu          sync.Mutex
	controllers map[string]*Controller
}

// NewManager wires the shared collaborators behind per-device controllers.
func NewManager(api backend.Client, stores StoreFactory, bridges BridgeFactory, recorder *audit.Recorder, logger *slog.Logger) *Manager {
	return &Manager{
		api:         api,
		stores:      stores,
		bridges:     bridges,
		recorder:    recorder,
		logger:      logger,
		controllers: make(map[string]*Controller),
	}
}

// Controller returns the controller for the device, creating it on first use.
func (m *Manager) Controller(deviceID string) *Controller {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.controllers[deviceID]; ok {
		return c
	}
	c := NewController(deviceID, m.stores(deviceID), m.api, m.bridges(), m.recorder, m.logger)
	m.controllers[deviceID] = c
	return c
}
