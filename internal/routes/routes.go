package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/ricemart/ricemart-auth/internal/audit"
	"github.com/ricemart/ricemart-auth/internal/auth"
	"github.com/ricemart/ricemart-auth/internal/backend"
	"github.com/ricemart/ricemart-auth/internal/config"
	"github.com/ricemart/ricemart-auth/internal/middleware"
	"github.com/ricemart/ricemart-auth/internal/otp"
	"github.com/ricemart/ricemart-auth/internal/session"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	// Redis holds every session, so outside dev it is not optional.
	if !isDev(d.Cfg.AppEnv) && d.Cache == nil {
		return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.AccessLog(d.Logger))

	RegisterHealthRoutes(app, d)

	api := backend.NewHTTPClient(d.Cfg.BackendBaseURL, d.Logger)

	// The provider bridge talks to the hosted verification service when
	// one is configured; otherwise codes are minted and checked locally
	// in Redis; failing that, the backend's own phone endpoints carry
	// the verification.
	var provider otp.Provider
	switch {
	case d.Cfg.HostedProvider():
		provider = otp.NewHTTPProvider(d.Cfg.ProviderBaseURL, d.Cfg.ProviderAPIKey, d.Cfg.ProviderSiteKey)
	case d.Cache != nil:
		provider = otp.NewRedisProvider(d.Cache, otp.NewLoggerNotifier(d.Logger), d.Cfg.OTPCodeLength)
	default:
		provider = auth.NewBackendProvider(api)
	}

	stores := func(deviceID string) session.Store {
		if d.Cache != nil {
			return session.NewRedisStore(d.Cache, deviceID)
		}
		return session.NewMemoryStore()
	}
	bridges := func() *otp.Bridge {
		return otp.NewBridge(provider, d.Cfg.CountryCode, d.Logger)
	}

	var auditRepo audit.Repository
	if d.DB != nil {
		auditRepo = audit.NewPostgresRepository(d.DB)
	} else {
		auditRepo = audit.NewMemoryRepository()
	}
	recorder := audit.NewRecorder(auditRepo, d.Logger)

	manager := auth.NewManager(api, stores, bridges, recorder, d.Logger)
	handler := auth.NewHandler(manager)

	group := app.Group("/api/v1")
	group.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	device := group.Group("", middleware.RequireDevice())
	if d.Cache != nil {
		device = device.Group("", middleware.DuplicateGuard(d.Cache, 30*time.Second, d.Logger))
	}

	rateLimiter := middleware.OTPRateLimit(d.Cache, d.Cfg.OTPMaxPerMin)
	RegisterAuthRoutes(device, handler, rateLimiter)
	RegisterUserRoutes(device, handler)

	return nil
}

func isDev(env string) bool {
	switch strings.ToLower(env) {
	case "dev", "development", "local":
		return true
	default:
		return false
	}
}
