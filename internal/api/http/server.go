package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/workorder-service/internal/observability"
)

// uploadOverhead leaves room for multipart framing around the file itself.
const uploadOverhead = 1 << 20

// ServerConfig configures the fiber application.
type ServerConfig struct {
	Name           string
	MaxUploadBytes int64
	RequestTimeout time.Duration
	Logger         *zap.Logger
	Metrics        *observability.Metrics
}

// NewApp creates the fiber application with global middlewares attached.
// Routes are registered separately with RegisterRoutes.
func NewApp(cfg ServerConfig) *fiber.App {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	bodyLimit := fiber.DefaultBodyLimit
	if limit := cfg.MaxUploadBytes + uploadOverhead; cfg.MaxUploadBytes > 0 && limit > int64(bodyLimit) {
		bodyLimit = int(limit)
	}

	// Immutable keeps ctx strings valid after the handler returns; they
	// are persisted in audit entries and used as metric labels.
	app := fiber.New(fiber.Config{
		AppName:               cfg.Name,
		Immutable:             true,
		BodyLimit:             bodyLimit,
		DisableStartupMessage: true,
	})
	RegisterMiddlewares(app, logger, cfg.Metrics, cfg.RequestTimeout)
	return app
}
