package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/spec-kit/workorder-service/internal/audit"
	"github.com/spec-kit/workorder-service/internal/auth"
	"github.com/spec-kit/workorder-service/internal/domain"
	apperrors "github.com/spec-kit/workorder-service/pkg/util/errorutil"
)

func currentActor(c *fiber.Ctx) (domain.Actor, error) {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return domain.Actor{}, apperrors.NewUnauthorized(apperrors.CodeAuthRequired, "authentication required")
	}
	return actor, nil
}

// pathID reads a UUID route parameter. Anything that cannot be an id is
// reported as the missing resource rather than reaching the store.
func pathID(c *fiber.Ctx, param, resource string) (string, error) {
	id, err := uuid.Parse(c.Params(param))
	if err != nil {
		return "", apperrors.NewNotFound(resource, nil)
	}
	return id.String(), nil
}

func requestContext(c *fiber.Ctx) audit.RequestContext {
	return audit.RequestContext{
		ForwardedFor: c.Get(fiber.HeaderXForwardedFor),
		RemoteAddr:   c.IP(),
		UserAgent:    c.Get(fiber.HeaderUserAgent),
	}
}

type validatable interface {
	Validate() error
}

// parseBody decodes the JSON body into dst and validates it when possible.
func parseBody(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if v, ok := dst.(validatable); ok {
		return v.Validate()
	}
	return nil
}

// queryInt reads a positive integer query parameter bounded by max.
func queryInt(c *fiber.Ctx, name string, def, max int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || (max > 0 && n > max) {
		return 0, apperrors.NewValidationError("invalid query parameter", map[string]any{name: "must be a positive integer" + boundSuffix(max)})
	}
	return n, nil
}

func boundSuffix(max int) string {
	if max <= 0 {
		return ""
	}
	return " no greater than " + strconv.Itoa(max)
}
