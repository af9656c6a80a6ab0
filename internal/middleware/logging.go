// Package middleware provides the request-scoped fiber middleware of the API.
package middleware

import (
	"log/slog"
	"time"

	"unify/internal/observability"

	"github.com/gofiber/fiber/v2"
)

// ContextMiddleware copies request ID, acting user and trace ID from Fiber
// locals into the request context so the context-aware logger sees them in
// the service layers.
func ContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()

		if rid, ok := c.Locals("requestid").(string); ok && rid != "" {
			ctx = observability.WithRequestID(ctx, rid)
		}
		if uid, ok := c.Locals("userID").(string); ok && uid != "" {
			ctx = observability.WithUserID(ctx, uid)
		}
		if tid, ok := c.Locals("traceID").(string); ok && tid != "" {
			ctx = observability.WithTraceID(ctx, tid)
		}

		c.SetUserContext(ctx)
		return c.Next()
	}
}

// Actor marks the user named by a route parameter as the acting user of the
// request. There is no authentication protocol; routes scoped to a user carry
// the id in their path.
func Actor(param string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if uid := c.Params(param); uid != "" {
			c.Locals("userID", uid)
			c.SetUserContext(observability.WithUserID(c.UserContext(), uid))
		}
		return c.Next()
	}
}

// StructuredLogger returns a Fiber middleware for logging requests using slog
func StructuredLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		fields := []any{
			slog.Int("status", c.Response().StatusCode()),
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.String("ip", c.IP()),
			slog.Duration("latency", time.Since(start)),
			slog.String("user_agent", c.Get("User-Agent")),
		}

		// InfoContext/ErrorContext so the ctxHandler picks up rid/uid
		if err != nil {
			fields = append(fields, slog.String("error", err.Error()))
			observability.GlobalLogger.ErrorContext(c.UserContext(), "request failed", fields...)
		} else {
			observability.GlobalLogger.InfoContext(c.UserContext(), "request processed", fields...)
		}

		return err
	}
}
