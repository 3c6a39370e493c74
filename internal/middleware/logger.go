package middleware

import (
	"context"
	"encoding/json"
	"log/slog"

	tele "gopkg.in/telebot.v3"
)

// Logger dumps every incoming update as JSON under the request context, so
// log lines can be correlated with the request id.
func Logger() tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			ctx := c.Get("requestContext").(context.Context)

			data, err := json.Marshal(c.Update())
			if err != nil {
				slog.ErrorContext(ctx, "Failed to marshal update", "error", err)
				return next(c)
			}

			slog.InfoContext(ctx, "Incoming update", "update", string(data))
			return next(c)
		}
	}
}
