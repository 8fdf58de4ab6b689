package middleware

import (
	"github.com/flx-it/assistbot/core/logger"
	tghelpers "github.com/flx-it/assistbot/core/telegram/helpers"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

// PermissionChecker reports whether the sender of an update may exercise a
// capability. Implementations resolve the effective permission set for the
// user behind the context.
type PermissionChecker interface {
	Allowed(c tele.Context, capability string) (bool, error)
}

// PermissionOptions configures the permission gate.
type PermissionOptions struct {
	Checker  PermissionChecker
	OnDenied tele.HandlerFunc
}

// RequirePermission wraps a handler so it only runs when the sender holds the
// given capability. A denied update is answered by OnDenied (if set) and
// produces no state change downstream.
func RequirePermission(opts PermissionOptions, capability string) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if opts.Checker == nil {
				return next(c)
			}
			ok, err := opts.Checker.Allowed(c, capability)
			if err != nil {
				ctx := tghelpers.BuildContext(c)
				logger.Warn(ctx, "tg", "permission.check_failed",
					slog.String("status", "fail"),
					slog.String("operation", capability),
					slog.String("err", err.Error()),
				)
				if opts.OnDenied != nil {
					return opts.OnDenied(c)
				}
				return nil
			}
			if !ok {
				ctx := tghelpers.BuildContext(c)
				logger.Debug(ctx, "tg", "permission.denied",
					slog.String("status", "skip"),
					slog.String("operation", capability),
				)
				if opts.OnDenied != nil {
					return opts.OnDenied(c)
				}
				return nil
			}
			return next(c)
		}
	}
}
