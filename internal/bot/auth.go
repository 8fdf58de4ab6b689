package bot

import (
	"context"
	"errors"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/flx-it/assistbot/core/logger"
	tghelpers "github.com/flx-it/assistbot/core/telegram/helpers"
	"log/slog"

	"github.com/flx-it/assistbot/internal/domain"
	"github.com/flx-it/assistbot/internal/permissions"
	"github.com/flx-it/assistbot/internal/storage"
)

const userContextKey = "assistbot_user"

// AuthMiddleware resolves the sender into a registered user and stashes it in
// the Telegram context. Unregistered senders pass through without a user so
// /start can bind their account.
func (a *App) AuthMiddleware() tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			sender := c.Sender()
			if sender == nil {
				return next(c)
			}

			ctx := tghelpers.BuildContext(c)
			user, err := a.store.UserByTelegramID(ctx, sender.ID)
			if err != nil {
				if !errors.Is(err, storage.ErrNotFound) {
					logger.SVCUsers.Error("user lookup failed",
						slog.Int64("user_id", sender.ID),
						slog.String("err", err.Error()),
					)
				}
				return next(c)
			}

			c.Set(userContextKey, user)
			if err := a.store.TouchUserActivity(ctx, user.ID, time.Now()); err != nil {
				logger.SVCUsers.Warn("activity update failed",
					slog.Int64("user_id", user.ID),
					slog.String("err", err.Error()),
				)
			}
			return next(c)
		}
	}
}

// CurrentUser returns the resolved user stashed by AuthMiddleware.
func CurrentUser(c tele.Context) (domain.User, bool) {
	u, ok := c.Get(userContextKey).(domain.User)
	return u, ok
}

// requireUser fetches the stashed user or answers with the registration hint.
func requireUser(c tele.Context) (domain.User, bool) {
	u, ok := CurrentUser(c)
	if !ok {
		_ = tghelpers.SendText(c, txtNotRegistered)
		return domain.User{}, false
	}
	return u, true
}

// allowed resolves the user's effective permission set and checks one
// capability. Used both by the middleware gate and inline by handlers that
// branch on capabilities.
func (a *App) allowed(ctx context.Context, user domain.User, capability string) (bool, error) {
	role, err := a.store.RoleByID(ctx, user.RoleID)
	if err != nil {
		return false, err
	}
	return permissions.Has(role.Permissions, user.PermsAdd, user.PermsRemove, capability), nil
}

// Allowed implements the core permission middleware contract.
func (a *App) Allowed(c tele.Context, capability string) (bool, error) {
	user, ok := CurrentUser(c)
	if !ok {
		return false, nil
	}
	return a.allowed(tghelpers.BuildContext(c), user, capability)
}
