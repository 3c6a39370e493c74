package middleware

import (
	"context"
	"log/slog"

	"golang.org/x/exp/slices"
	tele "gopkg.in/telebot.v3"

	"tg-gemini/internal/models"
)

type UserManager interface {
	EnsureUser(userId int64, chatId int64, username string, firstName string, lastName string) (models.User, error)
}

// UserAuthenticator registers unknown senders on first contact and enforces
// the allow-list. An empty allow-list admits everyone.
type UserAuthenticator struct {
	Manager        UserManager
	AllowedUserIds []int64
}

func (u *UserAuthenticator) Middleware() tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			ctx := c.Get("requestContext").(context.Context)
			sender := c.Sender()
			if sender == nil {
				return nil
			}

			if len(u.AllowedUserIds) > 0 && !slices.Contains(u.AllowedUserIds, sender.ID) {
				slog.InfoContext(ctx, "Rejected unauthorized user", "user_id", sender.ID)
				return c.Send("You are not allowed to use this bot. Please contact the administrator.")
			}

			user, err := u.Manager.EnsureUser(sender.ID, c.Chat().ID, sender.Username, sender.FirstName, sender.LastName)
			if err != nil {
				slog.ErrorContext(ctx, "Error registering user", "error", err, "user_id", sender.ID)
				return err
			}

			c.Set("user", user)
			return next(c)
		}
	}
}
