package middleware

import (
	"context"
	"sync"

	tele "gopkg.in/telebot.v3"

	"tg-gemini/internal/models"
)

// RateLimiter admits one in-flight request per user. The slot also tracks the
// request's cancel func so that /cancel can abort a running completion.
type RateLimiter struct {
	locks   sync.Map
	cancels sync.Map
}

func (r *RateLimiter) Middleware() tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Get("user").(models.User)
			userLock, _ := r.locks.LoadOrStore(user.Id, make(chan struct{}, 1))
			userChan := userLock.(chan struct{})

			select {
			case userChan <- struct{}{}:
				defer func() {
					r.cancels.Delete(user.Id)
					<-userChan
				}()
				return next(c)
			default:
				return c.Send("⏳ Please wait for a reply to the previous message. Or you can /cancel it.")
			}
		}
	}
}

// TrackContext derives a cancelable context for the user's in-flight request.
func (r *RateLimiter) TrackContext(userId int64, ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	r.cancels.Store(userId, cancel)
	return ctx, cancel
}

// CancelRequest aborts the user's in-flight request, if any.
func (r *RateLimiter) CancelRequest(userId int64) bool {
	value, ok := r.cancels.Load(userId)
	if !ok {
		return false
	}
	value.(context.CancelFunc)()
	return true
}
