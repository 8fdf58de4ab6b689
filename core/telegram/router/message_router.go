package router

import (
	"time"

	tg "github.com/flx-it/assistbot/core/telegram"
	"github.com/flx-it/assistbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// FSM defines the minimal interface for a pending-operation manager.
type FSM interface {
	InProgress(userID int64) bool
	ManagerHandler(c tele.Context) error
}

// TextOptions controls fallback behaviour for text updates.
type TextOptions struct {
	UnknownText tele.HandlerFunc
}

// MediaOptions supplies handlers for non-text updates. Each handler decides
// on its own how a pending operation (or its absence) affects the update.
type MediaOptions struct {
	Photo tele.HandlerFunc
	Voice tele.HandlerFunc
}

// TextRoutes builds the text routing handler: a pending operation wins,
// then registered commands typed as text, then the registry fallback.
func TextRoutes(fsmMgr FSM, reg *tg.Registry, opts TextOptions) []tg.Route {
	handler := func(c tele.Context) error {
		start := time.Now()
		text := c.Text()

		if fsmMgr != nil && fsmMgr.InProgress(c.Sender().ID) {
			return handleWithSummary(c, "fsm", start, "", "", func() error {
				return fsmMgr.ManagerHandler(c)
			})
		}

		if reg != nil {
			if key, cmd, ok := reg.LookupCommand(text); ok && cmd.Handler != nil {
				name := normalizeHandlerName(key)
				return handleWithSummary(c, name, start, "", "", func() error {
					return cmd.Handler(c)
				})
			}
		}

		if reg != nil {
			if fb := reg.TextFallback(); fb != nil {
				return handleWithSummary(c, "fallback", start, "", "", func() error {
					return fb(c)
				})
			}
		}

		if opts.UnknownText != nil {
			return handleWithSummary(c, "unknown_text", start, "", "", func() error {
				return opts.UnknownText(c)
			})
		}

		logHandlerSummary(c, "unknown_text", start, "skip", "ok", nil)
		return nil
	}

	return []tg.Route{
		{
			Endpoint: tele.OnText,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
		},
	}
}

// MediaRoutes builds handlers for photo and voice updates.
func MediaRoutes(opts MediaOptions) []tg.Route {
	var routes []tg.Route

	if opts.Photo != nil {
		photoHandler := func(c tele.Context) error {
			start := time.Now()
			return handleWithSummary(c, "photo", start, "", "", func() error {
				return opts.Photo(c)
			})
		}
		routes = append(routes, tg.Route{
			Endpoint: tele.OnPhoto,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(photoHandler)),
		})
	}

	if opts.Voice != nil {
		voiceHandler := func(c tele.Context) error {
			start := time.Now()
			return handleWithSummary(c, "voice", start, "", "", func() error {
				return opts.Voice(c)
			})
		}
		routes = append(routes, tg.Route{
			Endpoint: tele.OnVoice,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(voiceHandler)),
		})
	}

	return routes
}
