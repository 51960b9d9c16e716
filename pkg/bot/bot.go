// Package bot controls a display from a Telegram chat.
package bot

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"
)

type handler func(payload string) (string, error)

func New(token string, cmds *Commands, logger *zap.Logger) (*Bot, error) {
	pref := tele.Settings{
		Token: token,
		Poller: &tele.LongPoller{
			Timeout: 30 * time.Second,
		},
		OnError: func(err error, c tele.Context) {
			logger.With(zap.Error(err)).Info("bot handler failed")
		},
	}

	b, err := tele.NewBot(pref)
	if err != nil {
		return nil, err
	}

	return &Bot{b: b, cmds: cmds, log: logger.Named("bot")}, nil
}

type Bot struct {
	b    *tele.Bot
	cmds *Commands
	log  *zap.Logger
}

// Routes maps every chat command to its handler.
func (b *Bot) Routes() map[string]handler {
	return map[string]handler{
		"/info":        b.cmds.Info,
		"/on":          b.cmds.On,
		"/off":         b.cmds.Off,
		"/clear":       b.cmds.Clear,
		"/reset":       b.cmds.Reset,
		"/brightness":  b.cmds.Brightness,
		"/orientation": b.cmds.Orientation,
		"/led":         b.cmds.Led,
		"/draw":        b.cmds.Draw,
		"/ls":          b.cmds.List,
		"/upload":      b.cmds.Upload,
		"/rm":          b.cmds.Delete,
		"/play":        b.cmds.Play,
		"/stop":        b.cmds.Stop,
	}
}

func (b *Bot) reply(name string, h handler) tele.HandlerFunc {
	return func(ctx tele.Context) error {
		out, err := h(ctx.Message().Payload)
		if err != nil {
			b.log.With(zap.String("command", name), zap.Error(err)).Info("failed")
			return ctx.Reply(fmt.Sprintf("%s failed: %s", name[1:], err))
		}
		return ctx.Reply(out)
	}
}

func (b *Bot) Start() {
	for name, h := range b.Routes() {
		b.b.Handle(name, b.reply(name, h))
	}
	go b.b.Start()
}

func (b *Bot) Stop() {
	// Stop blocks until the pending long poll returns
	go b.b.Stop()
}
