// Package bot dispatches inbound chat messages: link resolution for
// everyone, plus the admin panel and its conversation states.
package bot

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"tokgrab/internal/gateway"
	"tokgrab/internal/media"
	"tokgrab/internal/session"
)

// DefaultMaxConcurrent bounds in-flight update handlers.
const DefaultMaxConcurrent = 16

// Registry is the persistent user and admin store.
type Registry interface {
	UpsertUser(ctx context.Context, u media.User) error
	ListUserIDs(ctx context.Context) ([]int64, error)
	ListUsers(ctx context.Context) ([]media.User, error)
	CountUsers(ctx context.Context) (int, error)
	FindUserByUsername(ctx context.Context, username string) (media.User, error)
	AddAdmin(ctx context.Context, userID int64, username string) error
	RemoveAdmin(ctx context.Context, userID int64) error
	IsAdmin(ctx context.Context, userID int64) (bool, error)
	IsOwner(userID int64) bool
}

// Resolver turns a short-video link into a direct media URL.
type Resolver interface {
	Resolve(ctx context.Context, link string) media.Result
}

// Broadcaster fans an item out to recipients.
type Broadcaster interface {
	Broadcast(ctx context.Context, item media.BroadcastItem, recipients []int64) media.DeliveryReport
}

// Tracker observes handler concurrency.
type Tracker interface {
	UpdateStarted()
	UpdateFinished()
}

// Options configures a Bot.
type Options struct {
	Caption       string
	MaxConcurrent int
	Tracker       Tracker
	Logger        zerolog.Logger
}

// Bot wires the gateway to the workflow handlers.
type Bot struct {
	gw          gateway.Gateway
	registry    Registry
	resolver    Resolver
	broadcaster Broadcaster
	sessions    *session.Store

	caption string
	sem     chan struct{}
	tracker Tracker
	logger  zerolog.Logger
}

// New creates a Bot.
func New(gw gateway.Gateway, registry Registry, resolver Resolver, broadcaster Broadcaster, sessions *session.Store, opts Options) *Bot {
	limit := opts.MaxConcurrent
	if limit <= 0 {
		limit = DefaultMaxConcurrent
	}
	return &Bot{
		gw:          gw,
		registry:    registry,
		resolver:    resolver,
		broadcaster: broadcaster,
		sessions:    sessions,
		caption:     opts.Caption,
		sem:         make(chan struct{}, limit),
		tracker:     opts.Tracker,
		logger:      opts.Logger.With().Str("component", "bot").Logger(),
	}
}

// Run consumes updates until ctx ends or the gateway closes the stream,
// then waits for in-flight handlers to finish. Handlers run on a context
// that outlives ctx so a reply in progress is not cut off.
func (b *Bot) Run(ctx context.Context) error {
	updates := b.gw.Updates(ctx)
	handlerCtx := context.WithoutCancel(ctx)

	sweep := time.NewTicker(time.Minute)
	defer sweep.Stop()

	var wg sync.WaitGroup
	b.logger.Info().Int("max_concurrent", cap(b.sem)).Msg("bot started")

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-sweep.C:
			if n := b.sessions.Sweep(); n > 0 {
				b.logger.Debug().Int("expired", n).Msg("sessions swept")
			}
		case msg, ok := <-updates:
			if !ok {
				break loop
			}
			// A received update is always handled, even during shutdown.
			b.sem <- struct{}{}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer func() { <-b.sem }()
				b.Handle(handlerCtx, msg)
			}()
		}
	}

	b.logger.Info().Msg("waiting for in-flight handlers")
	wg.Wait()
	b.logger.Info().Msg("bot stopped")
	return nil
}

// Handle processes one inbound message. Commands take priority, then the
// Exit button, then any pending conversation state, then menu buttons,
// and finally link detection.
func (b *Bot) Handle(ctx context.Context, msg gateway.Message) {
	logger := b.logger.With().
		Int64("user_id", msg.From.ID).
		Int64("chat_id", msg.ChatID).
		Int("message_id", msg.ID).
		Logger()

	if b.tracker != nil {
		b.tracker.UpdateStarted()
		defer b.tracker.UpdateFinished()
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("handler panicked")
		}
	}()

	h := handler{Bot: b, msg: msg, logger: logger}

	switch msg.Command {
	case "start":
		h.start(ctx)
		return
	case "admin":
		h.adminPanel(ctx)
		return
	case "addadmin":
		h.beginAdminChange(ctx, session.AddAdmin)
		return
	case "removeadmin":
		h.beginAdminChange(ctx, session.RemoveAdmin)
		return
	case "cancel":
		h.cancel(ctx)
		return
	}

	if msg.Kind == media.TextItem && msg.Text == ButtonExit {
		h.exit(ctx)
		return
	}

	switch state := b.sessions.Take(msg.From.ID); state.Kind {
	case session.AwaitingAdminUsername:
		h.changeAdmin(ctx, state.Action)
		return
	case session.AwaitingBroadcastContent:
		h.broadcast(ctx)
		return
	}

	if msg.Kind != media.TextItem {
		return
	}
	switch msg.Text {
	case ButtonBroadcast:
		h.beginBroadcast(ctx)
	case ButtonUserCount:
		h.userCount(ctx)
	case ButtonExport:
		h.exportUsers(ctx)
	default:
		h.deliver(ctx)
	}
}
