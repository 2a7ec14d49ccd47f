package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"tokgrab/internal/export"
	"tokgrab/internal/gateway"
	"tokgrab/internal/link"
	"tokgrab/internal/session"
	"tokgrab/internal/store"
)

// handler carries one message through its workflow step.
type handler struct {
	*Bot
	msg    gateway.Message
	logger zerolog.Logger
}

func (h handler) reply(ctx context.Context, text string) {
	if _, err := h.gw.SendText(ctx, h.msg.ChatID, text); err != nil {
		h.logger.Warn().Err(err).Msg("reply failed")
	}
}

func (h handler) replyf(ctx context.Context, format string, args ...any) {
	h.reply(ctx, fmt.Sprintf(format, args...))
}

// isAdmin reports admin rights; lookup errors deny access.
func (h handler) isAdmin(ctx context.Context) bool {
	ok, err := h.registry.IsAdmin(ctx, h.msg.From.ID)
	if err != nil {
		h.logger.Error().Err(err).Msg("admin lookup failed")
		return false
	}
	return ok
}

func (h handler) start(ctx context.Context) {
	h.logger.Info().Str("username", h.msg.From.Username).Msg("start")

	user := h.msg.From
	user.JoinedAt = time.Now()
	if err := h.registry.UpsertUser(ctx, user); err != nil {
		h.logger.Error().Err(err).Msg("registering user")
	}
	h.reply(ctx, textWelcome)
}

// deliver resolves a link and sends the video back. Text without a link
// is ignored.
func (h handler) deliver(ctx context.Context) {
	if !link.IsResolvable(h.msg.Text) {
		return
	}
	target, ok := link.Extract(h.msg.Text)
	if !ok {
		target = strings.TrimSpace(h.msg.Text)
	}
	logger := h.logger.With().Str("link", target).Logger()

	placeholder, err := h.gw.SendText(ctx, h.msg.ChatID, textProcessing)
	if err != nil {
		logger.Warn().Err(err).Msg("sending placeholder")
	} else {
		defer func() {
			if err := h.gw.DeleteMessage(ctx, h.msg.ChatID, placeholder); err != nil {
				logger.Warn().Err(err).Msg("deleting placeholder")
			}
		}()
	}

	res := h.resolver.Resolve(ctx, target)
	if !res.OK() {
		logger.Error().
			Stringer("reason", res.Reason).
			Int("attempts", len(res.Attempts)).
			Msg("could not resolve video")
		h.reply(ctx, textFetchFail)
		return
	}

	logger.Info().Str("provider", res.Provider).Str("url", res.DirectURL).Msg("video resolved")

	if err := h.gw.SendVideo(ctx, h.msg.ChatID, gateway.FileURL(res.DirectURL), h.caption); err != nil {
		logger.Error().Err(err).Str("url", res.DirectURL).Msg("sending video")
		h.reply(ctx, textSendFail)
	}
}

func (h handler) adminPanel(ctx context.Context) {
	h.logger.Info().Msg("admin panel requested")
	if !h.isAdmin(ctx) {
		h.reply(ctx, textNoAccess)
		return
	}
	if err := h.gw.SendMenu(ctx, h.msg.ChatID, textAdminPanel, adminMenu); err != nil {
		h.logger.Warn().Err(err).Msg("sending admin menu")
	}
}

func (h handler) exit(ctx context.Context) {
	if !h.isAdmin(ctx) {
		return
	}
	h.sessions.Finish(h.msg.From.ID)
	if err := h.gw.RemoveMenu(ctx, h.msg.ChatID, textLeftPanel); err != nil {
		h.logger.Warn().Err(err).Msg("removing admin menu")
	}
}

func (h handler) cancel(ctx context.Context) {
	if h.sessions.Take(h.msg.From.ID).Kind == session.Idle {
		h.reply(ctx, textNothingCancel)
		return
	}
	h.reply(ctx, textCanceled)
}

func (h handler) userCount(ctx context.Context) {
	if !h.isAdmin(ctx) {
		return
	}
	n, err := h.registry.CountUsers(ctx)
	if err != nil {
		h.logger.Error().Err(err).Msg("counting users")
		h.reply(ctx, textInternal)
		return
	}
	h.logger.Info().Int("users", n).Msg("user count requested")
	h.replyf(ctx, textUserCount, n)
}

func (h handler) exportUsers(ctx context.Context) {
	if !h.isAdmin(ctx) {
		return
	}
	users, err := h.registry.ListUsers(ctx)
	if err != nil {
		h.logger.Error().Err(err).Msg("listing users")
		h.reply(ctx, textInternal)
		return
	}
	data, err := export.Bytes(users)
	if err != nil {
		h.logger.Error().Err(err).Msg("rendering export")
		h.reply(ctx, textInternal)
		return
	}

	doc := gateway.FileBytes(export.DefaultFilename, data)
	if err := h.gw.SendDocument(ctx, h.msg.ChatID, doc, textExportCap); err != nil {
		h.logger.Error().Err(err).Msg("sending export")
		return
	}
	h.logger.Info().Int("users", len(users)).Msg("users exported")
}

func (h handler) beginBroadcast(ctx context.Context) {
	if !h.isAdmin(ctx) {
		return
	}
	h.sessions.Begin(h.msg.From.ID, session.State{Kind: session.AwaitingBroadcastContent})
	h.reply(ctx, textAskBroadcast)
}

// broadcast fans the current message out to every registered user.
func (h handler) broadcast(ctx context.Context) {
	if !h.isAdmin(ctx) {
		return
	}
	recipients, err := h.registry.ListUserIDs(ctx)
	if err != nil {
		h.logger.Error().Err(err).Msg("listing recipients")
		h.reply(ctx, textInternal)
		return
	}

	report := h.broadcaster.Broadcast(ctx, h.msg.Content(), recipients)
	h.replyf(ctx, textBroadcastEnd, report.Success, report.Failed)
}

func (h handler) beginAdminChange(ctx context.Context, action session.Action) {
	if !h.registry.IsOwner(h.msg.From.ID) {
		if action == session.AddAdmin {
			h.reply(ctx, textOwnerOnlyAdd)
		} else {
			h.reply(ctx, textOwnerOnlyRemove)
		}
		return
	}

	h.sessions.Begin(h.msg.From.ID, session.State{Kind: session.AwaitingAdminUsername, Action: action})
	if action == session.AddAdmin {
		h.reply(ctx, textAskAddUser)
	} else {
		h.reply(ctx, textAskRemoveUser)
	}
}

// changeAdmin applies a pending add or remove to the username in the
// current message.
func (h handler) changeAdmin(ctx context.Context, action session.Action) {
	if !h.registry.IsOwner(h.msg.From.ID) {
		h.reply(ctx, textOwnerOnly)
		return
	}

	user, err := h.registry.FindUserByUsername(ctx, h.msg.Text)
	if errors.Is(err, store.ErrUserNotFound) {
		h.reply(ctx, textUnknownUser)
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Msg("looking up user")
		h.reply(ctx, textInternal)
		return
	}

	logger := h.logger.With().Int64("target_id", user.ID).Str("target", user.Username).Logger()

	switch action {
	case session.AddAdmin:
		err = h.registry.AddAdmin(ctx, user.ID, user.Username)
		switch {
		case errors.Is(err, store.ErrAlreadyAdmin):
			h.replyf(ctx, textAlreadyAdmin, user.Username)
		case err != nil:
			logger.Error().Err(err).Msg("adding admin")
			h.reply(ctx, textInternal)
		default:
			logger.Info().Msg("admin added")
			h.replyf(ctx, textAdminAdded, user.Username)
		}
	case session.RemoveAdmin:
		err = h.registry.RemoveAdmin(ctx, user.ID)
		switch {
		case errors.Is(err, store.ErrNotAdmin):
			h.replyf(ctx, textNotAdmin, user.Username)
		case err != nil:
			logger.Error().Err(err).Msg("removing admin")
			h.reply(ctx, textInternal)
		default:
			logger.Info().Msg("admin removed")
			h.replyf(ctx, textAdminRemoved, user.Username)
		}
	default:
		logger.Error().Int("action", int(action)).Msg("unknown admin action")
		h.reply(ctx, textInternal)
	}
}
