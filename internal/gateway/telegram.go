package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"tokgrab/internal/media"
)

// pollTimeout is the long-poll window passed to getUpdates.
const pollTimeout = 60

// Telegram implements Gateway on the Telegram Bot API.
type Telegram struct {
	api    *tgbotapi.BotAPI
	logger zerolog.Logger
}

// TelegramOptions configures the Telegram gateway.
type TelegramOptions struct {
	Token    string
	Endpoint string // API endpoint template; empty selects tgbotapi.APIEndpoint
	Logger   zerolog.Logger
}

// NewTelegram authenticates with the Bot API and returns a gateway.
func NewTelegram(opts TelegramOptions) (*Telegram, error) {
	if opts.Token == "" {
		return nil, errors.New("telegram token is empty")
	}
	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}

	// The client timeout must outlast the long-poll window.
	client := &http.Client{Timeout: (pollTimeout + 15) * time.Second}

	api, err := tgbotapi.NewBotAPIWithClient(opts.Token, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("connecting to telegram: %w", err)
	}

	logger := opts.Logger.With().Str("component", "telegram").Logger()
	logger.Info().Str("bot", api.Self.UserName).Msg("authorized")

	return &Telegram{api: api, logger: logger}, nil
}

// Username returns the bot's own username.
func (t *Telegram) Username() string {
	return t.api.Self.UserName
}

func (t *Telegram) SendText(ctx context.Context, chatID int64, text string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	sent, err := t.api.Send(tgbotapi.NewMessage(chatID, text))
	if err != nil {
		return 0, fmt.Errorf("sending message to %d: %w", chatID, err)
	}
	return sent.MessageID, nil
}

func (t *Telegram) SendMenu(ctx context.Context, chatID int64, text string, rows [][]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	keyboard := make([][]tgbotapi.KeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.KeyboardButton, 0, len(row))
		for _, label := range row {
			buttons = append(buttons, tgbotapi.NewKeyboardButton(label))
		}
		keyboard = append(keyboard, tgbotapi.NewKeyboardButtonRow(buttons...))
	}
	markup := tgbotapi.NewReplyKeyboard(keyboard...)
	markup.ResizeKeyboard = true

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = markup
	if _, err := t.api.Send(msg); err != nil {
		return fmt.Errorf("sending menu to %d: %w", chatID, err)
	}
	return nil
}

func (t *Telegram) RemoveMenu(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	if _, err := t.api.Send(msg); err != nil {
		return fmt.Errorf("removing menu for %d: %w", chatID, err)
	}
	return nil
}

func (t *Telegram) SendVideo(ctx context.Context, chatID int64, video File, caption string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ref, err := requestFile(video)
	if err != nil {
		return err
	}
	cfg := tgbotapi.NewVideo(chatID, ref)
	cfg.Caption = caption
	if _, err := t.api.Send(cfg); err != nil {
		return fmt.Errorf("sending video to %d: %w", chatID, err)
	}
	return nil
}

func (t *Telegram) SendPhoto(ctx context.Context, chatID int64, photo File, caption string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ref, err := requestFile(photo)
	if err != nil {
		return err
	}
	cfg := tgbotapi.NewPhoto(chatID, ref)
	cfg.Caption = caption
	if _, err := t.api.Send(cfg); err != nil {
		return fmt.Errorf("sending photo to %d: %w", chatID, err)
	}
	return nil
}

func (t *Telegram) SendDocument(ctx context.Context, chatID int64, doc File, caption string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ref, err := requestFile(doc)
	if err != nil {
		return err
	}
	cfg := tgbotapi.NewDocument(chatID, ref)
	cfg.Caption = caption
	if _, err := t.api.Send(cfg); err != nil {
		return fmt.Errorf("sending document to %d: %w", chatID, err)
	}
	return nil
}

func (t *Telegram) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	// deleteMessage answers with a bool, so it goes through Request rather than Send.
	if _, err := t.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		return fmt.Errorf("deleting message %d in %d: %w", messageID, chatID, err)
	}
	return nil
}

// Updates long-polls getUpdates and forwards messages until ctx ends.
func (t *Telegram) Updates(ctx context.Context) <-chan Message {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = pollTimeout
	updates := t.api.GetUpdatesChan(cfg)

	out := make(chan Message)
	go func() {
		defer close(out)
		defer t.api.StopReceivingUpdates()

		for {
			select {
			case <-ctx.Done():
				return
			case u, ok := <-updates:
				if !ok {
					return
				}
				if u.Message == nil {
					continue
				}
				select {
				case out <- fromTelegram(u.Message):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

func requestFile(f File) (tgbotapi.RequestFileData, error) {
	switch {
	case f.ID != "":
		return tgbotapi.FileID(f.ID), nil
	case f.URL != "":
		return tgbotapi.FileURL(f.URL), nil
	case f.Data != nil:
		return tgbotapi.FileBytes{Name: f.Name, Bytes: f.Data}, nil
	default:
		return nil, errors.New("file has no id, url or data")
	}
}

// fromTelegram reduces a Bot API message to a gateway Message.
func fromTelegram(m *tgbotapi.Message) Message {
	msg := Message{
		ID:      m.MessageID,
		Text:    m.Text,
		Caption: m.Caption,
		Kind:    media.TextItem,
	}
	if m.Chat != nil {
		msg.ChatID = m.Chat.ID
	}
	if m.From != nil {
		msg.From = media.User{
			ID:           m.From.ID,
			Username:     m.From.UserName,
			FirstName:    m.From.FirstName,
			LastName:     m.From.LastName,
			LanguageCode: m.From.LanguageCode,
		}
	}
	if m.IsCommand() {
		msg.Command = strings.ToLower(m.Command())
	}

	switch {
	case len(m.Photo) > 0:
		msg.Kind = media.PhotoItem
		msg.FileID = m.Photo[len(m.Photo)-1].FileID
	case m.Video != nil:
		msg.Kind = media.VideoItem
		msg.FileID = m.Video.FileID
	case m.Document != nil:
		msg.Kind = media.DocumentItem
		msg.FileID = m.Document.FileID
	}

	return msg
}
