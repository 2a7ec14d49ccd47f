// Package broadcast fans one message out to every registered user.
package broadcast

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"tokgrab/internal/gateway"
	"tokgrab/internal/media"
)

// FallbackText is sent for a text item with an empty body.
const FallbackText = "Broadcast message"

// Default pacing stays below the Bot API's global limit of 30 messages/s.
const (
	DefaultRate  = 25
	DefaultBurst = 1
)

// Sender is the subset of the gateway a broadcast dispatches through.
type Sender interface {
	SendText(ctx context.Context, chatID int64, text string) (int, error)
	SendPhoto(ctx context.Context, chatID int64, photo gateway.File, caption string) error
	SendVideo(ctx context.Context, chatID int64, video gateway.File, caption string) error
	SendDocument(ctx context.Context, chatID int64, doc gateway.File, caption string) error
}

// Recorder observes per-recipient delivery results.
type Recorder interface {
	ObserveDelivery(success bool)
}

// Options configures a Broadcaster.
type Options struct {
	Rate     float64 // messages per second; <= 0 disables pacing
	Burst    int
	Recorder Recorder
	Logger   zerolog.Logger
}

// Broadcaster delivers items to recipients one at a time.
type Broadcaster struct {
	sender   Sender
	limiter  *rate.Limiter
	recorder Recorder
	logger   zerolog.Logger
}

// New creates a Broadcaster.
func New(sender Sender, opts Options) *Broadcaster {
	limit := rate.Inf
	if opts.Rate > 0 {
		limit = rate.Limit(opts.Rate)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = DefaultBurst
	}
	return &Broadcaster{
		sender:   sender,
		limiter:  rate.NewLimiter(limit, burst),
		recorder: opts.Recorder,
		logger:   opts.Logger.With().Str("component", "broadcast").Logger(),
	}
}

// Broadcast sends item to each recipient in order. A failed delivery is
// counted and the batch continues. When ctx ends, every recipient not yet
// attempted is counted as failed.
func (b *Broadcaster) Broadcast(ctx context.Context, item media.BroadcastItem, recipients []int64) media.DeliveryReport {
	batch := uuid.NewString()
	logger := b.logger.With().Str("batch", batch).Stringer("kind", item.Kind).Logger()
	logger.Info().Int("recipients", len(recipients)).Msg("broadcast started")

	start := time.Now()
	var report media.DeliveryReport

	for i, chatID := range recipients {
		if err := b.limiter.Wait(ctx); err != nil {
			remaining := len(recipients) - i
			report.Failed += remaining
			for j := 0; j < remaining; j++ {
				b.record(false)
			}
			logger.Warn().Err(err).Int("skipped", remaining).Msg("broadcast interrupted")
			break
		}

		if err := b.dispatch(ctx, chatID, item); err != nil {
			report.Failed++
			b.record(false)
			logger.Warn().Err(err).Int64("chat_id", chatID).Msg("delivery failed")
			continue
		}
		report.Success++
		b.record(true)
	}

	logger.Info().
		Int("success", report.Success).
		Int("failed", report.Failed).
		Dur("elapsed", time.Since(start)).
		Msg("broadcast finished")

	return report
}

func (b *Broadcaster) dispatch(ctx context.Context, chatID int64, item media.BroadcastItem) error {
	switch item.Kind {
	case media.TextItem:
		text := item.Text
		if text == "" {
			text = FallbackText
		}
		_, err := b.sender.SendText(ctx, chatID, text)
		return err
	case media.PhotoItem:
		return b.sender.SendPhoto(ctx, chatID, gateway.FileID(item.FileID), item.Caption)
	case media.VideoItem:
		return b.sender.SendVideo(ctx, chatID, gateway.FileID(item.FileID), item.Caption)
	case media.DocumentItem:
		return b.sender.SendDocument(ctx, chatID, gateway.FileID(item.FileID), item.Caption)
	default:
		return fmt.Errorf("unsupported item kind %v", item.Kind)
	}
}

func (b *Broadcaster) record(success bool) {
	if b.recorder != nil {
		b.recorder.ObserveDelivery(success)
	}
}
