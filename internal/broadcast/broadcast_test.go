package broadcast

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"tokgrab/internal/gateway"
	"tokgrab/internal/media"
)

type sent struct {
	method  string
	chatID  int64
	payload string
	caption string
}

// fakeSender records dispatches and fails for chat ids in fail.
type fakeSender struct {
	mu     sync.Mutex
	fail   map[int64]bool
	calls  []sent
	onSend func(n int)
}

func (f *fakeSender) record(method string, chatID int64, payload, caption string) error {
	f.mu.Lock()
	f.calls = append(f.calls, sent{method, chatID, payload, caption})
	n := len(f.calls)
	f.mu.Unlock()
	if f.onSend != nil {
		f.onSend(n)
	}
	if f.fail[chatID] {
		return errors.New("bot was blocked by the user")
	}
	return nil
}

func (f *fakeSender) SendText(_ context.Context, chatID int64, text string) (int, error) {
	return 1, f.record("text", chatID, text, "")
}

func (f *fakeSender) SendPhoto(_ context.Context, chatID int64, photo gateway.File, caption string) error {
	return f.record("photo", chatID, photo.ID, caption)
}

func (f *fakeSender) SendVideo(_ context.Context, chatID int64, video gateway.File, caption string) error {
	return f.record("video", chatID, video.ID, caption)
}

func (f *fakeSender) SendDocument(_ context.Context, chatID int64, doc gateway.File, caption string) error {
	return f.record("document", chatID, doc.ID, caption)
}

type countingRecorder struct {
	ok, failed int
}

func (c *countingRecorder) ObserveDelivery(success bool) {
	if success {
		c.ok++
	} else {
		c.failed++
	}
}

func TestBroadcastTally(t *testing.T) {
	sender := &fakeSender{fail: map[int64]bool{2: true, 4: true}}
	rec := &countingRecorder{}
	b := New(sender, Options{Recorder: rec, Logger: zerolog.Nop()})

	report := b.Broadcast(context.Background(), media.BroadcastItem{Kind: media.TextItem, Text: "hello"}, []int64{1, 2, 3, 4, 5})

	if report.Success != 3 || report.Failed != 2 {
		t.Errorf("report = %+v, want 3 success / 2 failed", report)
	}
	if rec.ok != 3 || rec.failed != 2 {
		t.Errorf("recorder = %+v", rec)
	}

	// Every recipient gets exactly one dispatch, in order.
	if len(sender.calls) != 5 {
		t.Fatalf("expected 5 dispatches, got %d", len(sender.calls))
	}
	for i, c := range sender.calls {
		if c.chatID != int64(i+1) {
			t.Errorf("dispatch %d went to %d", i, c.chatID)
		}
	}
}

func TestBroadcastEmpty(t *testing.T) {
	b := New(&fakeSender{}, Options{Logger: zerolog.Nop()})
	report := b.Broadcast(context.Background(), media.BroadcastItem{Text: "x"}, nil)
	if report.Success != 0 || report.Failed != 0 {
		t.Errorf("report = %+v, want zero", report)
	}
}

func TestBroadcastKinds(t *testing.T) {
	tests := []struct {
		name        string
		item        media.BroadcastItem
		wantMethod  string
		wantPayload string
		wantCaption string
	}{
		{"text", media.BroadcastItem{Kind: media.TextItem, Text: "news"}, "text", "news", ""},
		{"empty text", media.BroadcastItem{Kind: media.TextItem}, "text", FallbackText, ""},
		{"photo", media.BroadcastItem{Kind: media.PhotoItem, FileID: "p1", Caption: "look"}, "photo", "p1", "look"},
		{"video", media.BroadcastItem{Kind: media.VideoItem, FileID: "v1"}, "video", "v1", ""},
		{"document", media.BroadcastItem{Kind: media.DocumentItem, FileID: "d1", Caption: "file"}, "document", "d1", "file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &fakeSender{}
			b := New(sender, Options{Logger: zerolog.Nop()})
			report := b.Broadcast(context.Background(), tt.item, []int64{9})

			if report.Success != 1 {
				t.Fatalf("report = %+v", report)
			}
			c := sender.calls[0]
			if c.method != tt.wantMethod || c.payload != tt.wantPayload || c.caption != tt.wantCaption {
				t.Errorf("dispatch = %+v", c)
			}
		})
	}
}

func TestBroadcastUnknownKind(t *testing.T) {
	sender := &fakeSender{}
	b := New(sender, Options{Logger: zerolog.Nop()})
	report := b.Broadcast(context.Background(), media.BroadcastItem{Kind: media.ItemKind(99)}, []int64{1, 2})
	if report.Failed != 2 || len(sender.calls) != 0 {
		t.Errorf("report = %+v, calls = %d", report, len(sender.calls))
	}
}

func TestBroadcastCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sender := &fakeSender{onSend: func(n int) {
		if n == 2 {
			cancel()
		}
	}}
	b := New(sender, Options{Logger: zerolog.Nop()})

	report := b.Broadcast(ctx, media.BroadcastItem{Text: "x"}, []int64{1, 2, 3, 4, 5})

	if len(sender.calls) != 2 {
		t.Errorf("expected 2 dispatches before cancel, got %d", len(sender.calls))
	}
	if report.Success != 2 || report.Failed != 3 {
		t.Errorf("report = %+v, want 2 success / 3 failed", report)
	}
}

func TestBroadcastPaced(t *testing.T) {
	sender := &fakeSender{}
	b := New(sender, Options{Rate: 20, Burst: 1, Logger: zerolog.Nop()})

	start := time.Now()
	report := b.Broadcast(context.Background(), media.BroadcastItem{Text: "x"}, []int64{1, 2, 3})
	elapsed := time.Since(start)

	if report.Success != 3 {
		t.Fatalf("report = %+v", report)
	}
	// Burst 1 at 20/s: the 2nd and 3rd sends wait ~50ms each.
	if elapsed < 90*time.Millisecond {
		t.Errorf("broadcast finished in %v, expected pacing", elapsed)
	}
}
