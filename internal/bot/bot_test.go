package bot

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"tokgrab/internal/broadcast"
	"tokgrab/internal/gateway"
	"tokgrab/internal/media"
	"tokgrab/internal/session"
	"tokgrab/internal/store"
)

const ownerID = 1000

// outbound is one call made on the fake gateway.
type outbound struct {
	method  string
	chatID  int64
	text    string
	file    gateway.File
	caption string
	rows    [][]string
}

type fakeGateway struct {
	mu        sync.Mutex
	sent      []outbound
	deleted   []int
	nextID    int
	failVideo bool
	updates   chan gateway.Message
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{nextID: 100, updates: make(chan gateway.Message)}
}

func (f *fakeGateway) add(o outbound) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, o)
}

func (f *fakeGateway) SendText(_ context.Context, chatID int64, text string) (int, error) {
	f.add(outbound{method: "text", chatID: chatID, text: text})
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	return f.nextID, nil
}

func (f *fakeGateway) SendMenu(_ context.Context, chatID int64, text string, rows [][]string) error {
	f.add(outbound{method: "menu", chatID: chatID, text: text, rows: rows})
	return nil
}

func (f *fakeGateway) RemoveMenu(_ context.Context, chatID int64, text string) error {
	f.add(outbound{method: "remove_menu", chatID: chatID, text: text})
	return nil
}

func (f *fakeGateway) SendVideo(_ context.Context, chatID int64, video gateway.File, caption string) error {
	f.add(outbound{method: "video", chatID: chatID, file: video, caption: caption})
	if f.failVideo {
		return errors.New("Bad Request: failed to get HTTP URL content")
	}
	return nil
}

func (f *fakeGateway) SendPhoto(_ context.Context, chatID int64, photo gateway.File, caption string) error {
	f.add(outbound{method: "photo", chatID: chatID, file: photo, caption: caption})
	return nil
}

func (f *fakeGateway) SendDocument(_ context.Context, chatID int64, doc gateway.File, caption string) error {
	f.add(outbound{method: "document", chatID: chatID, file: doc, caption: caption})
	return nil
}

func (f *fakeGateway) DeleteMessage(_ context.Context, _ int64, messageID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, messageID)
	return nil
}

func (f *fakeGateway) Updates(ctx context.Context) <-chan gateway.Message {
	return f.updates
}

func (f *fakeGateway) calls(method string) []outbound {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []outbound
	for _, o := range f.sent {
		if o.method == method {
			out = append(out, o)
		}
	}
	return out
}

func (f *fakeGateway) lastText(t *testing.T) string {
	t.Helper()
	texts := f.calls("text")
	if len(texts) == 0 {
		t.Fatal("no text replies sent")
	}
	return texts[len(texts)-1].text
}

// fakeResolver returns a fixed result and counts calls.
type fakeResolver struct {
	result media.Result
	calls  atomic.Int32
	links  []string
	mu     sync.Mutex
}

func (r *fakeResolver) Resolve(_ context.Context, link string) media.Result {
	r.calls.Add(1)
	r.mu.Lock()
	r.links = append(r.links, link)
	r.mu.Unlock()
	return r.result
}

type fixture struct {
	bot      *Bot
	gw       *fakeGateway
	resolver *fakeResolver
	store    *store.Store
	sessions *session.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	st, err := store.Open(ctx, filepath.Join(t.TempDir(), "users.db"), ownerID)
	if err != nil {
		t.Fatalf("store.Open() error: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	gw := newFakeGateway()
	res := &fakeResolver{result: media.Resolved("https://cdn.example/v.mp4", "tikwm", nil)}
	sessions := session.NewStore(5 * time.Minute)
	bc := broadcast.New(gw, broadcast.Options{Logger: zerolog.Nop()})

	b := New(gw, st, res, bc, sessions, Options{Caption: "coded by no9mm", Logger: zerolog.Nop()})
	return &fixture{bot: b, gw: gw, resolver: res, store: st, sessions: sessions}
}

func (f *fixture) register(t *testing.T, id int64, username string) {
	t.Helper()
	if err := f.store.UpsertUser(context.Background(), media.User{ID: id, Username: username}); err != nil {
		t.Fatalf("UpsertUser() error: %v", err)
	}
}

func text(from int64, body string) gateway.Message {
	return gateway.Message{ChatID: from, From: media.User{ID: from}, Text: body, Kind: media.TextItem}
}

func command(from int64, name string) gateway.Message {
	m := text(from, "/"+name)
	m.Command = name
	return m
}

func TestNonLinkTextIgnored(t *testing.T) {
	f := newFixture(t)
	for _, body := range []string{"hello", "https://youtube.com/watch?v=x", "TIKTOK.COM/x", ""} {
		f.bot.Handle(context.Background(), text(5, body))
	}
	if n := f.resolver.calls.Load(); n != 0 {
		t.Errorf("resolver called %d times for non-links", n)
	}
	if len(f.gw.sent) != 0 {
		t.Errorf("unexpected outbound messages: %+v", f.gw.sent)
	}
}

func TestLinkDelivered(t *testing.T) {
	f := newFixture(t)
	f.bot.Handle(context.Background(), text(5, "look at this https://vm.tiktok.com/ZMabc123/ lol"))

	if f.resolver.links[0] != "https://vm.tiktok.com/ZMabc123/" {
		t.Errorf("resolver got %q", f.resolver.links[0])
	}

	videos := f.gw.calls("video")
	if len(videos) != 1 {
		t.Fatalf("expected 1 video, got %d", len(videos))
	}
	if videos[0].file.URL != "https://cdn.example/v.mp4" || videos[0].caption != "coded by no9mm" {
		t.Errorf("video = %+v", videos[0])
	}
	if videos[0].chatID != 5 {
		t.Errorf("video sent to %d", videos[0].chatID)
	}

	// Placeholder is the only text and is deleted afterwards.
	texts := f.gw.calls("text")
	if len(texts) != 1 || texts[0].text != textProcessing {
		t.Errorf("texts = %+v", texts)
	}
	if len(f.gw.deleted) != 1 || f.gw.deleted[0] != 101 {
		t.Errorf("deleted = %v, want placeholder 101", f.gw.deleted)
	}
}

func TestLinkResolutionFailed(t *testing.T) {
	f := newFixture(t)
	f.resolver.result = media.Failed(media.AllProvidersExhausted, nil)

	f.bot.Handle(context.Background(), text(5, "https://vt.tiktok.com/x/"))

	if len(f.gw.calls("video")) != 0 {
		t.Error("no video should be sent on failure")
	}
	if got := f.gw.lastText(t); got != textFetchFail {
		t.Errorf("reply = %q, want %q", got, textFetchFail)
	}
	if len(f.gw.deleted) != 1 {
		t.Error("placeholder should be deleted on failure")
	}
}

func TestVideoSendFailed(t *testing.T) {
	f := newFixture(t)
	f.gw.failVideo = true

	f.bot.Handle(context.Background(), text(5, "https://vm.tiktok.com/x/"))

	if got := f.gw.lastText(t); got != textSendFail {
		t.Errorf("reply = %q, want %q", got, textSendFail)
	}
	if len(f.gw.deleted) != 1 {
		t.Error("placeholder should be deleted after a send failure")
	}
}

func TestStartRegisters(t *testing.T) {
	f := newFixture(t)
	msg := command(5, "start")
	msg.From.Username = "alice"

	f.bot.Handle(context.Background(), msg)
	f.bot.Handle(context.Background(), msg)

	n, err := f.store.CountUsers(context.Background())
	if err != nil || n != 1 {
		t.Errorf("CountUsers() = %d, %v; want 1", n, err)
	}
	if got := f.gw.lastText(t); got != textWelcome {
		t.Errorf("reply = %q", got)
	}
}

func TestAdminPanelAccess(t *testing.T) {
	f := newFixture(t)

	f.bot.Handle(context.Background(), command(5, "admin"))
	if got := f.gw.lastText(t); got != textNoAccess {
		t.Errorf("reply = %q, want access denied", got)
	}

	f.bot.Handle(context.Background(), command(ownerID, "admin"))
	menus := f.gw.calls("menu")
	if len(menus) != 1 || menus[0].rows[0][0] != ButtonBroadcast {
		t.Errorf("menus = %+v", menus)
	}
}

func TestMenuIgnoredForUsers(t *testing.T) {
	f := newFixture(t)
	for _, button := range []string{ButtonBroadcast, ButtonUserCount, ButtonExport, ButtonExit} {
		f.bot.Handle(context.Background(), text(5, button))
	}
	if len(f.gw.sent) != 0 {
		t.Errorf("unprivileged menu presses should be ignored, got %+v", f.gw.sent)
	}
}

func TestUserCount(t *testing.T) {
	f := newFixture(t)
	f.register(t, 1, "a")
	f.register(t, 2, "b")

	f.bot.Handle(context.Background(), text(ownerID, ButtonUserCount))
	if got := f.gw.lastText(t); got != fmt.Sprintf(textUserCount, 2) {
		t.Errorf("reply = %q", got)
	}
}

func TestExportUsers(t *testing.T) {
	f := newFixture(t)
	f.register(t, 1, "a")

	f.bot.Handle(context.Background(), text(ownerID, ButtonExport))

	docs := f.gw.calls("document")
	if len(docs) != 1 {
		t.Fatalf("expected 1 document, got %d", len(docs))
	}
	if docs[0].file.Name != "user_data.csv" {
		t.Errorf("filename = %q", docs[0].file.Name)
	}
	if !strings.HasPrefix(string(docs[0].file.Data), "id,username,first_name") {
		t.Errorf("data = %q", docs[0].file.Data)
	}
	if !strings.Contains(string(docs[0].file.Data), "\n1,a,") {
		t.Errorf("export missing user row: %q", docs[0].file.Data)
	}
}

func TestBroadcastFlow(t *testing.T) {
	f := newFixture(t)
	f.register(t, 1, "a")
	f.register(t, 2, "b")
	f.register(t, 3, "c")

	f.bot.Handle(context.Background(), text(ownerID, ButtonBroadcast))
	if got := f.gw.lastText(t); got != textAskBroadcast {
		t.Fatalf("reply = %q", got)
	}

	photo := gateway.Message{
		ChatID: ownerID, From: media.User{ID: ownerID},
		Kind: media.PhotoItem, FileID: "photo-1", Caption: "news",
	}
	f.bot.Handle(context.Background(), photo)

	photos := f.gw.calls("photo")
	if len(photos) != 3 {
		t.Fatalf("expected 3 photo dispatches, got %d", len(photos))
	}
	for _, p := range photos {
		if p.file.ID != "photo-1" || p.caption != "news" {
			t.Errorf("dispatch = %+v", p)
		}
	}
	if got := f.gw.lastText(t); got != fmt.Sprintf(textBroadcastEnd, 3, 0) {
		t.Errorf("summary = %q", got)
	}

	// The state is consumed; the next link is resolved normally.
	if f.sessions.Current(ownerID).Kind != session.Idle {
		t.Error("session should return to idle")
	}
}

func TestBroadcastCanceled(t *testing.T) {
	f := newFixture(t)
	f.register(t, 1, "a")

	f.bot.Handle(context.Background(), text(ownerID, ButtonBroadcast))
	f.bot.Handle(context.Background(), command(ownerID, "cancel"))
	if got := f.gw.lastText(t); got != textCanceled {
		t.Errorf("reply = %q", got)
	}

	f.bot.Handle(context.Background(), command(ownerID, "cancel"))
	if got := f.gw.lastText(t); got != textNothingCancel {
		t.Errorf("reply = %q", got)
	}

	f.bot.Handle(context.Background(), text(ownerID, "hello all"))
	if len(f.gw.calls("text")) != 3 {
		t.Error("no broadcast should run after cancel")
	}
}

func TestExitLeavesSession(t *testing.T) {
	f := newFixture(t)
	f.bot.Handle(context.Background(), text(ownerID, ButtonBroadcast))
	f.bot.Handle(context.Background(), text(ownerID, ButtonExit))

	if f.sessions.Current(ownerID).Kind != session.Idle {
		t.Error("Exit should reset the session")
	}
	removed := f.gw.calls("remove_menu")
	if len(removed) != 1 || removed[0].text != textLeftPanel {
		t.Errorf("remove_menu = %+v", removed)
	}
}

func TestAddRemoveAdmin(t *testing.T) {
	f := newFixture(t)
	f.register(t, 42, "bob")
	ctx := context.Background()

	f.bot.Handle(ctx, command(ownerID, "addadmin"))
	if got := f.gw.lastText(t); got != textAskAddUser {
		t.Fatalf("reply = %q", got)
	}

	f.bot.Handle(ctx, text(ownerID, "@bob"))
	if got := f.gw.lastText(t); got != fmt.Sprintf(textAdminAdded, "bob") {
		t.Errorf("reply = %q", got)
	}
	if ok, _ := f.store.IsAdmin(ctx, 42); !ok {
		t.Error("bob should be admin")
	}

	f.bot.Handle(ctx, command(ownerID, "addadmin"))
	f.bot.Handle(ctx, text(ownerID, "bob"))
	if got := f.gw.lastText(t); got != fmt.Sprintf(textAlreadyAdmin, "bob") {
		t.Errorf("reply = %q", got)
	}

	f.bot.Handle(ctx, command(ownerID, "removeadmin"))
	f.bot.Handle(ctx, text(ownerID, "bob"))
	if got := f.gw.lastText(t); got != fmt.Sprintf(textAdminRemoved, "bob") {
		t.Errorf("reply = %q", got)
	}

	f.bot.Handle(ctx, command(ownerID, "removeadmin"))
	f.bot.Handle(ctx, text(ownerID, "bob"))
	if got := f.gw.lastText(t); got != fmt.Sprintf(textNotAdmin, "bob") {
		t.Errorf("reply = %q", got)
	}

	f.bot.Handle(ctx, command(ownerID, "addadmin"))
	f.bot.Handle(ctx, text(ownerID, "nobody"))
	if got := f.gw.lastText(t); got != textUnknownUser {
		t.Errorf("reply = %q", got)
	}
}

func TestAdminCommandsOwnerOnly(t *testing.T) {
	f := newFixture(t)
	f.register(t, 42, "bob")
	ctx := context.Background()

	// Even a regular admin cannot manage admins.
	if err := f.store.AddAdmin(ctx, 42, "bob"); err != nil {
		t.Fatalf("AddAdmin() error: %v", err)
	}

	f.bot.Handle(ctx, command(42, "addadmin"))
	if got := f.gw.lastText(t); got != textOwnerOnlyAdd {
		t.Errorf("reply = %q", got)
	}
	f.bot.Handle(ctx, command(42, "removeadmin"))
	if got := f.gw.lastText(t); got != textOwnerOnlyRemove {
		t.Errorf("reply = %q", got)
	}
	if f.sessions.Current(42).Kind != session.Idle {
		t.Error("non-owner should not enter the username state")
	}
}

func TestRunWaitsForHandlers(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- f.bot.Run(ctx) }()

	for i := 0; i < 5; i++ {
		f.gw.updates <- text(int64(i+1), "https://vm.tiktok.com/x/")
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}

	if n := f.resolver.calls.Load(); n != 5 {
		t.Errorf("resolver called %d times, want 5", n)
	}
	if len(f.gw.calls("video")) != 5 {
		t.Errorf("expected 5 videos, got %d", len(f.gw.calls("video")))
	}
}

func TestHandlerPanicRecovered(t *testing.T) {
	f := newFixture(t)
	f.bot.resolver = panicResolver{}

	// Must not crash the test binary.
	f.bot.Handle(context.Background(), text(5, "https://vm.tiktok.com/x/"))
}

type panicResolver struct{}

func (panicResolver) Resolve(context.Context, string) media.Result {
	panic("boom")
}
