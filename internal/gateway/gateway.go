// Package gateway abstracts the messaging platform the bot talks through.
package gateway

import (
	"context"

	"tokgrab/internal/media"
)

// Gateway sends and receives chat messages.
type Gateway interface {
	// SendText sends a plain message and returns its message id.
	SendText(ctx context.Context, chatID int64, text string) (int, error)

	// SendMenu sends text with a reply keyboard, one button row per slice.
	SendMenu(ctx context.Context, chatID int64, text string, rows [][]string) error

	// RemoveMenu sends text and removes any reply keyboard.
	RemoveMenu(ctx context.Context, chatID int64, text string) error

	SendVideo(ctx context.Context, chatID int64, video File, caption string) error
	SendPhoto(ctx context.Context, chatID int64, photo File, caption string) error
	SendDocument(ctx context.Context, chatID int64, doc File, caption string) error

	DeleteMessage(ctx context.Context, chatID int64, messageID int) error

	// Updates delivers inbound messages until ctx ends, then closes the channel.
	Updates(ctx context.Context) <-chan Message
}

// File is a media reference: a remote URL, a platform file id, or raw bytes.
type File struct {
	URL  string
	ID   string
	Name string
	Data []byte
}

// FileURL references media by URL; the platform fetches it.
func FileURL(u string) File { return File{URL: u} }

// FileID references media already stored on the platform.
func FileID(id string) File { return File{ID: id} }

// FileBytes uploads data under name.
func FileBytes(name string, data []byte) File { return File{Name: name, Data: data} }

// Message is an inbound chat message reduced to what the bot uses.
type Message struct {
	ID      int
	ChatID  int64
	From    media.User
	Command string // without the leading slash; empty for non-commands
	Text    string
	Caption string
	Kind    media.ItemKind
	FileID  string // largest photo, video or document file id
}

// Content returns the message as a broadcast item.
func (m Message) Content() media.BroadcastItem {
	item := media.BroadcastItem{Kind: m.Kind, FileID: m.FileID}
	if m.Kind == media.TextItem {
		item.Text = m.Text
	} else {
		item.Caption = m.Caption
	}
	return item
}
