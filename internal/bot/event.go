// Package bot implements the chat-side workflows: registering a channel as a
// project bound to a GitHub repository, and turning discussion replies into
// GitHub issues.
package bot

import (
	"context"
	"time"
)

// EventKind discriminates inbound chat events.
type EventKind int

const (
	// EventMessage is any plain message; only relevant while a registration
	// conversation is awaiting a repository URL.
	EventMessage EventKind = iota
	// EventRegister is a /start registration trigger.
	EventRegister
	// EventReport is a /report command.
	EventReport
)

// Sender identifies the account that produced an event.
type Sender struct {
	ID    int64
	IsBot bool
}

// ReplyTarget describes the message an event replies to. ChannelID is set
// when the target is a post relayed from a channel into the discussion group.
type ReplyTarget struct {
	MessageID       int
	Date            time.Time
	ChannelID       int64
	ChannelTitle    string
	ChannelUsername string
}

// IsChannelPost reports whether the reply target originated as a channel post.
func (r *ReplyTarget) IsChannelPost() bool {
	return r != nil && r.ChannelID != 0
}

// Event is an inbound chat event, normalized from the transport's update type.
type Event struct {
	Kind      EventKind
	MessageID int
	ChatID    int64
	ChatTitle string
	Text      string
	Date      time.Time
	From      Sender
	ReplyTo   *ReplyTarget
}

// Transport sends replies and deletes messages in the conversation an inbound
// event arrived on.
type Transport interface {
	// Reply sends text as a reply to the event's message and returns the id
	// of the sent message.
	Reply(ctx context.Context, ev *Event, text string) (int, error)
	Delete(ctx context.Context, chatID int64, messageID int) error
}
