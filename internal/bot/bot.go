package bot

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/ames0k0/issuetracker/internal/gateway"
	"github.com/ames0k0/issuetracker/internal/store"
)

const (
	// DefaultCleanupDelay is how long transient messages stay visible before
	// the bot deletes them.
	DefaultCleanupDelay = 2 * time.Second
	// DefaultSessionTTL is how long an unanswered registration prompt stays
	// open before the conversation state is discarded.
	DefaultSessionTTL = 15 * time.Minute
)

// Options configures a Bot.
type Options struct {
	CleanupDelay time.Duration
	SessionTTL   time.Duration
	Logger       *slog.Logger
}

// Bot routes inbound chat events to the registration and reporting workflows.
// Dependencies are injected; the Bot owns only the conversation state table.
type Bot struct {
	store     store.Store
	gateway   gateway.Gateway
	transport Transport
	sessions  *sessionTable
	log       *slog.Logger

	cleanupDelay time.Duration
	cleanups     sync.WaitGroup
}

// New creates a Bot with the given dependencies.
func New(s store.Store, gw gateway.Gateway, tr Transport, opts Options) *Bot {
	if opts.CleanupDelay == 0 {
		opts.CleanupDelay = DefaultCleanupDelay
	}
	if opts.SessionTTL == 0 {
		opts.SessionTTL = DefaultSessionTTL
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Bot{
		store:        s,
		gateway:      gw,
		transport:    tr,
		sessions:     newSessionTable(opts.SessionTTL),
		log:          opts.Logger,
		cleanupDelay: opts.CleanupDelay,
	}
}

// HandleEvent dispatches one inbound event to the matching workflow. Events
// are handled one at a time by the transport's polling loop; the only
// detached work is the delayed deletion of transient messages.
func (b *Bot) HandleEvent(ctx context.Context, ev *Event) {
	log := b.log.With("op", ulid.Make().String(), "chat", ev.ChatID, "message", ev.MessageID)

	var err error
	switch ev.Kind {
	case EventRegister:
		err = b.handleRegister(ctx, log, ev)
	case EventReport:
		err = b.handleReport(ctx, log, ev)
	default:
		if sess, ok := b.sessions.get(ev.ChatID); ok {
			err = b.handleRepoURL(ctx, log, ev, sess)
		}
	}
	if err != nil {
		// Store/transport failures: no safe continuation for this operation,
		// but the process keeps serving other events.
		log.Error("event handling failed", "err", err)
	}
}

// Flush waits for all scheduled message cleanups to finish. Called on
// shutdown and by tests.
func (b *Bot) Flush() {
	b.cleanups.Wait()
}

// scheduleCleanup deletes the given messages after the cleanup delay on a
// detached goroutine so the handler is not blocked.
func (b *Bot) scheduleCleanup(log *slog.Logger, chatID int64, messageIDs ...int) {
	b.cleanups.Add(1)
	go func() {
		defer b.cleanups.Done()
		time.Sleep(b.cleanupDelay)
		for _, id := range messageIDs {
			if err := b.transport.Delete(context.Background(), chatID, id); err != nil {
				log.Warn("delete transient message", "message", id, "err", err)
			}
		}
	}()
}

// reply sends a reply and logs delivery failures.
func (b *Bot) reply(ctx context.Context, log *slog.Logger, ev *Event, text string) (int, error) {
	id, err := b.transport.Reply(ctx, ev, text)
	if err != nil {
		log.Warn("send reply", "err", err)
	}
	return id, err
}
