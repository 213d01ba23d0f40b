package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ames0k0/issuetracker/internal/gateway"
	"github.com/ames0k0/issuetracker/internal/models"
	"github.com/ames0k0/issuetracker/internal/store"
)

const promptText = "Reply GitHub/Project URL"

// handleRegister is the entry of the registration workflow: a /start trigger
// replying to a relayed channel post.
//
// Channel posts reach the discussion group through Telegram's relay bot, so
// the trigger arrives from a bot account; registration is gated on that, not
// on chat-admin permissions. Deployment assumption, see DESIGN.md.
func (b *Bot) handleRegister(ctx context.Context, log *slog.Logger, ev *Event) error {
	if !ev.From.IsBot {
		log.Debug("register trigger from non-relay account, ignoring")
		return nil
	}
	if !ev.ReplyTo.IsChannelPost() {
		log.Debug("register trigger is not a reply to a channel post, ignoring")
		return nil
	}

	existing, err := b.store.GetProjectByChannel(ctx, ev.ReplyTo.ChannelID)
	if err == nil {
		_, _ = b.reply(ctx, log, ev, fmt.Sprintf(
			"[!] Project(id=%d) is already registered for: %s", existing.ID, existing.ChannelTitle))
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("look up project for channel %d: %w", ev.ReplyTo.ChannelID, err)
	}

	p := &models.Project{
		ChannelID:     ev.ReplyTo.ChannelID,
		ChannelTitle:  ev.ReplyTo.ChannelTitle,
		PostMessageID: ev.ReplyTo.MessageID,
		PostDate:      ev.ReplyTo.Date,
	}
	err = b.store.CreateProject(ctx, p)
	if errors.Is(err, store.ErrDuplicateChannel) {
		// Lost a race with a concurrent registration; treat as already bound.
		existing, err := b.store.GetProjectByChannel(ctx, ev.ReplyTo.ChannelID)
		if err != nil {
			return fmt.Errorf("re-read project after conflict: %w", err)
		}
		_, _ = b.reply(ctx, log, ev, fmt.Sprintf(
			"[!] Project(id=%d) is already registered for: %s", existing.ID, existing.ChannelTitle))
		return nil
	}
	if err != nil {
		return fmt.Errorf("create project: %w", err)
	}

	promptID, err := b.reply(ctx, log, ev, promptText)
	if err != nil {
		return fmt.Errorf("send repo url prompt: %w", err)
	}

	b.sessions.put(ev.ChatID, session{
		projectID:        p.ID,
		promptMessageID:  promptID,
		triggerMessageID: ev.MessageID,
	})
	log.Info("registration started", "project", p.ID, "channel", ev.ReplyTo.ChannelID)
	return nil
}

// handleRepoURL completes (or retries) a registration awaiting its repository
// locator. The reply must target the bot's own prompt; anything else in the
// chat is ignored without touching state.
func (b *Bot) handleRepoURL(ctx context.Context, log *slog.Logger, ev *Event, sess session) error {
	if !ev.From.IsBot {
		return nil
	}
	if ev.ReplyTo == nil || ev.ReplyTo.MessageID != sess.promptMessageID {
		return nil
	}
	locator := strings.TrimSpace(ev.Text)
	if locator == "" {
		return nil
	}

	repo, err := b.gateway.Resolve(ctx, locator)
	if err != nil {
		var text string
		switch {
		case errors.Is(err, gateway.ErrUnsupportedHost):
			text = fmt.Sprintf("[?] Not supported: %s! Try again...", locator)
		case errors.Is(err, gateway.ErrRepoNotFound):
			text = fmt.Sprintf("[?] Repository not found or not accessible: %s! Try again...", locator)
		default:
			log.Warn("resolve repository", "locator", locator, "err", err)
			text = "[?] Could not reach the code host! Try again..."
		}
		failID, replyErr := b.reply(ctx, log, ev, text)
		if replyErr == nil {
			b.scheduleCleanup(log, ev.ChatID, failID, ev.MessageID)
		}
		return nil // conversation stays open for another attempt
	}

	if err := b.store.SetProjectRepository(ctx, sess.projectID, repo.HTMLURL, repo.FullName); err != nil {
		return fmt.Errorf("set project repository: %w", err)
	}

	confirmID, err := b.reply(ctx, log, ev, fmt.Sprintf("[!] Created a Project(id=%d)", sess.projectID))
	if err == nil {
		b.scheduleCleanup(log, ev.ChatID,
			confirmID, ev.MessageID, sess.promptMessageID, sess.triggerMessageID)
	}
	b.sessions.delete(ev.ChatID)
	log.Info("registration completed", "project", sess.projectID, "repo", repo.FullName)
	return nil
}
