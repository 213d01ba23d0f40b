package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ames0k0/issuetracker/internal/gateway"
	"github.com/ames0k0/issuetracker/internal/models"
	"github.com/ames0k0/issuetracker/internal/store"
)

const messageDateFormat = "2006-01-02 15:04:05"

// handleReport turns a /report reply into a GitHub issue, at most once per
// channel post: repeated reports on the same thread get the existing issue's
// URL back.
func (b *Bot) handleReport(ctx context.Context, log *slog.Logger, ev *Event) error {
	if !ev.ReplyTo.IsChannelPost() {
		_, _ = b.reply(ctx, log, ev, "[?] /report must be a reply to a channel post")
		return nil
	}

	p, err := b.store.GetProjectByChannel(ctx, ev.ReplyTo.ChannelID)
	if errors.Is(err, store.ErrNotFound) {
		_, _ = b.reply(ctx, log, ev, fmt.Sprintf(
			"[?] Project is not registered for the chat: %s\n[!] Bot/Admin only /start",
			ev.ReplyTo.ChannelTitle))
		return nil
	}
	if err != nil {
		return fmt.Errorf("look up project for channel %d: %w", ev.ReplyTo.ChannelID, err)
	}
	if !p.Bound() {
		_, _ = b.reply(ctx, log, ev, fmt.Sprintf(
			"[?] Project(id=%d) has no repository bound yet\n[!] Bot/Admin only /start", p.ID))
		return nil
	}

	postID := ev.ReplyTo.MessageID
	if link, err := b.store.GetIssueLink(ctx, p.ID, postID); err == nil {
		_, _ = b.reply(ctx, log, ev, fmt.Sprintf(
			"[!] An Issue already has been created at: %s", link.IssueURL))
		return nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("look up issue link: %w", err)
	}

	repo, err := b.gateway.Resolve(ctx, p.RepoFullName)
	if err != nil {
		if errors.Is(err, gateway.ErrRepoNotFound) || errors.Is(err, gateway.ErrUnsupportedHost) {
			_, _ = b.reply(ctx, log, ev, fmt.Sprintf(
				"[?] Repository not found or not accessible: %s", p.RepoFullName))
			return nil
		}
		return fmt.Errorf("resolve repository %s: %w", p.RepoFullName, err)
	}

	postURL := fmt.Sprintf("https://t.me/%s/%d", ev.ReplyTo.ChannelUsername, postID)
	commentURL := fmt.Sprintf("%s?comment=%d", postURL, ev.MessageID)

	title := fmt.Sprintf("%s/%d", ev.ChatTitle, ev.MessageID)
	body := fmt.Sprintf("[%s] - [%t] - [%d]\n//\n[ChatPostURL](%s) - [ChatPostCommentURL](%s)",
		ev.Date.Format(messageDateFormat), ev.From.IsBot, ev.From.ID, postURL, commentURL)

	issue, err := b.gateway.CreateIssue(ctx, repo.FullName, title, body)
	if err != nil {
		log.Warn("create remote issue", "repo", repo.FullName, "err", err)
		_, _ = b.reply(ctx, log, ev, "[?] Could not create an Issue! Try again later...")
		return nil
	}

	link := &models.IssueLink{
		ProjectID:        p.ID,
		PostMessageID:    postID,
		PostURL:          postURL,
		ReporterID:       ev.From.ID,
		ReporterIsBot:    ev.From.IsBot,
		ReportMessageID:  ev.MessageID,
		ReportMessageURL: commentURL,
		ReportDate:       ev.Date,
		IssueID:          issue.ID,
		IssueURL:         issue.HTMLURL,
		IssueCreatedAt:   issue.CreatedAt,
	}
	if err := b.store.CreateIssueLink(ctx, link); err != nil {
		// The remote issue exists but the local record does not: an accepted
		// gap. Log the orphan so it can be reconciled by hand.
		log.Error("record issue link (remote issue orphaned)",
			"issue_url", issue.HTMLURL, "project", p.ID, "post", postID, "err", err)
	}

	_, _ = b.reply(ctx, log, ev, fmt.Sprintf("[!] Created an Issue at: %s", issue.HTMLURL))
	log.Info("issue created", "project", p.ID, "post", postID, "issue", issue.ID)
	return nil
}
