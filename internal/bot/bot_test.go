package bot

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ames0k0/issuetracker/internal/gateway"
	"github.com/ames0k0/issuetracker/internal/store"
)

// fakeTransport records replies and deletions.
type fakeTransport struct {
	mu      sync.Mutex
	nextID  int
	replies []sentReply
	deleted []deletedMsg
}

type sentReply struct {
	chatID  int64
	replyTo int
	id      int
	text    string
}

type deletedMsg struct {
	chatID    int64
	messageID int
}

func (f *fakeTransport) Reply(_ context.Context, ev *Event, text string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := 1000 + f.nextID
	f.replies = append(f.replies, sentReply{chatID: ev.ChatID, replyTo: ev.MessageID, id: id, text: text})
	return id, nil
}

func (f *fakeTransport) Delete(_ context.Context, chatID int64, messageID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, deletedMsg{chatID: chatID, messageID: messageID})
	return nil
}

func (f *fakeTransport) lastReply(t *testing.T) sentReply {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.replies, "expected at least one reply")
	return f.replies[len(f.replies)-1]
}

func (f *fakeTransport) replyCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.replies)
}

func (f *fakeTransport) deletedIDs() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]int, len(f.deleted))
	for i, d := range f.deleted {
		ids[i] = d.messageID
	}
	return ids
}

// fakeGateway resolves against a fixed set of repositories and counts how
// many remote issues it creates.
type fakeGateway struct {
	repos   map[string]*gateway.Repository
	created int
}

func (f *fakeGateway) Resolve(_ context.Context, locator string) (*gateway.Repository, error) {
	fullName, err := gateway.ParseLocator(locator, gateway.DefaultHost)
	if err != nil {
		return nil, err
	}
	repo, ok := f.repos[fullName]
	if !ok {
		return nil, fmt.Errorf("%s: %w", fullName, gateway.ErrRepoNotFound)
	}
	return repo, nil
}

func (f *fakeGateway) CreateIssue(_ context.Context, fullName, title, body string) (*gateway.Issue, error) {
	f.created++
	return &gateway.Issue{
		ID:        int64(9000 + f.created),
		Number:    f.created,
		HTMLURL:   fmt.Sprintf("https://github.com/%s/issues/%d", fullName, f.created),
		CreatedAt: time.Date(2024, 6, 2, 9, 30, 5, 0, time.UTC),
	}, nil
}

func newTestBot(t *testing.T, opts Options) (*Bot, *store.SQLiteStore, *fakeGateway, *fakeTransport) {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })

	gw := &fakeGateway{repos: map[string]*gateway.Repository{
		"acme/repo": {Owner: "acme", Name: "repo", FullName: "acme/repo", HTMLURL: "https://github.com/acme/repo"},
	}}
	tr := &fakeTransport{}

	if opts.CleanupDelay == 0 {
		opts.CleanupDelay = time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return New(s, gw, tr, opts), s, gw, tr
}

// registerEvent is a /start trigger from the relay account replying to a
// channel post.
func registerEvent() *Event {
	return &Event{
		Kind:      EventRegister,
		MessageID: 10,
		ChatID:    500,
		ChatTitle: "Acme Chat",
		Text:      "/start",
		Date:      time.Date(2024, 6, 1, 12, 0, 5, 0, time.UTC),
		From:      Sender{ID: 777, IsBot: true},
		ReplyTo: &ReplyTarget{
			MessageID:       100,
			Date:            time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
			ChannelID:       42,
			ChannelTitle:    "Acme",
			ChannelUsername: "acme",
		},
	}
}

func repoURLEvent(promptID int, text string) *Event {
	return &Event{
		Kind:      EventMessage,
		MessageID: 12,
		ChatID:    500,
		ChatTitle: "Acme Chat",
		Text:      text,
		From:      Sender{ID: 777, IsBot: true},
		ReplyTo:   &ReplyTarget{MessageID: promptID},
	}
}

func reportEvent(messageID int) *Event {
	return &Event{
		Kind:      EventReport,
		MessageID: messageID,
		ChatID:    500,
		ChatTitle: "Acme Chat",
		Text:      "/report",
		Date:      time.Date(2024, 6, 2, 9, 30, 0, 0, time.UTC),
		From:      Sender{ID: 888, IsBot: false},
		ReplyTo: &ReplyTarget{
			MessageID:       100,
			ChannelID:       42,
			ChannelTitle:    "Acme",
			ChannelUsername: "acme",
		},
	}
}

// --- Registration ---

func TestRegistration_FullFlow(t *testing.T) {
	b, s, _, tr := newTestBot(t, Options{})
	ctx := context.Background()

	b.HandleEvent(ctx, registerEvent())

	// Project created, prompt sent.
	p, err := s.GetProjectByChannel(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "Acme", p.ChannelTitle)
	assert.False(t, p.Bound())

	prompt := tr.lastReply(t)
	assert.Equal(t, promptText, prompt.text)

	// Repo URL reply targeting the prompt completes the binding.
	b.HandleEvent(ctx, repoURLEvent(prompt.id, "https://github.com/acme/repo"))

	p, err = s.GetProjectByChannel(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "acme/repo", p.RepoFullName)
	assert.Equal(t, "https://github.com/acme/repo", p.RepoURL)

	confirm := tr.lastReply(t)
	assert.Contains(t, confirm.text, fmt.Sprintf("Created a Project(id=%d)", p.ID))

	// Confirmation, user reply, prompt, and trigger are all cleaned up.
	b.Flush()
	assert.ElementsMatch(t, []int{confirm.id, 12, prompt.id, 10}, tr.deletedIDs())

	// Conversation state is gone: a stray reply does nothing.
	before := tr.replyCount()
	b.HandleEvent(ctx, repoURLEvent(prompt.id, "https://github.com/acme/other"))
	assert.Equal(t, before, tr.replyCount())
}

func TestRegistration_AlreadyRegistered(t *testing.T) {
	b, s, _, tr := newTestBot(t, Options{})
	ctx := context.Background()

	b.HandleEvent(ctx, registerEvent())
	p, err := s.GetProjectByChannel(ctx, 42)
	require.NoError(t, err)

	// A second trigger on the same channel never creates a second row.
	b.HandleEvent(ctx, registerEvent())

	projects, err := s.ListProjects(ctx)
	require.NoError(t, err)
	assert.Len(t, projects, 1)
	assert.Contains(t, tr.lastReply(t).text, fmt.Sprintf("Project(id=%d) is already registered", p.ID))
}

func TestRegistration_IgnoresNonRelaySender(t *testing.T) {
	b, s, _, tr := newTestBot(t, Options{})
	ctx := context.Background()

	ev := registerEvent()
	ev.From.IsBot = false
	b.HandleEvent(ctx, ev)

	_, err := s.GetProjectByChannel(ctx, 42)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Zero(t, tr.replyCount())
}

func TestRegistration_IgnoresNonChannelTrigger(t *testing.T) {
	b, s, _, tr := newTestBot(t, Options{})
	ctx := context.Background()

	ev := registerEvent()
	ev.ReplyTo = nil
	b.HandleEvent(ctx, ev)

	_, err := s.GetProjectByChannel(ctx, 42)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Zero(t, tr.replyCount())
}

func TestRegistration_CorrelationCheck(t *testing.T) {
	b, s, _, tr := newTestBot(t, Options{})
	ctx := context.Background()

	b.HandleEvent(ctx, registerEvent())
	prompt := tr.lastReply(t)

	// A reply that targets some other message must be ignored entirely.
	b.HandleEvent(ctx, repoURLEvent(prompt.id+1, "https://github.com/acme/repo"))

	p, err := s.GetProjectByChannel(ctx, 42)
	require.NoError(t, err)
	assert.False(t, p.Bound())
	assert.Equal(t, 1, tr.replyCount())

	// The conversation is still open: the correctly-targeted reply works.
	b.HandleEvent(ctx, repoURLEvent(prompt.id, "https://github.com/acme/repo"))
	p, err = s.GetProjectByChannel(ctx, 42)
	require.NoError(t, err)
	assert.True(t, p.Bound())
}

func TestRegistration_UnsupportedHost(t *testing.T) {
	b, s, _, tr := newTestBot(t, Options{})
	ctx := context.Background()

	b.HandleEvent(ctx, registerEvent())
	prompt := tr.lastReply(t)

	b.HandleEvent(ctx, repoURLEvent(prompt.id, "https://gitlab.com/acme/repo"))

	// Repository fields stay unset, the error reply and the user's message
	// are cleaned up, and the conversation remains open.
	p, err := s.GetProjectByChannel(ctx, 42)
	require.NoError(t, err)
	assert.False(t, p.Bound())

	fail := tr.lastReply(t)
	assert.Contains(t, fail.text, "Not supported")

	b.Flush()
	assert.ElementsMatch(t, []int{fail.id, 12}, tr.deletedIDs())

	b.HandleEvent(ctx, repoURLEvent(prompt.id, "https://github.com/acme/repo"))
	p, err = s.GetProjectByChannel(ctx, 42)
	require.NoError(t, err)
	assert.True(t, p.Bound())
}

func TestRegistration_RepoNotFound(t *testing.T) {
	b, s, _, tr := newTestBot(t, Options{})
	ctx := context.Background()

	b.HandleEvent(ctx, registerEvent())
	prompt := tr.lastReply(t)

	b.HandleEvent(ctx, repoURLEvent(prompt.id, "https://github.com/acme/missing"))

	p, err := s.GetProjectByChannel(ctx, 42)
	require.NoError(t, err)
	assert.False(t, p.Bound())
	assert.Contains(t, tr.lastReply(t).text, "not found")
}

func TestRegistration_SessionExpiry(t *testing.T) {
	b, _, _, tr := newTestBot(t, Options{SessionTTL: time.Millisecond})
	ctx := context.Background()

	b.HandleEvent(ctx, registerEvent())
	prompt := tr.lastReply(t)

	time.Sleep(5 * time.Millisecond)

	// The abandoned conversation has expired; the reply is ignored.
	before := tr.replyCount()
	b.HandleEvent(ctx, repoURLEvent(prompt.id, "https://github.com/acme/repo"))
	assert.Equal(t, before, tr.replyCount())
}

// --- Reporting ---

// bindProject runs a full registration so reporting tests start from a bound
// channel.
func bindProject(t *testing.T, b *Bot, tr *fakeTransport) {
	t.Helper()
	ctx := context.Background()
	b.HandleEvent(ctx, registerEvent())
	prompt := tr.lastReply(t)
	b.HandleEvent(ctx, repoURLEvent(prompt.id, "https://github.com/acme/repo"))
	b.Flush()
}

func TestReport_CreatesIssue(t *testing.T) {
	b, s, gw, tr := newTestBot(t, Options{})
	bindProject(t, b, tr)
	ctx := context.Background()

	b.HandleEvent(ctx, reportEvent(105))

	assert.Equal(t, 1, gw.created)
	reply := tr.lastReply(t)
	assert.Contains(t, reply.text, "Created an Issue at: https://github.com/acme/repo/issues/1")

	p, err := s.GetProjectByChannel(ctx, 42)
	require.NoError(t, err)
	link, err := s.GetIssueLink(ctx, p.ID, 100)
	require.NoError(t, err)
	assert.Equal(t, "https://github.com/acme/repo/issues/1", link.IssueURL)
	assert.Equal(t, "https://t.me/acme/100", link.PostURL)
	assert.Equal(t, "https://t.me/acme/100?comment=105", link.ReportMessageURL)
	assert.Equal(t, int64(888), link.ReporterID)
	assert.False(t, link.ReporterIsBot)
}

func TestReport_Deduplicates(t *testing.T) {
	b, s, gw, tr := newTestBot(t, Options{})
	bindProject(t, b, tr)
	ctx := context.Background()

	b.HandleEvent(ctx, reportEvent(105))
	first := tr.lastReply(t)

	// A second report on the same post makes no remote call and points at
	// the existing issue.
	b.HandleEvent(ctx, reportEvent(106))

	assert.Equal(t, 1, gw.created)
	second := tr.lastReply(t)
	assert.Contains(t, second.text, "already has been created at: https://github.com/acme/repo/issues/1")
	assert.Contains(t, first.text, "https://github.com/acme/repo/issues/1")

	p, err := s.GetProjectByChannel(ctx, 42)
	require.NoError(t, err)
	links, err := s.ListIssueLinks(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, links, 1)
}

func TestReport_UnregisteredChannel(t *testing.T) {
	b, s, gw, tr := newTestBot(t, Options{})
	ctx := context.Background()

	b.HandleEvent(ctx, reportEvent(105))

	assert.Zero(t, gw.created)
	assert.Contains(t, tr.lastReply(t).text, "Project is not registered for the chat: Acme")

	projects, err := s.ListProjects(ctx)
	require.NoError(t, err)
	assert.Empty(t, projects)
	links, err := s.ListIssueLinks(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, links)
}

func TestReport_NotAReplyToChannelPost(t *testing.T) {
	b, _, gw, tr := newTestBot(t, Options{})
	ctx := context.Background()

	ev := reportEvent(105)
	ev.ReplyTo = nil
	b.HandleEvent(ctx, ev)

	assert.Zero(t, gw.created)
	assert.Contains(t, tr.lastReply(t).text, "must be a reply to a channel post")
}

func TestReport_IssueTitleAndBody(t *testing.T) {
	b, _, gw, tr := newTestBot(t, Options{})
	bindProject(t, b, tr)

	titles := make([]string, 0, 1)
	bodies := make([]string, 0, 1)

	// Wrap CreateIssue by swapping the gateway for a recording one.
	rec := &recordingGateway{fakeGateway: gw, titles: &titles, bodies: &bodies}
	b.gateway = rec

	b.HandleEvent(context.Background(), reportEvent(105))

	require.Len(t, titles, 1)
	assert.Equal(t, "Acme Chat/105", titles[0])
	assert.Contains(t, bodies[0], "[2024-06-02 09:30:00] - [false] - [888]")
	assert.Contains(t, bodies[0], "[ChatPostURL](https://t.me/acme/100)")
	assert.Contains(t, bodies[0], "[ChatPostCommentURL](https://t.me/acme/100?comment=105)")
}

type recordingGateway struct {
	*fakeGateway
	titles *[]string
	bodies *[]string
}

func (r *recordingGateway) CreateIssue(ctx context.Context, fullName, title, body string) (*gateway.Issue, error) {
	*r.titles = append(*r.titles, title)
	*r.bodies = append(*r.bodies, body)
	return r.fakeGateway.CreateIssue(ctx, fullName, title, body)
}
