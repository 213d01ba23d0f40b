// Package gateway wraps the GitHub REST API behind the small surface the
// bot workflows need: resolving a user-supplied repository locator and
// creating issues.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"
)

// DefaultHost is the single supported code-hosting domain.
const DefaultHost = "github.com"

// ErrUnsupportedHost is returned when a locator's host is not the supported
// code-hosting domain.
var ErrUnsupportedHost = errors.New("unsupported code host")

// ErrRepoNotFound is returned when the remote reports the repository as
// missing or inaccessible (404/403). This is terminal, not transient; callers
// must not retry.
var ErrRepoNotFound = errors.New("repository not found or forbidden")

// Repository is a confirmed, accessible remote repository handle.
type Repository struct {
	Owner    string
	Name     string
	FullName string // "owner/name"
	HTMLURL  string
}

// Issue is the record of a created remote issue.
type Issue struct {
	ID        int64
	Number    int
	HTMLURL   string
	CreatedAt time.Time
}

// Gateway resolves repository locators and creates issues.
type Gateway interface {
	Resolve(ctx context.Context, locator string) (*Repository, error)
	CreateIssue(ctx context.Context, fullName, title, body string) (*Issue, error)
}

// ParseLocator extracts the "owner/name" identifier from a repository locator.
// Accepted forms are "https://<host>/<owner>/<name>[/...]" and a bare
// "owner/name" (as stored on a bound project). Any other host yields
// ErrUnsupportedHost.
func ParseLocator(locator, host string) (string, error) {
	locator = strings.TrimSpace(locator)

	if !strings.Contains(locator, "://") {
		// Bare "owner/name" full name.
		parts := splitPath(locator)
		if len(parts) == 2 {
			return parts[0] + "/" + parts[1], nil
		}
		return "", fmt.Errorf("%q: %w", locator, ErrUnsupportedHost)
	}

	u, err := url.Parse(locator)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("%q: %w", locator, ErrUnsupportedHost)
	}
	if !strings.EqualFold(u.Host, host) {
		return "", fmt.Errorf("%q: %w", u.Host, ErrUnsupportedHost)
	}

	parts := splitPath(u.Path)
	if len(parts) < 2 {
		return "", fmt.Errorf("%q: %w", locator, ErrUnsupportedHost)
	}
	return parts[0] + "/" + parts[1], nil
}

// splitPath returns the non-empty segments of a slash-separated path.
func splitPath(p string) []string {
	var parts []string
	for _, seg := range strings.Split(p, "/") {
		if seg != "" {
			parts = append(parts, seg)
		}
	}
	return parts
}

// GitHubGateway implements Gateway against the GitHub REST API.
type GitHubGateway struct {
	client *github.Client
	host   string
}

// NewGitHubGateway creates a gateway authenticated with the given token.
// An empty token yields an unauthenticated client (useful in tests).
func NewGitHubGateway(token string) *GitHubGateway {
	var tc *http.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		tc = oauth2.NewClient(context.Background(), ts)
	}
	return &GitHubGateway{client: github.NewClient(tc), host: DefaultHost}
}

func (g *GitHubGateway) Resolve(ctx context.Context, locator string) (*Repository, error) {
	fullName, err := ParseLocator(locator, g.host)
	if err != nil {
		return nil, err
	}
	owner, name, _ := strings.Cut(fullName, "/")

	repo, resp, err := g.client.Repositories.Get(ctx, owner, name)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusForbidden) {
			return nil, fmt.Errorf("%s: %w", fullName, ErrRepoNotFound)
		}
		return nil, fmt.Errorf("get repository %s: %w", fullName, err)
	}

	return &Repository{
		Owner:    repo.GetOwner().GetLogin(),
		Name:     repo.GetName(),
		FullName: repo.GetFullName(),
		HTMLURL:  repo.GetHTMLURL(),
	}, nil
}

func (g *GitHubGateway) CreateIssue(ctx context.Context, fullName, title, body string) (*Issue, error) {
	owner, name, ok := strings.Cut(fullName, "/")
	if !ok {
		return nil, fmt.Errorf("%q: %w", fullName, ErrUnsupportedHost)
	}

	issue, _, err := g.client.Issues.Create(ctx, owner, name, &github.IssueRequest{
		Title: github.String(title),
		Body:  github.String(body),
	})
	if err != nil {
		return nil, fmt.Errorf("create issue in %s: %w", fullName, err)
	}

	return &Issue{
		ID:        issue.GetID(),
		Number:    issue.GetNumber(),
		HTMLURL:   issue.GetHTMLURL(),
		CreatedAt: issue.GetCreatedAt().Time,
	}, nil
}
