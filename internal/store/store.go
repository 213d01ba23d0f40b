package store

import (
	"context"
	"errors"

	"github.com/ames0k0/issuetracker/internal/models"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// ErrDuplicateChannel is returned by CreateProject when a project already
// exists for the channel. Callers should re-read the existing row.
var ErrDuplicateChannel = errors.New("project already exists for channel")

// Store defines the persistence interface for the bot's bookkeeping.
type Store interface {
	// Projects
	CreateProject(ctx context.Context, p *models.Project) error
	GetProject(ctx context.Context, id int64) (*models.Project, error)
	GetProjectByChannel(ctx context.Context, channelID int64) (*models.Project, error)
	SetProjectRepository(ctx context.Context, projectID int64, repoURL, fullName string) error
	ListProjects(ctx context.Context) ([]*models.Project, error)

	// Issue links
	CreateIssueLink(ctx context.Context, link *models.IssueLink) error
	GetIssueLink(ctx context.Context, projectID int64, postMessageID int) (*models.IssueLink, error)
	ListIssueLinks(ctx context.Context, projectID int64) ([]*models.IssueLink, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
