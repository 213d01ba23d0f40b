package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ames0k0/issuetracker/internal/models"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, no CGO).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite only supports one concurrent writer. A single connection
	// serializes all access through Go's connection pool.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	// Set busy timeout so concurrent writes wait instead of failing immediately
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// boolToInt converts a bool to 0 or 1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isUniqueViolation reports whether err is a SQLite unique-constraint failure.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Migrate runs all embedded SQL migration files in order.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	// Create migrations tracking table
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	// Sort by filename
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()

		// Check if already applied
		var count int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Projects ---

func (s *SQLiteStore) CreateProject(ctx context.Context, p *models.Project) error {
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (channel_id, channel_title, post_message_id, post_date, repo_url, repo_full_name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ChannelID, p.ChannelTitle, p.PostMessageID, p.PostDate,
		p.RepoURL, p.RepoFullName, p.CreatedAt, p.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("channel %d: %w", p.ChannelID, ErrDuplicateChannel)
	}
	if err != nil {
		return fmt.Errorf("create project: %w", err)
	}
	p.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("create project id: %w", err)
	}
	return nil
}

const projectColumns = `id, channel_id, channel_title, post_message_id, post_date, repo_url, repo_full_name, created_at, updated_at`

func scanProject(row interface{ Scan(...any) error }) (*models.Project, error) {
	p := &models.Project{}
	var postDate sql.NullTime
	err := row.Scan(&p.ID, &p.ChannelID, &p.ChannelTitle, &p.PostMessageID, &postDate,
		&p.RepoURL, &p.RepoFullName, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if postDate.Valid {
		p.PostDate = postDate.Time
	}
	return p, nil
}

func (s *SQLiteStore) GetProject(ctx context.Context, id int64) (*models.Project, error) {
	p, err := scanProject(s.db.QueryRowContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("project %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

func (s *SQLiteStore) GetProjectByChannel(ctx context.Context, channelID int64) (*models.Project, error) {
	p, err := scanProject(s.db.QueryRowContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE channel_id = ?`, channelID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("channel %d: %w", channelID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get project by channel: %w", err)
	}
	return p, nil
}

func (s *SQLiteStore) SetProjectRepository(ctx context.Context, projectID int64, repoURL, fullName string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE projects SET repo_url=?, repo_full_name=?, updated_at=? WHERE id=?`,
		repoURL, fullName, time.Now().UTC(), projectID,
	)
	if err != nil {
		return fmt.Errorf("set project repository: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("project %d: %w", projectID, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) ListProjects(ctx context.Context) ([]*models.Project, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+projectColumns+` FROM projects ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var projects []*models.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// --- Issue links ---

const issueLinkColumns = `id, project_id, post_message_id, post_url, reporter_id, reporter_is_bot, report_message_id, report_message_url, report_date, issue_id, issue_url, issue_created_at, created_at`

func scanIssueLink(row interface{ Scan(...any) error }) (*models.IssueLink, error) {
	link := &models.IssueLink{}
	var isBot int
	var reportDate, issueCreatedAt sql.NullTime
	err := row.Scan(&link.ID, &link.ProjectID, &link.PostMessageID, &link.PostURL,
		&link.ReporterID, &isBot, &link.ReportMessageID, &link.ReportMessageURL,
		&reportDate, &link.IssueID, &link.IssueURL, &issueCreatedAt, &link.CreatedAt)
	if err != nil {
		return nil, err
	}
	link.ReporterIsBot = isBot != 0
	if reportDate.Valid {
		link.ReportDate = reportDate.Time
	}
	if issueCreatedAt.Valid {
		link.IssueCreatedAt = issueCreatedAt.Time
	}
	return link, nil
}

func (s *SQLiteStore) CreateIssueLink(ctx context.Context, link *models.IssueLink) error {
	link.CreatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO issue_links (project_id, post_message_id, post_url, reporter_id, reporter_is_bot, report_message_id, report_message_url, report_date, issue_id, issue_url, issue_created_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		link.ProjectID, link.PostMessageID, link.PostURL,
		link.ReporterID, boolToInt(link.ReporterIsBot),
		link.ReportMessageID, link.ReportMessageURL, link.ReportDate,
		link.IssueID, link.IssueURL, link.IssueCreatedAt, link.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create issue link: %w", err)
	}
	link.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("create issue link id: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetIssueLink(ctx context.Context, projectID int64, postMessageID int) (*models.IssueLink, error) {
	link, err := scanIssueLink(s.db.QueryRowContext(ctx,
		`SELECT `+issueLinkColumns+` FROM issue_links WHERE project_id = ? AND post_message_id = ?`,
		projectID, postMessageID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("issue link for post %d: %w", postMessageID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get issue link: %w", err)
	}
	return link, nil
}

func (s *SQLiteStore) ListIssueLinks(ctx context.Context, projectID int64) ([]*models.IssueLink, error) {
	query := `SELECT ` + issueLinkColumns + ` FROM issue_links`
	var args []any
	if projectID != 0 {
		query += " WHERE project_id = ?"
		args = append(args, projectID)
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list issue links: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var links []*models.IssueLink
	for rows.Next() {
		link, err := scanIssueLink(rows)
		if err != nil {
			return nil, fmt.Errorf("scan issue link: %w", err)
		}
		links = append(links, link)
	}
	return links, rows.Err()
}
