package models

import "time"

// IssueLink records that a GitHub issue has been created for a specific channel post.
// At most one link exists per (project, channel post); rows are never mutated.
type IssueLink struct {
	ID               int64
	ProjectID        int64
	PostMessageID    int // channel post the report replied to; dedup key with ProjectID
	PostURL          string
	ReporterID       int64
	ReporterIsBot    bool
	ReportMessageID  int
	ReportMessageURL string
	ReportDate       time.Time
	IssueID          int64 // GitHub's numeric issue id
	IssueURL         string
	IssueCreatedAt   time.Time
	CreatedAt        time.Time
}
