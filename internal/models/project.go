package models

import "time"

// Project represents a binding between one Telegram channel and one GitHub repository.
type Project struct {
	ID            int64
	ChannelID     int64 // sender_chat id of the relayed channel post
	ChannelTitle  string
	PostMessageID int // channel post the registration trigger replied to
	PostDate      time.Time
	RepoURL       string // empty until registration completes
	RepoFullName  string // "owner/name", empty until registration completes
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Bound reports whether the registration workflow has completed for this project.
func (p *Project) Bound() bool {
	return p.RepoFullName != ""
}
