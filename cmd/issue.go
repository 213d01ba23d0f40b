package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var issuesProject int64

var issuesCmd = &cobra.Command{
	Use:   "issues",
	Short: "List recorded issue links",
	Long:  "List the channel-post-to-GitHub-issue links recorded in the bookkeeping database.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return issuesListRun(cmd.Context())
	},
}

func init() {
	issuesCmd.Flags().Int64Var(&issuesProject, "project", 0, "Filter by project id")
	rootCmd.AddCommand(issuesCmd)
}

func issuesListRun(ctx context.Context) error {
	s, err := getStore()
	if err != nil {
		return err
	}

	links, err := s.ListIssueLinks(ctx, issuesProject)
	if err != nil {
		return err
	}

	if len(links) == 0 {
		ui.Info("No issue links recorded.")
		return nil
	}

	table := ui.Table([]string{"ID", "Project", "Post", "Reporter", "Issue URL", "Created"})
	for _, l := range links {
		reporter := fmt.Sprintf("%d", l.ReporterID)
		if l.ReporterIsBot {
			reporter += " (bot)"
		}
		_ = table.Append([]string{
			fmt.Sprintf("%d", l.ID),
			fmt.Sprintf("%d", l.ProjectID),
			fmt.Sprintf("%d", l.PostMessageID),
			reporter,
			l.IssueURL,
			formatDate(l.IssueCreatedAt),
		})
	}
	return table.Render()
}
