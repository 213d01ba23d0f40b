package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var projectsCmd = &cobra.Command{
	Use:     "projects",
	Aliases: []string{"ls"},
	Short:   "List registered projects",
	Long:    "List channel-to-repository bindings recorded in the bookkeeping database.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return projectsListRun(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(projectsCmd)
}

func projectsListRun(ctx context.Context) error {
	s, err := getStore()
	if err != nil {
		return err
	}

	projects, err := s.ListProjects(ctx)
	if err != nil {
		return err
	}

	if len(projects) == 0 {
		ui.Info("No projects registered.")
		return nil
	}

	table := ui.Table([]string{"ID", "Channel", "Title", "Repository", "Registered"})
	for _, p := range projects {
		repo := p.RepoFullName
		if repo == "" {
			repo = "(awaiting repo URL)"
		}
		table.Append([]string{
			fmt.Sprintf("%d", p.ID),
			fmt.Sprintf("%d", p.ChannelID),
			p.ChannelTitle,
			repo,
			formatDate(p.CreatedAt),
		})
	}
	return table.Render()
}
