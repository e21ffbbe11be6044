package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/hcl-hz/PMS-board/internal/output"
)

var tagProject string

var tagCmd = &cobra.Command{
	Use:   "tag",
	Short: "List issue tags",
	Long:  "List the tags that can be applied to issues.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return tagListRun()
	},
}

var tagListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List all tags",
	RunE: func(cmd *cobra.Command, args []string) error {
		return tagListRun()
	},
}

func init() {
	tagListCmd.Flags().StringVar(&tagProject, "project", "", "Only tags suggested for this project id")
	tagCmd.AddCommand(tagListCmd)
	rootCmd.AddCommand(tagCmd)
}

func tagListRun() error {
	svc, err := getService()
	if err != nil {
		return err
	}

	tags, err := svc.Tags(context.Background())
	if err != nil {
		return err
	}

	table := ui.Table([]string{"ID", "Name", "Code", "Project"})
	shown := 0
	for _, t := range tags {
		if tagProject != "" && t.ProjectID != tagProject {
			continue
		}
		table.Append([]string{
			t.ID,
			output.Cyan(t.Name),
			t.Code,
			t.ProjectID,
		})
		shown++
	}

	if shown == 0 {
		ui.Info("No tags.")
		return nil
	}
	table.Render()
	return nil
}
