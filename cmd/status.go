package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/hcl-hz/PMS-board/internal/output"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "List the issue status registry",
	Long:  "List every issue status in display order, with the code accepted by --status filters.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return statusListRun()
	},
}

var statusListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List all statuses",
	RunE: func(cmd *cobra.Command, args []string) error {
		return statusListRun()
	},
}

func init() {
	statusCmd.AddCommand(statusListCmd)
	rootCmd.AddCommand(statusCmd)
}

func statusListRun() error {
	svc, err := getService()
	if err != nil {
		return err
	}

	statuses, err := svc.Statuses(context.Background())
	if err != nil {
		return err
	}

	table := ui.Table([]string{"ID", "Code", "Label", "Color"})
	for _, s := range statuses {
		table.Append([]string{
			s.ID,
			string(s.Code),
			output.StatusColor(s.Code, s.Label),
			s.Color,
		})
	}
	table.Render()
	return nil
}
