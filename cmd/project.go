package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hcl-hz/PMS-board/internal/output"
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "List projects and organizations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return projectListRun()
	},
}

var projectListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List all projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		return projectListRun()
	},
}

var projectOrgsCmd = &cobra.Command{
	Use:   "orgs",
	Short: "List organizations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return projectOrgsRun()
	},
}

func init() {
	projectCmd.AddCommand(projectListCmd)
	projectCmd.AddCommand(projectOrgsCmd)
	rootCmd.AddCommand(projectCmd)
}

func projectListRun() error {
	svc, err := getService()
	if err != nil {
		return err
	}
	ctx := context.Background()

	projects, err := svc.Projects(ctx)
	if err != nil {
		return err
	}
	orgs, err := svc.Organizations(ctx)
	if err != nil {
		return err
	}
	orgNames := make(map[string]string, len(orgs))
	for _, o := range orgs {
		orgNames[o.ID] = o.Name
	}

	if len(projects) == 0 {
		ui.Info("No projects.")
		return nil
	}

	table := ui.Table([]string{"ID", "Name", "Code", "Organization", "Description"})
	for _, p := range projects {
		org := orgNames[p.OrganizationID]
		if org == "" {
			org = p.OrganizationID
		}
		table.Append([]string{
			p.ID,
			output.Cyan(p.Name),
			p.Code,
			org,
			output.Truncate(p.Description, 40),
		})
	}
	table.Render()
	return nil
}

func projectOrgsRun() error {
	svc, err := getService()
	if err != nil {
		return err
	}

	orgs, err := svc.Organizations(context.Background())
	if err != nil {
		return err
	}

	for _, o := range orgs {
		fmt.Fprintf(ui.Out, "%s  %s  %s\n", o.ID, output.Cyan(o.Name), output.Faint(o.Code))
	}
	return nil
}
