package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hcl-hz/PMS-board/internal/output"
)

var actorCmd = &cobra.Command{
	Use:   "actor",
	Short: "Choose who you act as",
	Long: `Show, select or clear the current actor.

The selected actor id is remembered in the state directory and used by
every command until cleared. Use --as <id> to override it for one command.
With no actor selected, commands run anonymously.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return actorShowRun()
	},
}

var actorShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current actor",
	RunE: func(cmd *cobra.Command, args []string) error {
		return actorShowRun()
	},
}

var actorUseCmd = &cobra.Command{
	Use:   "use <id>",
	Short: "Act as the given user from now on",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return actorUseRun(args[0])
	},
}

var actorClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget the current actor and act anonymously",
	RunE: func(cmd *cobra.Command, args []string) error {
		return actorClearRun()
	},
}

var actorListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List all users",
	RunE: func(cmd *cobra.Command, args []string) error {
		return actorListRun()
	},
}

func init() {
	actorCmd.AddCommand(actorShowCmd)
	actorCmd.AddCommand(actorUseCmd)
	actorCmd.AddCommand(actorClearCmd)
	actorCmd.AddCommand(actorListCmd)
	rootCmd.AddCommand(actorCmd)
}

func actorShowRun() error {
	svc, err := getService()
	if err != nil {
		return err
	}

	actor, err := currentActor(context.Background(), svc)
	if err != nil {
		return err
	}
	if actor == nil {
		ui.Info("No actor selected (anonymous). Use 'board actor use <id>' to pick one.")
		return nil
	}

	fmt.Fprintf(ui.Out, "%s (%s)\n", output.Cyan(actor.Name), actor.ID)
	fmt.Fprintf(ui.Out, "  Role:         %s\n", output.RoleColor(actor.Role))
	fmt.Fprintf(ui.Out, "  Organization: %s\n", actor.OrganizationID)
	if actor.Email != "" {
		fmt.Fprintf(ui.Out, "  Email:        %s\n", actor.Email)
	}
	if len(actor.AssignedProjectIDs) > 0 {
		fmt.Fprintf(ui.Out, "  Projects:     %s\n", strings.Join(actor.AssignedProjectIDs, ", "))
	}
	return nil
}

func actorUseRun(id string) error {
	svc, err := getService()
	if err != nil {
		return err
	}

	actor, err := svc.Actor(context.Background(), id)
	if err != nil {
		return fmt.Errorf("unknown actor %s: %w", id, err)
	}

	if dryRun {
		ui.DryRunMsg("Would act as %s (%s)", actor.Name, actor.ID)
		return nil
	}

	if err := sessionFile().SetCurrentActorID(actor.ID); err != nil {
		return err
	}
	ui.Success("Now acting as %s (%s, %s)", output.Cyan(actor.Name), actor.ID, output.RoleColor(actor.Role))
	return nil
}

func actorClearRun() error {
	if dryRun {
		ui.DryRunMsg("Would clear the current actor")
		return nil
	}

	if err := sessionFile().Clear(); err != nil {
		return err
	}
	ui.Success("Cleared current actor; now anonymous")
	return nil
}

func actorListRun() error {
	svc, err := getService()
	if err != nil {
		return err
	}

	actors, err := svc.Actors(context.Background())
	if err != nil {
		return err
	}

	table := ui.Table([]string{"ID", "Name", "Role", "Organization", "Email"})
	for _, a := range actors {
		table.Append([]string{
			a.ID,
			output.Cyan(a.Name),
			output.RoleColor(a.Role),
			a.OrganizationID,
			a.Email,
		})
	}
	table.Render()
	return nil
}
