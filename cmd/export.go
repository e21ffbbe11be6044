package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hcl-hz/PMS-board/internal/store"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the loaded board to a SQLite snapshot",
	Long: `Write the current board contents to a SQLite snapshot file.

The snapshot can be loaded later with source: sqlite. By default it is
written to source_path; use --out to pick another file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return exportRun()
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Snapshot file (default: source_path)")
	rootCmd.AddCommand(exportCmd)
}

func exportRun() error {
	path := exportOut
	if path == "" {
		path = viper.GetString("source_path")
	}

	svc, err := getService()
	if err != nil {
		return err
	}
	ctx := context.Background()

	ds, err := svc.Store().Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("snapshot board: %w", err)
	}

	if dryRun {
		ui.DryRunMsg("Would write %d issues to %s", len(ds.Issues), path)
		return nil
	}

	dst, err := store.NewSQLiteSource(path)
	if err != nil {
		return err
	}
	defer func() { _ = dst.Close() }()

	if err := dst.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate snapshot: %w", err)
	}
	if err := dst.WriteDataset(ctx, ds); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}

	ui.Success("Exported %d issues to %s", len(ds.Issues), path)
	return nil
}
