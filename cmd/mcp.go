package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/hcl-hz/PMS-board/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets an assistant browse and update the board natively. Configure
it in an MCP client with:

  {
    "mcpServers": {
      "board": { "command": "board", "args": ["mcp"] }
    }
  }

Available tools: board_list_issues, board_get_issue, board_create_issue,
board_update_status, board_add_comment, board_list_tags,
board_list_statuses`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// stdout carries the protocol; keep human output off it.
		ui.Out = os.Stderr

		svc, err := getService()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), shutdownSignals()...)
		defer stop()

		return mcp.NewServer(svc, buildVersion).ServeStdio(ctx)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
