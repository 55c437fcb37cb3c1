package cmd

import (
	"github.com/spf13/cobra"

	"github.com/revuedev/revue/internal/mcp"
	"github.com/revuedev/revue/internal/provider"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server for agent integration",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets MCP clients request reviews, browse review history, and
generate reports natively. Configure in the client with:

  {
    "mcpServers": {
      "revue": { "command": "revue", "args": ["mcp"] }
    }
  }

Available tools: revue_review_file, revue_review_history,
revue_generate_report, revue_cleanup, revue_list_providers`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := getReviewer()
		if err != nil {
			return err
		}
		return mcp.NewServer(r, provider.Builtin()).ServeStdio(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
