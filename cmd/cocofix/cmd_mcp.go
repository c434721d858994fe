package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nvandessel/cocofix/internal/mcp"
)

func newMCPServerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp-server <config.yaml>",
		Short: "Run cocofix as an MCP (Model Context Protocol) server",
		Long: `Start an MCP server that exposes cocofix over stdio.

AI tools can invoke these tools directly:

  • cocofix_resolve   - Resolve a model_name into its endpoint
  • cocofix_classify  - Classify one image region
  • cocofix_run       - Run the full correction workflow

The server communicates via JSON-RPC 2.0 over stdin/stdout, following
the Model Context Protocol specification. The classify and run tools use
the allowed classes and endpoint from the given config file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			server, err := mcp.NewServer(&mcp.Config{
				Name:       "cocofix",
				Version:    version,
				ConfigPath: args[0],
			})
			if err != nil {
				return fmt.Errorf("failed to create MCP server: %w", err)
			}

			if err := server.Run(cmd.Context()); err != nil {
				return fmt.Errorf("MCP server error: %w", err)
			}
			return nil
		},
	}
}
