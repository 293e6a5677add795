package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/see-the-code/internal/mcp"
)

var mcpCodeMap string

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server for code map lookups",
	Long: `Start the Model Context Protocol (MCP) server that lets coding assistants
resolve UI elements to their source.

The MCP server:
- Loads the code map and reloads it when the file changes
- Provides stc_lookup, stc_match and stc_search tools
- Communicates via stdio (standard MCP transport)

Example:
  see-the-code mcp`,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().StringVar(&mcpCodeMap, "code-map", "", "Code map path (default: output from config)")
}

func runMCP(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rootDir, err := workingDir()
	if err != nil {
		return err
	}
	cfg, err := loadConfig(rootDir)
	if err != nil {
		return err
	}

	path := resolvePath(rootDir, cfg.Output)
	if mcpCodeMap != "" {
		path = resolvePath(rootDir, mcpCodeMap)
	}

	// stdout carries the protocol; logs go to stderr
	logger := newLogger(os.Stderr, verbose)

	server, err := mcp.NewMCPServer(ctx, &mcp.MCPServerConfig{
		CodeMapPath: path,
		Version:     Version,
		Match:       cfg.MatchOptions(),
		Watch:       true,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	defer server.Close()

	if err := server.Serve(ctx); err != nil {
		return fmt.Errorf("MCP server error: %w", err)
	}
	return nil
}
