package cli

import (
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/lazypower/pulse/internal/mcptools"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the engine as MCP tools over stdio",
	RunE:  runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	rt, err := openRuntime(cfg, logger, cfg.Engine.Persist)
	if err != nil {
		return err
	}
	defer rt.Close()
	rt.engine.StartSweepTimer(cfg.Engine.SweepInterval)

	logger.Info("mcp serving on stdio", "db", rt.dbPath)
	return server.ServeStdio(mcptools.NewServer(rt.engine, Version))
}
