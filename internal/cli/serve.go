package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/see-the-code/internal/codemap"
	"github.com/mvp-joe/see-the-code/internal/config"
	"github.com/mvp-joe/see-the-code/internal/generator"
	"github.com/mvp-joe/see-the-code/internal/server"
)

var (
	serveAddr  string
	serveWatch bool
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the code map over HTTP for the page overlay",
	Long: `Serve exposes the code map to a running page:

  GET  /code-map.json        the code map (CORS enabled)
  GET  /lookup?selector=KEY  one record
  POST /match                {"html": "<outer html>"} -> matched record and tier
  GET  /healthz              status and selector count

With --watch the code map is generated on start and regenerated whenever a
component file changes; the new map is served immediately.

Examples:
  see-the-code serve
  see-the-code serve --watch --addr 127.0.0.1:7331
`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default: server.addr from config)")
	serveCmd.Flags().BoolVarP(&serveWatch, "watch", "w", false, "Generate on start and regenerate on component changes")
}

func runServe(cmd *cobra.Command, args []string) error {
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
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	return executeServe(ctx, rootDir, cfg, serveWatch, slog.Default())
}

func executeServe(ctx context.Context, rootDir string, cfg *config.Config, watch bool, logger *slog.Logger) error {
	if !watch {
		cm, err := codemap.Load(resolvePath(rootDir, cfg.Output))
		if err != nil {
			return fmt.Errorf("failed to load code map (run 'see-the-code generate' first): %w", err)
		}
		srv := server.New(cm, cfg.MatchOptions(), logger)
		return srv.ListenAndServe(ctx, cfg.Server.Addr)
	}

	session, err := newGenerateSession(rootDir, cfg, &generator.NoOpProgressReporter{}, logger)
	if err != nil {
		return err
	}
	defer session.Close()

	result, err := session.run(ctx, false, nil)
	if err != nil {
		return err
	}
	srv := server.New(result.CodeMap, cfg.MatchOptions(), logger)

	watcher, err := generator.NewWatcher(session.gen, func(ctx context.Context, changed []string) {
		logger.Info("component files changed", "files", changed)
		result, err := session.run(ctx, false, nil)
		if err != nil {
			logger.Error("regeneration failed, serving previous code map", "error", err)
			return
		}
		srv.SetCodeMap(result.CodeMap)
	})
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	watcher.Start(ctx)
	defer watcher.Stop()

	return srv.ListenAndServe(ctx, cfg.Server.Addr)
}
