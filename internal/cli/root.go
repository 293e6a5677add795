// Package cli implements the see-the-code command line.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/see-the-code/internal/config"
)

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "see-the-code",
	Short: "Map rendered UI elements back to the JSX/TSX source that produced them",
	Long: `see-the-code scans React component files, records where every class,
id, data attribute and element type is written, and uses that code map to
link elements on a rendered page back to their source location.

Typical workflow:
  see-the-code generate          # write code-map.json
  see-the-code validate          # check it against the workspace
  see-the-code serve --watch     # serve it to the page overlay
  see-the-code annotate <page>   # or annotate a page offline`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		slog.SetDefault(newLogger(cmd.ErrOrStderr(), verbose))
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./.see-the-code.{yml,yaml,json})")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// newLogger returns a text handler logger; verbose lowers the level to debug.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// loadConfig loads the project configuration for rootDir, honouring --config.
func loadConfig(rootDir string) (*config.Config, error) {
	loader := config.NewLoader(rootDir)
	if cfgFile != "" {
		loader = config.NewFileLoader(rootDir, cfgFile)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// workingDir returns the project root, the current working directory.
func workingDir() (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}
	return wd, nil
}
