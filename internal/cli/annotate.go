package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/see-the-code/internal/config"
	"github.com/mvp-joe/see-the-code/internal/overlay"
	"github.com/mvp-joe/see-the-code/internal/render"
)

// annotateOptions holds the annotate command flags.
type annotateOptions struct {
	output    string
	codeMap   string
	mode      string
	debug     bool
	keepSizes bool
	timeout   time.Duration
	settle    time.Duration
}

var annOpts annotateOptions

// annotateCmd represents the annotate command
var annotateCmd = &cobra.Command{
	Use:   "annotate <url|file>",
	Short: "Write a copy of a rendered page with source markers attached",
	Long: `Annotate loads a page, matches its elements against the code map and
writes the page back out with a source marker on every matched element.

URLs are rendered in headless Chrome first, so client-side React output and
element sizes are available. Local HTML files are read as is; without sizes
every element counts as visible.

Examples:
  see-the-code annotate http://localhost:3000 -o annotated.html
  see-the-code annotate dist/index.html --mode always --debug
`,
	Args: cobra.ExactArgs(1),
	RunE: runAnnotate,
}

func init() {
	rootCmd.AddCommand(annotateCmd)
	annotateCmd.Flags().StringVarP(&annOpts.output, "output", "o", "", "Write annotated HTML here (default: stdout)")
	annotateCmd.Flags().StringVar(&annOpts.codeMap, "code-map", "", "Code map location, path or URL (default: output from config)")
	annotateCmd.Flags().StringVar(&annOpts.mode, "mode", "", "Interaction mode: click, hover or always")
	annotateCmd.Flags().BoolVar(&annOpts.debug, "debug", false, "Highlight elements that could not be matched")
	annotateCmd.Flags().BoolVar(&annOpts.keepSizes, "keep-sizes", false, "Keep the element size attributes stamped by the browser")
	annotateCmd.Flags().DurationVar(&annOpts.timeout, "timeout", render.DefaultTimeout, "Browser rendering timeout")
	annotateCmd.Flags().DurationVar(&annOpts.settle, "settle", render.DefaultSettle, "Wait after page load for client-side rendering")
}

func runAnnotate(cmd *cobra.Command, args []string) error {
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

	out := cmd.OutOrStdout()
	if annOpts.output != "" {
		f, err := os.Create(resolvePath(rootDir, annOpts.output))
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	stats, err := executeAnnotate(ctx, rootDir, cfg, args[0], annOpts, out, slog.Default())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "✓ Annotated %s: %s matched, %s unmatched (%s selectors loaded)\n",
		args[0],
		formatNumber(stats.MatchedElements),
		formatNumber(stats.UnmatchedElements),
		formatNumber(stats.TotalSelectors))
	return nil
}

// annotateConfig builds the overlay configuration from config and flags.
func annotateConfig(rootDir string, cfg *config.Config, opts annotateOptions) overlay.Config {
	ocfg := cfg.OverlayConfig(rootDir)
	ocfg.CodeMapURL = resolvePath(rootDir, cfg.Output)
	if opts.codeMap != "" {
		ocfg.CodeMapURL = opts.codeMap
		if !render.IsURL(opts.codeMap) {
			ocfg.CodeMapURL = resolvePath(rootDir, opts.codeMap)
		}
	}
	if opts.mode != "" {
		ocfg.InteractionMode = overlay.Mode(opts.mode)
	}
	if opts.debug {
		ocfg.Debug = true
	}
	// Nothing to debounce in a one-shot pass
	ocfg.Debounce = 0
	return ocfg
}

func executeAnnotate(ctx context.Context, rootDir string, cfg *config.Config, source string, opts annotateOptions, out io.Writer, logger *slog.Logger) (overlay.Stats, error) {
	if opts.mode != "" {
		if _, err := overlay.ParseMode(opts.mode); err != nil {
			return overlay.Stats{}, err
		}
	}

	if !render.IsURL(source) {
		source = resolvePath(rootDir, source)
	}
	doc, err := render.Document(ctx, source, render.Options{
		Timeout: opts.timeout,
		Settle:  opts.settle,
		Logger:  logger,
	})
	if err != nil {
		return overlay.Stats{}, err
	}

	ctrl, err := overlay.New(doc, annotateConfig(rootDir, cfg, opts),
		overlay.WithLoader(overlay.DefaultLoader(rootDir)),
		overlay.WithLogger(logger),
	)
	if err != nil {
		return overlay.Stats{}, err
	}
	defer ctrl.Close()

	if err := ctrl.Init(ctx); err != nil {
		return overlay.Stats{}, err
	}

	if !opts.keepSizes {
		render.StripSizes(doc)
	}
	if err := ctrl.Render(out); err != nil {
		return overlay.Stats{}, fmt.Errorf("failed to write annotated HTML: %w", err)
	}
	return ctrl.Stats(), nil
}
