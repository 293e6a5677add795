package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/see-the-code/internal/validate"
)

// errValidationFailed makes the command exit non-zero when the code map has
// errors.
var errValidationFailed = errors.New("code map validation failed")

var validateWorkspace string

// validateCmd represents the validate command
var validateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Check a code map against the workspace it describes",
	Long: `Validate checks that the code map is well formed and that every record
points at an existing file and a line within it.

Errors (non-zero exit):
  - schema violations
  - records referencing missing files
  - line numbers below 1 or beyond the end of the file

Warnings:
  - empty code map
  - lines in the last 5% of a file
  - keys repeated literally or by canonical form (.saveButton / .save-button)

Examples:
  see-the-code validate
  see-the-code validate build/code-map.json --workspace ..
`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().StringVarP(&validateWorkspace, "workspace", "w", "", "Workspace root record paths resolve against (default: workspace_root from config)")
}

func runValidate(cmd *cobra.Command, args []string) error {
	rootDir, err := workingDir()
	if err != nil {
		return err
	}
	cfg, err := loadConfig(rootDir)
	if err != nil {
		return err
	}

	path := resolvePath(rootDir, cfg.Output)
	if len(args) == 1 {
		path = resolvePath(rootDir, args[0])
	}
	workspace := cfg.ResolveWorkspaceRoot(rootDir)
	if validateWorkspace != "" {
		workspace = resolvePath(rootDir, validateWorkspace)
	}

	return executeValidate(path, workspace, cmd.OutOrStdout())
}

func executeValidate(path, workspace string, out io.Writer) error {
	report, err := validate.File(path, workspace)
	if err != nil {
		return err
	}
	printReport(out, path, report)
	if !report.Valid() {
		return errValidationFailed
	}
	return nil
}

func printReport(w io.Writer, path string, report *validate.Report) {
	errs := report.Errors()
	warnings := report.Warnings()

	for _, issue := range errs {
		fmt.Fprintf(w, "✗ %s\n", issue)
	}
	for _, issue := range warnings {
		fmt.Fprintf(w, "! %s\n", issue)
	}
	if len(errs) > 0 || len(warnings) > 0 {
		fmt.Fprintln(w)
	}

	if len(errs) > 0 {
		fmt.Fprintf(w, "✗ %s: %s errors, %s warnings\n", path, formatNumber(len(errs)), formatNumber(len(warnings)))
		return
	}
	fmt.Fprintf(w, "✓ %s is valid: %s selectors across %s files",
		path, formatNumber(report.Selectors), formatNumber(report.Files))
	if len(warnings) > 0 {
		fmt.Fprintf(w, " (%s warnings)", formatNumber(len(warnings)))
	}
	fmt.Fprintln(w)
}
