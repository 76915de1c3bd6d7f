package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"diagaudit/internal/auditindex"
	"diagaudit/internal/retention"
	"diagaudit/internal/trace"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build, prune and verify the audit log index",
}

var indexCreateCmd = &cobra.Command{
	Use:   "create --output <index.json> --audit <spec>...",
	Short: "Create an index from audit logs",
	Long: `Create writes an index entry for every --audit spec of the form
profile:target:path[:status[:audit_level[:pass_rate]]].`,
	Args: cobra.NoArgs,
	RunE: runIndexCreate,
}

var indexPruneCmd = &cobra.Command{
	Use:   "prune --index <index.json>",
	Short: "Drop the oldest entries beyond the retention policy",
	Args:  cobra.NoArgs,
	RunE:  runIndexPrune,
}

var indexVerifyCmd = &cobra.Command{
	Use:   "verify --index <index.json>",
	Short: "Check indexed audit files and their metadata",
	Args:  cobra.NoArgs,
	RunE:  runIndexVerify,
}

var indexSummaryCmd = &cobra.Command{
	Use:   "summary --index <index.json>",
	Short: "Render a Markdown summary of the index",
	Args:  cobra.NoArgs,
	RunE:  runIndexSummary,
}

func init() {
	indexCreateCmd.Flags().StringP("output", "o", "", "index file to write")
	indexCreateCmd.Flags().StringArray("audit", nil, "audit spec profile:target:path[:status[:level[:pass_rate]]] (repeatable)")
	indexCreateCmd.Flags().Bool("skip-missing", false, "warn about missing audit files instead of failing")
	indexCreateCmd.Flags().String("build-id", envOr("GITHUB_RUN_ID", "local"), "build id recorded on every entry")
	indexCreateCmd.Flags().String("commit", os.Getenv("GITHUB_SHA"), "commit hash recorded on every entry")
	indexCreateCmd.Flags().String("timestamp", "", "ISO 8601 timestamp (default: now)")
	indexCreateCmd.Flags().StringArray("pruned", nil, "build id to record as already pruned (repeatable)")

	indexPruneCmd.Flags().String("index", "", "index file to prune")
	indexPruneCmd.Flags().String("retention-config", "tooling/ci/audit-retention.toml", "retention policy TOML")
	indexPruneCmd.Flags().Bool("dry-run", false, "report what would be pruned without writing")
	indexPruneCmd.Flags().String("summary", "", "also write the Markdown summary to this file")

	indexVerifyCmd.Flags().String("index", "", "index file to verify")
	indexVerifyCmd.Flags().String("root", ".", "base directory for relative audit paths")
	indexVerifyCmd.Flags().String("history-dir", "reports/audit/history", "archived *.jsonl.gz logs, relative to --root")
	indexVerifyCmd.Flags().Int("max-events", 1000, "events inspected per audit file (0 = all)")
	indexVerifyCmd.Flags().Bool("strict", false, "treat missing recommended keys as errors")

	indexSummaryCmd.Flags().String("index", "", "index file to summarize")
	indexSummaryCmd.Flags().StringP("output", "o", "", "write the summary to a file instead of stdout")

	indexCmd.AddCommand(indexCreateCmd, indexPruneCmd, indexVerifyCmd, indexSummaryCmd)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

type createOptions struct {
	audits      []string
	skipMissing bool
	buildID     string
	commit      string
	timestamp   string
	pruned      []string
}

// buildIndex turns audit specs into an index. Missing files are returned as
// warnings when skipMissing is set.
func buildIndex(opts createOptions) (*auditindex.Index, []string, error) {
	specs := make([]auditindex.Spec, 0, len(opts.audits))
	for _, text := range opts.audits {
		spec, err := auditindex.ParseSpec(text)
		if err != nil {
			return nil, nil, err
		}
		specs = append(specs, spec)
	}
	timestamp := opts.timestamp
	if timestamp == "" {
		timestamp = auditindex.Timestamp(time.Now())
	}
	var (
		entries  []auditindex.Entry
		warnings []string
	)
	for _, spec := range specs {
		entry, err := auditindex.BuildEntry(spec, opts.buildID, timestamp, opts.commit)
		if err != nil {
			if opts.skipMissing && errors.Is(err, os.ErrNotExist) {
				warnings = append(warnings, fmt.Sprintf("audit log not found: %s", spec.Path))
				continue
			}
			return nil, warnings, err
		}
		entries = append(entries, entry)
	}
	return auditindex.New(entries, opts.pruned), warnings, nil
}

func runIndexCreate(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	output, err := flags.GetString("output")
	if err != nil {
		return fmt.Errorf("failed to get output flag: %w", err)
	}
	if output == "" {
		return errors.New("--output is required")
	}
	var opts createOptions
	if opts.audits, err = flags.GetStringArray("audit"); err != nil {
		return fmt.Errorf("failed to get audit flag: %w", err)
	}
	if opts.skipMissing, err = flags.GetBool("skip-missing"); err != nil {
		return fmt.Errorf("failed to get skip-missing flag: %w", err)
	}
	if opts.buildID, err = flags.GetString("build-id"); err != nil {
		return fmt.Errorf("failed to get build-id flag: %w", err)
	}
	if opts.commit, err = flags.GetString("commit"); err != nil {
		return fmt.Errorf("failed to get commit flag: %w", err)
	}
	if opts.timestamp, err = flags.GetString("timestamp"); err != nil {
		return fmt.Errorf("failed to get timestamp flag: %w", err)
	}
	if opts.pruned, err = flags.GetStringArray("pruned"); err != nil {
		return fmt.Errorf("failed to get pruned flag: %w", err)
	}

	_, span := trace.Within(cmd.Context(), trace.ScopeCommand, "index.create")
	defer span.End("")

	index, warnings, err := buildIndex(opts)
	for _, w := range warnings {
		printIssue(cmd.ErrOrStderr(), auditindex.Issue{Severity: auditindex.SeverityWarning, Message: w})
	}
	if err != nil {
		return err
	}
	if err := auditindex.Write(output, index); err != nil {
		return err
	}
	if !quiet(cmd) {
		fmt.Fprintf(cmd.ErrOrStderr(), "wrote audit index %s (entries=%d)\n", output, len(index.Entries))
	}
	return nil
}

func runIndexPrune(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	indexPath, err := flags.GetString("index")
	if err != nil {
		return fmt.Errorf("failed to get index flag: %w", err)
	}
	if indexPath == "" {
		return errors.New("--index is required")
	}
	configPath, err := flags.GetString("retention-config")
	if err != nil {
		return fmt.Errorf("failed to get retention-config flag: %w", err)
	}
	dryRun, err := flags.GetBool("dry-run")
	if err != nil {
		return fmt.Errorf("failed to get dry-run flag: %w", err)
	}
	summaryPath, err := flags.GetString("summary")
	if err != nil {
		return fmt.Errorf("failed to get summary flag: %w", err)
	}

	_, span := trace.Within(cmd.Context(), trace.ScopeCommand, "index.prune")
	defer span.End("")

	index, err := auditindex.Load(indexPath)
	if err != nil {
		return err
	}
	policy, err := retention.LoadPolicy(configPath)
	if err != nil {
		return err
	}
	res := retention.Apply(index, policy)
	errOut := cmd.ErrOrStderr()
	switch {
	case res.Pruned == 0:
		fmt.Fprintf(errOut, "no entries pruned for %s\n", indexPath)
	case dryRun:
		fmt.Fprintf(errOut, "[dry-run] would prune %d entries from %s\n", res.Pruned, indexPath)
	default:
		entries, _ := auditindex.Entries(index)
		index["retained_entries"] = auditindex.Summarize(entries)
		if err := auditindex.Write(indexPath, index); err != nil {
			return err
		}
		fmt.Fprintf(errOut, "pruned %d entries from %s\n", res.Pruned, indexPath)
	}

	if summaryPath != "" {
		if err := writeOutput(cmd, summaryPath, []byte(auditindex.SummaryMarkdown(index))); err != nil {
			return err
		}
	}
	return nil
}

func runIndexVerify(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	indexPath, err := flags.GetString("index")
	if err != nil {
		return fmt.Errorf("failed to get index flag: %w", err)
	}
	if indexPath == "" {
		return errors.New("--index is required")
	}
	var opts auditindex.VerifyOptions
	if opts.Root, err = flags.GetString("root"); err != nil {
		return fmt.Errorf("failed to get root flag: %w", err)
	}
	if opts.HistoryDir, err = flags.GetString("history-dir"); err != nil {
		return fmt.Errorf("failed to get history-dir flag: %w", err)
	}
	if opts.MaxEvents, err = flags.GetInt("max-events"); err != nil {
		return fmt.Errorf("failed to get max-events flag: %w", err)
	}
	if opts.Strict, err = flags.GetBool("strict"); err != nil {
		return fmt.Errorf("failed to get strict flag: %w", err)
	}

	_, span := trace.Within(cmd.Context(), trace.ScopeCommand, "index.verify")
	defer span.End("")

	index, err := auditindex.Load(indexPath)
	if err != nil {
		return err
	}
	issues := auditindex.Verify(index, opts)
	out := cmd.OutOrStdout()
	for _, issue := range issues {
		printIssue(out, issue)
	}
	if n := auditindex.Errors(issues); n > 0 {
		return fmt.Errorf("audit index verification failed: %d error(s)", n)
	}
	if !quiet(cmd) {
		fmt.Fprintf(out, "audit index verified: %s (%d warning(s))\n", indexPath, len(issues))
	}
	return nil
}

func runIndexSummary(cmd *cobra.Command, _ []string) error {
	indexPath, err := cmd.Flags().GetString("index")
	if err != nil {
		return fmt.Errorf("failed to get index flag: %w", err)
	}
	if indexPath == "" {
		return errors.New("--index is required")
	}
	output, err := cmd.Flags().GetString("output")
	if err != nil {
		return fmt.Errorf("failed to get output flag: %w", err)
	}
	index, err := auditindex.Load(indexPath)
	if err != nil {
		return err
	}
	return writeOutput(cmd, output, []byte(auditindex.SummaryMarkdown(index)))
}

var (
	issueError   = color.New(color.FgRed, color.Bold)
	issueWarning = color.New(color.FgYellow)
)

func printIssue(w io.Writer, issue auditindex.Issue) {
	c := issueWarning
	if issue.Severity == auditindex.SeverityError {
		c = issueError
	}
	c.Fprintf(w, "[%s]", issue.Severity)
	fmt.Fprintln(w, " "+issue.Message)
}
