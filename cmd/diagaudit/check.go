package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"diagaudit/internal/cache"
	"diagaudit/internal/check"
	"diagaudit/internal/metrics"
	"diagaudit/internal/observ"
	"diagaudit/internal/records"
	"diagaudit/internal/trace"
)

var checkCmd = &cobra.Command{
	Use:   "check --source <file> [flags]",
	Short: "Measure audit metadata compliance of diagnostic outputs",
	Long: `Check scans diagnostic JSON and audit logs, computes one pass-rate
metric per category and prints the combined report as JSON. With
--require-success any failing metric makes the command exit non-zero.`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

// Sections in the order they are collected for --section all.
var checkSections = []string{"parser", "iterator", "typeclass", "ffi", "domain", "capability", "review"}

func init() {
	checkCmd.Flags().StringArray("source", nil, "diagnostic JSON file (repeatable)")
	checkCmd.Flags().StringArray("audit-source", nil, "audit log JSON/JSONL file (repeatable)")
	checkCmd.Flags().String("section", "all", "section to collect (all|"+strings.Join(checkSections, "|")+")")
	checkCmd.Flags().StringArray("review-diff", nil, "audit-diff report JSON (repeatable)")
	checkCmd.Flags().StringArray("review-coverage", nil, "query coverage report JSON (repeatable)")
	checkCmd.Flags().StringArray("review-dashboard", nil, "rendered dashboard artifact (repeatable)")
	checkCmd.Flags().StringArray("append-from", nil, "extra metric JSON object merged into the report (repeatable)")
	checkCmd.Flags().Bool("require-success", false, "exit non-zero when a gated metric fails")
	checkCmd.Flags().StringP("output", "o", "", "write the report to a file instead of stdout")
	checkCmd.Flags().Int("jobs", 0, "max parallel file loads (0=auto)")
	checkCmd.Flags().Bool("cache", false, "reuse decoded inputs from the on-disk cache")
	checkCmd.Flags().Float64("ci-duration-seconds", -1, "overall CI job duration in seconds")
	checkCmd.Flags().Float64("stage-duration-seconds", -1, "audit stage duration in seconds")
}

type checkOptions struct {
	sources         []string
	auditSources    []string
	sections        []string
	reviewDiff      []string
	reviewCoverage  []string
	reviewDashboard []string
	appendFrom      []string
	requireSuccess  bool
	output          string
	jobs            int
	useCache        bool
	ciDuration      *float64
	stageDuration   *float64
}

func readCheckOptions(cmd *cobra.Command) (*checkOptions, error) {
	var (
		opts checkOptions
		err  error
	)
	flags := cmd.Flags()
	if opts.sources, err = flags.GetStringArray("source"); err != nil {
		return nil, fmt.Errorf("failed to get source flag: %w", err)
	}
	if opts.auditSources, err = flags.GetStringArray("audit-source"); err != nil {
		return nil, fmt.Errorf("failed to get audit-source flag: %w", err)
	}
	section, err := flags.GetString("section")
	if err != nil {
		return nil, fmt.Errorf("failed to get section flag: %w", err)
	}
	if opts.sections, err = resolveSections(section); err != nil {
		return nil, err
	}
	if opts.reviewDiff, err = flags.GetStringArray("review-diff"); err != nil {
		return nil, fmt.Errorf("failed to get review-diff flag: %w", err)
	}
	if opts.reviewCoverage, err = flags.GetStringArray("review-coverage"); err != nil {
		return nil, fmt.Errorf("failed to get review-coverage flag: %w", err)
	}
	if opts.reviewDashboard, err = flags.GetStringArray("review-dashboard"); err != nil {
		return nil, fmt.Errorf("failed to get review-dashboard flag: %w", err)
	}
	if opts.appendFrom, err = flags.GetStringArray("append-from"); err != nil {
		return nil, fmt.Errorf("failed to get append-from flag: %w", err)
	}
	if opts.requireSuccess, err = flags.GetBool("require-success"); err != nil {
		return nil, fmt.Errorf("failed to get require-success flag: %w", err)
	}
	if opts.output, err = flags.GetString("output"); err != nil {
		return nil, fmt.Errorf("failed to get output flag: %w", err)
	}
	if opts.jobs, err = flags.GetInt("jobs"); err != nil {
		return nil, fmt.Errorf("failed to get jobs flag: %w", err)
	}
	if opts.useCache, err = flags.GetBool("cache"); err != nil {
		return nil, fmt.Errorf("failed to get cache flag: %w", err)
	}
	if opts.ciDuration, err = optionalSeconds(cmd, "ci-duration-seconds"); err != nil {
		return nil, err
	}
	if opts.stageDuration, err = optionalSeconds(cmd, "stage-duration-seconds"); err != nil {
		return nil, err
	}
	return &opts, nil
}

func resolveSections(section string) ([]string, error) {
	section = strings.ToLower(strings.TrimSpace(section))
	if section == "all" {
		return checkSections, nil
	}
	if slices.Contains(checkSections, section) {
		return []string{section}, nil
	}
	return nil, fmt.Errorf("unknown section %q (expected all|%s)", section, strings.Join(checkSections, "|"))
}

func optionalSeconds(cmd *cobra.Command, name string) (*float64, error) {
	if !cmd.Flags().Changed(name) {
		return nil, nil
	}
	v, err := cmd.Flags().GetFloat64(name)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s flag: %w", name, err)
	}
	if v < 0 {
		return nil, fmt.Errorf("--%s must not be negative", name)
	}
	return &v, nil
}

func runCheck(cmd *cobra.Command, _ []string) error {
	opts, err := readCheckOptions(cmd)
	if err != nil {
		return err
	}
	if len(opts.sources) == 0 {
		return errors.New("no diagnostic sources given; pass --source")
	}
	if missing := missingFiles(opts.sources); len(missing) > 0 {
		return fmt.Errorf("missing input files: %s", strings.Join(missing, ", "))
	}
	if missing := missingFiles(opts.auditSources); len(missing) > 0 {
		return fmt.Errorf("missing audit files: %s", strings.Join(missing, ", "))
	}

	ctx, span := trace.Within(cmd.Context(), trace.ScopeCommand, "check")
	defer span.End("")

	timer := newCommandTimer(cmd)

	var loader records.Loader = records.FileLoader{}
	var cached *cache.Loader
	if opts.useCache {
		dc, err := cache.OpenDefault("diagaudit")
		if err != nil {
			return fmt.Errorf("open cache: %w", err)
		}
		cached = cache.NewLoader(dc)
		loader = cached
	}

	var in check.Input
	err = timer.Measure("load", func() error {
		var err error
		in, err = loadCheckInput(ctx, loader, opts)
		return err
	})
	if err != nil {
		return err
	}

	var extras []records.Record
	if err := timer.Measure("append", func() error {
		var err error
		extras, err = loadExtraMetrics(opts.appendFrom)
		return err
	}); err != nil {
		return err
	}

	var report *metrics.Report
	_ = timer.Measure("check", func() error {
		report = collectReport(ctx, in, opts)
		return nil
	})
	for i, extra := range extras {
		report.AddExtra(opts.appendFrom[i], extra)
	}
	report.CI = metrics.NewCIInfo(opts.ciDuration, opts.stageDuration)

	var reasons []string
	if opts.requireSuccess {
		reasons = metrics.Enforce(report)
	}

	if err := writeReport(cmd, opts.output, report); err != nil {
		return err
	}
	if cached != nil && !quiet(cmd) {
		hits, misses := cached.Stats()
		fmt.Fprintf(cmd.ErrOrStderr(), "cache: %d hits, %d misses\n", hits, misses)
	}
	printTimings(cmd, timer)

	if len(reasons) > 0 {
		printGateFailures(cmd.ErrOrStderr(), reasons)
		return fmt.Errorf("audit metrics failed: %d reason(s)", len(reasons))
	}
	return nil
}

func loadCheckInput(ctx context.Context, loader records.Loader, opts *checkOptions) (check.Input, error) {
	cols, err := records.LoadCollections(ctx, loader, opts.sources, opts.jobs)
	if err != nil {
		return check.Input{}, err
	}
	logs, err := records.LoadAll(ctx, loader, opts.auditSources, opts.jobs)
	if err != nil {
		return check.Input{}, err
	}
	in := check.Input{Collections: cols}
	for i, entries := range logs {
		in.AuditLogs = append(in.AuditLogs, check.AuditLog{Path: opts.auditSources[i], Entries: entries})
	}
	return in, nil
}

// loadExtraMetrics reads --append-from files; each must hold one JSON object.
func loadExtraMetrics(paths []string) ([]records.Record, error) {
	out := make([]records.Record, 0, len(paths))
	for _, path := range paths {
		doc, err := records.LoadDocument(path)
		if err != nil {
			return nil, fmt.Errorf("append-from: %w", err)
		}
		rec, ok := records.AsRecord(doc)
		if !ok {
			return nil, fmt.Errorf("append-from: %s is not a JSON object", path)
		}
		out = append(out, rec)
	}
	return out, nil
}

// collectReport runs the requested sections. Audit presence is always
// measured.
func collectReport(ctx context.Context, in check.Input, opts *checkOptions) *metrics.Report {
	ms := []metrics.Metric{check.Run(ctx, check.Presence{}, in)}
	var review *metrics.ReviewSummary
	for _, section := range opts.sections {
		switch section {
		case "parser":
			ms = append(ms, check.RunParser(ctx, in))
		case "iterator":
			ms = append(ms, check.Run(ctx, check.Iterator{}, in))
		case "typeclass":
			ms = append(ms, check.RunTypeclass(ctx, in))
		case "ffi":
			ms = append(ms, check.Run(ctx, check.Bridge{}, in))
		case "domain":
			ms = append(ms, check.Run(ctx, check.Domain{}, in))
		case "capability":
			ms = append(ms, check.Run(ctx, check.Capability{}, in))
		case "review":
			review = metrics.CollectReview(opts.reviewDiff, opts.reviewCoverage, opts.reviewDashboard)
		}
	}
	report := metrics.Aggregate(ms...)
	report.Review = review
	report.Diagnostics = metrics.SummarizeSeverity(in.Collections, check.IsParser)
	return report
}

func writeReport(cmd *cobra.Command, output string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	data = append(data, '\n')
	if output == "" || output == "-" {
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if !quiet(cmd) {
		fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", output)
	}
	return nil
}

var gateColor = color.New(color.FgRed, color.Bold)

func printGateFailures(w io.Writer, reasons []string) {
	for _, reason := range reasons {
		gateColor.Fprint(w, "audit gate failed:")
		fmt.Fprintln(w, " "+reason)
	}
}

func missingFiles(paths []string) []string {
	var missing []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			missing = append(missing, path)
		}
	}
	return missing
}

// newCommandTimer returns a timer when --timings is set, else nil. A nil
// timer still runs measured functions.
func newCommandTimer(cmd *cobra.Command) *observ.Timer {
	on, err := cmd.Root().PersistentFlags().GetBool("timings")
	if err != nil || !on {
		return nil
	}
	return observ.NewTimer()
}

func printTimings(cmd *cobra.Command, timer *observ.Timer) {
	if timer == nil {
		return
	}
	fmt.Fprint(cmd.ErrOrStderr(), timer.Summary())
}
