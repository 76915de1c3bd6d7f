package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"diagaudit/internal/auditdiff"
	"diagaudit/internal/trace"
)

var diffCmd = &cobra.Command{
	Use:   "diff --base <file> --target <file> [flags]",
	Short: "Compare two audit logs",
	Long: `Diff normalizes two audit logs, compares them by (category, code) and
reports regressions, new diagnostics, metadata changes and the pass-rate
delta as an audit-diff.v1 document.`,
	Args: cobra.NoArgs,
	RunE: runDiff,
}

func init() {
	diffCmd.Flags().String("base", "", "baseline audit log")
	diffCmd.Flags().String("target", "", "audit log to compare against the baseline")
	diffCmd.Flags().String("query", "", "only compare entries matching this query")
	diffCmd.Flags().String("query-preset", "", "named query from --presets")
	diffCmd.Flags().String("presets", "", "YAML query preset file")
	diffCmd.Flags().StringP("output", "o", "", "write the report to a file instead of stdout")
	diffCmd.Flags().Float64("threshold", 0, "fail when regressions exceed this count (0 disables)")
	diffCmd.Flags().String("format", "json", "output format (json|md)")
}

func runDiff(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	basePath, err := flags.GetString("base")
	if err != nil {
		return fmt.Errorf("failed to get base flag: %w", err)
	}
	targetPath, err := flags.GetString("target")
	if err != nil {
		return fmt.Errorf("failed to get target flag: %w", err)
	}
	if basePath == "" || targetPath == "" {
		return errors.New("both --base and --target are required")
	}
	query, err := flags.GetString("query")
	if err != nil {
		return fmt.Errorf("failed to get query flag: %w", err)
	}
	presetName, err := flags.GetString("query-preset")
	if err != nil {
		return fmt.Errorf("failed to get query-preset flag: %w", err)
	}
	presetsPath, err := flags.GetString("presets")
	if err != nil {
		return fmt.Errorf("failed to get presets flag: %w", err)
	}
	output, err := flags.GetString("output")
	if err != nil {
		return fmt.Errorf("failed to get output flag: %w", err)
	}
	threshold, err := flags.GetFloat64("threshold")
	if err != nil {
		return fmt.Errorf("failed to get threshold flag: %w", err)
	}
	format, err := flags.GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	format = strings.ToLower(format)
	switch format {
	case "json", "md", "markdown":
	default:
		return fmt.Errorf("unsupported format %q (must be json or md)", format)
	}

	presetQuery, err := resolvePreset(presetName, presetsPath)
	if err != nil {
		return err
	}
	if _, err := auditdiff.ParseQuery(query); err != nil {
		return err
	}

	ctx, span := trace.Within(cmd.Context(), trace.ScopeCommand, "diff")
	defer span.End("")
	timer := newCommandTimer(cmd)

	var base, target []auditdiff.Entry
	err = timer.Measure("load", func() error {
		_, fileSpan := trace.Within(ctx, trace.ScopeFile, basePath)
		base, err = auditdiff.Load(basePath)
		fileSpan.End("")
		if err != nil {
			return err
		}
		_, fileSpan = trace.Within(ctx, trace.ScopeFile, targetPath)
		target, err = auditdiff.Load(targetPath)
		fileSpan.End("")
		return err
	})
	if err != nil {
		return err
	}

	var report *auditdiff.Report
	err = timer.Measure("compare", func() error {
		if base, err = auditdiff.Filter(base, presetQuery); err != nil {
			return err
		}
		if target, err = auditdiff.Filter(target, presetQuery); err != nil {
			return err
		}
		report, err = auditdiff.NewReport(base, target, auditdiff.Options{
			BasePath:   basePath,
			TargetPath: targetPath,
			Query:      query,
			Preset:     presetName,
			Threshold:  threshold,
		})
		return err
	})
	if err != nil {
		return err
	}
	span.WithExtra("regressions", fmt.Sprint(report.Diagnostic.Regressions)).
		WithExtra("metadata_changed", fmt.Sprint(report.Metadata.Changed))

	var buf bytes.Buffer
	if format == "json" {
		err = report.WriteJSON(&buf)
	} else {
		err = report.WriteMarkdown(&buf)
	}
	if err != nil {
		return fmt.Errorf("render diff: %w", err)
	}
	if err := writeOutput(cmd, output, buf.Bytes()); err != nil {
		return err
	}
	printTimings(cmd, timer)

	if report.ExceedsThreshold() {
		printGateFailures(cmd.ErrOrStderr(), []string{
			fmt.Sprintf("regressions %d > threshold %g", report.Diagnostic.Regressions, report.Threshold),
		})
		return errors.New("audit diff regressions exceed threshold")
	}
	return nil
}

// resolvePreset returns the query of the named preset, or "" when no preset
// is requested. The preset narrows both sides before --query applies.
func resolvePreset(presetName, presetsPath string) (string, error) {
	if presetName == "" {
		return "", nil
	}
	if presetsPath == "" {
		return "", errors.New("--query-preset requires --presets")
	}
	presets, err := auditdiff.LoadPresets(presetsPath)
	if err != nil {
		return "", err
	}
	preset, ok := presets.Lookup(presetName)
	if !ok {
		return "", fmt.Errorf("unknown query preset %q", presetName)
	}
	return preset.Query, nil
}

func writeOutput(cmd *cobra.Command, output string, data []byte) error {
	if output == "" || output == "-" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", output, err)
	}
	if !quiet(cmd) {
		fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", output)
	}
	return nil
}
