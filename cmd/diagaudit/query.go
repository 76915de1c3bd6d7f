package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"diagaudit/internal/auditdiff"
	"diagaudit/internal/trace"
)

var queryCmd = &cobra.Command{
	Use:   "query --from <file> [flags]",
	Short: "Filter audit log entries with the audit query language",
	Long: `Query loads audit logs, keeps the entries matching the expression and
prints them. Expressions compare fields with ==, !=, >=, <=, >, <, ~= and
in, joined by "and" / "or":

  category == "ffi.bridge" and metadata.bridge.status != "ok"
  code in ["typeclass.iterator.stage_mismatch"] or pass_rate < 1.0`,
	Args: cobra.NoArgs,
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().StringArray("from", nil, "audit log to search (repeatable)")
	queryCmd.Flags().String("query", "", "query expression")
	queryCmd.Flags().String("query-file", "", "read the query expression from a file")
	queryCmd.Flags().String("preset-name", "", "named query from --presets")
	queryCmd.Flags().String("presets", "", "YAML query preset file")
	queryCmd.Flags().String("coverage-output", "", "write per-preset coverage of --presets to this file")
	queryCmd.Flags().String("format", "table", "output format (json|table|ndjson)")
	queryCmd.Flags().Int("limit", 0, "print at most this many entries (0 = all)")
	queryCmd.Flags().StringP("output", "o", "", "write results to a file instead of stdout")
}

type queryOptions struct {
	from           []string
	query          string
	presetName     string
	presetsPath    string
	coverageOutput string
	format         string
	limit          int
	output         string
}

func readQueryOptions(cmd *cobra.Command) (*queryOptions, error) {
	var (
		opts queryOptions
		err  error
	)
	flags := cmd.Flags()
	if opts.from, err = flags.GetStringArray("from"); err != nil {
		return nil, fmt.Errorf("failed to get from flag: %w", err)
	}
	if opts.query, err = flags.GetString("query"); err != nil {
		return nil, fmt.Errorf("failed to get query flag: %w", err)
	}
	queryFile, err := flags.GetString("query-file")
	if err != nil {
		return nil, fmt.Errorf("failed to get query-file flag: %w", err)
	}
	if queryFile != "" {
		if opts.query != "" {
			return nil, errors.New("--query and --query-file are mutually exclusive")
		}
		data, err := os.ReadFile(queryFile)
		if err != nil {
			return nil, fmt.Errorf("read query file: %w", err)
		}
		opts.query = strings.TrimSpace(string(data))
	}
	if opts.presetName, err = flags.GetString("preset-name"); err != nil {
		return nil, fmt.Errorf("failed to get preset-name flag: %w", err)
	}
	if opts.presetsPath, err = flags.GetString("presets"); err != nil {
		return nil, fmt.Errorf("failed to get presets flag: %w", err)
	}
	if opts.coverageOutput, err = flags.GetString("coverage-output"); err != nil {
		return nil, fmt.Errorf("failed to get coverage-output flag: %w", err)
	}
	if opts.format, err = flags.GetString("format"); err != nil {
		return nil, fmt.Errorf("failed to get format flag: %w", err)
	}
	opts.format = strings.ToLower(opts.format)
	switch opts.format {
	case "json", "table", "ndjson":
	default:
		return nil, fmt.Errorf("unsupported format %q (must be json, table or ndjson)", opts.format)
	}
	if opts.limit, err = flags.GetInt("limit"); err != nil {
		return nil, fmt.Errorf("failed to get limit flag: %w", err)
	}
	if opts.limit < 0 {
		return nil, errors.New("--limit must not be negative")
	}
	if opts.output, err = flags.GetString("output"); err != nil {
		return nil, fmt.Errorf("failed to get output flag: %w", err)
	}
	if len(opts.from) == 0 {
		return nil, errors.New("no audit logs given; pass --from")
	}
	if opts.presetName != "" && opts.presetsPath == "" {
		return nil, errors.New("--preset-name requires --presets")
	}
	if opts.coverageOutput != "" && opts.presetsPath == "" {
		return nil, errors.New("--coverage-output requires --presets")
	}
	return &opts, nil
}

func runQuery(cmd *cobra.Command, _ []string) error {
	opts, err := readQueryOptions(cmd)
	if err != nil {
		return err
	}

	ctx, span := trace.Within(cmd.Context(), trace.ScopeCommand, "query")
	defer span.End("")

	var entries []auditdiff.Entry
	for _, path := range opts.from {
		_, fileSpan := trace.Within(ctx, trace.ScopeFile, path)
		loaded, err := auditdiff.Load(path)
		fileSpan.End("")
		if err != nil {
			return err
		}
		entries = append(entries, loaded...)
	}

	var presets *auditdiff.Presets
	if opts.presetsPath != "" {
		if presets, err = auditdiff.LoadPresets(opts.presetsPath); err != nil {
			return err
		}
	}

	matched := entries
	if opts.presetName != "" {
		preset, ok := presets.Lookup(opts.presetName)
		if !ok {
			return fmt.Errorf("unknown query preset %q", opts.presetName)
		}
		if matched, err = auditdiff.Filter(matched, preset.Query); err != nil {
			return err
		}
	}
	if matched, err = auditdiff.Filter(matched, opts.query); err != nil {
		return err
	}
	span.WithExtra("matched", strconv.Itoa(len(matched)))

	if opts.coverageOutput != "" {
		if err := writeCoverage(opts.coverageOutput, presets.Coverage(entries)); err != nil {
			return err
		}
	}

	shown := matched
	if opts.limit > 0 && len(shown) > opts.limit {
		shown = shown[:opts.limit]
	}

	var buf bytes.Buffer
	switch opts.format {
	case "json":
		err = writeEntriesJSON(&buf, shown)
	case "ndjson":
		err = writeEntriesNDJSON(&buf, shown)
	default:
		err = writeEntriesTable(&buf, shown)
	}
	if err != nil {
		return fmt.Errorf("render query result: %w", err)
	}
	if err := writeOutput(cmd, opts.output, buf.Bytes()); err != nil {
		return err
	}
	if !quiet(cmd) && opts.format == "table" {
		fmt.Fprintf(cmd.ErrOrStderr(), "%d of %d entries matched\n", len(matched), len(entries))
	}
	return nil
}

func writeCoverage(path string, coverage []auditdiff.Coverage) error {
	data, err := json.MarshalIndent(map[string]any{"coverage": coverage}, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write coverage: %w", err)
	}
	return nil
}

func writeEntriesJSON(w io.Writer, entries []auditdiff.Entry) error {
	raws := make([]any, 0, len(entries))
	for _, e := range entries {
		raws = append(raws, e.Raw)
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(raws)
}

func writeEntriesNDJSON(w io.Writer, entries []auditdiff.Entry) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, e := range entries {
		if err := enc.Encode(e.Raw); err != nil {
			return err
		}
	}
	return nil
}

var tableColumns = []struct {
	title string
	max   int
	value func(auditdiff.Entry) string
}{
	{"CATEGORY", 28, func(e auditdiff.Entry) string { return e.Category }},
	{"CODE", 40, func(e auditdiff.Entry) string { return e.CodeString() }},
	{"SEVERITY", 10, func(e auditdiff.Entry) string { return e.Severity }},
	{"PASS", 6, func(e auditdiff.Entry) string {
		if e.PassRate == nil {
			return "-"
		}
		return strconv.FormatFloat(*e.PassRate, 'f', 2, 64)
	}},
	{"AUDIT ID", 24, func(e auditdiff.Entry) string { return e.CLIAuditID }},
}

// writeEntriesTable prints entries as fixed columns. Cells are measured in
// display cells so wide runes stay aligned.
func writeEntriesTable(w io.Writer, entries []auditdiff.Entry) error {
	widths := make([]int, len(tableColumns))
	cells := make([][]string, len(entries))
	for i, col := range tableColumns {
		widths[i] = runewidth.StringWidth(col.title)
	}
	for r, e := range entries {
		row := make([]string, len(tableColumns))
		for i, col := range tableColumns {
			cell := runewidth.Truncate(col.value(e), col.max, "…")
			row[i] = cell
			widths[i] = max(widths[i], runewidth.StringWidth(cell))
		}
		cells[r] = row
	}

	var b strings.Builder
	line := func(row []string) {
		for i, cell := range row {
			if i == len(row)-1 {
				b.WriteString(cell)
				break
			}
			b.WriteString(runewidth.FillRight(cell, widths[i]))
			b.WriteString("  ")
		}
		b.WriteByte('\n')
	}
	header := make([]string, len(tableColumns))
	for i, col := range tableColumns {
		header[i] = col.title
	}
	line(header)
	for _, row := range cells {
		line(row)
	}
	_, err := io.WriteString(w, b.String())
	return err
}
