package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"diagaudit/internal/jsondiff"
	"diagaudit/internal/trace"
)

var jsondiffCmd = &cobra.Command{
	Use:   "jsondiff --baseline <dir> --actual <dir>",
	Short: "Compare golden JSON files with actual outputs",
	Args:  cobra.NoArgs,
	RunE:  runJSONDiff,
}

func init() {
	jsondiffCmd.Flags().String("baseline", "", "directory holding *.json.golden files")
	jsondiffCmd.Flags().String("actual", "", "directory holding *.actual.json files")
	jsondiffCmd.Flags().String("format", "json", "output format (json|markdown)")
	jsondiffCmd.Flags().StringP("output", "o", "", "write the result to a file instead of stdout")
	jsondiffCmd.Flags().Bool("fail-on-diff", false, "exit non-zero when any golden differs")
}

func runJSONDiff(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	baseline, err := flags.GetString("baseline")
	if err != nil {
		return fmt.Errorf("failed to get baseline flag: %w", err)
	}
	actual, err := flags.GetString("actual")
	if err != nil {
		return fmt.Errorf("failed to get actual flag: %w", err)
	}
	if baseline == "" || actual == "" {
		return errors.New("both --baseline and --actual are required")
	}
	format, err := flags.GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	output, err := flags.GetString("output")
	if err != nil {
		return fmt.Errorf("failed to get output flag: %w", err)
	}
	failOnDiff, err := flags.GetBool("fail-on-diff")
	if err != nil {
		return fmt.Errorf("failed to get fail-on-diff flag: %w", err)
	}

	_, span := trace.Within(cmd.Context(), trace.ScopeCommand, "jsondiff")
	defer span.End("")

	result, err := jsondiff.CompareDirs(baseline, actual)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		err = enc.Encode(result)
	case "markdown", "md":
		err = result.WriteMarkdown(&buf)
	default:
		return fmt.Errorf("unsupported format %q (must be json or markdown)", format)
	}
	if err != nil {
		return fmt.Errorf("render jsondiff: %w", err)
	}
	if err := writeOutput(cmd, output, buf.Bytes()); err != nil {
		return err
	}
	if failOnDiff && !result.Clean() {
		return fmt.Errorf("%d golden file(s) differ", len(result.Entries))
	}
	return nil
}
