package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"diagaudit/internal/trace"
	"diagaudit/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "diagaudit",
	Short: "Audit compliance and diff tooling for compiler diagnostics",
	Long: `diagaudit checks diagnostic and audit-log JSON against the audit
metadata contract, compares audit logs between runs and maintains the
audit log index used by CI.`,
	SilenceUsage:      true,
	PersistentPreRunE: prepareRun,
}

// traceCleanup flushes the tracer installed by prepareRun.
var traceCleanup = func() {}

// main registers subcommands and global flags and runs the root command.
// Any command error exits with status 1.
func main() {
	rootCmd.Version = version.Version

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(jsondiffCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(versionCmd)

	registerGlobalFlags(rootCmd)

	err := rootCmd.Execute()
	if err != nil {
		dumpTrace(rootCmd)
	}
	traceCleanup()
	if err != nil {
		os.Exit(1)
	}
}

func registerGlobalFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.String("color", "auto", "colorize output (auto|on|off)")
	flags.Bool("quiet", false, "suppress non-essential output")
	flags.Bool("timings", false, "show timing information")
	flags.String("trace", "", "trace output file (\"-\" for stderr)")
	flags.String("trace-level", "off", "trace level (off|error|phase|detail|debug)")
	flags.String("trace-mode", "stream", "trace storage (stream|ring|both)")
	flags.Int("trace-ring-size", 4096, "events kept in the trace ring buffer")
	flags.String("trace-format", "auto", "trace output format (auto|text|ndjson)")
}

// prepareRun applies --color and installs the tracer before any subcommand.
func prepareRun(cmd *cobra.Command, _ []string) error {
	colorFlag, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return fmt.Errorf("failed to get color flag: %w", err)
	}
	useColor, err := colorEnabled(colorFlag, isTerminal(os.Stderr))
	if err != nil {
		return err
	}
	color.NoColor = !useColor

	cleanup, err := setupTracing(cmd)
	if err != nil {
		return err
	}
	traceCleanup = cleanup
	return nil
}

func colorEnabled(mode string, tty bool) (bool, error) {
	switch mode {
	case "on":
		return true, nil
	case "off":
		return false, nil
	case "auto":
		return tty, nil
	default:
		return false, fmt.Errorf("invalid color mode %q (expected auto|on|off)", mode)
	}
}

// dumpTrace writes the ring buffer, if any, after a failed command.
func dumpTrace(cmd *cobra.Command) {
	ctx := cmd.Context()
	if ctx == nil {
		return
	}
	ring := trace.RingOf(trace.FromContext(ctx))
	if ring == nil {
		return
	}
	fmt.Fprintln(os.Stderr, "trace: last events before failure")
	if err := ring.Dump(os.Stderr, trace.FormatText); err != nil {
		fmt.Fprintf(os.Stderr, "trace: dump error: %v\n", err)
	}
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func quiet(cmd *cobra.Command) bool {
	q, err := cmd.Root().PersistentFlags().GetBool("quiet")
	return err == nil && q
}
