package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"diagaudit/internal/trace"
)

// traceConfig reads the persistent --trace* flags. A --trace path with the
// level left at off turns on phase-level tracing.
func traceConfig(cmd *cobra.Command) (trace.Config, error) {
	flags := cmd.Root().PersistentFlags()
	var cfg trace.Config
	strs := map[string]string{}
	for _, name := range []string{"trace", "trace-level", "trace-mode", "trace-format"} {
		v, err := flags.GetString(name)
		if err != nil {
			return cfg, fmt.Errorf("failed to get %s flag: %w", name, err)
		}
		strs[name] = v
	}
	ringSize, err := flags.GetInt("trace-ring-size")
	if err != nil {
		return cfg, fmt.Errorf("failed to get trace-ring-size flag: %w", err)
	}

	cfg.OutputPath, cfg.RingSize = strs["trace"], ringSize
	if cfg.Level, err = trace.ParseLevel(strs["trace-level"]); err != nil {
		return cfg, err
	}
	if cfg.Level == trace.LevelOff && cfg.OutputPath != "" {
		cfg.Level = trace.LevelPhase
	}
	if cfg.Level == trace.LevelOff {
		return cfg, nil
	}
	if cfg.Mode, err = trace.ParseMode(strs["trace-mode"]); err != nil {
		return cfg, err
	}
	if cfg.Format, err = trace.ParseFormat(strs["trace-format"]); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// setupTracing installs the configured tracer in the context of cmd and the
// root command. The returned cleanup flushes and closes it.
func setupTracing(cmd *cobra.Command) (func(), error) {
	cfg, err := traceConfig(cmd)
	if err != nil {
		return nil, err
	}
	tracer, err := trace.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = trace.WithTracer(ctx, tracer)
	cmd.SetContext(ctx)
	cmd.Root().SetContext(ctx)

	return func() {
		if err := tracer.Close(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: %v\n", err)
		}
	}, nil
}
