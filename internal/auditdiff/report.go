package auditdiff

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// SchemaVersion tags diff documents.
const SchemaVersion = "audit-diff.v1"

// Side describes one input of a diff.
type Side struct {
	Path       string `json:"path"`
	EntryCount int    `json:"entry_count"`
}

// Report is the audit-diff.v1 document.
type Report struct {
	SchemaVersion string         `json:"schema_version"`
	Base          Side           `json:"base"`
	Target        Side           `json:"target"`
	Diagnostic    DiagnosticDiff `json:"diagnostic"`
	Metadata      MetadataDiff   `json:"metadata"`
	PassRate      PassRateDiff   `json:"pass_rate"`
	Threshold     float64        `json:"threshold"`
	Preset        string         `json:"preset,omitempty"`
	Query         string         `json:"query,omitempty"`
}

// Options configures NewReport.
type Options struct {
	BasePath   string
	TargetPath string
	Query      string
	Preset     string
	Threshold  float64
}

// NewReport filters both sides with opts.Query, compares them and wraps the
// result.
func NewReport(base, target []Entry, opts Options) (*Report, error) {
	var err error
	if base, err = Filter(base, opts.Query); err != nil {
		return nil, err
	}
	if target, err = Filter(target, opts.Query); err != nil {
		return nil, err
	}
	s := Compare(base, target)
	return &Report{
		SchemaVersion: SchemaVersion,
		Base:          Side{Path: opts.BasePath, EntryCount: len(base)},
		Target:        Side{Path: opts.TargetPath, EntryCount: len(target)},
		Diagnostic:    s.Diagnostic,
		Metadata:      s.Metadata,
		PassRate:      s.PassRate,
		Threshold:     opts.Threshold,
		Preset:        opts.Preset,
		Query:         opts.Query,
	}, nil
}

// ExceedsThreshold reports whether regressions go beyond the threshold. A zero
// threshold never trips.
func (r *Report) ExceedsThreshold() bool {
	return r.Threshold > 0 && float64(r.Diagnostic.Regressions) > r.Threshold
}

// WriteJSON writes the report indented, followed by a newline.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// WriteMarkdown renders a short human summary.
func (r *Report) WriteMarkdown(w io.Writer) error {
	var b strings.Builder
	b.WriteString("# Audit Diff Summary\n\n")
	fmt.Fprintf(&b, "- base: `%s` (%d entries)\n", r.Base.Path, r.Base.EntryCount)
	fmt.Fprintf(&b, "- target: `%s` (%d entries)\n", r.Target.Path, r.Target.EntryCount)
	fmt.Fprintf(&b, "- regressions: %d\n", r.Diagnostic.Regressions)
	fmt.Fprintf(&b, "- new diagnostics: %d\n", r.Diagnostic.New)
	fmt.Fprintf(&b, "- metadata changes: %d\n", r.Metadata.Changed)
	fmt.Fprintf(&b, "- pass_rate delta: %s\n", formatRate(r.PassRate.Delta))
	if r.Preset != "" {
		fmt.Fprintf(&b, "- preset: %s\n", r.Preset)
	}
	if len(r.Diagnostic.Details) > 0 {
		b.WriteString("\n## Diagnostics\n\n")
		for _, d := range r.Diagnostic.Details {
			fmt.Fprintf(&b, "- `%s` / `%s` (%s)\n", d.Category, codeLabel(d.Code), d.Kind)
		}
	}
	if len(r.Metadata.Details) > 0 {
		b.WriteString("\n## Metadata\n\n")
		for _, c := range r.Metadata.Details {
			keys := c.ChangedKeys()
			fmt.Fprintf(&b, "- `%s` / `%s`: %s\n", c.Category, codeLabel(c.Code), strings.Join(keys, ", "))
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func codeLabel(code *string) string {
	if code == nil {
		return "-"
	}
	return *code
}

func formatRate(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%+.3f", *v)
}
