package jsondiff

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"diagaudit/internal/records"
)

// File suffixes paired by CompareDirs.
const (
	GoldenSuffix = ".json.golden"
	ActualSuffix = ".actual.json"
)

// Entry statuses.
const (
	StatusNew           = "new"
	StatusChanged       = "changed"
	StatusMissingActual = "missing_actual"
)

// Entry is one golden file that differs from its actual output.
type Entry struct {
	File    string   `json:"file"`
	Status  string   `json:"status"`
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
	Changed []string `json:"changed"`
}

// Summary counts entries per status.
type Summary struct {
	Changed       int `json:"changed"`
	New           int `json:"new"`
	MissingActual int `json:"missing_actual"`
}

// Result is the outcome of CompareDirs.
type Result struct {
	Entries []Entry `json:"entries"`
	Summary Summary `json:"summary"`
}

// Clean reports whether no golden differs.
func (r *Result) Clean() bool { return len(r.Entries) == 0 }

// CompareDirs pairs every <name>.actual.json under actual with
// <name>.json.golden under baseline. Actual files without a golden are "new",
// goldens without an actual are "missing_actual", and pairs that differ are
// "changed". Identical pairs are omitted.
func CompareDirs(baseline, actual string) (*Result, error) {
	for _, dir := range []string{baseline, actual} {
		info, err := os.Stat(dir)
		if err != nil {
			return nil, fmt.Errorf("failed to open directory %s: %w", dir, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%s is not a directory", dir)
		}
	}
	actuals, err := collect(actual, ActualSuffix)
	if err != nil {
		return nil, err
	}
	goldens, err := collect(baseline, GoldenSuffix)
	if err != nil {
		return nil, err
	}

	res := &Result{Entries: []Entry{}}
	seen := make(map[string]struct{}, len(actuals))
	for _, rel := range actuals {
		golden := strings.TrimSuffix(rel, ActualSuffix) + GoldenSuffix
		seen[golden] = struct{}{}
		goldenPath := filepath.Join(baseline, filepath.FromSlash(golden))
		if !isFile(goldenPath) {
			res.add(Entry{File: golden, Status: StatusNew})
			continue
		}
		want, err := records.LoadDocument(goldenPath)
		if err != nil {
			return nil, err
		}
		got, err := records.LoadDocument(filepath.Join(actual, filepath.FromSlash(rel)))
		if err != nil {
			return nil, err
		}
		added, removed, changed := Diff(want, got)
		if len(added)+len(removed)+len(changed) == 0 {
			continue
		}
		res.add(Entry{File: golden, Status: StatusChanged, Added: added, Removed: removed, Changed: changed})
	}
	for _, rel := range goldens {
		if _, ok := seen[rel]; ok {
			continue
		}
		actualRel := strings.TrimSuffix(rel, GoldenSuffix) + ActualSuffix
		if _, err := os.Stat(filepath.Join(actual, filepath.FromSlash(actualRel))); err != nil {
			res.add(Entry{File: rel, Status: StatusMissingActual})
		}
	}
	return res, nil
}

func (r *Result) add(e Entry) {
	if e.Added == nil {
		e.Added = []string{}
	}
	if e.Removed == nil {
		e.Removed = []string{}
	}
	if e.Changed == nil {
		e.Changed = []string{}
	}
	r.Entries = append(r.Entries, e)
	switch e.Status {
	case StatusChanged:
		r.Summary.Changed++
	case StatusNew:
		r.Summary.New++
	case StatusMissingActual:
		r.Summary.MissingActual++
	}
}

// collect returns slash-separated paths relative to root, sorted.
func collect(root, suffix string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), suffix) {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", root, err)
	}
	sort.Strings(out)
	return out, nil
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// WriteMarkdown renders the result for a pull request comment.
func (r *Result) WriteMarkdown(w io.Writer) error {
	if r.Clean() {
		_, err := io.WriteString(w, "No differences in diagnostic goldens.\n")
		return err
	}
	var b strings.Builder
	b.WriteString("## Diagnostic golden diff\n\n")
	fmt.Fprintf(&b, "- changed: %d / new: %d / missing actual: %d\n", r.Summary.Changed, r.Summary.New, r.Summary.MissingActual)
	for _, e := range r.Entries {
		fmt.Fprintf(&b, "\n### %s\n- status: %s\n", e.File, e.Status)
		if len(e.Added) > 0 {
			fmt.Fprintf(&b, "- added: %s\n", strings.Join(e.Added, ", "))
		}
		if len(e.Removed) > 0 {
			fmt.Fprintf(&b, "- removed: %s\n", strings.Join(e.Removed, ", "))
		}
		if len(e.Changed) > 0 {
			fmt.Fprintf(&b, "- changed: %s\n", strings.Join(e.Changed, ", "))
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}
