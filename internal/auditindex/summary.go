package auditindex

import (
	"fmt"
	"sort"
	"strings"

	"diagaudit/internal/records"
)

// SummaryMarkdown renders one table row per (profile, target) group with the
// group size and the newest entry's build, pass rate, level and path.
func SummaryMarkdown(index records.Record) string {
	entries, _ := Entries(index)
	if len(entries) == 0 {
		return "# Audit log summary\n\nNo entries.\n"
	}

	type key struct{ profile, target string }
	groups := make(map[key][]records.Record)
	var keys []key
	for _, e := range entries {
		k := key{Profile(e), Target(e)}
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], e)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].profile != keys[j].profile {
			return keys[i].profile < keys[j].profile
		}
		return keys[i].target < keys[j].target
	})

	var b strings.Builder
	b.WriteString("# Audit log summary\n\n")
	fmt.Fprintf(&b, "- entries: %d\n", len(entries))
	if pruned, ok := index["pruned"].([]any); ok {
		fmt.Fprintf(&b, "- previously pruned builds: %d\n", len(pruned))
	}
	b.WriteString("\n| profile | target | kept | latest build | latest pass_rate | level | path |\n")
	b.WriteString("| --- | --- | ---: | --- | --- | --- | --- |\n")
	for _, k := range keys {
		items := groups[k]
		latest := items[len(items)-1]
		fmt.Fprintf(&b, "| %s | %s | %d | %s | %s | %s | `%s` |\n",
			k.profile, k.target, len(items),
			truthy(latest, "build_id", "id"),
			formatPassRate(latest["pass_rate"]),
			truthy(latest, "audit_level", "level"),
			truthy(latest, "path", "artifact_path"),
		)
	}
	return b.String()
}

func truthy(e records.Record, keys ...string) string {
	for _, k := range keys {
		v := e[k]
		if v == nil || v == false || records.IsBlank(v) {
			continue
		}
		if f, ok := v.(float64); ok && f == 0 {
			continue
		}
		return fmt.Sprint(v)
	}
	return "-"
}

func formatPassRate(v any) string {
	switch t := v.(type) {
	case float64:
		return fmt.Sprintf("%.3f", t)
	case bool:
		if t {
			return "1.000"
		}
		return "0.000"
	}
	return "-"
}
