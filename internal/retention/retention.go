// Package retention prunes audit index entries down to a per-profile quota.
package retention

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/BurntSushi/toml"
	"fortio.org/safecast"

	"diagaudit/internal/auditindex"
	"diagaudit/internal/records"
)

// DefaultKey names the quota used for profiles without their own entry.
const DefaultKey = "default"

// Policy maps a profile to the number of newest entries kept per
// (profile, target) group.
type Policy map[string]int

// DefaultPolicy returns the built-in quotas.
func DefaultPolicy() Policy {
	return Policy{"ci": 100, "local": 30, "tmp": 20, DefaultKey: 50}
}

// Limit returns the quota for profile.
func (p Policy) Limit(profile string) int {
	if n, ok := p[profile]; ok {
		return n
	}
	if n, ok := p[DefaultKey]; ok {
		return n
	}
	return DefaultPolicy()[DefaultKey]
}

type policyFile struct {
	Retain map[string]any `toml:"retain"`
}

// LoadPolicy overlays the [retain] table of a TOML file on DefaultPolicy.
// Values that are not non-negative integers are ignored. A missing file
// yields the defaults.
func LoadPolicy(path string) (Policy, error) {
	policy := DefaultPolicy()
	if path == "" {
		return policy, nil
	}
	var cfg policyFile
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return policy, nil
		}
		return policy, fmt.Errorf("failed to parse retention config %s: %w", path, err)
	}
	for key, value := range cfg.Retain {
		n, ok := value.(int64)
		if !ok || n < 0 {
			continue
		}
		limit, err := safecast.Conv[int](n)
		if err != nil {
			continue
		}
		policy[key] = limit
	}
	return policy, nil
}

// Prune keeps the newest Limit(profile) entries of every (profile, target)
// group, walking entries from last to first. Both outputs keep the input's
// relative order. Entries are never modified.
func Prune(entries []records.Record, policy Policy) (kept, pruned []records.Record) {
	type key struct{ profile, target string }
	counts := make(map[key]int)
	keep := make([]bool, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		k := key{auditindex.Profile(e), auditindex.Target(e)}
		limit := policy.Limit(k.profile)
		if limit > 0 && counts[k] < limit {
			counts[k]++
			keep[i] = true
		}
	}
	kept = make([]records.Record, 0, len(entries))
	pruned = make([]records.Record, 0)
	for i, e := range entries {
		if keep[i] {
			kept = append(kept, e)
		} else {
			pruned = append(pruned, e)
		}
	}
	return kept, pruned
}

// Result describes what Apply changed.
type Result struct {
	Kept   int
	Pruned int
	// Logged lists identifiers newly appended to the index's pruned log.
	Logged []string
}

// Apply prunes index in place: entries is replaced by the kept entries and
// the pruned log gains the build_id (or id) of every pruned entry not already
// logged. The index is left untouched when nothing is pruned.
func Apply(index records.Record, policy Policy) Result {
	entries, _ := auditindex.Entries(index)
	kept, pruned := Prune(entries, policy)
	res := Result{Kept: len(kept), Pruned: len(pruned)}
	if len(pruned) == 0 {
		return res
	}

	keptAny := make([]any, 0, len(kept))
	for _, e := range kept {
		keptAny = append(keptAny, e)
	}
	index["entries"] = keptAny

	var log []any
	seen := make(map[string]struct{})
	if existing, ok := index["pruned"].([]any); ok {
		for _, item := range existing {
			if s, ok := item.(string); ok {
				log = append(log, s)
				seen[s] = struct{}{}
			}
		}
	}
	for _, e := range pruned {
		id, ok := records.FirstString(e, "build_id", "id")
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		log = append(log, id)
		res.Logged = append(res.Logged, id)
	}
	if log == nil {
		log = []any{}
	}
	index["pruned"] = log
	return res
}
