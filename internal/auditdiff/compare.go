package auditdiff

import "slices"

// Detail kinds.
const (
	KindRemoved = "removed"
	KindAdded   = "added"
)

// DiagnosticDetail is one identity present on only one side.
type DiagnosticDetail struct {
	Category string  `json:"category"`
	Code     *string `json:"code"`
	Kind     string  `json:"kind"`
}

// DiagnosticDiff counts identities that disappeared (regressions) or appeared.
type DiagnosticDiff struct {
	Regressions int                `json:"regressions"`
	New         int                `json:"new"`
	Improved    int                `json:"improved"`
	Details     []DiagnosticDetail `json:"details"`
}

// MetadataChange carries both flattened snapshots of a changed identity.
type MetadataChange struct {
	Category string            `json:"category"`
	Code     *string           `json:"code"`
	Base     map[string]string `json:"base"`
	Target   map[string]string `json:"target"`
}

// ChangedKeys returns the sorted keys whose value differs between the two
// snapshots, including keys present on one side only.
func (c MetadataChange) ChangedKeys() []string {
	var out []string
	for k, v := range c.Base {
		if tv, ok := c.Target[k]; !ok || tv != v {
			out = append(out, k)
		}
	}
	for k := range c.Target {
		if _, ok := c.Base[k]; !ok {
			out = append(out, k)
		}
	}
	slices.Sort(out)
	return out
}

// MetadataDiff lists identities whose flattened metadata differs.
type MetadataDiff struct {
	Changed int              `json:"changed"`
	Details []MetadataChange `json:"details"`
}

// PassRateDiff compares mean pass rates over shared identities.
type PassRateDiff struct {
	Previous *float64 `json:"previous"`
	Current  *float64 `json:"current"`
	Delta    *float64 `json:"delta"`
}

// Summary is the result of Compare.
type Summary struct {
	Diagnostic DiagnosticDiff `json:"diagnostic"`
	Metadata   MetadataDiff   `json:"metadata"`
	PassRate   PassRateDiff   `json:"pass_rate"`
}

// Compare matches entries by (category, code). When an identity repeats on one
// side the last entry wins. Details are sorted by identity with a missing code
// sorting first.
func Compare(base, target []Entry) Summary {
	return compare(base, target, true)
}

// CompareMetadata is Compare without extensions in the flattened snapshots.
func CompareMetadata(base, target []Entry) Summary {
	return compare(base, target, false)
}

func compare(base, target []Entry, includeExtensions bool) Summary {
	baseIdx := index(base)
	targetIdx := index(target)

	var removed, added, shared []Identity
	for k, e := range baseIdx {
		if _, ok := targetIdx[k]; ok {
			shared = append(shared, e.Identity())
		} else {
			removed = append(removed, e.Identity())
		}
	}
	for k, e := range targetIdx {
		if _, ok := baseIdx[k]; !ok {
			added = append(added, e.Identity())
		}
	}
	for _, ids := range [][]Identity{removed, added, shared} {
		slices.SortFunc(ids, compareIdentity)
	}

	s := Summary{
		Diagnostic: DiagnosticDiff{
			Regressions: len(removed),
			New:         len(added),
			Details:     make([]DiagnosticDetail, 0, len(removed)+len(added)),
		},
		Metadata: MetadataDiff{Details: []MetadataChange{}},
	}
	for _, id := range removed {
		s.Diagnostic.Details = append(s.Diagnostic.Details, DiagnosticDetail{Category: id.Category, Code: id.Code, Kind: KindRemoved})
	}
	for _, id := range added {
		s.Diagnostic.Details = append(s.Diagnostic.Details, DiagnosticDetail{Category: id.Category, Code: id.Code, Kind: KindAdded})
	}

	var previous, current []float64
	for _, id := range shared {
		b := baseIdx[id.key()]
		t := targetIdx[id.key()]
		bf := Flatten(b, includeExtensions)
		tf := Flatten(t, includeExtensions)
		if !sameFlat(bf, tf) {
			s.Metadata.Details = append(s.Metadata.Details, MetadataChange{
				Category: id.Category,
				Code:     id.Code,
				Base:     bf,
				Target:   tf,
			})
		}
		if b.PassRate != nil {
			previous = append(previous, *b.PassRate)
		}
		if t.PassRate != nil {
			current = append(current, *t.PassRate)
		}
	}
	s.Metadata.Changed = len(s.Metadata.Details)

	s.PassRate.Previous = mean(previous)
	s.PassRate.Current = mean(current)
	if s.PassRate.Previous != nil && s.PassRate.Current != nil {
		d := *s.PassRate.Current - *s.PassRate.Previous
		s.PassRate.Delta = &d
	}
	return s
}

func index(entries []Entry) map[identityKey]Entry {
	out := make(map[identityKey]Entry, len(entries))
	for _, e := range entries {
		out[e.Identity().key()] = e
	}
	return out
}

func compareIdentity(a, b Identity) int {
	switch {
	case a.less(b):
		return -1
	case b.less(a):
		return 1
	}
	return 0
}

func mean(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	m := sum / float64(len(values))
	return &m
}

// Identities returns the sorted distinct identities of entries.
func Identities(entries []Entry) []Identity {
	ids := make([]Identity, 0, len(entries))
	for _, e := range index(entries) {
		ids = append(ids, e.Identity())
	}
	slices.SortFunc(ids, compareIdentity)
	return ids
}
