package auditindex

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"diagaudit/internal/records"
)

// Spec defaults.
const (
	DefaultStatus     = "unknown"
	DefaultAuditLevel = "full"
)

// Spec describes one audit file given as
// profile:target:path[:status[:audit_level[:pass_rate]]].
type Spec struct {
	Profile    string
	Target     string
	Path       string
	Status     string
	AuditLevel string
	PassRate   *float64
}

// ParseSpec parses the colon-separated audit spec. Empty fields take their
// defaults.
func ParseSpec(text string) (Spec, error) {
	parts := strings.Split(text, ":")
	if len(parts) < 3 {
		return Spec{}, fmt.Errorf("invalid audit spec %q: want profile:target:path[:status[:level[:pass_rate]]]", text)
	}
	s := Spec{
		Profile:    orDefault(parts[0], DefaultProfile),
		Target:     orDefault(parts[1], DefaultTarget),
		Path:       parts[2],
		Status:     DefaultStatus,
		AuditLevel: DefaultAuditLevel,
	}
	if len(parts) >= 4 {
		s.Status = orDefault(parts[3], DefaultStatus)
	}
	if len(parts) >= 5 {
		s.AuditLevel = orDefault(parts[4], DefaultAuditLevel)
	}
	if len(parts) >= 6 && parts[5] != "" {
		f, err := strconv.ParseFloat(parts[5], 64)
		if err != nil {
			return Spec{}, fmt.Errorf("invalid pass_rate in audit spec %q: %w", text, err)
		}
		s.PassRate = &f
	}
	return s, nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// Entry is one index entry. SizeBytes is kept as a decimal string.
type Entry struct {
	BuildID    string   `json:"build_id"`
	Timestamp  string   `json:"timestamp"`
	Profile    string   `json:"profile"`
	AuditStore string   `json:"audit_store"`
	Target     string   `json:"target"`
	AuditLevel string   `json:"audit_level"`
	Path       string   `json:"path"`
	Status     string   `json:"status"`
	PassRate   *float64 `json:"pass_rate"`
	SizeBytes  string   `json:"size_bytes"`
	Commit     string   `json:"commit,omitempty"`
}

// Record converts the entry to the generic form used by pruning and
// verification.
func (e Entry) Record() records.Record {
	rec := records.Record{
		"build_id":    e.BuildID,
		"timestamp":   e.Timestamp,
		"profile":     e.Profile,
		"audit_store": e.AuditStore,
		"target":      e.Target,
		"audit_level": e.AuditLevel,
		"path":        e.Path,
		"status":      e.Status,
		"pass_rate":   nil,
		"size_bytes":  e.SizeBytes,
	}
	if e.PassRate != nil {
		rec["pass_rate"] = *e.PassRate
	}
	if e.Commit != "" {
		rec["commit"] = e.Commit
	}
	return rec
}

// BuildEntry stats the spec's file and builds its index entry.
func BuildEntry(spec Spec, buildID, timestamp, commit string) (Entry, error) {
	info, err := os.Stat(spec.Path)
	if err != nil {
		return Entry{}, fmt.Errorf("audit log %s: %w", spec.Path, err)
	}
	return Entry{
		BuildID:    buildID,
		Timestamp:  timestamp,
		Profile:    spec.Profile,
		AuditStore: spec.Profile,
		Target:     spec.Target,
		AuditLevel: spec.AuditLevel,
		Path:       spec.Path,
		Status:     spec.Status,
		PassRate:   spec.PassRate,
		SizeBytes:  strconv.FormatInt(info.Size(), 10),
		Commit:     commit,
	}, nil
}

// Timestamp formats t as second-precision UTC ISO 8601.
func Timestamp(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(time.RFC3339)
}
