package check

import (
	"fmt"
	"strings"

	"diagaudit/internal/records"
	"diagaudit/internal/resolve"
)

func lower(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func successStatus(s string) bool {
	switch s {
	case "ok", "success", "passed", "pass":
		return true
	}
	return false
}

func platformKey(v any) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return "<unknown>"
}

// hasAuditKey applies the strict presence test to the audit object and its
// metadata, accepting flat and nested storage in both.
func hasAuditKey(audit records.Record, key string) bool {
	if resolve.HasAnyPath(audit, key, "metadata."+key) {
		return true
	}
	return resolve.HasPath(records.Sub(audit, "metadata"), key)
}

// bridgeContainers is the lookup order for bridge status and platform.
func bridgeContainers(audit, extensions records.Record) []records.Record {
	out := resolve.Containers(audit)
	if extensions != nil {
		out = append(out, extensions)
	}
	return out
}

func bridgeField(containers []records.Record, key string) (any, bool) {
	for _, c := range containers {
		if v, ok := resolve.Lookup(c, "bridge."+key); ok {
			return v, true
		}
	}
	return nil, false
}

func bridgeInfo(audit, extensions records.Record) *BridgeInfo {
	containers := bridgeContainers(audit, extensions)
	info := &BridgeInfo{}
	if v, ok := bridgeField(containers, "status"); ok && v != nil {
		s := fmt.Sprint(v)
		info.Status = &s
	}
	info.Platform, _ = bridgeField(containers, "platform")
	return info
}

func prefixed(prefix string, keys []string) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = prefix + k
	}
	return out
}
