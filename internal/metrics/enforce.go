package metrics

import (
	"fmt"
	"strings"
)

// Enforce applies the strict gate and records the outcome on r. It returns
// one human-readable reason per failure; an empty result means the gate
// passed.
func Enforce(r *Report) []string {
	var reasons []string
	for _, m := range r.Flatten() {
		if !m.Gated() || m.Total <= 0 {
			continue
		}
		if m.PassRate == nil || *m.PassRate < 1.0 {
			reasons = append(reasons, m.Name+" < 1.0")
		}
	}
	if r.Parser != nil && r.Parser.Total == 0 {
		reasons = append(reasons, NameParser+": total=0")
	}
	for _, extra := range r.Extra {
		name := "extra_metric"
		if v, ok := extra["metric"]; ok && v != nil {
			name = fmt.Sprint(v)
		}
		status, ok := extra["status"].(string)
		if !ok {
			reasons = append(reasons, name+": status=<missing>")
			continue
		}
		switch strings.ToLower(strings.TrimSpace(status)) {
		case "success", "ok", "passed":
		default:
			reasons = append(reasons, fmt.Sprintf("%s: status=%s", name, status))
		}
	}
	r.Enforcement = &Enforcement{RequireSuccess: true, Failures: reasons}
	return reasons
}
