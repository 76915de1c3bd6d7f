package trace

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// Format selects how events are rendered.
type Format uint8

const (
	FormatAuto Format = iota // NDJSON for .ndjson/.jsonl paths, text otherwise
	FormatText
	FormatNDJSON
)

// ParseFormat accepts auto, text, ndjson or json; "" means auto.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return FormatAuto, nil
	case "text":
		return FormatText, nil
	case "ndjson", "json":
		return FormatNDJSON, nil
	}
	return FormatAuto, fmt.Errorf("invalid trace format %q (expected auto|text|ndjson)", s)
}

// FormatEvent renders ev as one newline-terminated line.
func FormatEvent(ev *Event, format Format) []byte {
	if format != FormatNDJSON {
		return formatText(ev)
	}
	line, err := json.Marshal(ev)
	if err != nil {
		return nil
	}
	return append(line, '\n')
}

// MarshalJSON writes kind and scope by name and the time with microseconds.
func (ev *Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Time   string            `json:"time"`
		Seq    uint64            `json:"seq"`
		Kind   string            `json:"kind"`
		Scope  string            `json:"scope"`
		Span   uint64            `json:"span_id,omitempty"`
		Parent uint64            `json:"parent_id,omitempty"`
		Name   string            `json:"name"`
		Detail string            `json:"detail,omitempty"`
		Extra  map[string]string `json:"extra,omitempty"`
	}{
		ev.Time.Format("2006-01-02T15:04:05.000000Z07:00"),
		ev.Seq, ev.Kind.String(), ev.Scope.String(),
		ev.SpanID, ev.ParentID,
		ev.Name, ev.Detail, ev.Extra,
	})
}

var kindGlyph = map[Kind]string{
	KindSpanBegin: "→ ",
	KindSpanEnd:   "← ",
	KindPoint:     "• ",
}

// formatText renders "[seq] glyph scope:name (detail) {k=v, ...}", indenting
// events that have a parent.
func formatText(ev *Event) []byte {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%6d] ", ev.Seq)
	if ev.ParentID > 0 {
		sb.WriteString("  ")
	}
	sb.WriteString(kindGlyph[ev.Kind])
	fmt.Fprintf(&sb, "%s:%s", ev.Scope, ev.Name)
	if ev.Detail != "" {
		fmt.Fprintf(&sb, " (%s)", ev.Detail)
	}
	if len(ev.Extra) > 0 {
		pairs := make([]string, 0, len(ev.Extra))
		for k, v := range ev.Extra {
			pairs = append(pairs, k+"="+v)
		}
		slices.Sort(pairs)
		sb.WriteString(" {" + strings.Join(pairs, ", ") + "}")
	}
	sb.WriteByte('\n')
	return []byte(sb.String())
}
