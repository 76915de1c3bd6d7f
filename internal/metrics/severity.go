package metrics

import (
	"strings"

	"diagaudit/internal/records"
)

// SeveritySummary counts diagnostics per normalized severity.
type SeveritySummary struct {
	Total   int      `json:"total"`
	Error   int      `json:"error"`
	Warning int      `json:"warning"`
	Info    int      `json:"info"`
	Hint    int      `json:"hint"`
	Other   int      `json:"other"`
	Sources []string `json:"sources"`

	InfoFraction  float64 `json:"info_fraction"`
	HintFraction  float64 `json:"hint_fraction"`
	InfoHintRatio float64 `json:"info_hint_ratio"`

	ParserTotal               int     `json:"parser_total"`
	ParserExpected            int     `json:"parser_expected"`
	ParserExpectedRatio       float64 `json:"parser_expected_ratio"`
	ParserExpectedTokensAvg   float64 `json:"parser_expected_tokens_avg"`
	parserExpectedTokensTotal int
}

var severityAliases = map[string]string{
	"error":       "error",
	"err":         "error",
	"warning":     "warning",
	"warn":        "warning",
	"info":        "info",
	"information": "info",
	"note":        "info",
	"hint":        "hint",
}

var severityLevels = map[int]string{1: "error", 2: "warning", 3: "info", 4: "hint"}

// NormalizeSeverity maps severity names and LSP levels to
// error|warning|info|hint. Unknown values return "".
func NormalizeSeverity(v any) string {
	switch t := v.(type) {
	case string:
		return severityAliases[strings.ToLower(t)]
	case float64:
		return severityLevels[int(t)]
	case int:
		return severityLevels[t]
	}
	return ""
}

// SummarizeSeverity counts severities across collections. isParser decides
// which diagnostics feed the parser_* fields.
func SummarizeSeverity(cols []*records.Collection, isParser func(records.Record) bool) *SeveritySummary {
	s := &SeveritySummary{Sources: []string{}}
	for _, col := range cols {
		s.Sources = append(s.Sources, col.Path)
		for _, d := range col.Diagnostics {
			s.add(d, isParser)
		}
	}
	if s.Total > 0 {
		total := float64(s.Total)
		s.InfoFraction = float64(s.Info) / total
		s.HintFraction = float64(s.Hint) / total
		s.InfoHintRatio = float64(s.Info+s.Hint) / total
	}
	if s.ParserTotal > 0 {
		s.ParserExpectedRatio = float64(s.ParserExpected) / float64(s.ParserTotal)
		if s.ParserExpected > 0 && s.parserExpectedTokensTotal > 0 {
			s.ParserExpectedTokensAvg = float64(s.parserExpectedTokensTotal) / float64(s.ParserExpected)
		}
	}
	return s
}

func (s *SeveritySummary) add(d records.Record, isParser func(records.Record) bool) {
	s.Total++
	switch NormalizeSeverity(d["severity"]) {
	case "error":
		s.Error++
	case "warning":
		s.Warning++
	case "info":
		s.Info++
	case "hint":
		s.Hint++
	default:
		s.Other++
	}
	if isParser == nil || !isParser(d) {
		return
	}
	s.ParserTotal++
	if alts, ok := records.Sub(d, "expected")["alternatives"].([]any); ok && len(alts) > 0 {
		s.ParserExpected++
		s.parserExpectedTokensTotal += len(alts)
	}
}
