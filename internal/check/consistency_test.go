package check

import (
	"context"
	"reflect"
	"testing"
)

func TestExpectedDomain(t *testing.T) {
	tests := []struct {
		code string
		want string
		ok   bool
	}{
		{"parser.unexpected_token", "parser", true},
		{"typeclass.unresolved", "type", true},
		{"effects.stage_mismatch", "effect", true},
		{"effect.residual", "effect", true},
		{"ffi.contract.abi", "runtime", true},
		{"config.invalid", "config", true},
		{"lint.unused", "", false},
	}
	for _, tt := range tests {
		got, ok := ExpectedDomain(tt.code)
		if got != tt.want || ok != tt.ok {
			t.Fatalf("ExpectedDomain(%q) = %q,%v, want %q,%v", tt.code, got, ok, tt.want, tt.ok)
		}
	}
}

func TestDomainConsistency(t *testing.T) {
	in := input(
		decode(t, `{"code": "parser.eof", "domain": "Parser", "timestamp": "t"}`),
		decode(t, `{"code": "typeclass.x", "domain": "parser", "timestamp": "t", "audit": {"metadata": {"diagnostic.domain": "type"}}}`),
		decode(t, `{"code": "lint.unused", "domain": "lint", "timestamp": "t", "audit": {"metadata": {"diagnostic": {"domain": "lint"}}}}`),
		decode(t, `{"code": "parser.eof", "timestamp": "t"}`),
	)
	m := Run(context.Background(), Domain{}, in)
	if m.Total != 3 || m.Passed != 2 {
		t.Fatalf("counts = %d/%d", m.Total, m.Passed)
	}
	want := []string{"audit.metadata.diagnostic.domain", "domain"}
	if !reflect.DeepEqual(m.Failures[0].Mismatches, want) || len(m.Failures[0].Missing) != 0 {
		t.Fatalf("failure = %+v", m.Failures[0])
	}
}

const capabilityDiag = `{
  "code": "effects.stage_mismatch",
  "timestamp": "t",
  "audit": {
    "metadata": {
      "effect.required_capabilities": ["io.console", " fs.read "],
      "effect.actual_capabilities": [{"capability": "io.console", "stage": "beta", "provider": "runtime"}],
      "effect.stage.required_capabilities": ["io.console", "fs.read"]
    },
    "effect.stage.actual_capabilities": [{"capability": "io.console", "stage": "beta"}]
  },
  "extensions": {
    "effects": {
      "stage": {
        "required_capabilities": ["io.console", "fs.read"],
        "actual_capabilities": [{"capability": "io.console", "stage": "beta"}]
      }
    },
    "effect.stage.required_capabilities": ["io.console", "fs.read"]
  }
}`

func TestCapabilityArraysAgree(t *testing.T) {
	d := decode(t, capabilityDiag)
	if !(Capability{}).Select(d) {
		t.Fatalf("effects extension must select the diagnostic")
	}
	f := Capability{}.Inspect(d)
	if !f.Passed() {
		t.Fatalf("finding = %+v", f)
	}
}

func TestCapabilityMismatchIsLocated(t *testing.T) {
	d := decode(t, capabilityDiag)
	meta := d["audit"].(map[string]any)["metadata"].(map[string]any)
	meta["effect.stage.required_capabilities"] = []any{"io.console"}
	meta["effect.actual_capabilities"] = []any{map[string]any{"capability": "io.console", "stage": "stable"}}

	m := Run(context.Background(), Capability{}, input(d))
	want := []string{
		"mismatch:audit.metadata.effect.actual_capabilities",
		"mismatch:audit.metadata.effect.stage.required_capabilities",
	}
	if m.Failed != 1 || !reflect.DeepEqual(m.Failures[0].Mismatches, want) {
		t.Fatalf("failures = %+v, want mismatches %v", m.Failures, want)
	}
}

func TestCapabilityNFC(t *testing.T) {
	d := decode(t, `{"timestamp": "t", "extensions": {
	  "capability": {"required_capabilities": ["café"], "actual_capabilities": []},
	  "effects": {"stage": {"required_capabilities": ["café"], "actual_capabilities": []}}
	}}`)
	if f := (Capability{}).Inspect(d); !f.Passed() {
		t.Fatalf("composed and decomposed forms must compare equal: %+v", f)
	}
}

func TestCapabilityMissingEverywhere(t *testing.T) {
	d := decode(t, `{"timestamp": "t", "extensions": {"effects": {"stage": {"required": "beta"}}}}`)
	f := Capability{}.Inspect(d)
	if !reflect.DeepEqual(f.Missing, []string{"required_capabilities", "actual_capabilities"}) {
		t.Fatalf("missing = %v", f.Missing)
	}
}

func TestCapabilityRejectsNonListValues(t *testing.T) {
	d := decode(t, `{"timestamp": "t",
	  "audit": {"metadata": {"effect.required_capabilities": true, "effect.actual_capabilities": "x"}},
	  "extensions": {"effects": {"stage": {"required_capabilities": "io", "actual_capabilities": 42}}}
	}`)
	f := Capability{}.Inspect(d)
	if f.Passed() {
		t.Fatalf("scalar capability arrays must fail: %+v", f)
	}
	want := []string{
		"extensions.effects.stage.required_capabilities",
		"audit.metadata.effect.required_capabilities",
		"required_capabilities",
		"extensions.effects.stage.actual_capabilities",
		"audit.metadata.effect.actual_capabilities",
		"actual_capabilities",
	}
	if !reflect.DeepEqual(f.Missing, want) || len(f.Mismatches) != 0 {
		t.Fatalf("finding = %+v, want missing %v", f, want)
	}
}

func TestCapabilityNullCountsAsAbsent(t *testing.T) {
	d := decode(t, `{"timestamp": "t", "extensions": {
	  "capability": {"required_capabilities": null, "actual_capabilities": null},
	  "effects": {"stage": {"required_capabilities": ["io"], "actual_capabilities": []}}
	}}`)
	if f := (Capability{}).Inspect(d); !f.Passed() {
		t.Fatalf("null locations must be skipped: %+v", f)
	}
}
