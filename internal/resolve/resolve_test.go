package resolve

import (
	"reflect"
	"testing"

	"diagaudit/internal/records"
)

func TestLookupFlatKeyWinsOverNested(t *testing.T) {
	container := records.Record{
		"effect.stage.required": "flat",
		"effect": map[string]any{
			"stage": map[string]any{"required": "nested"},
		},
	}
	got, ok := Lookup(container, "effect.stage.required")
	if !ok || got != "flat" {
		t.Fatalf("Lookup = %v,%v, want flat,true", got, ok)
	}
	delete(container, "effect.stage.required")
	got, ok = Lookup(container, "effect.stage.required")
	if !ok || got != "nested" {
		t.Fatalf("Lookup = %v,%v, want nested,true", got, ok)
	}
	if _, ok := Lookup(container, "effect.stage.actual"); ok {
		t.Fatalf("Lookup of absent path reported present")
	}
}

func TestResolvePolicies(t *testing.T) {
	tests := []struct {
		name  string
		audit records.Record
		field RequiredField
		want  Kind
	}{
		{
			name:  "alias in metadata",
			audit: records.Record{"metadata": map[string]any{"audit_id": "a-1"}},
			field: Field("cli.audit_id", "cli.audit_id", "audit_id"),
			want:  Found,
		},
		{
			name:  "empty rejected",
			audit: records.Record{"effect.capability_descriptor": ""},
			field: Field("effect.capability_descriptor"),
			want:  Malformed,
		},
		{
			name:  "empty allowed",
			audit: records.Record{"effect.capability_descriptor": ""},
			field: Field("effect.capability_descriptor").Empty(),
			want:  Found,
		},
		{
			name:  "null rejected",
			audit: records.Record{"effect.unhandled_operations": nil},
			field: Field("effect.unhandled_operations").Empty(),
			want:  Malformed,
		},
		{
			name:  "null allowed",
			audit: records.Record{"effect.unhandled_operations": nil},
			field: Field("effect.unhandled_operations").Empty().Null(),
			want:  Found,
		},
		{
			name:  "absent",
			audit: records.Record{},
			field: Field("schema.version"),
			want:  NotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(Containers(tt.audit), tt.field)
			if got.Kind != tt.want {
				t.Fatalf("Resolve kind = %s, want %s", got.Kind, tt.want)
			}
		})
	}
}

func TestResolveFirstMatchWins(t *testing.T) {
	audit := records.Record{
		"audit_id": "top",
		"metadata": map[string]any{"cli.audit_id": "meta"},
	}
	got := Resolve(Containers(audit), Field("cli.audit_id", "cli.audit_id", "audit_id"))
	if got.Value != "top" || got.Path != "audit_id" {
		t.Fatalf("Resolve = %+v, want value top via audit_id", got)
	}
}

func TestMissing(t *testing.T) {
	fields := []RequiredField{Field("schema.version"), Field("cli.change_set", "cli.change_set", "change_set")}
	got := Missing(nil, fields)
	want := []string{"audit", "cli.change_set", "schema.version"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Missing(nil) = %v, want %v", got, want)
	}
	got = Missing(records.Record{"change_set": "cs"}, fields)
	if !reflect.DeepEqual(got, []string{"schema.version"}) {
		t.Fatalf("Missing = %v", got)
	}
}

func TestHasPath(t *testing.T) {
	data := records.Record{
		"bridge": map[string]any{"target": "x86_64", "abi": "", "args": []any{}},
	}
	if !HasPath(data, "bridge.target") {
		t.Fatalf("bridge.target should be present")
	}
	if HasPath(data, "bridge.abi") || HasPath(data, "bridge.args") || HasPath(nil, "bridge") {
		t.Fatalf("blank values must not count as present")
	}
	if !HasAnyPath(records.Record{"metadata": map[string]any{"bridge.abi": "C"}}, "bridge.abi", "metadata.bridge.abi") {
		t.Fatalf("HasAnyPath should accept metadata alias")
	}
}

func TestResolveShape(t *testing.T) {
	field := Field("required_capabilities").Empty().Shaped(List)
	tests := []struct {
		value any
		want  Kind
	}{
		{[]any{"io"}, Found},
		{[]any{}, Found},
		{"io", Malformed},
		{float64(42), Malformed},
	}
	for _, tt := range tests {
		got := Resolve([]records.Record{{"required_capabilities": tt.value}}, field)
		if got.Kind != tt.want {
			t.Fatalf("Resolve(%v) = %s, want %s", tt.value, got.Kind, tt.want)
		}
		if got.Kind == Malformed && got.Reason != "not a list" {
			t.Fatalf("reason = %q", got.Reason)
		}
	}
}
