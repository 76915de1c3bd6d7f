package check

import (
	"context"
	"encoding/json"
	"reflect"
	"testing"

	"diagaudit/internal/records"
)

const bridgeAudit = `{
  "audit_id": "a", "change_set": "c", "cli.audit_id": "a", "cli.change_set": "c",
  "schema.version": "1.1",
  "bridge": {
    "audit_pass_rate": 1.0, "status": "ok", "target": "x86_64-unknown-linux-gnu",
    "arch": "x86_64", "abi": "sysv", "ownership": "borrowed", "extern_symbol": "puts",
    "platform": "linux",
    "return": {"ownership": "owned", "status": "ok", "wrap": "none", "release_handler": "free", "rc_adjustment": "0"}
  }
}`

func bridgeDiag(t *testing.T) records.Record {
	d := decode(t, `{"code": "ffi.contract.ownership", "timestamp": "t", "audit": {}, "extensions": {}}`)
	audit := decode(t, bridgeAudit)
	d["audit"] = audit
	d["extensions"] = map[string]any{"bridge": audit["bridge"]}
	return d
}

func TestBridgeDiagnosticPasses(t *testing.T) {
	m := Run(context.Background(), Bridge{}, input(bridgeDiag(t)))
	if m.Passed != 1 || *m.PassRate != 1.0 {
		t.Fatalf("failures = %+v", m.Failures)
	}
	if p := m.PlatformSummary["linux"]; p == nil || p.OK != 1 {
		t.Fatalf("platform summary = %+v", m.PlatformSummary)
	}
	if m.StatusSummary.Success != 1 || m.StatusSummary.Failure != 0 {
		t.Fatalf("status summary = %+v", m.StatusSummary)
	}
}

func TestBridgeAuditLogsShareTally(t *testing.T) {
	degraded := decode(t, bridgeAudit)
	records.Sub(degraded, "bridge")["status"] = "degraded"
	delete(records.Sub(degraded, "bridge"), "abi")

	in := input(bridgeDiag(t))
	in.AuditLogs = []AuditLog{
		{Path: "empty.jsonl"},
		{Path: "other.jsonl", Entries: []records.Record{decode(t, `{"category": "typeclass.x"}`)}},
		{Path: "bridge.jsonl", Entries: []records.Record{{"category": "ffi.bridge.call", "metadata": degraded}}},
	}
	m := Run(context.Background(), Bridge{}, in)
	if m.Total != 4 || m.Passed != 1 {
		t.Fatalf("counts = %d/%d, want 4/1", m.Total, m.Passed)
	}
	if *m.PassRate != 0 || *m.PassFraction != 0.25 {
		t.Fatalf("rates = %v/%v; audit entries must be part of the rate", *m.PassRate, *m.PassFraction)
	}
	codes := []string{}
	for _, f := range m.Failures {
		codes = append(codes, f.Code)
	}
	want := []string{"ffi.audit.empty", "ffi.audit.missing_bridge", "ffi.bridge.call"}
	if !reflect.DeepEqual(codes, want) {
		t.Fatalf("failure codes = %v, want %v", codes, want)
	}
	if m.Failures[0].Index != nil {
		t.Fatalf("synthetic failures have no index")
	}
	last := m.Failures[2]
	// no extensions on the log entry: abi plus every extension key
	if last.Missing[0] != "bridge.abi" || len(last.Missing) != 11 {
		t.Fatalf("missing = %v", last.Missing)
	}
	if *last.Status != "degraded" || m.StatusSummary.Failure != 1 {
		t.Fatalf("status = %v, summary %+v", *last.Status, m.StatusSummary)
	}
	if p := m.PlatformSummary["<missing>"]; p == nil || p.Total != 2 || p.Failed != 2 {
		t.Fatalf("<missing> platform = %+v", p)
	}
}

func TestBridgeWithoutAudit(t *testing.T) {
	f := Bridge{}.Inspect(decode(t, `{"code": "ffi.contract.abi"}`))
	if f.Missing[0] != "audit" || len(f.Missing) != 1+18+10 {
		t.Fatalf("missing = %v", f.Missing)
	}
	if f.Bridge.Status != nil || f.Bridge.Platform != nil {
		t.Fatalf("bridge info = %+v", f.Bridge)
	}
}

func TestSyntheticBridgeFailuresKeepShape(t *testing.T) {
	in := input()
	in.AuditLogs = []AuditLog{{Path: "empty.jsonl"}}
	m := Run(context.Background(), Bridge{}, in)
	if len(m.Failures) != 1 {
		t.Fatalf("failures = %+v", m.Failures)
	}
	data, err := json.Marshal(m.Failures[0])
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"status", "platform", "index"} {
		v, ok := got[key]
		if !ok || v != nil {
			t.Fatalf("%s = %v (present %v), want explicit null in %s", key, v, ok, data)
		}
	}
}
