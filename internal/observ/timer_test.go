package observ

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func fakeClock(step time.Duration) func() time.Time {
	now := time.Unix(0, 0)
	return func() time.Time {
		now = now.Add(step)
		return now
	}
}

func TestTimerReport(t *testing.T) {
	tm := NewTimer()
	tm.now = fakeClock(10 * time.Millisecond)

	load := tm.Begin("load")
	tm.End(load, "3 files")
	err := tm.Measure("check", func() error { return errors.New("boom") })
	if err == nil || err.Error() != "boom" {
		t.Fatalf("Measure error = %v", err)
	}
	tm.End(99, "ignored")

	r := tm.Report()
	if len(r.Phases) != 2 {
		t.Fatalf("phases = %+v", r.Phases)
	}
	if r.Phases[0].DurationMS != 10 || r.Phases[0].Note != "3 files" {
		t.Fatalf("load phase = %+v", r.Phases[0])
	}
	if r.Phases[1].Note != "error: boom" {
		t.Fatalf("check phase note = %q", r.Phases[1].Note)
	}
	if r.TotalMS != 20 {
		t.Fatalf("total = %v, want 20", r.TotalMS)
	}
	s := tm.Summary()
	if !strings.HasPrefix(s, "timings:\n") || !strings.Contains(s, "// 3 files") {
		t.Fatalf("summary = %q", s)
	}
}

func TestNilTimer(t *testing.T) {
	var tm *Timer
	tm.End(tm.Begin("x"), "")
	if err := tm.Measure("y", func() error { return nil }); err != nil {
		t.Fatalf("Measure on nil timer: %v", err)
	}
	if r := tm.Report(); len(r.Phases) != 0 {
		t.Fatalf("nil timer reported phases")
	}
}
