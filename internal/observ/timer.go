// Package observ measures how long each stage of a command takes.
package observ

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

type stage struct {
	name  string
	began time.Time
	took  time.Duration
	note  string
}

// Timer records stages in the order they begin. A nil *Timer records
// nothing, so callers can hold one unconditionally.
type Timer struct {
	mu     sync.Mutex
	now    func() time.Time
	stages []stage
}

func NewTimer() *Timer { return &Timer{now: time.Now} }

// Begin opens a stage and returns the handle End expects.
func (t *Timer) Begin(name string) int {
	if t == nil {
		return -1
	}
	t.mu.Lock()
	t.stages = append(t.stages, stage{name: name, began: t.now()})
	handle := len(t.stages) - 1
	t.mu.Unlock()
	return handle
}

// End closes a stage. Handles that Begin never returned are ignored.
func (t *Timer) End(handle int, note string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if handle >= 0 && handle < len(t.stages) {
		s := &t.stages[handle]
		s.took, s.note = t.now().Sub(s.began), note
	}
}

// Measure runs fn as one stage; a failure becomes the stage note.
func (t *Timer) Measure(name string, fn func() error) error {
	handle := t.Begin(name)
	err := fn()
	var note string
	if err != nil {
		note = fmt.Sprintf("error: %v", err)
	}
	t.End(handle, note)
	return err
}

type PhaseReport struct {
	Name       string  `json:"name"`
	DurationMS float64 `json:"duration_ms"`
	Note       string  `json:"note,omitempty"`
}

type Report struct {
	TotalMS float64       `json:"total_ms"`
	Phases  []PhaseReport `json:"phases"`
}

func (t *Timer) Report() Report {
	var r Report
	if t == nil {
		return r
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, s := range t.stages {
		ms := float64(s.took) / float64(time.Millisecond)
		r.TotalMS += ms
		r.Phases = append(r.Phases, PhaseReport{Name: s.name, DurationMS: ms, Note: s.note})
	}
	return r
}

// Summary is the report as the aligned table printed by --timings.
func (t *Timer) Summary() string {
	r := t.Report()
	lines := []string{"timings:"}
	for _, p := range r.Phases {
		line := fmt.Sprintf("  %-20s %7.2f ms", p.Name, p.DurationMS)
		if p.Note != "" {
			line += "  // " + p.Note
		}
		lines = append(lines, line)
	}
	lines = append(lines, fmt.Sprintf("  %-20s %7.2f ms", "total", r.TotalMS))
	return strings.Join(lines, "\n") + "\n"
}
