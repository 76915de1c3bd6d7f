package trace

import "errors"

// Tee sends every event to each of its tracers. Used for ModeBoth so a
// streamed run still has a ring to dump on failure.
type Tee struct {
	level   Level
	tracers []Tracer
}

// NewTee combines tracers under one level.
func NewTee(level Level, tracers ...Tracer) *Tee {
	return &Tee{level: level, tracers: tracers}
}

// Emit hands each tracer its own copy so sequence stamps do not collide.
func (t *Tee) Emit(ev *Event) {
	for _, tr := range t.tracers {
		cp := *ev
		tr.Emit(&cp)
	}
}

func (t *Tee) Flush() error {
	var errs []error
	for _, tr := range t.tracers {
		errs = append(errs, tr.Flush())
	}
	return errors.Join(errs...)
}

func (t *Tee) Close() error {
	var errs []error
	for _, tr := range t.tracers {
		errs = append(errs, tr.Close())
	}
	return errors.Join(errs...)
}

func (t *Tee) Level() Level  { return t.level }
func (t *Tee) Enabled() bool { return t.level > LevelOff }

type nopTracer struct{}

func (nopTracer) Emit(*Event)   {}
func (nopTracer) Flush() error  { return nil }
func (nopTracer) Close() error  { return nil }
func (nopTracer) Level() Level  { return LevelOff }
func (nopTracer) Enabled() bool { return false }

// Nop discards everything. FromContext returns it when no tracer is set.
var Nop Tracer = nopTracer{}
