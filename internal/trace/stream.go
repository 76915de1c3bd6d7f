package trace

import (
	"bufio"
	"io"
	"sync"
)

// StreamTracer writes each event as it happens through a buffered writer.
type StreamTracer struct {
	mu     sync.Mutex
	out    *bufio.Writer
	under  io.Writer
	level  Level
	format Format
}

// NewStreamTracer buffers writes to w. Flush or Close pushes them out.
func NewStreamTracer(w io.Writer, level Level, format Format) *StreamTracer {
	return &StreamTracer{out: bufio.NewWriter(w), under: w, level: level, format: format}
}

// Emit formats and buffers ev. Write errors are ignored so tracing never
// changes the outcome of a command.
func (t *StreamTracer) Emit(ev *Event) {
	if !t.level.ShouldEmit(ev.Scope) {
		return
	}
	ev.Seq = NextSeq()
	line := FormatEvent(ev, t.format)

	t.mu.Lock()
	defer t.mu.Unlock()
	_, _ = t.out.Write(line)
}

func (t *StreamTracer) Flush() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.out.Flush()
}

// Close flushes and closes the underlying writer when it is an io.Closer.
func (t *StreamTracer) Close() error {
	if err := t.Flush(); err != nil {
		return err
	}
	if c, ok := t.under.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (t *StreamTracer) Level() Level  { return t.level }
func (t *StreamTracer) Enabled() bool { return t.level > LevelOff }
