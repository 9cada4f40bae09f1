package trainer

import (
	"strings"
	"sync/atomic"
)

// UILogWriter is an io.Writer that hands each log line to the UI log pane.
// It never blocks: when the UI falls behind, lines are dropped and counted.
type UILogWriter struct {
	ch      chan string
	dropped atomic.Uint64
}

func NewUILogWriter(buffer int) *UILogWriter {
	if buffer < 1 {
		buffer = 1
	}
	return &UILogWriter{ch: make(chan string, buffer)}
}

// Lines is the channel NewUIModel reads from
func (w *UILogWriter) Lines() <-chan string {
	return w.ch
}

func (w *UILogWriter) Write(p []byte) (int, error) {
	line := string(p)
	if !strings.HasSuffix(line, "\n") {
		line += "\n"
	}
	select {
	case w.ch <- line:
	default:
		w.dropped.Add(1)
	}
	return len(p), nil
}

func (w *UILogWriter) Dropped() uint64 {
	return w.dropped.Load()
}
