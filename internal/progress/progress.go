// Package progress defines the status reporting boundary between the
// compression pipeline and whatever front end hosts it. The pipeline only
// ever sees the Sink interface; console and websocket adapters live with
// their front ends.
package progress

import (
	"fmt"
	"io"
)

// Sink receives human-readable status lines from a running job.
type Sink interface {
	Report(message string)
}

// Func adapts a plain function to the Sink interface.
type Func func(string)

// Report implements Sink.
func (f Func) Report(message string) { f(message) }

// Nop discards every message.
var Nop Sink = Func(func(string) {})

// ConsoleSink writes each status line to a writer, one per line.
type ConsoleSink struct {
	w io.Writer
}

// NewConsoleSink returns a console sink writing to w.
func NewConsoleSink(w io.Writer) *ConsoleSink {
	return &ConsoleSink{w: w}
}

// Report implements Sink.
func (s *ConsoleSink) Report(message string) {
	fmt.Fprintln(s.w, message)
}
