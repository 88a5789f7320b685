package clasp

import (
	"io"
	"sync"
)

// Stream identifies which output stream of the child produced a chunk
type Stream int

const (
	Stdout Stream = iota
	Stderr
)

func (s Stream) String() string {
	if s == Stderr {
		return "stderr"
	}
	return "stdout"
}

// Event is one chunk of child output, delivered in arrival order per stream
type Event struct {
	Stream Stream
	Data   []byte
}

// Sink receives output events. Emit may be called from two goroutines at once
// (one per stream), so implementations must be safe for concurrent use.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to the Sink interface
type SinkFunc func(Event)

// Emit calls f(ev)
func (f SinkFunc) Emit(ev Event) { f(ev) }

// ConsoleSink forwards stdout chunks to out and stderr chunks to errOut
func ConsoleSink(out, errOut io.Writer) Sink {
	var mu sync.Mutex
	return SinkFunc(func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		if ev.Stream == Stderr {
			_, _ = errOut.Write(ev.Data)
			return
		}
		_, _ = out.Write(ev.Data)
	})
}

// Discard drops all events
var Discard Sink = SinkFunc(func(Event) {})

// Recorder is a Sink that keeps every event it receives
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Emit records ev
func (r *Recorder) Emit(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns a copy of the recorded events
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Text concatenates the recorded data of one stream
func (r *Recorder) Text(stream Stream) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var b []byte
	for _, ev := range r.events {
		if ev.Stream == stream {
			b = append(b, ev.Data...)
		}
	}
	return string(b)
}
