package logger

import (
	"errors"
	"io"
	"sync"
)

var errWriterClosed = errors.New("logger: writer closed")

// job is either a line to write or a flush barrier.
type job struct {
	line []byte
	ack  chan error
}

// asyncWriter fans lines out to its sinks from a single goroutine so callers
// never block on slow stdout or disk.
type asyncWriter struct {
	sinks []io.Writer
	jobs  chan job
	done  chan struct{}

	mu     sync.RWMutex
	closed bool

	errMu sync.Mutex
	err   error
}

func newAsyncWriter(sinks []io.Writer, queue int) *asyncWriter {
	if queue <= 0 {
		queue = 1024
	}
	w := &asyncWriter{jobs: make(chan job, queue), done: make(chan struct{})}
	for _, s := range sinks {
		if s != nil {
			w.sinks = append(w.sinks, s)
		}
	}
	go w.run()
	return w
}

func (w *asyncWriter) run() {
	defer close(w.done)
	for j := range w.jobs {
		if j.ack != nil {
			j.ack <- w.firstErr()
			continue
		}
		for _, s := range w.sinks {
			if _, err := s.Write(j.line); err != nil {
				w.record(err)
			}
		}
	}
}

// Write queues a copy of p. It blocks only when the queue is full.
func (w *asyncWriter) Write(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	if err := w.firstErr(); err != nil {
		return err
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return errWriterClosed
	}
	w.jobs <- job{line: append([]byte(nil), p...)}
	return nil
}

// Flush returns once every line queued before it has been written.
func (w *asyncWriter) Flush() error {
	w.mu.RLock()
	if w.closed {
		w.mu.RUnlock()
		return w.firstErr()
	}
	ack := make(chan error, 1)
	w.jobs <- job{ack: ack}
	w.mu.RUnlock()
	return <-ack
}

// Close drains the queue and returns the first sink error.
func (w *asyncWriter) Close() error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.jobs)
	}
	w.mu.Unlock()
	<-w.done
	return w.firstErr()
}

func (w *asyncWriter) record(err error) {
	w.errMu.Lock()
	defer w.errMu.Unlock()
	if w.err == nil {
		w.err = err
	}
}

func (w *asyncWriter) firstErr() error {
	w.errMu.Lock()
	defer w.errMu.Unlock()
	return w.err
}
