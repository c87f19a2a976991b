package eventlog

import (
	"bufio"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/event"
)

var (
	ErrQueueFull  = errors.New("eventlog queue full")
	ErrClosed     = errors.New("eventlog writer closed")
	ErrNotStarted = errors.New("eventlog writer not started")
)

// Sink persists session events. Append must not block the trading loop.
type Sink interface {
	Start(sessionID string) error
	Append(events []event.Event) error
	Close() error
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) Start(string) error         { return nil }
func (NopSink) Append([]event.Event) error { return nil }
func (NopSink) Close() error               { return nil }

// Writer appends events as JSON lines, one file per session, from a
// buffered queue drained by a single goroutine.
type Writer struct {
	dir       string
	queueSize int

	mu      sync.Mutex
	ch      chan []event.Event
	wg      sync.WaitGroup
	err     atomic.Value
	started uint32
	closed  uint32
}

// NewWriter stores sessions under dir/<sessionID>/events.jsonl.
func NewWriter(dir string, queueSize int) *Writer {
	if queueSize <= 0 {
		queueSize = 1024
	}
	return &Writer{dir: dir, queueSize: queueSize}
}

var _ Sink = (*Writer)(nil)

// Start opens the session file and launches the writer loop. A writer serves
// one session; Close before reusing.
func (w *Writer) Start(sessionID string) error {
	if !atomic.CompareAndSwapUint32(&w.started, 0, 1) {
		return errors.New("eventlog writer already started")
	}

	sessionDir := filepath.Join(w.dir, sessionID)
	if err := os.MkdirAll(sessionDir, 0o755); err != nil {
		return err
	}
	file, err := os.OpenFile(filepath.Join(sessionDir, "events.jsonl"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}

	w.ch = make(chan []event.Event, w.queueSize)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run(file)
	}()
	return nil
}

// Append enqueues a batch without blocking.
func (w *Writer) Append(events []event.Event) error {
	if len(events) == 0 {
		return nil
	}
	if atomic.LoadUint32(&w.closed) != 0 {
		return ErrClosed
	}
	if atomic.LoadUint32(&w.started) == 0 {
		return ErrNotStarted
	}
	if err := w.Err(); err != nil {
		return err
	}

	batch := append([]event.Event(nil), events...)
	select {
	case w.ch <- batch:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close flushes buffered lines and closes the session file.
func (w *Writer) Close() error {
	if atomic.LoadUint32(&w.started) == 0 {
		return nil
	}
	if atomic.CompareAndSwapUint32(&w.closed, 0, 1) {
		close(w.ch)
	}
	w.wg.Wait()
	return w.Err()
}

// Err returns the first write error observed by the loop, if any.
func (w *Writer) Err() error {
	if v := w.err.Load(); v != nil {
		return v.(error)
	}
	return nil
}

func (w *Writer) run(file *os.File) {
	writer := bufio.NewWriter(file)
	defer func() {
		if err := writer.Flush(); err != nil {
			w.setErr(err)
		}
		if err := file.Close(); err != nil {
			w.setErr(err)
		}
	}()

	for batch := range w.ch {
		for _, evt := range batch {
			line, err := sonic.ConfigFastest.Marshal(evt)
			if err != nil {
				w.setErr(err)
				continue
			}
			if _, err := writer.Write(line); err != nil {
				w.setErr(err)
				return
			}
			if err := writer.WriteByte('\n'); err != nil {
				w.setErr(err)
				return
			}
		}
		if err := writer.Flush(); err != nil {
			w.setErr(err)
			return
		}
	}
}

func (w *Writer) setErr(err error) {
	if w.err.CompareAndSwap(nil, err) {
		logs.Errorf("eventlog write failed, err: %+v", err)
	}
}
