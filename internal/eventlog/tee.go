package eventlog

import (
	"github.com/yanun0323/logs"

	"main/internal/event"
)

// Tee fans batches out to several sinks. Append keeps going on sink errors so
// a failing archive never silences the JSONL log.
type Tee []Sink

var _ Sink = (Tee)(nil)

func (t Tee) Start(sessionID string) error {
	for _, sink := range t {
		if err := sink.Start(sessionID); err != nil {
			return err
		}
	}
	return nil
}

func (t Tee) Append(events []event.Event) error {
	var first error
	for _, sink := range t {
		if err := sink.Append(events); err != nil {
			logs.Errorf("event sink append failed, err: %+v", err)
			if first == nil {
				first = err
			}
		}
	}
	return first
}

func (t Tee) Close() error {
	var first error
	for _, sink := range t {
		if err := sink.Close(); err != nil {
			if first == nil {
				first = err
			}
		}
	}
	return first
}
