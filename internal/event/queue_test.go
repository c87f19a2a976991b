package event

import (
	"context"
	"testing"
)

func TestQueuePublishAndRun(t *testing.T) {
	q := NewQueue(2)
	if err := q.TryPublish([]byte("a")); err != nil {
		t.Fatalf("unexpected error: %+v", err)
	}
	if err := q.TryPublish([]byte("b")); err != nil {
		t.Fatalf("unexpected error: %+v", err)
	}
	if err := q.TryPublish([]byte("c")); err != ErrQueueFull {
		t.Fatalf("error mismatch! should be ErrQueueFull but got %+v", err)
	}

	q.Close()
	if err := q.TryPublish([]byte("d")); err != ErrQueueClosed {
		t.Fatalf("error mismatch! should be ErrQueueClosed but got %+v", err)
	}

	// buffered frames still drain after close
	var got []string
	q.Run(context.Background(), func(frame []byte) {
		got = append(got, string(frame))
	})
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("drain mismatch! got %v", got)
	}
}

func TestQueueRunStopsOnContext(t *testing.T) {
	q := NewQueue(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		q.Run(ctx, func([]byte) { t.Error("handler must not run") })
		close(done)
	}()
	<-done
}
