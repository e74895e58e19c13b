package bus

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestTryPublishFull(t *testing.T) {
	b := New(1)
	defer b.Close()

	if err := b.TryPublish(Signal{Kind: KindFillRecorded}); err != nil {
		t.Fatalf("first publish: %v", err)
	}
	if err := b.TryPublish(Signal{Kind: KindFillRecorded}); err != ErrBusFull {
		t.Fatalf("expected ErrBusFull, got %v", err)
	}
}

func TestPublishAfterClose(t *testing.T) {
	b := New(4)
	b.Close()
	if err := b.TryPublish(Signal{Kind: KindPauseTrading}); err != ErrBusClosed {
		t.Fatalf("expected ErrBusClosed, got %v", err)
	}
	// Closing twice must not panic.
	b.Close()
}

func TestCloseDuringPublish(t *testing.T) {
	b := New(4)

	// Publishers racing Close must get ErrBusClosed, never a send on a
	// closed channel.
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				_ = b.TryPublish(Signal{Kind: KindFillRecorded})
			}
		}()
	}
	b.Close()
	wg.Wait()

	if err := b.TryPublish(Signal{Kind: KindFillRecorded}); err != ErrBusClosed {
		t.Fatalf("expected ErrBusClosed, got %v", err)
	}
}

func TestRunDeliversInOrder(t *testing.T) {
	b := New(8)
	kinds := []Kind{KindFillRecorded, KindPauseTrading, KindResumeTrading}
	for _, k := range kinds {
		if err := b.TryPublish(Signal{Kind: k}); err != nil {
			t.Fatalf("publish %v: %v", k, err)
		}
	}
	b.Close()

	got := make([]Kind, 0, len(kinds))
	done := make(chan struct{})
	go func() {
		defer close(done)
		b.Run(context.Background(), func(s Signal) {
			got = append(got, s.Kind)
		})
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("run did not drain")
	}
	if len(got) != len(kinds) {
		t.Fatalf("expected %d signals, got %d", len(kinds), len(got))
	}
	for i, k := range kinds {
		if got[i] != k {
			t.Fatalf("signal %d: expected %v, got %v", i, k, got[i])
		}
	}
}

func TestRunStopsOnContext(t *testing.T) {
	b := New(1)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		b.Run(ctx, func(Signal) {})
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("run did not stop on context cancel")
	}
}
