package store

import (
	"context"
	"testing"
	"time"

	"waterlog/internal/core"
)

func TestNotifierFanOut(t *testing.T) {
	n := NewNotifier()

	ch1, cancel1 := n.Watch(context.Background(), "U1")
	ch2, cancel2 := n.Watch(context.Background(), "U1")
	defer cancel1()
	defer cancel2()

	rec := core.DailyRecord{DayKey: "2025-05-24", TotalDrank: 300}
	n.Notify("U1", rec)

	for i, ch := range []<-chan core.DailyRecord{ch1, ch2} {
		select {
		case got := <-ch:
			if got.TotalDrank != 300 {
				t.Fatalf("watcher %d: got total %d", i, got.TotalDrank)
			}
		case <-time.After(time.Second):
			t.Fatalf("watcher %d: no update received", i)
		}
	}
}

func TestNotifierScopedToUser(t *testing.T) {
	n := NewNotifier()

	ch, cancel := n.Watch(context.Background(), "U1")
	defer cancel()

	n.Notify("U2", core.DailyRecord{DayKey: "2025-05-24", TotalDrank: 100})

	select {
	case rec := <-ch:
		t.Fatalf("unexpected update for other user: %+v", rec)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestNotifierCancelReleasesWatcher(t *testing.T) {
	n := NewNotifier()

	ch, cancel := n.Watch(context.Background(), "U1")
	if got := n.WatcherCount("U1"); got != 1 {
		t.Fatalf("count before cancel: %d", got)
	}

	cancel()
	cancel() // second cancel is a no-op

	if got := n.WatcherCount("U1"); got != 0 {
		t.Fatalf("count after cancel: %d", got)
	}
	if _, open := <-ch; open {
		t.Fatalf("channel should be closed after cancel")
	}
}

func TestNotifierContextCancel(t *testing.T) {
	n := NewNotifier()

	ctx, cancelCtx := context.WithCancel(context.Background())
	_, cancel := n.Watch(ctx, "U1")
	defer cancel()

	cancelCtx()

	deadline := time.Now().Add(time.Second)
	for n.WatcherCount("U1") != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("watcher not released after context cancel")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
