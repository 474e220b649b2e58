package projector

import (
	"context"
	"testing"
	"time"

	"waterlog/internal/core"
	"waterlog/internal/store"
)

// countingWatcher wraps a Notifier and records how many upstream watches
// are live, to verify the hub shares one watch across viewers.
type countingWatcher struct {
	notifier *store.Notifier
	active   int
}

func (w *countingWatcher) WatchRecords(ctx context.Context, userID string) (<-chan core.DailyRecord, func(), error) {
	ch, cancel := w.notifier.Watch(ctx, userID)
	w.active++
	return ch, func() {
		w.active--
		cancel()
	}, nil
}

func TestHubSharesOneWatch(t *testing.T) {
	w := &countingWatcher{notifier: store.NewNotifier()}
	hub := NewHub(w)
	ctx := context.Background()

	ch1, cancel1, err := hub.Subscribe(ctx, "U1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	ch2, cancel2, err := hub.Subscribe(ctx, "U1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if w.active != 1 {
		t.Fatalf("expected one upstream watch, got %d", w.active)
	}
	if got := hub.Subscribers("U1"); got != 2 {
		t.Fatalf("subscriber count: %d", got)
	}

	rec := core.DailyRecord{DayKey: "2025-05-24", TotalDrank: 500}
	w.notifier.Notify("U1", rec)

	for i, ch := range []<-chan core.DailyRecord{ch1, ch2} {
		select {
		case got := <-ch:
			if got.TotalDrank != 500 {
				t.Fatalf("viewer %d: total %d", i, got.TotalDrank)
			}
		case <-time.After(time.Second):
			t.Fatalf("viewer %d: no update", i)
		}
	}

	cancel1()
	if w.active != 1 {
		t.Fatalf("watch must survive while a viewer remains, got %d", w.active)
	}
	cancel2()
	if w.active != 0 {
		t.Fatalf("last detach must tear down the watch, got %d", w.active)
	}
	if got := hub.Subscribers("U1"); got != 0 {
		t.Fatalf("subscriber count after teardown: %d", got)
	}
}

func TestHubResubscribeAfterTeardown(t *testing.T) {
	w := &countingWatcher{notifier: store.NewNotifier()}
	hub := NewHub(w)
	ctx := context.Background()

	_, cancel, err := hub.Subscribe(ctx, "U1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	cancel()
	cancel() // double cancel is a no-op

	ch, cancel2, err := hub.Subscribe(ctx, "U1")
	if err != nil {
		t.Fatalf("resubscribe: %v", err)
	}
	defer cancel2()

	if w.active != 1 {
		t.Fatalf("expected a fresh upstream watch, got %d", w.active)
	}

	w.notifier.Notify("U1", core.DailyRecord{DayKey: "2025-05-24", TotalDrank: 100})
	select {
	case got := <-ch:
		if got.TotalDrank != 100 {
			t.Fatalf("got %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatalf("no update after resubscribe")
	}
}

func TestHubContextDetach(t *testing.T) {
	w := &countingWatcher{notifier: store.NewNotifier()}
	hub := NewHub(w)

	ctx, cancelCtx := context.WithCancel(context.Background())
	if _, _, err := hub.Subscribe(ctx, "U1"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	cancelCtx()

	deadline := time.Now().Add(time.Second)
	for hub.Subscribers("U1") != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("viewer not detached after context cancel")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
