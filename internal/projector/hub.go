package projector

import (
	"context"
	"sync"

	"waterlog/internal/core"
	"waterlog/internal/store"
)

// Hub multiplexes one store watch per user across any number of live
// viewers. The underlying watch starts with the first subscriber and is
// torn down when the last one detaches, so idle users cost nothing.
type Hub struct {
	watcher store.RecordWatcher

	mu      sync.Mutex
	entries map[string]*hubEntry
}

type hubEntry struct {
	refs        int
	cancelWatch func()
	subscribers map[int]chan core.DailyRecord
	nextID      int
}

func NewHub(watcher store.RecordWatcher) *Hub {
	return &Hub{
		watcher: watcher,
		entries: make(map[string]*hubEntry),
	}
}

// Subscribe attaches a viewer to a user's record updates. The returned
// cancel func detaches it; calling it more than once is harmless.
func (h *Hub) Subscribe(ctx context.Context, userID string) (<-chan core.DailyRecord, func(), error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	entry := h.entries[userID]
	if entry == nil {
		watchCh, cancelWatch, err := h.watcher.WatchRecords(context.WithoutCancel(ctx), userID)
		if err != nil {
			return nil, nil, err
		}
		entry = &hubEntry{
			cancelWatch: cancelWatch,
			subscribers: make(map[int]chan core.DailyRecord),
		}
		h.entries[userID] = entry
		go h.fanOut(userID, watchCh)
	}

	id := entry.nextID
	entry.nextID++
	ch := make(chan core.DailyRecord, 8)
	entry.subscribers[id] = ch
	entry.refs++

	var once sync.Once
	cancel := func() {
		once.Do(func() { h.unsubscribe(userID, id) })
	}

	if ctx != nil && ctx.Done() != nil {
		go func() {
			<-ctx.Done()
			cancel()
		}()
	}

	return ch, cancel, nil
}

// Subscribers reports the active viewer count for a user.
func (h *Hub) Subscribers(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if entry := h.entries[userID]; entry != nil {
		return entry.refs
	}
	return 0
}

func (h *Hub) unsubscribe(userID string, id int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	entry := h.entries[userID]
	if entry == nil {
		return
	}
	if ch, ok := entry.subscribers[id]; ok {
		delete(entry.subscribers, id)
		close(ch)
		entry.refs--
	}
	if entry.refs == 0 {
		entry.cancelWatch()
		delete(h.entries, userID)
	}
}

func (h *Hub) fanOut(userID string, watchCh <-chan core.DailyRecord) {
	for rec := range watchCh {
		h.mu.Lock()
		entry := h.entries[userID]
		if entry == nil {
			h.mu.Unlock()
			return
		}
		for _, ch := range entry.subscribers {
			select {
			case ch <- rec:
			default:
				// Slow viewers miss intermediate updates; the next
				// write carries the full record anyway.
			}
		}
		h.mu.Unlock()
	}
}
