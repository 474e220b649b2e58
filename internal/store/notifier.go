package store

import (
	"context"
	"sync"

	"waterlog/internal/core"
)

// Notifier is the in-process change feed backends use to implement
// RecordWatcher. Writes in this system only happen through the owning
// process, so an in-memory broadcast is sufficient.
type Notifier struct {
	mu       sync.Mutex
	nextID   int
	watchers map[string]map[int]chan core.DailyRecord
}

func NewNotifier() *Notifier {
	return &Notifier{watchers: make(map[string]map[int]chan core.DailyRecord)}
}

// Watch registers a new listener for one user's record updates. The
// cancel func unregisters it and closes the channel.
func (n *Notifier) Watch(ctx context.Context, userID string) (<-chan core.DailyRecord, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.watchers[userID] == nil {
		n.watchers[userID] = make(map[int]chan core.DailyRecord)
	}
	id := n.nextID
	n.nextID++

	ch := make(chan core.DailyRecord, 16)
	n.watchers[userID][id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			if m := n.watchers[userID]; m != nil {
				delete(m, id)
				if len(m) == 0 {
					delete(n.watchers, userID)
				}
			}
			close(ch)
		})
	}

	if ctx != nil && ctx.Done() != nil {
		go func() {
			<-ctx.Done()
			cancel()
		}()
	}

	return ch, cancel
}

// Notify fans an updated record out to that user's watchers. Slow
// listeners drop updates instead of blocking the writer.
func (n *Notifier) Notify(userID string, rec core.DailyRecord) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for _, ch := range n.watchers[userID] {
		select {
		case ch <- rec:
		default:
		}
	}
}

// WatcherCount reports active watchers for a user.
func (n *Notifier) WatcherCount(userID string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.watchers[userID])
}
