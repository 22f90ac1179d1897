package memory

import "sync"

// feed fans committed snapshots out to subscribers. Each subscriber holds at
// most one pending snapshot; a newer snapshot replaces an unread one.
type feed struct {
	mu   sync.Mutex
	subs map[chan Snapshot]struct{}
}

func newFeed() *feed {
	return &feed{subs: make(map[chan Snapshot]struct{})}
}

func (f *feed) add(initial Snapshot) chan Snapshot {
	ch := make(chan Snapshot, 1)
	ch <- initial
	f.mu.Lock()
	f.subs[ch] = struct{}{}
	f.mu.Unlock()
	return ch
}

func (f *feed) remove(ch chan Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.subs[ch]; !ok {
		return
	}
	delete(f.subs, ch)
	close(ch)
}

func (f *feed) publish(s Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subs {
		next := s.Clone()
		select {
		case ch <- next:
			continue
		default:
		}
		// drop the stale snapshot; publish is the only sender
		select {
		case <-ch:
		default:
		}
		ch <- next
	}
}

func (f *feed) size() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}
