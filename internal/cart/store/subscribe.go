package store

import (
	"sync"

	"github.com/giftsbydivi/gifts-by-divi-sub000/internal/cart"
)

// Subscribe returns a channel that always holds the newest snapshot, starting with the current one. A slow reader
// skips intermediate versions instead of blocking writers. The returned func cancels the subscription and closes
// the channel.
func (s *Store) Subscribe() (<-chan cart.Snapshot, func()) {
	ch := make(chan cart.Snapshot, 1)

	s.subMu.Lock()
	if s.closed {
		s.subMu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	ch <- s.Snapshot()
	s.subMu.Unlock()

	return ch, sync.OnceFunc(func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if sub, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(sub)
		}
	})
}

// Close ends every subscription. Mutations keep working; they are just no longer broadcast.
func (s *Store) Close() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.closed = true
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}

func (s *Store) broadcast(snapshot cart.Snapshot) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		offer(ch, cart.NewSnapshot(snapshot.Items, snapshot.Version))
	}
}

// offer replaces whatever ch holds with snapshot. Only broadcast sends, under subMu, so the loop ends after at
// most one drain.
func offer(ch chan cart.Snapshot, snapshot cart.Snapshot) {
	for {
		select {
		case ch <- snapshot:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
