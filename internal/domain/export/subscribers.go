package export

import (
	"sync"

	"github.com/target/mmk-export/internal/domain/model"
)

// Update is delivered to subscribers after every applied tick and on Start/Reset.
// Job is zero when the poller went idle.
type Update struct {
	JobID    string
	Job      model.ExportJob
	State    model.PollerState
	Snapshot model.ProgressSnapshot
	Outcome  Outcome
}

// subscribers fans updates out to buffered channels. A slow receiver only
// ever sees the most recent update.
type subscribers struct {
	mu   sync.Mutex
	subs map[chan Update]struct{}
}

func newSubscribers() *subscribers {
	return &subscribers{subs: make(map[chan Update]struct{})}
}

func (s *subscribers) subscribe() (func(), <-chan Update) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Update, 1)
	s.subs[ch] = struct{}{}

	unsub := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.subs[ch]; !ok {
			return
		}
		delete(s.subs, ch)
		drainAndClose(ch)
	}
	return unsub, ch
}

func (s *subscribers) broadcast(u Update) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for ch := range s.subs {
		select {
		case ch <- u:
			continue
		default:
		}
		// Replace the stale pending update.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- u:
		default:
		}
	}
}

func (s *subscribers) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for ch := range s.subs {
		drainAndClose(ch)
		delete(s.subs, ch)
	}
}

// drainAndClose removes any buffered update before closing the channel so
// receivers observe a closed channel immediately.
func drainAndClose(ch chan Update) {
	for {
		select {
		case <-ch:
		default:
			close(ch)
			return
		}
	}
}
