package agent

import (
	"context"
	"log"
	"time"

	"debatebot/internal/bus"
	"debatebot/internal/convo"
	"debatebot/internal/platform"
	"debatebot/internal/store"
)

// Scanner polls the subreddit for new top-level posts and enqueues the
// ones that can still start a conversation.
type Scanner struct {
	platform platform.Client
	store    *store.Store
	tracker  *convo.Tracker
	bus      *bus.Bus
	source   string
	limit    int
}

func NewScanner(client platform.Client, st *store.Store, tracker *convo.Tracker, b *bus.Bus, source string, limit int) *Scanner {
	return &Scanner{
		platform: client,
		store:    st,
		tracker:  tracker,
		bus:      b,
		source:   source,
		limit:    limit,
	}
}

// Scan runs one cycle. Fetch failures skip the cycle; per-item store
// errors skip that item, leaving it to be picked up again next cycle since
// its seen record was never confirmed.
func (s *Scanner) Scan(ctx context.Context) {
	items, err := s.platform.FetchNewItems(ctx, s.source, s.limit)
	if err != nil {
		log.Printf("[scanner] fetch failed, skipping cycle: %v", err)
		return
	}

	var enqueued int
	for _, item := range items {
		fresh, err := s.store.RecordSeen(item)
		if err != nil {
			log.Printf("[scanner] record seen %s: %v", item.ID, err)
			continue
		}
		if !fresh {
			continue
		}

		// Full capacity drops the item for good: it stays recorded as
		// seen, so later cycles never pick it up again.
		if !s.tracker.HasCapacity() {
			log.Printf("[scanner] capacity full, dropping %s", item.ID)
			continue
		}

		entry := bus.Entry{Item: item, EnqueuedAt: time.Now()}
		if !s.bus.EnqueuePending(entry) {
			log.Printf("[scanner] queue full, dropping %s", item.ID)
			continue
		}
		if err := s.store.MarkQueued(item.ID); err != nil {
			log.Printf("[scanner] mark queued %s: %v", item.ID, err)
		}
		enqueued++
		log.Printf("[scanner] new post %s by %s: %s", item.ID, item.Author, truncate(item.Title, 80))
	}

	if enqueued == 0 {
		log.Printf("[scanner] no new posts this cycle")
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
