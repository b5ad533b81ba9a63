package bus

import (
	"context"
	"time"

	"debatebot/internal/platform"
)

// Entry is a unit of pending work: a newly seen item waiting for a
// generated response. ConversationID is empty for new top-level posts.
type Entry struct {
	Item           platform.Item
	ConversationID string
	EnqueuedAt     time.Time
}

// ReplyEntry carries a generated reply waiting for publication.
type ReplyEntry struct {
	Entry
	Text string
}

// Bus holds the two work queues connecting the loops: scanner/monitor feed
// Pending, the generator feeds Replies, the publisher drains Replies. Each
// entry is consumed by exactly one receiver.
type Bus struct {
	Pending chan Entry
	Replies chan ReplyEntry
}

func New(bufSize int) *Bus {
	return &Bus{
		Pending: make(chan Entry, bufSize),
		Replies: make(chan ReplyEntry, bufSize),
	}
}

// EnqueuePending adds an entry without blocking. It reports false when the
// queue is full; callers treat that as backpressure and drop the entry.
func (b *Bus) EnqueuePending(e Entry) bool {
	select {
	case b.Pending <- e:
		return true
	default:
		return false
	}
}

// DequeuePending waits for the next pending entry or context cancellation.
func (b *Bus) DequeuePending(ctx context.Context) (Entry, bool) {
	select {
	case e := <-b.Pending:
		return e, true
	case <-ctx.Done():
		return Entry{}, false
	}
}

// EnqueueReply blocks until the publisher accepts the entry or the context
// is cancelled.
func (b *Bus) EnqueueReply(ctx context.Context, e ReplyEntry) bool {
	select {
	case b.Replies <- e:
		return true
	case <-ctx.Done():
		return false
	}
}

// DequeueReply waits for the next generated reply or context cancellation.
func (b *Bus) DequeueReply(ctx context.Context) (ReplyEntry, bool) {
	select {
	case e := <-b.Replies:
		return e, true
	case <-ctx.Done():
		return ReplyEntry{}, false
	}
}
