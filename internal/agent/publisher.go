package agent

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"debatebot/internal/bus"
	"debatebot/internal/convo"
	"debatebot/internal/notify"
	"debatebot/internal/platform"
	"debatebot/internal/store"
	"debatebot/internal/throttle"
)

// Publisher drains generated replies, applies the outbound throttle, and
// submits them to the platform.
type Publisher struct {
	platform platform.Client
	store    *store.Store
	tracker  *convo.Tracker
	limiter  *throttle.Limiter
	bus      *bus.Bus
	notifier notify.Notifier
	now      func() time.Time
}

func NewPublisher(client platform.Client, st *store.Store, tracker *convo.Tracker, limiter *throttle.Limiter, b *bus.Bus, notifier notify.Notifier) *Publisher {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Publisher{
		platform: client,
		store:    st,
		tracker:  tracker,
		limiter:  limiter,
		bus:      b,
		notifier: notifier,
		now:      time.Now,
	}
}

// Run consumes the reply queue until the context is cancelled.
func (p *Publisher) Run(ctx context.Context) {
	for {
		entry, ok := p.bus.DequeueReply(ctx)
		if !ok {
			return
		}
		p.publish(ctx, entry)
	}
}

func (p *Publisher) publish(ctx context.Context, entry bus.ReplyEntry) {
	newRoot := entry.ConversationID == ""

	if newRoot {
		// Take the slot before posting anything. Capacity may have filled
		// while the reply was being generated; in that case the computed
		// reply is discarded and the item fails with reason "capacity".
		if err := p.tracker.Activate(entry.Item.ID); err != nil {
			if errors.Is(err, convo.ErrCapacity) {
				log.Printf("[publisher] capacity full, discarding reply for %s", entry.Item.ID)
				p.recordFailure(entry.Item.ID, "capacity")
				return
			}
			log.Printf("[publisher] activate %s: %v", entry.Item.ID, err)
			p.recordFailure(entry.Item.ID, "activation: "+err.Error())
			return
		}
	}

	// The only intended blocking point on the write path.
	if err := p.limiter.Acquire(ctx); err != nil {
		if newRoot {
			p.tracker.Deactivate(entry.Item.ID)
		}
		p.recordFailure(entry.Item.ID, "shutdown before submit")
		return
	}

	commentID, err := p.platform.SubmitReply(ctx, entry.Item.ID, entry.Text)
	if err != nil {
		// No retry: a stale reply risks duplicate or out-of-context posts.
		if newRoot {
			p.tracker.Deactivate(entry.Item.ID)
		}
		log.Printf("[publisher] submit for %s failed: %v", entry.Item.ID, err)
		p.recordFailure(entry.Item.ID, "submission: "+err.Error())
		p.notifier.Notify(fmt.Sprintf("submit failed for %s: %v", entry.Item.ID, err))
		return
	}

	now := p.now()
	rootID := entry.ConversationID
	if newRoot {
		rootID = entry.Item.ID
	}

	turn := convo.Turn{Speaker: convo.SpeakerAgent, Text: entry.Text, At: now}
	if err := p.tracker.AppendTurn(rootID, turn); err != nil {
		log.Printf("[publisher] append turn %s: %v", rootID, err)
	}
	if err := p.store.SaveTurn(rootID, string(convo.SpeakerAgent), entry.Text, now); err != nil {
		log.Printf("[publisher] save turn %s: %v", rootID, err)
	}
	if err := p.store.SaveComment(rootID, commentID, entry.Text); err != nil {
		log.Printf("[publisher] save comment %s: %v", commentID, err)
	}
	if err := p.store.RecordResponse(entry.Item.ID, entry.Text, now); err != nil {
		log.Printf("[publisher] record response %s: %v", entry.Item.ID, err)
	}

	log.Printf("[publisher] replied to %s with %s", entry.Item.ID, commentID)
	p.notifier.Notify(fmt.Sprintf("replied to %s: %s", entry.Item.ID, truncate(entry.Text, 120)))
}

func (p *Publisher) recordFailure(itemID, reason string) {
	if err := p.store.RecordFailure(itemID, reason); err != nil {
		log.Printf("[publisher] record failure %s: %v", itemID, err)
	}
}
