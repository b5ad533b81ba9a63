package agent

import (
	"context"
	"log"
	"sort"
	"strings"
	"time"

	"debatebot/internal/bus"
	"debatebot/internal/convo"
	"debatebot/internal/platform"
	"debatebot/internal/store"
)

// Monitor polls each active conversation's thread for new replies directed
// at the bot and retires conversations that have gone idle.
type Monitor struct {
	platform platform.Client
	store    *store.Store
	tracker  *convo.Tracker
	bus      *bus.Bus
	botUser  string
	now      func() time.Time
}

func NewMonitor(client platform.Client, st *store.Store, tracker *convo.Tracker, b *bus.Bus, botUser string) *Monitor {
	return &Monitor{
		platform: client,
		store:    st,
		tracker:  tracker,
		bus:      b,
		botUser:  botUser,
		now:      time.Now,
	}
}

// Poll runs one cycle over the active set. Replies are enqueued in
// ascending creation order so turns within a conversation stay stable.
func (m *Monitor) Poll(ctx context.Context) {
	for _, conv := range m.tracker.Active() {
		replies, err := m.platform.FetchReplies(ctx, conv.RootID, conv.LastActivity)
		if err != nil {
			log.Printf("[monitor] fetch replies for %s failed: %v", conv.RootID, err)
			continue
		}

		sort.Slice(replies, func(i, j int) bool {
			return replies[i].CreatedAt.Before(replies[j].CreatedAt)
		})

		for _, reply := range replies {
			if strings.EqualFold(reply.Author, m.botUser) {
				continue
			}
			if known, err := m.store.Exists(reply.ID); err != nil || known {
				if err != nil {
					log.Printf("[monitor] exists check %s: %v", reply.ID, err)
				}
				continue
			}
			fresh, err := m.store.RecordSeen(reply)
			if err != nil {
				log.Printf("[monitor] record seen %s: %v", reply.ID, err)
				continue
			}
			if !fresh {
				continue
			}

			turn := convo.Turn{Speaker: convo.SpeakerUser, Text: reply.Body, At: reply.CreatedAt}
			if err := m.tracker.AppendTurn(conv.RootID, turn); err != nil {
				log.Printf("[monitor] append turn %s: %v", conv.RootID, err)
				continue
			}
			if err := m.store.SaveTurn(conv.RootID, string(convo.SpeakerUser), reply.Body, reply.CreatedAt); err != nil {
				log.Printf("[monitor] save turn %s: %v", conv.RootID, err)
			}

			entry := bus.Entry{Item: reply, ConversationID: conv.RootID, EnqueuedAt: m.now()}
			if !m.bus.EnqueuePending(entry) {
				log.Printf("[monitor] queue full, dropping reply %s", reply.ID)
				continue
			}
			if err := m.store.MarkQueued(reply.ID); err != nil {
				log.Printf("[monitor] mark queued %s: %v", reply.ID, err)
			}
			log.Printf("[monitor] reply %s from %s in %s", reply.ID, reply.Author, conv.RootID)
		}
	}

	for _, rootID := range m.tracker.CloseIdle(m.now()) {
		log.Printf("[monitor] conversation %s idle-closed", rootID)
	}
}
