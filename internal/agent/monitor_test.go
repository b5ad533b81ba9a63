package agent

import (
	"context"
	"testing"
	"time"

	"debatebot/internal/bus"
	"debatebot/internal/convo"
	"debatebot/internal/platform"
)

func TestMonitor_EnqueuesQualifyingReplies(t *testing.T) {
	st := newTestStore(t)
	tracker := convo.NewTracker(5, time.Hour)
	b := bus.New(10)
	base := time.Now()

	if err := tracker.Activate("t3_root", convo.Turn{Speaker: convo.SpeakerAgent, Text: "opening", At: base}); err != nil {
		t.Fatalf("Activate error: %v", err)
	}

	client := &fakePlatform{
		fetchRepl: func(threadID string, since time.Time) ([]platform.Item, error) {
			if threadID != "t3_root" {
				t.Errorf("threadID = %q, want t3_root", threadID)
			}
			return []platform.Item{
				// Out of order on purpose: the monitor sorts ascending.
				comment("t1_later", "t3_root", "carol", "second reply", base.Add(2*time.Minute)),
				comment("t1_early", "t3_root", "carol", "first reply", base.Add(time.Minute)),
				comment("t1_self", "t3_root", "BotUser", "own comment", base.Add(3*time.Minute)),
			}, nil
		},
	}

	m := NewMonitor(client, st, tracker, b, "botuser")
	m.Poll(context.Background())

	if got := len(b.Pending); got != 2 {
		t.Fatalf("pending = %d, want 2 (own comment filtered)", got)
	}
	first, _ := b.DequeuePending(context.Background())
	second, _ := b.DequeuePending(context.Background())
	if first.Item.ID != "t1_early" || second.Item.ID != "t1_later" {
		t.Errorf("order = %s, %s; want t1_early, t1_later", first.Item.ID, second.Item.ID)
	}
	if first.ConversationID != "t3_root" {
		t.Errorf("conversation ID = %q, want t3_root", first.ConversationID)
	}

	conv, ok := tracker.Lookup("t3_root")
	if !ok {
		t.Fatal("conversation should still be active")
	}
	// Opening turn plus the two user replies.
	if len(conv.Turns) != 3 {
		t.Fatalf("turns = %d, want 3", len(conv.Turns))
	}
	if conv.Turns[1].Speaker != convo.SpeakerUser || conv.Turns[1].Text != "first reply" {
		t.Errorf("turn[1] = %+v, want user first reply", conv.Turns[1])
	}

	n, err := st.TurnCount("t3_root")
	if err != nil {
		t.Fatalf("TurnCount error: %v", err)
	}
	if n != 2 {
		t.Errorf("persisted turns = %d, want 2", n)
	}
}

func TestMonitor_RepollSkipsKnownReplies(t *testing.T) {
	st := newTestStore(t)
	tracker := convo.NewTracker(5, time.Hour)
	b := bus.New(10)
	base := time.Now()

	if err := tracker.Activate("t3_root"); err != nil {
		t.Fatalf("Activate error: %v", err)
	}

	client := &fakePlatform{
		fetchRepl: func(threadID string, since time.Time) ([]platform.Item, error) {
			return []platform.Item{
				comment("t1_a", "t3_root", "carol", "a reply", base.Add(time.Minute)),
			}, nil
		},
	}

	m := NewMonitor(client, st, tracker, b, "botuser")
	m.Poll(context.Background())
	m.Poll(context.Background())

	if got := len(b.Pending); got != 1 {
		t.Errorf("pending = %d, want 1 (second poll should skip the known reply)", got)
	}
}

func TestMonitor_ClosesIdleConversations(t *testing.T) {
	st := newTestStore(t)
	tracker := convo.NewTracker(1, 10*time.Minute)
	b := bus.New(10)
	base := time.Now()

	if err := tracker.Activate("t3_root", convo.Turn{Speaker: convo.SpeakerAgent, Text: "opening", At: base}); err != nil {
		t.Fatalf("Activate error: %v", err)
	}

	m := NewMonitor(&fakePlatform{}, st, tracker, b, "botuser")
	m.now = func() time.Time { return base.Add(11 * time.Minute) }
	m.Poll(context.Background())

	if n := tracker.ActiveCount(); n != 0 {
		t.Errorf("active = %d, want 0 after idle close", n)
	}
	if err := tracker.Activate("t3_root"); err != convo.ErrClosed {
		t.Errorf("re-activate err = %v, want ErrClosed", err)
	}
}
