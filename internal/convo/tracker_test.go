package convo

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestTracker_CapacityLimit(t *testing.T) {
	tr := NewTracker(2, time.Hour)

	if err := tr.Activate("t3_a"); err != nil {
		t.Fatalf("Activate t3_a error: %v", err)
	}
	if err := tr.Activate("t3_b"); err != nil {
		t.Fatalf("Activate t3_b error: %v", err)
	}

	err := tr.Activate("t3_c")
	if !errors.Is(err, ErrCapacity) {
		t.Errorf("err = %v, want ErrCapacity", err)
	}
	if tr.HasCapacity() {
		t.Error("HasCapacity should be false at the limit")
	}
	if n := tr.ActiveCount(); n != 2 {
		t.Errorf("active count = %d, want 2", n)
	}
}

func TestTracker_ActivateIdempotent(t *testing.T) {
	tr := NewTracker(1, time.Hour)

	if err := tr.Activate("t3_a"); err != nil {
		t.Fatalf("Activate error: %v", err)
	}
	// Re-activating an active conversation does not consume another slot.
	if err := tr.Activate("t3_a"); err != nil {
		t.Errorf("second Activate error: %v", err)
	}
	if n := tr.ActiveCount(); n != 1 {
		t.Errorf("active count = %d, want 1", n)
	}
}

func TestTracker_ConcurrentActivations(t *testing.T) {
	const max = 5
	tr := NewTracker(max, time.Hour)

	var wg sync.WaitGroup
	errs := make([]error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = tr.Activate(string(rune('a' + i)))
		}(i)
	}
	wg.Wait()

	var ok, full int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrCapacity):
			full++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != max {
		t.Errorf("successful activations = %d, want %d", ok, max)
	}
	if full != 20-max {
		t.Errorf("capacity rejections = %d, want %d", full, 20-max)
	}
	if n := tr.ActiveCount(); n != max {
		t.Errorf("active count = %d, want %d", n, max)
	}
}

func TestTracker_CloseIdle(t *testing.T) {
	tr := NewTracker(1, 10*time.Minute)
	base := time.Now()
	tr.now = func() time.Time { return base }

	if err := tr.Activate("t3_a"); err != nil {
		t.Fatalf("Activate error: %v", err)
	}

	// Still within the timeout: nothing closes.
	if closed := tr.CloseIdle(base.Add(5 * time.Minute)); len(closed) != 0 {
		t.Errorf("closed = %v, want none", closed)
	}

	closed := tr.CloseIdle(base.Add(11 * time.Minute))
	if len(closed) != 1 || closed[0] != "t3_a" {
		t.Fatalf("closed = %v, want [t3_a]", closed)
	}

	// The freed slot is reusable for a different conversation.
	if err := tr.Activate("t3_b"); err != nil {
		t.Errorf("Activate after close error: %v", err)
	}

	// Idle-closed is terminal: the old root never comes back.
	if err := tr.AppendTurn("t3_a", Turn{Speaker: SpeakerUser, Text: "x", At: base}); !errors.Is(err, ErrClosed) {
		t.Errorf("AppendTurn err = %v, want ErrClosed", err)
	}
	tr.Deactivate("t3_b")
	if err := tr.Activate("t3_a"); !errors.Is(err, ErrClosed) {
		t.Errorf("Activate err = %v, want ErrClosed", err)
	}
}

func TestTracker_AppendTurn(t *testing.T) {
	tr := NewTracker(1, time.Hour)
	base := time.Now()

	err := tr.AppendTurn("t3_a", Turn{Speaker: SpeakerUser, Text: "x", At: base})
	if !errors.Is(err, ErrUnknown) {
		t.Fatalf("err = %v, want ErrUnknown", err)
	}

	if err := tr.Activate("t3_a", Turn{Speaker: SpeakerAgent, Text: "opening", At: base}); err != nil {
		t.Fatalf("Activate error: %v", err)
	}
	if err := tr.AppendTurn("t3_a", Turn{Speaker: SpeakerUser, Text: "reply", At: base.Add(time.Minute)}); err != nil {
		t.Fatalf("AppendTurn error: %v", err)
	}

	c, ok := tr.Lookup("t3_a")
	if !ok {
		t.Fatal("Lookup should find active conversation")
	}
	if len(c.Turns) != 2 {
		t.Fatalf("turns = %d, want 2", len(c.Turns))
	}
	if c.Turns[0].Speaker != SpeakerAgent || c.Turns[1].Speaker != SpeakerUser {
		t.Errorf("speakers = %s, %s; want agent, user", c.Turns[0].Speaker, c.Turns[1].Speaker)
	}
	if !c.LastActivity.Equal(base.Add(time.Minute)) {
		t.Errorf("last activity = %v, want %v", c.LastActivity, base.Add(time.Minute))
	}
}

func TestTracker_DeactivateFreesSlot(t *testing.T) {
	tr := NewTracker(1, time.Hour)

	if err := tr.Activate("t3_a"); err != nil {
		t.Fatalf("Activate error: %v", err)
	}
	tr.Deactivate("t3_a")

	if n := tr.ActiveCount(); n != 0 {
		t.Errorf("active count = %d, want 0", n)
	}
	// Deactivate is not terminal: the conversation may start again later.
	if err := tr.Activate("t3_a"); err != nil {
		t.Errorf("re-Activate error: %v", err)
	}
}

func TestTracker_ActiveSnapshot(t *testing.T) {
	tr := NewTracker(3, time.Hour)
	for _, id := range []string{"t3_c", "t3_a", "t3_b"} {
		if err := tr.Activate(id); err != nil {
			t.Fatalf("Activate %s error: %v", id, err)
		}
	}

	active := tr.Active()
	if len(active) != 3 {
		t.Fatalf("len = %d, want 3", len(active))
	}
	want := []string{"t3_a", "t3_b", "t3_c"}
	for i, c := range active {
		if c.RootID != want[i] {
			t.Errorf("active[%d] = %s, want %s", i, c.RootID, want[i])
		}
	}

	// Mutating the snapshot must not leak into tracker state.
	active[0].Turns = append(active[0].Turns, Turn{Speaker: SpeakerUser, Text: "x"})
	c, _ := tr.Lookup("t3_a")
	if len(c.Turns) != 0 {
		t.Errorf("turns = %d, want 0 after snapshot mutation", len(c.Turns))
	}
}
