// Package convo tracks the bounded set of active multi-turn conversations.
package convo

import (
	"errors"
	"sort"
	"sync"
	"time"
)

var (
	// ErrCapacity is returned when activating a conversation would exceed
	// the configured maximum.
	ErrCapacity = errors.New("convo: capacity full")
	// ErrUnknown is returned for operations on a conversation that is not
	// active.
	ErrUnknown = errors.New("convo: unknown conversation")
	// ErrClosed is returned for operations on a retired conversation.
	// idle-closed is terminal.
	ErrClosed = errors.New("convo: conversation closed")
)

type Speaker string

const (
	SpeakerAgent Speaker = "agent"
	SpeakerUser  Speaker = "user"
)

type Turn struct {
	Speaker Speaker
	Text    string
	At      time.Time
}

// Conversation is one active exchange rooted at a top-level post.
type Conversation struct {
	RootID       string
	Turns        []Turn
	LastActivity time.Time
}

// Tracker owns the active-conversation set. All state mutates under one
// mutex: capacity checks and slot changes are atomic with respect to the
// scanner and reply monitor running concurrently.
type Tracker struct {
	mu          sync.Mutex
	max         int
	idleTimeout time.Duration
	active      map[string]*Conversation
	closed      map[string]bool
	now         func() time.Time
}

func NewTracker(max int, idleTimeout time.Duration) *Tracker {
	return &Tracker{
		max:         max,
		idleTimeout: idleTimeout,
		active:      make(map[string]*Conversation),
		closed:      make(map[string]bool),
		now:         time.Now,
	}
}

// HasCapacity reports whether a new conversation could start right now.
// Advisory only: the authoritative check happens in Activate.
func (t *Tracker) HasCapacity() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.active) < t.max
}

// ActiveCount returns the number of active conversations.
func (t *Tracker) ActiveCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.active)
}

// Activate transitions a conversation from none to active, atomically
// checking capacity. Returns ErrCapacity when the active set is full and
// ErrClosed when the root was already retired.
func (t *Tracker) Activate(rootID string, turns ...Turn) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed[rootID] {
		return ErrClosed
	}
	if _, ok := t.active[rootID]; ok {
		return nil
	}
	if len(t.active) >= t.max {
		return ErrCapacity
	}
	c := &Conversation{RootID: rootID, LastActivity: t.now()}
	for _, turn := range turns {
		c.Turns = append(c.Turns, turn)
		if turn.At.After(c.LastActivity) {
			c.LastActivity = turn.At
		}
	}
	t.active[rootID] = c
	return nil
}

// Deactivate removes a conversation without retiring it, releasing its
// slot. Used when the first publish fails after the slot was taken: the
// conversation returns to the none state.
func (t *Tracker) Deactivate(rootID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.active, rootID)
}

// AppendTurn is the only mutator of conversation history. It updates the
// conversation's last activity.
func (t *Tracker) AppendTurn(rootID string, turn Turn) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed[rootID] {
		return ErrClosed
	}
	c, ok := t.active[rootID]
	if !ok {
		return ErrUnknown
	}
	c.Turns = append(c.Turns, turn)
	if turn.At.After(c.LastActivity) {
		c.LastActivity = turn.At
	} else {
		c.LastActivity = t.now()
	}
	return nil
}

// Lookup returns a copy of the conversation if it is active.
func (t *Tracker) Lookup(rootID string) (Conversation, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	c, ok := t.active[rootID]
	if !ok {
		return Conversation{}, false
	}
	return snapshot(c), true
}

// Active returns a stable-ordered snapshot of all active conversations.
func (t *Tracker) Active() []Conversation {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Conversation, 0, len(t.active))
	for _, c := range t.active {
		out = append(out, snapshot(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RootID < out[j].RootID })
	return out
}

// CloseIdle retires every conversation whose last activity is older than
// the idle timeout and returns their root IDs. Freed slots are available
// immediately.
func (t *Tracker) CloseIdle(now time.Time) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var closed []string
	for id, c := range t.active {
		if now.Sub(c.LastActivity) > t.idleTimeout {
			delete(t.active, id)
			t.closed[id] = true
			closed = append(closed, id)
		}
	}
	sort.Strings(closed)
	return closed
}

func snapshot(c *Conversation) Conversation {
	out := Conversation{RootID: c.RootID, LastActivity: c.LastActivity}
	out.Turns = append(out.Turns, c.Turns...)
	return out
}
