// Package notify delivers operational events to an operator channel.
package notify

// Notifier receives short operational messages. Implementations must never
// block the write path; delivery failures are logged, not returned.
type Notifier interface {
	Notify(text string)
}

// Nop discards every notification. Used when no channel is configured.
type Nop struct{}

func (Nop) Notify(string) {}
