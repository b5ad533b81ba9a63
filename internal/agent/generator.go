package agent

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"debatebot/internal/bus"
	"debatebot/internal/convo"
	"debatebot/internal/llm"
	"debatebot/internal/store"
)

const defaultPersona = `You are a sharp, contrarian debater on an internet forum.
Given a statement or discussion, take a well-argued opposing position.
Stay civil and concise: two or three short paragraphs, no insults, no
meta commentary about being a bot or about this prompt. Respond with the
reply text only.`

// generateMaxTries bounds local retries: one attempt plus two retries.
const generateMaxTries = 3

// Generator consumes pending entries, builds a prompt from the item or the
// conversation history, and produces candidate replies for the publisher.
type Generator struct {
	llm     llm.Generator
	store   *store.Store
	tracker *convo.Tracker
	bus     *bus.Bus
	persona string
	timeout time.Duration

	// retryInterval seeds the backoff between generation retries.
	retryInterval time.Duration
}

func NewGenerator(gen llm.Generator, st *store.Store, tracker *convo.Tracker, b *bus.Bus, persona string, timeout time.Duration) *Generator {
	if persona == "" {
		persona = defaultPersona
	}
	return &Generator{
		llm:           gen,
		store:         st,
		tracker:       tracker,
		bus:           b,
		persona:       persona,
		timeout:       timeout,
		retryInterval: 500 * time.Millisecond,
	}
}

// Run consumes the pending queue until the context is cancelled. A single
// consumer keeps per-conversation turn order stable.
func (g *Generator) Run(ctx context.Context) {
	for {
		entry, ok := g.bus.DequeuePending(ctx)
		if !ok {
			return
		}
		g.process(ctx, entry)
	}
}

func (g *Generator) process(ctx context.Context, entry bus.Entry) {
	prompt := g.buildPrompt(entry)

	text, err := g.generateWithRetry(ctx, prompt)
	if err != nil {
		log.Printf("[generator] giving up on %s: %v", entry.Item.ID, err)
		if err := g.store.RecordFailure(entry.Item.ID, "generation: "+err.Error()); err != nil {
			log.Printf("[generator] record failure %s: %v", entry.Item.ID, err)
		}
		return
	}

	text = strings.TrimSpace(text)
	if text == "" {
		if err := g.store.RecordFailure(entry.Item.ID, "generation: empty response"); err != nil {
			log.Printf("[generator] record failure %s: %v", entry.Item.ID, err)
		}
		return
	}

	if !g.bus.EnqueueReply(ctx, bus.ReplyEntry{Entry: entry, Text: text}) {
		// Shutdown while handing off: the entry never reached the
		// publisher, mark it failed rather than leave it queued forever.
		if err := g.store.RecordFailure(entry.Item.ID, "shutdown before publish"); err != nil {
			log.Printf("[generator] record failure %s: %v", entry.Item.ID, err)
		}
	}
}

func (g *Generator) generateWithRetry(ctx context.Context, prompt string) (string, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = g.retryInterval

	return backoff.Retry(ctx, func() (string, error) {
		callCtx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()
		return g.llm.Generate(callCtx, prompt)
	}, backoff.WithBackOff(bo), backoff.WithMaxTries(generateMaxTries))
}

func (g *Generator) buildPrompt(entry bus.Entry) string {
	var sb strings.Builder
	sb.WriteString(g.persona)
	sb.WriteString("\n\n")

	if entry.ConversationID == "" {
		sb.WriteString("Write a reply to this post:\n")
		if entry.Item.Title != "" {
			fmt.Fprintf(&sb, "Title: %s\n", entry.Item.Title)
		}
		if entry.Item.Body != "" {
			fmt.Fprintf(&sb, "Body: %s\n", entry.Item.Body)
		}
		return sb.String()
	}

	sb.WriteString("This is an ongoing discussion. The conversation so far:\n")
	if conv, ok := g.tracker.Lookup(entry.ConversationID); ok {
		for _, turn := range conv.Turns {
			switch turn.Speaker {
			case convo.SpeakerAgent:
				fmt.Fprintf(&sb, "You: %s\n", turn.Text)
			default:
				fmt.Fprintf(&sb, "Them: %s\n", turn.Text)
			}
		}
	} else {
		// Conversation retired between enqueue and processing; fall back
		// to the reply text alone.
		fmt.Fprintf(&sb, "Them: %s\n", entry.Item.Body)
	}
	sb.WriteString("\nWrite your next reply.\n")
	return sb.String()
}
