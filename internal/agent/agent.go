// Package agent wires the scanner, reply monitor, generator and publisher
// into one long-running process.
package agent

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/robfig/cron/v3"

	"debatebot/internal/bus"
	"debatebot/internal/config"
	"debatebot/internal/convo"
	"debatebot/internal/llm"
	"debatebot/internal/notify"
	"debatebot/internal/platform"
	"debatebot/internal/platform/reddit"
	"debatebot/internal/store"
	"debatebot/internal/throttle"
)

// Options allow injecting collaborators, mainly for tests.
type Options struct {
	Platform   platform.Client
	LLM        llm.Generator
	Notifier   notify.Notifier
	SignalChan chan os.Signal
}

type Agent struct {
	cfg      *config.Config
	store    *store.Store
	tracker  *convo.Tracker
	limiter  *throttle.Limiter
	bus      *bus.Bus
	notifier notify.Notifier

	scanner   *Scanner
	monitor   *Monitor
	generator *Generator
	publisher *Publisher

	cron       *cron.Cron
	signalChan chan os.Signal
	wg         sync.WaitGroup
}

func New(cfg *config.Config) (*Agent, error) {
	return NewWithOptions(cfg, Options{})
}

func NewWithOptions(cfg *config.Config, opts Options) (*Agent, error) {
	a := &Agent{cfg: cfg}

	st, err := store.Open(cfg.Bot.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a.store = st

	a.tracker = convo.NewTracker(cfg.Bot.MaxConversations, cfg.Bot.IdleTimeout)
	a.limiter = throttle.New(cfg.Bot.CommentMinInterval)
	a.bus = bus.New(cfg.Bot.QueueSize)

	client := opts.Platform
	if client == nil {
		client = reddit.NewClient(cfg.Reddit)
	}

	gen := opts.LLM
	if gen == nil {
		gen, err = llm.New(context.Background(), cfg.LLM)
		if err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("create llm provider: %w", err)
		}
	}

	a.notifier = opts.Notifier
	if a.notifier == nil {
		a.notifier = notify.Nop{}
		if cfg.Telegram.Token != "" && cfg.Telegram.ChatID != "" {
			tg, err := notify.NewTelegram(cfg.Telegram)
			if err != nil {
				log.Printf("[agent] telegram notifier disabled: %v", err)
			} else {
				a.notifier = tg
			}
		}
	}

	persona, err := loadPersona(cfg.Bot.PersonaFile)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	a.scanner = NewScanner(client, st, a.tracker, a.bus, cfg.Bot.Subreddit, cfg.Bot.PostsFetchLimit)
	a.monitor = NewMonitor(client, st, a.tracker, a.bus, cfg.Reddit.Username)
	a.generator = NewGenerator(gen, st, a.tracker, a.bus, persona, cfg.LLM.Timeout)
	a.publisher = NewPublisher(client, st, a.tracker, a.limiter, a.bus, a.notifier)

	a.signalChan = opts.SignalChan
	return a, nil
}

func loadPersona(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read persona file: %w", err)
	}
	return string(data), nil
}

// Run starts the loops and blocks until a shutdown signal arrives.
func (a *Agent) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.wg.Add(2)
	go func() {
		defer a.wg.Done()
		a.generator.Run(ctx)
	}()
	go func() {
		defer a.wg.Done()
		a.publisher.Run(ctx)
	}()

	// Initial scan before the schedule kicks in, matching first-start
	// behavior: the newest posts are processed immediately.
	a.scanner.Scan(ctx)

	a.cron = cron.New()
	if _, err := a.cron.AddFunc(fmt.Sprintf("@every %s", a.cfg.Bot.ScanInterval), func() {
		a.scanner.Scan(ctx)
	}); err != nil {
		return fmt.Errorf("schedule scanner: %w", err)
	}
	if _, err := a.cron.AddFunc(fmt.Sprintf("@every %s", a.cfg.Bot.ReplyScanInterval), func() {
		a.monitor.Poll(ctx)
	}); err != nil {
		return fmt.Errorf("schedule monitor: %w", err)
	}
	a.cron.Start()

	log.Printf("[agent] running: subreddit=%s scan=%s replies=%s max_conversations=%d",
		a.cfg.Bot.Subreddit, a.cfg.Bot.ScanInterval, a.cfg.Bot.ReplyScanInterval,
		a.cfg.Bot.MaxConversations)
	a.notifier.Notify(fmt.Sprintf("debatebot started on r/%s", a.cfg.Bot.Subreddit))

	sigCh := a.signalChan
	if sigCh == nil {
		sigCh = make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	}
	<-sigCh

	log.Printf("[agent] shutting down...")
	return a.shutdown(cancel)
}

func (a *Agent) shutdown(cancel context.CancelFunc) error {
	// Stop scheduling new cycles, then cancel the consumers and wait for
	// in-flight work to settle before the store closes.
	if a.cron != nil {
		<-a.cron.Stop().Done()
	}
	cancel()
	a.wg.Wait()

	if err := a.store.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	log.Printf("[agent] shutdown complete")
	return nil
}

// Store exposes the state store for introspection commands.
func (a *Agent) Store() *store.Store {
	return a.store
}
