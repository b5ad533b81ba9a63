package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultSubreddit          = "test"
	DefaultScanInterval       = 60 * time.Second
	DefaultReplyScanInterval  = 300 * time.Second
	DefaultCommentMinInterval = 120 * time.Second
	DefaultIdleTimeout        = 30 * time.Minute
	DefaultMaxConversations   = 5
	DefaultPostsFetchLimit    = 5
	DefaultQueueSize          = 100
	DefaultLLMProvider        = "ollama"
	DefaultOllamaURL          = "http://localhost:11434"
	DefaultOllamaModel        = "llama3.1:8b"
	DefaultLLMTimeout         = 30 * time.Second
)

type Config struct {
	Reddit   RedditConfig
	Bot      BotConfig
	LLM      LLMConfig
	Telegram TelegramConfig
}

// RedditConfig holds the script-app credentials for the password grant.
type RedditConfig struct {
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
	UserAgent    string
}

type BotConfig struct {
	Subreddit          string
	ScanInterval       time.Duration
	ReplyScanInterval  time.Duration
	CommentMinInterval time.Duration
	IdleTimeout        time.Duration
	MaxConversations   int
	PostsFetchLimit    int
	QueueSize          int
	DBPath             string
	PersonaFile        string
}

type LLMConfig struct {
	Provider     string // "ollama" (default) or "gemini"
	OllamaURL    string
	OllamaModel  string
	GeminiAPIKey string
	Timeout      time.Duration
}

type TelegramConfig struct {
	Token  string
	ChatID string
}

func DefaultConfig() *Config {
	return &Config{
		Bot: BotConfig{
			Subreddit:          DefaultSubreddit,
			ScanInterval:       DefaultScanInterval,
			ReplyScanInterval:  DefaultReplyScanInterval,
			CommentMinInterval: DefaultCommentMinInterval,
			IdleTimeout:        DefaultIdleTimeout,
			MaxConversations:   DefaultMaxConversations,
			PostsFetchLimit:    DefaultPostsFetchLimit,
			QueueSize:          DefaultQueueSize,
			DBPath:             filepath.Join("data", "debatebot.db"),
		},
		LLM: LLMConfig{
			Provider:    DefaultLLMProvider,
			OllamaURL:   DefaultOllamaURL,
			OllamaModel: DefaultOllamaModel,
			Timeout:     DefaultLLMTimeout,
		},
	}
}

// Load reads configuration from the environment after a best-effort load of
// a local .env file. Missing variables fall back to defaults; Validate
// reports missing required credentials.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()

	cfg.Reddit.ClientID = os.Getenv("CLIENT_ID")
	cfg.Reddit.ClientSecret = os.Getenv("CLIENT_SECRET")
	cfg.Reddit.Username = os.Getenv("USERNAME")
	cfg.Reddit.Password = os.Getenv("PASSWORD")
	cfg.Reddit.UserAgent = os.Getenv("USER_AGENT")

	if v := os.Getenv("SUBREDDIT"); v != "" {
		cfg.Bot.Subreddit = v
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.Bot.DBPath = v
	}
	if v := os.Getenv("PERSONA_FILE"); v != "" {
		cfg.Bot.PersonaFile = v
	}

	durations := []struct {
		name string
		dst  *time.Duration
	}{
		{"SCAN_INTERVAL", &cfg.Bot.ScanInterval},
		{"REPLY_SCAN_INTERVAL", &cfg.Bot.ReplyScanInterval},
		{"COMMENT_MIN_INTERVAL", &cfg.Bot.CommentMinInterval},
		{"IDLE_TIMEOUT", &cfg.Bot.IdleTimeout},
		{"LLM_TIMEOUT", &cfg.LLM.Timeout},
	}
	for _, d := range durations {
		v, err := envSeconds(d.name)
		if err != nil {
			return nil, err
		}
		if v > 0 {
			*d.dst = v
		}
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"MAX_CONVERSATIONS", &cfg.Bot.MaxConversations},
		{"POSTS_FETCH_LIMIT", &cfg.Bot.PostsFetchLimit},
		{"QUEUE_SIZE", &cfg.Bot.QueueSize},
	}
	for _, i := range ints {
		v, err := envInt(i.name)
		if err != nil {
			return nil, err
		}
		if v > 0 {
			*i.dst = v
		}
	}

	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv("OLLAMA_URL"); v != "" {
		cfg.LLM.OllamaURL = v
	}
	if v := os.Getenv("OLLAMA_MODEL"); v != "" {
		cfg.LLM.OllamaModel = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.LLM.GeminiAPIKey = v
	}

	cfg.Telegram.Token = os.Getenv("TELEGRAM_BOT_TOKEN")
	cfg.Telegram.ChatID = os.Getenv("TELEGRAM_CHAT_ID")

	return cfg, nil
}

// Validate checks that all required credentials are present.
func (c *Config) Validate() error {
	required := map[string]string{
		"CLIENT_ID":     c.Reddit.ClientID,
		"CLIENT_SECRET": c.Reddit.ClientSecret,
		"USERNAME":      c.Reddit.Username,
		"PASSWORD":      c.Reddit.Password,
		"USER_AGENT":    c.Reddit.UserAgent,
	}
	var missing []string
	for name, v := range required {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	if c.LLM.Provider == "gemini" && strings.TrimSpace(c.LLM.GeminiAPIKey) == "" {
		return fmt.Errorf("missing required configuration: GEMINI_API_KEY")
	}
	return nil
}

func envInt(name string) (int, error) {
	v := os.Getenv(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", name, err)
	}
	return n, nil
}

func envSeconds(name string) (time.Duration, error) {
	n, err := envInt(name)
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * time.Second, nil
}
