package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"debatebot/internal/agent"
	"debatebot/internal/config"
	"debatebot/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "debatebot",
	Short: "debatebot - argumentative reddit reply bot",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the bot (scanner + reply monitor + publisher)",
	RunE:  runBot,
}

var recentCmd = &cobra.Command{
	Use:   "recent",
	Short: "Show the most recently answered items",
	RunE:  runRecent,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration and store summary",
	RunE:  runStatus,
}

var recentCount int

func init() {
	recentCmd.Flags().IntVarP(&recentCount, "count", "n", 5, "Number of items to show")
	rootCmd.AddCommand(runCmd, recentCmd, statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runBot(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	a, err := agent.New(cfg)
	if err != nil {
		return fmt.Errorf("create agent: %w", err)
	}
	return a.Run(context.Background())
}

func runRecent(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	st, err := store.Open(cfg.Bot.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	records, err := st.FetchRecent(recentCount)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("No answered items yet.")
		return nil
	}
	for _, r := range records {
		fmt.Printf("%s  %s  %s\n", r.ResponseAt.Format("2006-01-02 15:04"), r.ItemID, r.Title)
		fmt.Printf("    %s\n", firstLine(r.Response))
	}
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	fmt.Printf("Subreddit: r/%s\n", cfg.Bot.Subreddit)
	fmt.Printf("Scan interval: %s\n", cfg.Bot.ScanInterval)
	fmt.Printf("Reply scan interval: %s\n", cfg.Bot.ReplyScanInterval)
	fmt.Printf("Comment min interval: %s\n", cfg.Bot.CommentMinInterval)
	fmt.Printf("Max conversations: %d\n", cfg.Bot.MaxConversations)
	fmt.Printf("LLM provider: %s\n", cfg.LLM.Provider)
	fmt.Printf("Database: %s\n", cfg.Bot.DBPath)
	if err := cfg.Validate(); err != nil {
		fmt.Printf("Credentials: %v\n", err)
	} else {
		fmt.Printf("Credentials: ok (user %s)\n", cfg.Reddit.Username)
	}

	st, err := store.Open(cfg.Bot.DBPath)
	if err != nil {
		fmt.Printf("Store: error (%v)\n", err)
		return nil
	}
	defer st.Close()

	counts, err := st.CountByStatus()
	if err != nil {
		return err
	}
	if len(counts) == 0 {
		fmt.Println("Store: empty")
		return nil
	}
	for _, status := range []store.Status{store.StatusSeen, store.StatusQueued, store.StatusResponded, store.StatusFailed} {
		if n, ok := counts[status]; ok {
			fmt.Printf("Items %s: %d\n", status, n)
		}
	}
	return nil
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	if len(s) > 100 {
		return s[:100] + "..."
	}
	return s
}
