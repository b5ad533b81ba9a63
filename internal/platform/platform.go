// Package platform defines the contract between the bot and the discussion
// forum it posts to. Adapters live in subpackages.
package platform

import (
	"context"
	"errors"
	"time"
)

// Item is a unit of discussion content, either a top-level post or a
// comment. Immutable once fetched.
type Item struct {
	ID        string // platform-assigned fullname, unique
	ParentID  string // empty for top-level posts
	Subreddit string
	Author    string
	Title     string // posts only
	Body      string
	CreatedAt time.Time
}

// IsPost reports whether the item is a top-level post.
func (i Item) IsPost() bool {
	return i.ParentID == ""
}

// Client is the remote forum boundary. Implementations apply their own
// authentication and surface failures through the typed errors below.
type Client interface {
	// FetchNewItems returns the most recent top-level items from source,
	// newest first, up to limit.
	FetchNewItems(ctx context.Context, source string, limit int) ([]Item, error)
	// FetchReplies returns comments in the thread rooted at threadID that
	// were created after since.
	FetchReplies(ctx context.Context, threadID string, since time.Time) ([]Item, error)
	// SubmitReply posts text as a reply to parentID and returns the new
	// comment's identifier.
	SubmitReply(ctx context.Context, parentID, text string) (string, error)
}

var (
	ErrAuth        = errors.New("platform: authentication failed")
	ErrRateLimited = errors.New("platform: rate limited")
	ErrNotFound    = errors.New("platform: not found")
)
