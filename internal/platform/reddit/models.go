package reddit

import (
	"encoding/json"
	"time"

	"debatebot/internal/platform"
)

type thingListing struct {
	Kind string `json:"kind"`
	Data struct {
		Children []thing `json:"children"`
	} `json:"data"`
}

type thing struct {
	Kind string    `json:"kind"`
	Data thingData `json:"data"`
}

type thingData struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"` // fullname, e.g. t3_abc or t1_xyz
	ParentID   string  `json:"parent_id,omitempty"`
	Subreddit  string  `json:"subreddit"`
	Title      string  `json:"title,omitempty"`
	SelfText   string  `json:"selftext,omitempty"`
	Body       string  `json:"body,omitempty"`
	Author     string  `json:"author"`
	CreatedUTC float64 `json:"created_utc"`
	// Replies is a nested listing for comments, or "" when empty.
	Replies json.RawMessage `json:"replies,omitempty"`
}

func (d thingData) toItem(parentID string) platform.Item {
	body := d.Body
	if body == "" {
		body = d.SelfText
	}
	return platform.Item{
		ID:        d.Name,
		ParentID:  parentID,
		Subreddit: d.Subreddit,
		Author:    d.Author,
		Title:     d.Title,
		Body:      body,
		CreatedAt: time.Unix(int64(d.CreatedUTC), 0).UTC(),
	}
}

func (d thingData) repliesListing() *thingListing {
	if len(d.Replies) == 0 || string(d.Replies) == `""` {
		return nil
	}
	var listing thingListing
	if err := json.Unmarshal(d.Replies, &listing); err != nil {
		return nil
	}
	return &listing
}
