// Package upstream defines the contract shared by all upstream checkers:
// the descriptor of a watched source, the update events a check produces,
// the incremental-fetch cursor threaded through successive checks, and the
// outcome taxonomy checks report with.
package upstream

import (
	"context"
	"encoding/json"
)

// Event categories. Checkers normalize whatever their source publishes
// into one of these.
const (
	CategoryCommit  = "commit"
	CategoryIssue   = "issue"
	CategoryPR      = "pr"
	CategoryTag     = "tag"
	CategoryRelease = "release"
	CategoryNews    = "news"
	CategoryFile    = "file"
)

// Upstream describes one watched source: where it lives and which checker
// handles it. The Type string selects the checker; cursor contents are only
// meaningful to the checker of the same type.
type Upstream struct {
	Name   string `db:"name"`
	Type   string `db:"type"`
	URL    string `db:"url"`
	Branch string `db:"branch"`
}

// Subscription is one polled channel under an upstream, with its own cursor.
type Subscription struct {
	ID         int64  `db:"id"`
	Upstream   string `db:"upstream"`
	Type       string `db:"type"`
	Category   string `db:"category"`
	URL        string `db:"url"`
	LastUpdate int64  `db:"last_update"`
}

// Event is one discovered unit of upstream activity. URL is the global
// deduplication key: an event whose URL was stored before is discarded.
type Event struct {
	Upstream     string `db:"upstream"`
	Category     string `db:"category"`
	Time         int64  `db:"time"`
	Subscription int64  `db:"subscription"`
	Title        string `db:"title"`
	Content      string `db:"content"`
	URL          string `db:"url"`
}

// Cursor is the incremental-fetch state for one subscription. LastUpdate is
// a unix timestamp that only ever advances. Validator holds an HTTP ETag or
// Last-Modified value for conditional requests. State is checker-private
// JSON (previous directory entries, last seen version, and the like) and is
// opaque to everything but the checker that wrote it.
type Cursor struct {
	LastUpdate int64
	Validator  string
	State      string
}

// LoadState unmarshals the checker-private state into v. An empty state is
// not an error; v is left untouched.
func (c Cursor) LoadState(v any) error {
	if c.State == "" {
		return nil
	}
	return json.Unmarshal([]byte(c.State), v)
}

// SaveState marshals v into the cursor's state field.
func (c *Cursor) SaveState(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.State = string(data)
	return nil
}

// Result is what a successful check returns: zero or more events in source
// order, and the cursor to persist once the events are committed.
type Result struct {
	Events []Event
	Cursor Cursor
}

// Checker turns an upstream plus a cached cursor into update events and a
// new cursor. Implementations must not mutate shared state: the cursor
// travels by value in, and comes back in the Result.
//
// Check reports ErrNotModified when the source is verifiably unchanged; the
// returned Result then carries the refreshed cursor and no events. Other
// failures use the sentinel errors and RateLimitedError from this package.
type Checker interface {
	Type() string
	Check(ctx context.Context, u Upstream, sub Subscription, cur Cursor) (Result, error)
}
