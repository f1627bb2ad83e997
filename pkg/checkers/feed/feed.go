// Package feed checks RSS and Atom feeds. It also provides the shared
// item-to-event conversion used by the checkers that consume feeds from
// specific hosts.
package feed

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"regexp"

	"github.com/mmcdole/gofeed"

	"github.com/pkgwatch/pkgwatch/pkg/fetch"
	"github.com/pkgwatch/pkgwatch/pkg/upstream"
)

// Some feeds emit links like "http://relative/path" where the host part
// is really the first path segment.
var reBadURL = regexp.MustCompile(`^https?://(/?[^./]+/.+)$`)

// Checker polls a generic feed subscription. For feed-type upstreams the
// branch column optionally carries a title filter regex.
type Checker struct {
	client *fetch.Client
}

func New(client *fetch.Client) *Checker {
	return &Checker{client: client}
}

func (c *Checker) Type() string { return "feed" }

func (c *Checker) Check(ctx context.Context, u upstream.Upstream, sub upstream.Subscription, cur upstream.Cursor) (upstream.Result, error) {
	resp, err := c.client.Get(ctx, sub.URL, cur.Validator)
	if err != nil {
		return upstream.Result{Cursor: cur}, err
	}

	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(resp.Body))
	if err != nil {
		return upstream.Result{Cursor: cur}, fmt.Errorf("%w: parse feed %s: %v", upstream.ErrMalformed, sub.URL, err)
	}

	var titleRE *regexp.Regexp
	if u.Branch != "" {
		titleRE, err = regexp.Compile(u.Branch)
		if err != nil {
			return upstream.Result{Cursor: cur}, fmt.Errorf("%w: title filter %q: %v", upstream.ErrMalformed, u.Branch, err)
		}
	}

	category := sub.Category
	if category == "" {
		category = upstream.CategoryNews
	}
	events, latest := FromItems(u, sub, category, sub.URL, parsed.Items, cur.LastUpdate, titleRE)

	cur.Validator = resp.Validator
	if latest > cur.LastUpdate {
		cur.LastUpdate = latest
	}
	return upstream.Result{Events: events, Cursor: cur}, nil
}

// FromItems converts the feed items newer than since into events, in
// feed order. Returns the events and the newest item timestamp seen.
func FromItems(u upstream.Upstream, sub upstream.Subscription, category, baseURL string, items []*gofeed.Item, since int64, titleRE *regexp.Regexp) ([]upstream.Event, int64) {
	var (
		events []upstream.Event
		latest int64
	)
	for _, item := range items {
		ts := itemTime(item)
		if ts > latest {
			latest = ts
		}
		if ts <= since {
			continue
		}
		if titleRE != nil && !titleRE.MatchString(item.Title) {
			continue
		}
		events = append(events, upstream.Event{
			Upstream:     u.Name,
			Category:     category,
			Time:         ts,
			Subscription: sub.ID,
			Title:        item.Title,
			Content:      itemContent(item),
			URL:          ResolveLink(baseURL, item.Link),
		})
	}
	return events, latest
}

// ResolveLink fixes up an entry link against the feed URL, handling both
// ordinary relative links and host-mangled absolute ones.
func ResolveLink(feedURL, link string) string {
	if m := reBadURL.FindStringSubmatch(link); m != nil {
		link = m[1]
	}
	base, err := url.Parse(feedURL)
	if err != nil {
		return link
	}
	ref, err := url.Parse(link)
	if err != nil {
		return link
	}
	return base.ResolveReference(ref).String()
}

func itemTime(item *gofeed.Item) int64 {
	if item.UpdatedParsed != nil {
		return item.UpdatedParsed.Unix()
	}
	if item.PublishedParsed != nil {
		return item.PublishedParsed.Unix()
	}
	return 0
}

func itemContent(item *gofeed.Item) string {
	if item.Content != "" {
		return item.Content
	}
	return item.Description
}
