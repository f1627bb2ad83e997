// Package launchpad checks project releases via the Launchpad 1.0 API.
package launchpad

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/pkgwatch/pkgwatch/pkg/fetch"
	"github.com/pkgwatch/pkgwatch/pkg/upstream"
)

type Checker struct {
	client *fetch.Client
	base   string
}

func New(client *fetch.Client) *Checker {
	return &Checker{client: client, base: "https://api.launchpad.net/1.0"}
}

func (c *Checker) Type() string { return "launchpad" }

type apiReleases struct {
	Entries []struct {
		Version      string `json:"version"`
		DateReleased string `json:"date_released"`
		WebLink      string `json:"web_link"`
		Changelog    string `json:"changelog"`
	} `json:"entries"`
}

func (c *Checker) Check(ctx context.Context, u upstream.Upstream, sub upstream.Subscription, cur upstream.Cursor) (upstream.Result, error) {
	project := projectName(u.URL)
	if project == "" {
		return upstream.Result{Cursor: cur}, fmt.Errorf("%w: no project in %q", upstream.ErrMalformed, u.URL)
	}

	var rel apiReleases
	validator, err := c.client.GetJSON(ctx, fmt.Sprintf("%s/%s/releases", c.base, project), cur.Validator, &rel)
	if err != nil {
		return upstream.Result{Cursor: cur}, err
	}

	var (
		events []upstream.Event
		latest int64
	)
	for _, entry := range rel.Entries {
		ts := parseTime(entry.DateReleased)
		if ts > latest {
			latest = ts
		}
		if ts <= cur.LastUpdate {
			continue
		}
		events = append(events, upstream.Event{
			Upstream:     u.Name,
			Category:     upstream.CategoryRelease,
			Time:         ts,
			Subscription: sub.ID,
			Title:        fmt.Sprintf("%s %s", project, entry.Version),
			Content:      entry.Changelog,
			URL:          entry.WebLink,
		})
	}

	cur.Validator = validator
	if latest > cur.LastUpdate {
		cur.LastUpdate = latest
	}
	return upstream.Result{Events: events, Cursor: cur}, nil
}

func parseTime(s string) int64 {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return 0
	}
	return t.Unix()
}

func projectName(raw string) string {
	if !strings.Contains(raw, "/") {
		return raw
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	segs := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if len(segs) == 0 || segs[0] == "" {
		return ""
	}
	return segs[0]
}
