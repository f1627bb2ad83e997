// Package gitlab checks repository tags via the GitLab v4 API. Works
// against gitlab.com and self-hosted instances (the API root is derived
// from the upstream URL's host).
package gitlab

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
	// scheme+host override for tests; empty means use the upstream URL's.
	base string
}

func New(client *fetch.Client) *Checker {
	return &Checker{client: client}
}

func (c *Checker) Type() string { return "gitlab" }

type apiTag struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Commit  struct {
		CommittedDate string `json:"committed_date"`
	} `json:"commit"`
}

func (c *Checker) Check(ctx context.Context, u upstream.Upstream, sub upstream.Subscription, cur upstream.Cursor) (upstream.Result, error) {
	parsed, err := url.Parse(u.URL)
	if err != nil {
		return upstream.Result{Cursor: cur}, fmt.Errorf("%w: %q: %v", upstream.ErrMalformed, u.URL, err)
	}
	project := strings.TrimSuffix(strings.Trim(parsed.Path, "/"), ".git")
	if project == "" || !strings.Contains(project, "/") {
		return upstream.Result{Cursor: cur}, fmt.Errorf("%w: no project path in %q", upstream.ErrMalformed, u.URL)
	}

	base := c.base
	if base == "" {
		base = parsed.Scheme + "://" + parsed.Host
	}
	apiURL := fmt.Sprintf("%s/api/v4/projects/%s/repository/tags", base, url.PathEscape(project))

	var tags []apiTag
	validator, err := c.client.GetJSON(ctx, apiURL, cur.Validator, &tags)
	if err != nil {
		return upstream.Result{Cursor: cur}, err
	}

	var (
		events []upstream.Event
		latest int64
	)
	for _, tag := range tags {
		ts := parseTime(tag.Commit.CommittedDate)
		if ts > latest {
			latest = ts
		}
		if ts <= cur.LastUpdate {
			continue
		}
		events = append(events, upstream.Event{
			Upstream:     u.Name,
			Category:     upstream.CategoryTag,
			Time:         ts,
			Subscription: sub.ID,
			Title:        tag.Name,
			Content:      tag.Message,
			URL:          fmt.Sprintf("%s/%s/-/tags/%s", base, project, url.PathEscape(tag.Name)),
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
