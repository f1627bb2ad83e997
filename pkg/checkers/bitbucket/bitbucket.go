// Package bitbucket checks repositories via the Bitbucket 2.0 API:
// uploaded downloads for release subscriptions, refs/tags for tag
// subscriptions.
package bitbucket

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
	return &Checker{client: client, base: "https://api.bitbucket.org/2.0"}
}

func (c *Checker) Type() string { return "bitbucket" }

type apiList struct {
	Values []apiItem `json:"values"`
}

type apiItem struct {
	Name      string `json:"name"`
	CreatedOn string `json:"created_on"`
	Size      int64  `json:"size"`
	Links     struct {
		HTML struct {
			Href string `json:"href"`
		} `json:"html"`
		Self struct {
			Href string `json:"href"`
		} `json:"self"`
	} `json:"links"`
	Target struct {
		Date    string `json:"date"`
		Message string `json:"message"`
	} `json:"target"`
}

func (c *Checker) Check(ctx context.Context, u upstream.Upstream, sub upstream.Subscription, cur upstream.Cursor) (upstream.Result, error) {
	repo, err := repoPath(u.URL)
	if err != nil {
		return upstream.Result{Cursor: cur}, err
	}

	var apiURL string
	category := sub.Category
	switch category {
	case upstream.CategoryTag:
		apiURL = fmt.Sprintf("%s/repositories/%s/refs/tags", c.base, repo)
	default:
		category = upstream.CategoryRelease
		apiURL = fmt.Sprintf("%s/repositories/%s/downloads", c.base, repo)
	}

	var list apiList
	validator, err := c.client.GetJSON(ctx, apiURL, cur.Validator, &list)
	if err != nil {
		return upstream.Result{Cursor: cur}, err
	}

	var (
		events []upstream.Event
		latest int64
	)
	for _, item := range list.Values {
		var ts int64
		var content string
		if category == upstream.CategoryTag {
			ts = parseTime(item.Target.Date)
			content = "<pre>" + item.Target.Message + "</pre>"
		} else {
			ts = parseTime(item.CreatedOn)
		}
		if ts > latest {
			latest = ts
		}
		if ts <= cur.LastUpdate {
			continue
		}
		link := item.Links.HTML.Href
		if link == "" {
			link = item.Links.Self.Href
		}
		events = append(events, upstream.Event{
			Upstream:     u.Name,
			Category:     category,
			Time:         ts,
			Subscription: sub.ID,
			Title:        item.Name,
			Content:      content,
			URL:          link,
		})
	}

	cur.Validator = validator
	if latest > cur.LastUpdate {
		cur.LastUpdate = latest
	}
	return upstream.Result{Events: events, Cursor: cur}, nil
}

func parseTime(s string) int64 {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05.999999999"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Unix()
		}
	}
	return 0
}

func repoPath(raw string) (string, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", upstream.ErrMalformed, raw, err)
	}
	segs := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if len(segs) < 2 || segs[0] == "" || segs[1] == "" {
		return "", fmt.Errorf("%w: no owner/repo in %q", upstream.ErrMalformed, raw)
	}
	return segs[0] + "/" + strings.TrimSuffix(segs[1], ".git"), nil
}
