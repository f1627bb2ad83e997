// Package github checks GitHub repositories through their public Atom
// feeds, which need no API token. The subscription category selects the
// releases, tags, or per-branch commits feed.
package github

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/pkgwatch/pkgwatch/pkg/checkers/feed"
	"github.com/pkgwatch/pkgwatch/pkg/fetch"
	"github.com/pkgwatch/pkgwatch/pkg/upstream"
)

type Checker struct {
	client *fetch.Client
	base   string
}

func New(client *fetch.Client) *Checker {
	return &Checker{client: client, base: "https://github.com"}
}

func (c *Checker) Type() string { return "github" }

func (c *Checker) Check(ctx context.Context, u upstream.Upstream, sub upstream.Subscription, cur upstream.Cursor) (upstream.Result, error) {
	repo, err := Repo(u.URL)
	if err != nil {
		return upstream.Result{Cursor: cur}, err
	}

	var feedURL string
	switch sub.Category {
	case upstream.CategoryTag:
		feedURL = fmt.Sprintf("%s/%s/tags.atom", c.base, repo)
	case upstream.CategoryCommit:
		branch := u.Branch
		if branch == "" {
			branch = "master"
		}
		feedURL = fmt.Sprintf("%s/%s/commits/%s.atom", c.base, repo, branch)
	default:
		feedURL = fmt.Sprintf("%s/%s/releases.atom", c.base, repo)
	}

	resp, err := c.client.Get(ctx, feedURL, cur.Validator)
	if err != nil {
		return upstream.Result{Cursor: cur}, err
	}
	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(resp.Body))
	if err != nil {
		return upstream.Result{Cursor: cur}, fmt.Errorf("%w: parse feed %s: %v", upstream.ErrMalformed, feedURL, err)
	}

	category := sub.Category
	if category == "" {
		category = upstream.CategoryRelease
	}
	events, latest := feed.FromItems(u, sub, category, feedURL, parsed.Items, cur.LastUpdate, nil)

	cur.Validator = resp.Validator
	if latest > cur.LastUpdate {
		cur.LastUpdate = latest
	}
	return upstream.Result{Events: events, Cursor: cur}, nil
}

// Repo extracts the "owner/name" pair from a GitHub URL.
func Repo(raw string) (string, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", upstream.ErrMalformed, raw, err)
	}
	segs := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if len(segs) > 0 && segs[0] == "downloads" {
		segs = segs[1:]
	}
	if len(segs) < 2 || segs[0] == "" || segs[1] == "" {
		return "", fmt.Errorf("%w: no owner/repo in %q", upstream.ErrMalformed, raw)
	}
	return segs[0] + "/" + strings.TrimSuffix(segs[1], ".git"), nil
}
