// Package cgit checks tag listings of cgit and gitweb instances by
// scraping their HTML. The generator meta tag tells the two apart: cgit
// pages carry per-tag ages, gitweb pages do not.
package cgit

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/pkgwatch/pkgwatch/pkg/fetch"
	"github.com/pkgwatch/pkgwatch/pkg/upstream"
	"github.com/pkgwatch/pkgwatch/pkg/version"
)

var reTagHref = regexp.MustCompile(`/tag/\?h=|refs/tags/`)

type Checker struct {
	client *fetch.Client
}

func New(client *fetch.Client) *Checker {
	return &Checker{client: client}
}

func (c *Checker) Type() string { return "cgit" }

type state struct {
	Seen []string `json:"seen"`
}

func (c *Checker) Check(ctx context.Context, u upstream.Upstream, sub upstream.Subscription, cur upstream.Cursor) (upstream.Result, error) {
	pageURL := sub.URL
	if pageURL == "" {
		pageURL = u.URL
	}
	resp, err := c.client.Get(ctx, pageURL, cur.Validator)
	if err != nil {
		return upstream.Result{Cursor: cur}, err
	}
	if strings.HasPrefix(resp.Disposition, "attachment") ||
		strings.HasPrefix(resp.ContentType, "application/x") {
		return upstream.Result{Cursor: cur}, fmt.Errorf("%w: %s served a download, not a page", upstream.ErrMalformed, pageURL)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return upstream.Result{Cursor: cur}, fmt.Errorf("%w: parse %s: %v", upstream.ErrMalformed, pageURL, err)
	}
	generator := doc.Find(`meta[name="generator"]`).AttrOr("content", "")
	isCgit := strings.Contains(generator, "cgit")
	if !isCgit && !strings.Contains(generator, "gitweb") {
		return upstream.Result{Cursor: cur}, fmt.Errorf("%w: %s is neither cgit nor gitweb", upstream.ErrMalformed, pageURL)
	}

	var st state
	if err := cur.LoadState(&st); err != nil {
		st = state{}
	}
	seen := make(map[string]bool, len(st.Seen))
	for _, name := range st.Seen {
		seen[name] = true
	}
	firstRun := len(st.Seen) == 0
	fetchTime := time.Now().Unix()

	var (
		events  []upstream.Event
		allTags []string
		latest  int64
	)
	doc.Find("a").Each(func(_ int, a *goquery.Selection) {
		href := a.AttrOr("href", "")
		loc := reTagHref.FindStringIndex(href)
		if loc == nil {
			return
		}
		tag, err := url.PathUnescape(href[loc[1]:])
		if err != nil || tag == "" {
			return
		}
		allTags = append(allTags, tag)
		if seen[tag] {
			return
		}
		seen[tag] = true

		ts := fetchTime
		if isCgit {
			// cgit puts the tag date in a span title two levels up.
			if title, ok := a.Parent().Parent().Find("span[title]").Attr("title"); ok {
				if t, ok := parseCgitDate(title); ok {
					ts = t
				}
			}
		}
		if ts > latest {
			latest = ts
		}
		if firstRun && cur.LastUpdate > 0 && ts < cur.LastUpdate {
			// Backfill beyond the lookback window is noise.
			return
		}
		stripped := version.StripPrefix(tag, u.Name)
		if !version.Plausible(stripped) {
			return
		}
		events = append(events, upstream.Event{
			Upstream:     u.Name,
			Category:     upstream.CategoryTag,
			Time:         ts,
			Subscription: sub.ID,
			Title:        tag,
			URL:          feedLink(pageURL, href),
		})
	})

	if len(allTags) > 0 {
		st.Seen = allTags
		if err := cur.SaveState(st); err != nil {
			return upstream.Result{Cursor: cur}, err
		}
	}
	cur.Validator = resp.Validator
	if latest > cur.LastUpdate {
		cur.LastUpdate = latest
	}
	return upstream.Result{Events: events, Cursor: cur}, nil
}

func parseCgitDate(s string) (int64, bool) {
	for _, layout := range []string{
		"2006-01-02 15:04:05 -0700",
		"2006-01-02 15:04:05 (MST)",
		"2006-01-02 15:04:05",
		time.RFC3339,
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Unix(), true
		}
	}
	return 0, false
}

func feedLink(pageURL, href string) string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
