// Package htmlsel watches an arbitrary web page through a CSS selector.
// The selected texts are compared against the previous check; any change
// becomes one news event. For htmlsel-type upstreams the branch column
// carries the selector, optionally followed by "||" and a filter regex.
package htmlsel

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
)

type Checker struct {
	client *fetch.Client
}

func New(client *fetch.Client) *Checker {
	return &Checker{client: client}
}

func (c *Checker) Type() string { return "htmlsel" }

type state struct {
	Entries []string `json:"entries"`
}

func (c *Checker) Check(ctx context.Context, u upstream.Upstream, sub upstream.Subscription, cur upstream.Cursor) (upstream.Result, error) {
	selector, filter, err := splitSelector(u.Branch)
	if err != nil {
		return upstream.Result{Cursor: cur}, err
	}

	pageURL := sub.URL
	if pageURL == "" {
		pageURL = u.URL
	}
	resp, err := c.client.Get(ctx, pageURL, cur.Validator)
	if err != nil {
		return upstream.Result{Cursor: cur}, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return upstream.Result{Cursor: cur}, fmt.Errorf("%w: parse %s: %v", upstream.ErrMalformed, pageURL, err)
	}

	var entries []string
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		text := strings.Join(strings.Fields(s.Text()), " ")
		if text == "" {
			return
		}
		if filter != nil {
			m := filter.FindStringSubmatch(text)
			if m == nil {
				return
			}
			if len(m) > 1 {
				text = m[1]
			} else {
				text = m[0]
			}
		}
		entries = append(entries, text)
	})
	if len(entries) == 0 {
		return upstream.Result{Cursor: cur}, fmt.Errorf("%w: selector %q matched nothing at %s", upstream.ErrMalformed, selector, pageURL)
	}

	var st state
	if err := cur.LoadState(&st); err != nil {
		st = state{}
	}
	old := st.Entries
	st.Entries = entries
	if err := cur.SaveState(st); err != nil {
		return upstream.Result{Cursor: cur}, err
	}
	cur.Validator = resp.Validator

	if len(old) == 0 || equal(old, entries) {
		return upstream.Result{Cursor: cur}, nil
	}

	added, removed := diff(old, entries)
	title := u.Name + " website changed"
	if len(added) > 0 {
		title = added[0]
	}

	var content strings.Builder
	content.WriteString("<pre>")
	for _, line := range removed {
		content.WriteString("-" + line + "\n")
	}
	for _, line := range added {
		content.WriteString("+" + line + "\n")
	}
	content.WriteString("</pre>")

	fetchTime := time.Now().Unix()
	if fetchTime > cur.LastUpdate {
		cur.LastUpdate = fetchTime
	}
	return upstream.Result{
		Events: []upstream.Event{{
			Upstream:     u.Name,
			Category:     upstream.CategoryNews,
			Time:         fetchTime,
			Subscription: sub.ID,
			Title:        title,
			Content:      content.String(),
			URL:          eventURL(pageURL, added),
		}},
		Cursor: cur,
	}, nil
}

func splitSelector(branch string) (string, *regexp.Regexp, error) {
	if branch == "" {
		return "", nil, fmt.Errorf("%w: htmlsel upstream without a selector", upstream.ErrMalformed)
	}
	selector, pattern, found := strings.Cut(branch, "||")
	selector = strings.TrimSpace(selector)
	if !found {
		return selector, nil, nil
	}
	re, err := regexp.Compile(strings.TrimSpace(pattern))
	if err != nil {
		return "", nil, fmt.Errorf("%w: filter %q: %v", upstream.ErrMalformed, pattern, err)
	}
	return selector, re, nil
}

// eventURL makes the event URL unique per change by appending a fragment
// naming the first added entry; the bare page URL would collide with the
// previous change under global url deduplication.
func eventURL(pageURL string, added []string) string {
	if len(added) == 0 {
		return pageURL
	}
	return pageURL + "#" + url.QueryEscape(added[0])
}

func diff(old, cur []string) (added, removed []string) {
	prev := make(map[string]bool, len(old))
	for _, s := range old {
		prev[s] = true
	}
	next := make(map[string]bool, len(cur))
	for _, s := range cur {
		next[s] = true
	}
	for _, s := range cur {
		if !prev[s] {
			added = append(added, s)
		}
	}
	for _, s := range old {
		if !next[s] {
			removed = append(removed, s)
		}
	}
	return added, removed
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
