// Package dirlist checks plain HTTP directory listings for new release
// tarballs. The page is parsed with pkg/listing; filenames are matched
// and versioned with pkg/version, and only a strictly higher version
// than the one recorded in the cursor produces an event.
package dirlist

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/pkgwatch/pkgwatch/pkg/fetch"
	"github.com/pkgwatch/pkgwatch/pkg/listing"
	"github.com/pkgwatch/pkgwatch/pkg/upstream"
	"github.com/pkgwatch/pkgwatch/pkg/version"
)

type Checker struct {
	client *fetch.Client
}

func New(client *fetch.Client) *Checker {
	return &Checker{client: client}
}

func (c *Checker) Type() string { return "dirlist" }

type state struct {
	Version string `json:"version"`
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
		strings.HasPrefix(resp.ContentType, "application/") {
		return upstream.Result{Cursor: cur}, fmt.Errorf("%w: %s served a download, not a listing", upstream.ErrMalformed, pageURL)
	}

	_, entries, err := listing.Parse(bytes.NewReader(resp.Body))
	if err != nil {
		return upstream.Result{Cursor: cur}, fmt.Errorf("%w: parse %s: %v", upstream.ErrMalformed, pageURL, err)
	}
	if len(entries) == 0 {
		return upstream.Result{Cursor: cur}, fmt.Errorf("%w: no listing entries at %s", upstream.ErrMalformed, pageURL)
	}

	var st state
	if err := cur.LoadState(&st); err != nil {
		st = state{}
	}

	fetchTime := time.Now().Unix()
	var tarballs []version.Tarball
	for _, entry := range entries {
		ts := fetchTime
		if !entry.Modified.IsZero() {
			ts = entry.Modified.Unix()
		}
		tarballs = append(tarballs, version.Tarball{Name: entry.Name, Updated: ts})
	}

	cur.Validator = resp.Validator

	ver, tbl, ok := version.MaxTarball(tarballs, u.Name, st.Version)
	if !ok || (st.Version != "" && version.Compare(ver, st.Version) <= 0) {
		return upstream.Result{Cursor: cur}, nil
	}

	st.Version = ver
	if err := cur.SaveState(st); err != nil {
		return upstream.Result{Cursor: cur}, err
	}
	ts := tbl.Updated
	if ts > fetchTime {
		ts = fetchTime
	}
	if ts > cur.LastUpdate {
		cur.LastUpdate = ts
	}
	return upstream.Result{
		Events: []upstream.Event{{
			Upstream:     u.Name,
			Category:     upstream.CategoryRelease,
			Time:         ts,
			Subscription: sub.ID,
			Title:        fmt.Sprintf("%s %s", u.Name, ver),
			Content:      tbl.Name,
			URL:          resolve(pageURL, tbl.Name),
		}},
		Cursor: cur,
	}, nil
}

func resolve(pageURL, name string) string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return pageURL + name
	}
	ref := &url.URL{Path: name}
	return base.ResolveReference(ref).String()
}
