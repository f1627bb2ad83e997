// Package sourceforge checks project file releases via the per-project
// RSS feed, which lists uploaded files with their paths and dates.
package sourceforge

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/pkgwatch/pkgwatch/pkg/fetch"
	"github.com/pkgwatch/pkgwatch/pkg/upstream"
	"github.com/pkgwatch/pkgwatch/pkg/version"
)

type Checker struct {
	client *fetch.Client
	base   string
}

func New(client *fetch.Client) *Checker {
	return &Checker{client: client, base: "https://sourceforge.net"}
}

func (c *Checker) Type() string { return "sourceforge" }

type state struct {
	Version string `json:"version"`
}

func (c *Checker) Check(ctx context.Context, u upstream.Upstream, sub upstream.Subscription, cur upstream.Cursor) (upstream.Result, error) {
	project, path := ProjectPath(u.URL)
	if project == "" {
		return upstream.Result{Cursor: cur}, fmt.Errorf("%w: no project in %q", upstream.ErrMalformed, u.URL)
	}
	feedURL := fmt.Sprintf("%s/projects/%s/rss?path=%s", c.base, project, url.QueryEscape(path))

	resp, err := c.client.Get(ctx, feedURL, cur.Validator)
	if err != nil {
		return upstream.Result{Cursor: cur}, err
	}
	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(resp.Body))
	if err != nil {
		return upstream.Result{Cursor: cur}, fmt.Errorf("%w: parse feed %s: %v", upstream.ErrMalformed, feedURL, err)
	}

	var st state
	if err := cur.LoadState(&st); err != nil {
		st = state{}
	}

	var (
		tarballs []version.Tarball
		links    = map[string]string{}
		latest   int64
	)
	for _, item := range parsed.Items {
		var ts int64
		if item.PublishedParsed != nil {
			ts = item.PublishedParsed.Unix()
		}
		if ts > latest {
			latest = ts
		}
		name := item.Title
		if i := strings.LastIndex(name, "/"); i >= 0 {
			name = name[i+1:]
		}
		tarballs = append(tarballs, version.Tarball{Name: name, Updated: ts, URL: item.Link})
		links[name] = item.Link
	}

	cur.Validator = resp.Validator

	ver, tbl, ok := version.MaxTarball(tarballs, u.Name, st.Version)
	if !ok || (st.Version != "" && version.Compare(ver, st.Version) <= 0) {
		if latest > cur.LastUpdate {
			cur.LastUpdate = latest
		}
		return upstream.Result{Cursor: cur}, nil
	}

	st.Version = ver
	if err := cur.SaveState(st); err != nil {
		return upstream.Result{Cursor: cur}, err
	}
	ts := tbl.Updated
	if ts == 0 {
		ts = time.Now().Unix()
	}
	if ts > cur.LastUpdate {
		cur.LastUpdate = ts
	}
	link := links[tbl.Name]
	if link == "" {
		link = feedURL
	}
	return upstream.Result{
		Events: []upstream.Event{{
			Upstream:     u.Name,
			Category:     upstream.CategoryRelease,
			Time:         ts,
			Subscription: sub.ID,
			Title:        fmt.Sprintf("%s %s", u.Name, ver),
			Content:      tbl.Name,
			URL:          link,
		}},
		Cursor: cur,
	}, nil
}

// ProjectPath extracts the project slug and the file path filter from
// the various SourceForge URL shapes.
func ProjectPath(raw string) (project, path string) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", ""
	}
	host := parsed.Hostname()
	segs := strings.Split(strings.Trim(parsed.Path, "/"), "/")

	switch {
	case host == "sourceforge.net":
		if len(segs) >= 2 && segs[0] == "projects" {
			if len(segs) > 3 && segs[2] == "files" {
				return segs[1], "/" + strings.Join(segs[3:], "/")
			}
			return segs[1], "/"
		}
	case host == "downloads.sourceforge.net" || host == "prdownloads.sourceforge.net" || host == "download.sourceforge.net":
		if len(segs) >= 2 && segs[0] == "project" {
			return segs[1], "/" + strings.Join(segs[2:], "/")
		}
		if len(segs) >= 1 {
			return segs[0], "/"
		}
	case strings.HasSuffix(host, ".sourceforge.net"):
		return strings.SplitN(host, ".", 2)[0], "/"
	}
	return "", ""
}
