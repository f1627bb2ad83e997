// Package npm checks the npm registry document for new package versions.
package npm

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/pkgwatch/pkgwatch/pkg/fetch"
	"github.com/pkgwatch/pkgwatch/pkg/upstream"
	"github.com/pkgwatch/pkgwatch/pkg/version"
)

type Checker struct {
	client *fetch.Client
	base   string
}

func New(client *fetch.Client) *Checker {
	return &Checker{client: client, base: "https://registry.npmjs.org"}
}

func (c *Checker) Type() string { return "npm" }

type apiDoc struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	DistTags    map[string]string `json:"dist-tags"`
	Time        map[string]string `json:"time"`
}

type state struct {
	Version string `json:"version"`
}

func (c *Checker) Check(ctx context.Context, u upstream.Upstream, sub upstream.Subscription, cur upstream.Cursor) (upstream.Result, error) {
	name := packageName(u.URL)
	if name == "" {
		return upstream.Result{Cursor: cur}, fmt.Errorf("%w: no package name in %q", upstream.ErrMalformed, u.URL)
	}

	var doc apiDoc
	validator, err := c.client.GetJSON(ctx, fmt.Sprintf("%s/%s", c.base, name), cur.Validator, &doc)
	if err != nil {
		return upstream.Result{Cursor: cur}, err
	}
	latest := doc.DistTags["latest"]
	if latest == "" {
		return upstream.Result{Cursor: cur}, fmt.Errorf("%w: no latest tag for %s", upstream.ErrMalformed, name)
	}

	var st state
	if err := cur.LoadState(&st); err != nil {
		st = state{}
	}

	cur.Validator = validator
	if st.Version != "" && version.Compare(latest, st.Version) <= 0 {
		return upstream.Result{Cursor: cur}, nil
	}

	ts := time.Now().Unix()
	if t, err := time.Parse(time.RFC3339, doc.Time[latest]); err == nil {
		ts = t.Unix()
	}

	st.Version = latest
	if err := cur.SaveState(st); err != nil {
		return upstream.Result{Cursor: cur}, err
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
			Title:        fmt.Sprintf("%s %s", doc.Name, latest),
			Content:      doc.Description,
			URL:          fmt.Sprintf("https://www.npmjs.com/package/%s/v/%s", name, latest),
		}},
		Cursor: cur,
	}, nil
}

// packageName handles both plain names (including @scope/name) and
// registry or website URLs.
func packageName(raw string) string {
	if !strings.Contains(raw, "://") {
		return raw
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	path := strings.Trim(parsed.Path, "/")
	path = strings.TrimPrefix(path, "package/")
	segs := strings.Split(path, "/")
	if len(segs) >= 2 && strings.HasPrefix(segs[0], "@") {
		return segs[0] + "/" + segs[1]
	}
	if len(segs) >= 1 && segs[0] != "" {
		return segs[0]
	}
	return ""
}
