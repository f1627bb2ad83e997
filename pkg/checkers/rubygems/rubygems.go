// Package rubygems checks the RubyGems v1 API for new gem versions.
package rubygems

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
	return &Checker{client: client, base: "https://rubygems.org/api/v1"}
}

func (c *Checker) Type() string { return "rubygems" }

type apiGem struct {
	Name             string `json:"name"`
	Version          string `json:"version"`
	Info             string `json:"info"`
	ProjectURI       string `json:"project_uri"`
	VersionCreatedAt string `json:"version_created_at"`
}

type state struct {
	Version string `json:"version"`
}

func (c *Checker) Check(ctx context.Context, u upstream.Upstream, sub upstream.Subscription, cur upstream.Cursor) (upstream.Result, error) {
	name := gemName(u.URL)
	if name == "" {
		return upstream.Result{Cursor: cur}, fmt.Errorf("%w: no gem name in %q", upstream.ErrMalformed, u.URL)
	}

	var gem apiGem
	validator, err := c.client.GetJSON(ctx, fmt.Sprintf("%s/gems/%s.json", c.base, name), cur.Validator, &gem)
	if err != nil {
		return upstream.Result{Cursor: cur}, err
	}
	if gem.Version == "" {
		return upstream.Result{Cursor: cur}, fmt.Errorf("%w: no version for %s", upstream.ErrMalformed, name)
	}

	var st state
	if err := cur.LoadState(&st); err != nil {
		st = state{}
	}

	cur.Validator = validator
	if st.Version != "" && version.Compare(gem.Version, st.Version) <= 0 {
		return upstream.Result{Cursor: cur}, nil
	}

	ts := time.Now().Unix()
	if t, err := time.Parse(time.RFC3339, gem.VersionCreatedAt); err == nil {
		ts = t.Unix()
	}

	st.Version = gem.Version
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
			Title:        fmt.Sprintf("%s %s", gem.Name, gem.Version),
			Content:      gem.Info,
			URL:          fmt.Sprintf("https://rubygems.org/gems/%s/versions/%s", name, gem.Version),
		}},
		Cursor: cur,
	}, nil
}

func gemName(raw string) string {
	if !strings.Contains(raw, "/") {
		return strings.TrimSuffix(raw, ".json")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	segs := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if len(segs) == 0 {
		return ""
	}
	return strings.TrimSuffix(segs[len(segs)-1], ".json")
}
