// Package pypi checks the PyPI JSON API for new package versions.
package pypi

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
	return &Checker{client: client, base: "https://pypi.org/pypi"}
}

func (c *Checker) Type() string { return "pypi" }

type apiResponse struct {
	Info struct {
		Name       string `json:"name"`
		Version    string `json:"version"`
		Summary    string `json:"summary"`
		ReleaseURL string `json:"release_url"`
		ProjectURL string `json:"project_url"`
	} `json:"info"`
	Releases map[string][]struct {
		UploadTime    string `json:"upload_time"`
		UploadTimeISO string `json:"upload_time_iso_8601"`
	} `json:"releases"`
}

type state struct {
	Version string `json:"version"`
}

func (c *Checker) Check(ctx context.Context, u upstream.Upstream, sub upstream.Subscription, cur upstream.Cursor) (upstream.Result, error) {
	name := ProjectName(u.URL)
	if name == "" {
		return upstream.Result{Cursor: cur}, fmt.Errorf("%w: no project name in %q", upstream.ErrMalformed, u.URL)
	}

	var data apiResponse
	validator, err := c.client.GetJSON(ctx, fmt.Sprintf("%s/%s/json", c.base, name), cur.Validator, &data)
	if err != nil {
		return upstream.Result{Cursor: cur}, err
	}
	latest := data.Info.Version
	if latest == "" {
		return upstream.Result{Cursor: cur}, fmt.Errorf("%w: no version for %s", upstream.ErrMalformed, name)
	}

	var st state
	if err := cur.LoadState(&st); err != nil {
		st = state{}
	}

	cur.Validator = validator
	if st.Version != "" && version.Compare(latest, st.Version) <= 0 {
		return upstream.Result{Cursor: cur}, nil
	}

	ts := releaseTime(data, latest)
	releaseURL := data.Info.ReleaseURL
	if releaseURL == "" {
		releaseURL = fmt.Sprintf("https://pypi.org/project/%s/%s/", name, latest)
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
			Title:        fmt.Sprintf("%s %s", data.Info.Name, latest),
			Content:      data.Info.Summary,
			URL:          releaseURL,
		}},
		Cursor: cur,
	}, nil
}

func releaseTime(data apiResponse, ver string) int64 {
	files := data.Releases[ver]
	if len(files) == 0 {
		return time.Now().Unix()
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05"} {
		for _, raw := range []string{files[0].UploadTimeISO, files[0].UploadTime} {
			if raw == "" {
				continue
			}
			if t, err := time.Parse(layout, raw); err == nil {
				return t.Unix()
			}
		}
	}
	return time.Now().Unix()
}

// ProjectName pulls the package name out of a PyPI project URL. A bare
// name with no slashes is returned as is.
func ProjectName(raw string) string {
	if !strings.Contains(raw, "/") {
		return raw
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	segs := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	for i := len(segs) - 1; i >= 0; i-- {
		if segs[i] != "" && segs[i] != "json" {
			return segs[i]
		}
	}
	return ""
}
