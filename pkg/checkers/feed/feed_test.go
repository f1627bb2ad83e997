package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkgwatch/pkgwatch/pkg/fetch"
	"github.com/pkgwatch/pkgwatch/pkg/upstream"
)

const atomDoc = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>releases</title>
  <entry>
    <title>v1.1 released</title>
    <link href="https://example.com/rel/1.1"/>
    <updated>2024-05-01T00:00:00Z</updated>
    <summary>second release</summary>
  </entry>
  <entry>
    <title>v1.0 released</title>
    <link href="https://example.com/rel/1.0"/>
    <updated>2024-01-01T00:00:00Z</updated>
    <summary>first release</summary>
  </entry>
</feed>`

func feedServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"etag-1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"etag-1"`)
		w.Write([]byte(atomDoc))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestCheckNewEntries(t *testing.T) {
	server := feedServer(t)
	c := New(fetch.NewClient(nil))

	u := upstream.Upstream{Name: "foo", Type: "feed", URL: server.URL}
	sub := upstream.Subscription{ID: 1, Upstream: "foo", Category: upstream.CategoryNews, URL: server.URL}

	res, err := c.Check(context.Background(), u, sub, upstream.Cursor{LastUpdate: 1704067200})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(res.Events) != 1 {
		t.Fatalf("got %d events, want 1: %+v", len(res.Events), res.Events)
	}
	ev := res.Events[0]
	if ev.Title != "v1.1 released" || ev.URL != "https://example.com/rel/1.1" {
		t.Errorf("unexpected event: %+v", ev)
	}
	if ev.Category != upstream.CategoryNews || ev.Subscription != 1 {
		t.Errorf("unexpected event metadata: %+v", ev)
	}
	if res.Cursor.LastUpdate != 1714521600 {
		t.Errorf("cursor = %d, want newest entry time", res.Cursor.LastUpdate)
	}
	if res.Cursor.Validator != `"etag-1"` {
		t.Errorf("validator = %q", res.Cursor.Validator)
	}
}

func TestCheckNotModified(t *testing.T) {
	server := feedServer(t)
	c := New(fetch.NewClient(nil))

	u := upstream.Upstream{Name: "foo", Type: "feed", URL: server.URL}
	sub := upstream.Subscription{ID: 1, Upstream: "foo", URL: server.URL}
	cur := upstream.Cursor{LastUpdate: 1714521600, Validator: `"etag-1"`}

	res, err := c.Check(context.Background(), u, sub, cur)
	if !errors.Is(err, upstream.ErrNotModified) {
		t.Fatalf("err = %v, want ErrNotModified", err)
	}
	if len(res.Events) != 0 {
		t.Errorf("events on 304: %+v", res.Events)
	}
	if res.Cursor != cur {
		t.Errorf("cursor changed on 304: %+v", res.Cursor)
	}
}

func TestCheckTitleFilter(t *testing.T) {
	server := feedServer(t)
	c := New(fetch.NewClient(nil))

	u := upstream.Upstream{Name: "foo", Type: "feed", URL: server.URL, Branch: `^v1\.0`}
	sub := upstream.Subscription{ID: 1, Upstream: "foo", URL: server.URL}

	res, err := c.Check(context.Background(), u, sub, upstream.Cursor{LastUpdate: 1})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(res.Events) != 1 || res.Events[0].Title != "v1.0 released" {
		t.Errorf("filter failed: %+v", res.Events)
	}
}

func TestResolveLink(t *testing.T) {
	cases := []struct {
		base, link, want string
	}{
		{"https://example.com/feed.atom", "https://example.com/a", "https://example.com/a"},
		{"https://example.com/feed.atom", "/news/1", "https://example.com/news/1"},
		{"https://example.com/feed.atom", "news/1", "https://example.com/news/1"},
		// Host-mangled link where the "host" is really a path segment.
		{"https://example.com/feed.atom", "http://news/1.html", "https://example.com/news/1.html"},
	}
	for _, tc := range cases {
		if got := ResolveLink(tc.base, tc.link); got != tc.want {
			t.Errorf("ResolveLink(%q, %q) = %q, want %q", tc.base, tc.link, got, tc.want)
		}
	}
}
