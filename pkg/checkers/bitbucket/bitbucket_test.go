package bitbucket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkgwatch/pkgwatch/pkg/fetch"
	"github.com/pkgwatch/pkgwatch/pkg/upstream"
)

const downloadsJSON = `{"values": [
  {"name": "tool-2.0.tar.gz", "created_on": "2024-06-10T08:00:00+00:00", "size": 12345,
   "links": {"html": {"href": "https://bitbucket.org/owner/tool/downloads/tool-2.0.tar.gz"}}},
  {"name": "tool-1.9.tar.gz", "created_on": "2024-01-10T08:00:00+00:00", "size": 12000,
   "links": {"html": {"href": "https://bitbucket.org/owner/tool/downloads/tool-1.9.tar.gz"}}}
]}`

const tagsJSON = `{"values": [
  {"name": "v3.1", "target": {"date": "2024-07-01T12:00:00+00:00", "message": "release 3.1"},
   "links": {"html": {"href": "https://bitbucket.org/owner/tool/commits/tag/v3.1"}}}
]}`

func TestCheckDownloads(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(downloadsJSON))
	}))
	defer server.Close()

	c := New(fetch.NewClient(nil))
	c.base = server.URL

	u := upstream.Upstream{Name: "tool", Type: "bitbucket", URL: "https://bitbucket.org/owner/tool"}
	sub := upstream.Subscription{ID: 5, Upstream: "tool", Category: upstream.CategoryRelease}

	res, err := c.Check(context.Background(), u, sub, upstream.Cursor{LastUpdate: 1706000000})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if gotPath != "/repositories/owner/tool/downloads" {
		t.Errorf("fetched %q", gotPath)
	}
	if len(res.Events) != 1 || res.Events[0].Title != "tool-2.0.tar.gz" {
		t.Fatalf("unexpected events: %+v", res.Events)
	}
	if res.Cursor.LastUpdate <= 1706000000 {
		t.Errorf("cursor not advanced: %d", res.Cursor.LastUpdate)
	}
}

func TestCheckTags(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(tagsJSON))
	}))
	defer server.Close()

	c := New(fetch.NewClient(nil))
	c.base = server.URL

	u := upstream.Upstream{Name: "tool", Type: "bitbucket", URL: "https://bitbucket.org/owner/tool.git"}
	sub := upstream.Subscription{ID: 5, Upstream: "tool", Category: upstream.CategoryTag}

	res, err := c.Check(context.Background(), u, sub, upstream.Cursor{})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if gotPath != "/repositories/owner/tool/refs/tags" {
		t.Errorf("fetched %q", gotPath)
	}
	if len(res.Events) != 1 {
		t.Fatalf("unexpected events: %+v", res.Events)
	}
	ev := res.Events[0]
	if ev.Title != "v3.1" || ev.Category != upstream.CategoryTag {
		t.Errorf("unexpected event: %+v", ev)
	}
	if ev.Content != "<pre>release 3.1</pre>" {
		t.Errorf("content = %q", ev.Content)
	}
}
