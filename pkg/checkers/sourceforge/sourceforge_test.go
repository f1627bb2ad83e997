package sourceforge

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkgwatch/pkgwatch/pkg/fetch"
	"github.com/pkgwatch/pkgwatch/pkg/upstream"
)

const filesRSS = `<?xml version="1.0" encoding="utf-8"?>
<rss version="2.0">
  <channel>
    <title>tool files</title>
    <item>
      <title>/tool/1.2/tool-1.2.tar.gz</title>
      <link>https://sourceforge.net/projects/tool/files/tool/1.2/tool-1.2.tar.gz/download</link>
      <pubDate>Mon, 10 Jun 2024 08:00:00 GMT</pubDate>
    </item>
    <item>
      <title>/tool/1.0/tool-1.0.tar.gz</title>
      <link>https://sourceforge.net/projects/tool/files/tool/1.0/tool-1.0.tar.gz/download</link>
      <pubDate>Wed, 10 Jan 2024 08:00:00 GMT</pubDate>
    </item>
  </channel>
</rss>`

func TestCheck(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(filesRSS))
	}))
	defer server.Close()

	c := New(fetch.NewClient(nil))
	c.base = server.URL

	u := upstream.Upstream{Name: "tool", Type: "sourceforge", URL: "https://sourceforge.net/projects/tool/files/tool/"}
	sub := upstream.Subscription{ID: 9, Upstream: "tool", Category: upstream.CategoryRelease}

	res, err := c.Check(context.Background(), u, sub, upstream.Cursor{})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if gotPath != "/projects/tool/rss" {
		t.Errorf("fetched %q", gotPath)
	}
	if len(res.Events) != 1 {
		t.Fatalf("got %d events, want 1", len(res.Events))
	}
	ev := res.Events[0]
	if ev.Title != "tool 1.2" || ev.Content != "tool-1.2.tar.gz" {
		t.Errorf("unexpected event: %+v", ev)
	}
	if ev.URL != "https://sourceforge.net/projects/tool/files/tool/1.2/tool-1.2.tar.gz/download" {
		t.Errorf("event url = %q", ev.URL)
	}

	// Same feed again: version unchanged, no event.
	res2, err := c.Check(context.Background(), u, sub, res.Cursor)
	if err != nil {
		t.Fatalf("second Check: %v", err)
	}
	if len(res2.Events) != 0 {
		t.Errorf("repeat check produced events: %+v", res2.Events)
	}
}

func TestProjectPath(t *testing.T) {
	cases := []struct {
		in, project, path string
	}{
		{"https://sourceforge.net/projects/tool/files/tool/1.2/", "tool", "/tool/1.2"},
		{"https://sourceforge.net/projects/tool/", "tool", "/"},
		{"https://downloads.sourceforge.net/project/tool/tool-1.0.tar.gz", "tool", "/tool-1.0.tar.gz"},
		{"http://prdownloads.sourceforge.net/tool/tool-1.0.tar.gz", "tool", "/"},
		{"http://tool.sourceforge.net/", "tool", "/"},
		{"https://example.org/whatever", "", ""},
	}
	for _, c := range cases {
		project, path := ProjectPath(c.in)
		if project != c.project || path != c.path {
			t.Errorf("ProjectPath(%q) = (%q, %q), want (%q, %q)", c.in, project, path, c.project, c.path)
		}
	}
}
