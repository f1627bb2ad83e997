package gitlab

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkgwatch/pkgwatch/pkg/fetch"
	"github.com/pkgwatch/pkgwatch/pkg/upstream"
)

func gitlabServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The project id must stay path-escaped in the API URL.
		if r.URL.EscapedPath() != "/api/v4/projects/group%2Ftool/repository/tags" {
			http.NotFound(w, r)
			return
		}
		tags := []map[string]any{
			{"name": "v2.0", "message": "second", "commit": map[string]any{"committed_date": "2024-05-01T10:00:00Z"}},
			{"name": "v1.0", "message": "first", "commit": map[string]any{"committed_date": "2024-01-01T10:00:00Z"}},
		}
		json.NewEncoder(w).Encode(tags)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestCheckNewTags(t *testing.T) {
	server := gitlabServer(t)
	c := New(fetch.NewClient(nil))
	c.base = server.URL

	u := upstream.Upstream{Name: "tool", Type: "gitlab", URL: "https://gitlab.com/group/tool.git"}
	sub := upstream.Subscription{ID: 7, Upstream: "tool"}

	res, err := c.Check(context.Background(), u, sub, upstream.Cursor{})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(res.Events) != 2 {
		t.Fatalf("got %d events, want 2", len(res.Events))
	}
	ev := res.Events[0]
	if ev.Title != "v2.0" || ev.Category != upstream.CategoryTag || ev.Content != "second" {
		t.Errorf("unexpected event: %+v", ev)
	}
	if ev.URL != server.URL+"/group/tool/-/tags/v2.0" {
		t.Errorf("event url = %q", ev.URL)
	}

	// The advanced watermark hides both tags on the next check.
	res2, err := c.Check(context.Background(), u, sub, res.Cursor)
	if err != nil {
		t.Fatalf("second Check: %v", err)
	}
	if len(res2.Events) != 0 {
		t.Errorf("unchanged tags produced events: %+v", res2.Events)
	}
}

func TestCheckWatermarkFiltersOldTags(t *testing.T) {
	server := gitlabServer(t)
	c := New(fetch.NewClient(nil))
	c.base = server.URL

	u := upstream.Upstream{Name: "tool", Type: "gitlab", URL: "https://gitlab.com/group/tool"}
	// Between the two commit dates: only v2.0 is new.
	cur := upstream.Cursor{LastUpdate: 1710000000}

	res, err := c.Check(context.Background(), u, upstream.Subscription{}, cur)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(res.Events) != 1 || res.Events[0].Title != "v2.0" {
		t.Errorf("unexpected events: %+v", res.Events)
	}
}

func TestCheckRejectsBadProjectURL(t *testing.T) {
	c := New(fetch.NewClient(nil))

	u := upstream.Upstream{Name: "tool", Type: "gitlab", URL: "https://gitlab.com/"}
	if _, err := c.Check(context.Background(), u, upstream.Subscription{}, upstream.Cursor{}); err == nil {
		t.Fatal("expected an error for a URL without a project path")
	}
}
