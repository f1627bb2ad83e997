package rubygems

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkgwatch/pkgwatch/pkg/fetch"
	"github.com/pkgwatch/pkgwatch/pkg/upstream"
)

func gemServer(t *testing.T, version string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/gems/rake.json" {
			http.NotFound(w, r)
			return
		}
		gem := map[string]any{
			"name":               "rake",
			"version":            version,
			"info":               "Rake is a Make-like program",
			"project_uri":        "https://rubygems.org/gems/rake",
			"version_created_at": "2024-02-10T06:00:00Z",
		}
		json.NewEncoder(w).Encode(gem)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestCheckNewVersion(t *testing.T) {
	server := gemServer(t, "13.2.1")
	c := New(fetch.NewClient(nil))
	c.base = server.URL

	u := upstream.Upstream{Name: "rake", Type: "rubygems", URL: "https://rubygems.org/gems/rake"}
	sub := upstream.Subscription{ID: 5, Upstream: "rake"}

	res, err := c.Check(context.Background(), u, sub, upstream.Cursor{})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(res.Events) != 1 {
		t.Fatalf("got %d events, want 1", len(res.Events))
	}
	ev := res.Events[0]
	if ev.Title != "rake 13.2.1" || ev.Category != upstream.CategoryRelease {
		t.Errorf("unexpected event: %+v", ev)
	}
	if ev.URL != "https://rubygems.org/gems/rake/versions/13.2.1" {
		t.Errorf("event url = %q", ev.URL)
	}

	res2, err := c.Check(context.Background(), u, sub, res.Cursor)
	if err != nil {
		t.Fatalf("second Check: %v", err)
	}
	if len(res2.Events) != 0 {
		t.Errorf("unchanged version produced events: %+v", res2.Events)
	}
}

func TestCheckOlderVersionIgnored(t *testing.T) {
	server := gemServer(t, "12.0.0")
	c := New(fetch.NewClient(nil))
	c.base = server.URL

	u := upstream.Upstream{Name: "rake", Type: "rubygems", URL: "rake"}
	cur := upstream.Cursor{}
	if err := cur.SaveState(state{Version: "13.0.0"}); err != nil {
		t.Fatal(err)
	}

	res, err := c.Check(context.Background(), u, upstream.Subscription{}, cur)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(res.Events) != 0 {
		t.Errorf("downgrade produced events: %+v", res.Events)
	}
}

func TestGemName(t *testing.T) {
	cases := []struct{ in, want string }{
		{"rake", "rake"},
		{"rake.json", "rake"},
		{"https://rubygems.org/gems/rake", "rake"},
		{"https://rubygems.org/api/v1/gems/rake.json", "rake"},
	}
	for _, tc := range cases {
		if got := gemName(tc.in); got != tc.want {
			t.Errorf("gemName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
