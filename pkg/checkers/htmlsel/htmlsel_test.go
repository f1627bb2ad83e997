package htmlsel

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/pkgwatch/pkgwatch/pkg/fetch"
	"github.com/pkgwatch/pkgwatch/pkg/upstream"
)

func pageServer(t *testing.T, pages ...string) *httptest.Server {
	t.Helper()
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		i := int(calls.Add(1)) - 1
		if i >= len(pages) {
			i = len(pages) - 1
		}
		w.Write([]byte(pages[i]))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestCheckDetectsChange(t *testing.T) {
	before := `<html><body><div class="dl"><a>app 1.0</a></div></body></html>`
	after := `<html><body><div class="dl"><a>app 1.1</a></div></body></html>`
	server := pageServer(t, before, after)

	c := New(fetch.NewClient(nil))
	u := upstream.Upstream{Name: "app", Type: "htmlsel", URL: server.URL, Branch: ".dl a"}
	sub := upstream.Subscription{ID: 2, Upstream: "app", URL: server.URL}

	// First check seeds the entry list without emitting.
	res, err := c.Check(context.Background(), u, sub, upstream.Cursor{})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(res.Events) != 0 {
		t.Fatalf("first check emitted: %+v", res.Events)
	}

	res2, err := c.Check(context.Background(), u, sub, res.Cursor)
	if err != nil {
		t.Fatalf("second Check: %v", err)
	}
	if len(res2.Events) != 1 {
		t.Fatalf("got %d events, want 1", len(res2.Events))
	}
	ev := res2.Events[0]
	if ev.Title != "app 1.1" {
		t.Errorf("title = %q", ev.Title)
	}
	if !strings.HasPrefix(ev.URL, server.URL+"#") {
		t.Errorf("event url %q should carry a disambiguating fragment", ev.URL)
	}
	if !strings.Contains(ev.Content, "+app 1.1") || !strings.Contains(ev.Content, "-app 1.0") {
		t.Errorf("content = %q", ev.Content)
	}

	// Third check with the page stable again: nothing new.
	res3, err := c.Check(context.Background(), u, sub, res2.Cursor)
	if err != nil {
		t.Fatalf("third Check: %v", err)
	}
	if len(res3.Events) != 0 {
		t.Errorf("stable page emitted: %+v", res3.Events)
	}
}

func TestCheckRegexFilter(t *testing.T) {
	page := `<html><body><span id="v">Version 3.2.1 (stable)</span></body></html>`
	server := pageServer(t, page)

	c := New(fetch.NewClient(nil))
	u := upstream.Upstream{Name: "app", Type: "htmlsel", URL: server.URL, Branch: `#v || Version ([\d.]+)`}
	sub := upstream.Subscription{ID: 2, Upstream: "app", URL: server.URL}

	res, err := c.Check(context.Background(), u, sub, upstream.Cursor{})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	var st state
	if err := res.Cursor.LoadState(&st); err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if len(st.Entries) != 1 || st.Entries[0] != "3.2.1" {
		t.Errorf("entries = %+v, want extracted version", st.Entries)
	}
}

func TestCheckSelectorMissesIsError(t *testing.T) {
	server := pageServer(t, `<html><body><p>hi</p></body></html>`)

	c := New(fetch.NewClient(nil))
	u := upstream.Upstream{Name: "app", Type: "htmlsel", URL: server.URL, Branch: ".nonexistent"}

	_, err := c.Check(context.Background(), u, upstream.Subscription{URL: server.URL}, upstream.Cursor{})
	if !errors.Is(err, upstream.ErrMalformed) {
		t.Fatalf("err = %v, want ErrMalformed", err)
	}
}
