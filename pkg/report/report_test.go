package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/pkgwatch/pkgwatch/pkg/store"
	"github.com/pkgwatch/pkgwatch/pkg/upstream"
)

func seedEvents(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	for _, name := range []string{"alpha", "beta"} {
		if err := db.UpsertUpstream(upstream.Upstream{Name: name, Type: "feed", URL: "https://example.org/" + name}); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}
	id1, _ := db.EnsureSubscription("alpha", "feed", upstream.CategoryRelease, "https://example.org/alpha")
	id2, _ := db.EnsureSubscription("beta", "feed", upstream.CategoryNews, "https://example.org/beta")

	_, err = db.CommitCheck(
		upstream.Subscription{ID: id1, Upstream: "alpha"},
		upstream.Result{
			Events: []upstream.Event{
				{Upstream: "alpha", Category: upstream.CategoryRelease, Time: 1714521600, Subscription: id1, Title: "alpha 2.0", URL: "https://example.org/alpha/2.0"},
				{Upstream: "alpha", Category: upstream.CategoryRelease, Time: 1704067200, Subscription: id1, Title: "alpha 1.9", URL: "https://example.org/alpha/1.9"},
			},
			Cursor: upstream.Cursor{LastUpdate: 1714521600},
		},
	)
	if err != nil {
		t.Fatalf("commit alpha: %v", err)
	}
	_, err = db.CommitCheck(
		upstream.Subscription{ID: id2, Upstream: "beta"},
		upstream.Result{
			Events: []upstream.Event{
				{Upstream: "beta", Category: upstream.CategoryNews, Time: 1709251200, Subscription: id2, Title: "beta weekly", URL: "https://example.org/beta/weekly-9"},
			},
			Cursor: upstream.Cursor{LastUpdate: 1709251200},
		},
	)
	if err != nil {
		t.Fatalf("commit beta: %v", err)
	}
	return db
}

func TestWriteGroupsByUpstream(t *testing.T) {
	db := seedEvents(t)

	var buf bytes.Buffer
	if err := Write(&buf, db, Options{Plain: true}); err != nil {
		t.Fatalf("write: %v", err)
	}
	out := buf.String()

	// Newest event first, so alpha leads.
	ia, ib := strings.Index(out, "alpha\n"), strings.Index(out, "beta\n")
	if ia < 0 || ib < 0 || ia > ib {
		t.Fatalf("grouping wrong:\n%s", out)
	}
	for _, want := range []string{"alpha 2.0", "alpha 1.9", "beta weekly", "[release]", "[news   ]", "2024-05-01"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteCategoryFilter(t *testing.T) {
	db := seedEvents(t)

	var buf bytes.Buffer
	if err := Write(&buf, db, Options{Plain: true, Category: upstream.CategoryNews}); err != nil {
		t.Fatalf("write: %v", err)
	}
	out := buf.String()
	if strings.Contains(out, "alpha 2.0") || !strings.Contains(out, "beta weekly") {
		t.Errorf("category filter not applied:\n%s", out)
	}
}

func TestWriteEmpty(t *testing.T) {
	db, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer db.Close()

	var buf bytes.Buffer
	if err := Write(&buf, db, Options{Plain: true}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !strings.Contains(buf.String(), "no updates") {
		t.Errorf("empty report = %q", buf.String())
	}
}

func TestAtom(t *testing.T) {
	db := seedEvents(t)

	doc, err := Atom(db, Options{Count: 2}, "pkgwatch updates", "https://example.org/feed")
	if err != nil {
		t.Fatalf("atom: %v", err)
	}
	for _, want := range []string{"<feed", "pkgwatch updates", "alpha: alpha 2.0", "https://example.org/alpha/2.0", "beta: beta weekly"} {
		if !strings.Contains(doc, want) {
			t.Errorf("atom missing %q", want)
		}
	}
	if strings.Contains(doc, "alpha 1.9") {
		t.Errorf("count limit ignored")
	}
}
