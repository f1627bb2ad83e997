package report

import (
	"fmt"
	"time"

	"github.com/gorilla/feeds"

	"github.com/pkgwatch/pkgwatch/pkg/store"
)

// Atom renders recent events as an Atom feed document. title names the
// feed; selfURL is the address the document will be served from and may
// be empty.
func Atom(db *store.DB, opts Options, title, selfURL string) (string, error) {
	events, err := db.RecentEvents(opts.filter())
	if err != nil {
		return "", fmt.Errorf("query events: %w", err)
	}

	feed := &feeds.Feed{
		Title:       title,
		Link:        &feeds.Link{Href: selfURL},
		Description: "upstream release and update events",
		Updated:     time.Now().UTC(),
	}
	if len(events) > 0 {
		feed.Updated = time.Unix(events[0].Time, 0).UTC()
	}

	for _, ev := range events {
		feed.Items = append(feed.Items, &feeds.Item{
			Id:          ev.URL,
			Title:       fmt.Sprintf("%s: %s", ev.Upstream, ev.Title),
			Link:        &feeds.Link{Href: ev.URL},
			Description: ev.Content,
			Author:      &feeds.Author{Name: ev.Upstream},
			Created:     time.Unix(ev.Time, 0).UTC(),
		})
	}
	return feed.ToAtom()
}
