// Package report renders stored update events for humans: a colored
// terminal digest grouped by upstream, and an Atom document for feed
// readers. Both read from the same query surface.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"github.com/pkgwatch/pkgwatch/pkg/store"
	"github.com/pkgwatch/pkgwatch/pkg/upstream"
)

// Options filter and shape the report.
type Options struct {
	// Count caps the number of events shown. Zero means the store default.
	Count int

	// Category keeps only events of one category when non-empty.
	Category string

	// Days keeps only events newer than this many days. Zero means all.
	Days int

	// Plain disables color.
	Plain bool
}

func (o Options) filter() store.EventFilter {
	f := store.EventFilter{Category: o.Category, Limit: o.Count}
	if o.Days > 0 {
		f.Since = time.Now().AddDate(0, 0, -o.Days).Unix()
	}
	return f
}

var categoryColors = map[string]*color.Color{
	upstream.CategoryCommit:  color.New(color.FgCyan),
	upstream.CategoryIssue:   color.New(color.FgMagenta),
	upstream.CategoryPR:      color.New(color.FgMagenta),
	upstream.CategoryTag:     color.New(color.FgBlue),
	upstream.CategoryRelease: color.New(color.FgGreen),
	upstream.CategoryNews:    color.New(color.FgYellow),
	upstream.CategoryFile:    color.New(color.FgWhite),
}

var headerColor = color.New(color.FgWhite, color.Bold)

// Write renders recent events to w, grouped by upstream in recency order.
func Write(w io.Writer, db *store.DB, opts Options) error {
	events, err := db.RecentEvents(opts.filter())
	if err != nil {
		return fmt.Errorf("query events: %w", err)
	}
	if len(events) == 0 {
		_, err := fmt.Fprintln(w, "no updates")
		return err
	}

	header := headerColor
	if opts.Plain {
		header = color.New()
		header.DisableColor()
	}

	// Events arrive newest first; group runs by upstream while keeping
	// that order between groups.
	grouped := make(map[string][]upstream.Event)
	var order []string
	for _, ev := range events {
		if _, seen := grouped[ev.Upstream]; !seen {
			order = append(order, ev.Upstream)
		}
		grouped[ev.Upstream] = append(grouped[ev.Upstream], ev)
	}

	for i, name := range order {
		if i > 0 {
			fmt.Fprintln(w)
		}
		if _, err := header.Fprintln(w, name); err != nil {
			return err
		}
		for _, ev := range grouped[name] {
			ts := time.Unix(ev.Time, 0).UTC().Format("2006-01-02 15:04")
			tag := categoryTag(ev.Category, opts.Plain)
			if _, err := fmt.Fprintf(w, "  %s  %s  %s\n", ts, tag, ev.Title); err != nil {
				return err
			}
			if ev.URL != "" {
				if _, err := fmt.Fprintf(w, "      %s\n", ev.URL); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// categoryTag renders a fixed-width category marker like [release].
func categoryTag(category string, plain bool) string {
	tag := fmt.Sprintf("[%-7s]", category)
	c, ok := categoryColors[category]
	if plain || !ok {
		return tag
	}
	return c.Sprint(tag)
}
