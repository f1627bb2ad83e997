package store

import (
	"strings"

	"github.com/pkgwatch/pkgwatch/pkg/upstream"
)

// EventFilter narrows RecentEvents. Zero values mean "no constraint";
// Limit defaults to 100.
type EventFilter struct {
	Upstream string
	Category string
	Since    int64
	Limit    int
}

// RecentEvents returns stored update events newest first.
func (db *DB) RecentEvents(f EventFilter) ([]upstream.Event, error) {
	var (
		conds []string
		args  []any
	)
	if f.Upstream != "" {
		conds = append(conds, "upstream = ?")
		args = append(args, f.Upstream)
	}
	if f.Category != "" {
		conds = append(conds, "category = ?")
		args = append(args, f.Category)
	}
	if f.Since > 0 {
		conds = append(conds, "time >= ?")
		args = append(args, f.Since)
	}

	query := `SELECT upstream, category, time, subscription, title, content, url FROM upstream_update`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY time DESC, rowid DESC LIMIT ?"
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)

	var events []upstream.Event
	err := db.Select(&events, query, args...)
	return events, err
}

// CountEvents returns the total number of stored update events.
func (db *DB) CountEvents() (int64, error) {
	var n int64
	err := db.Get(&n, `SELECT COUNT(*) FROM upstream_update`)
	return n, err
}
