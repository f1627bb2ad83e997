package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/pkgwatch/pkgwatch/pkg/upstream"
)

// ErrUnknownUpstream is returned by CommitCheck when an event references
// an upstream that does not exist.
var ErrUnknownUpstream = errors.New("event references unknown upstream")

// EnsureSubscription inserts the subscription channel if it does not
// exist yet and returns its id either way.
func (db *DB) EnsureSubscription(up, typ, category, url string) (int64, error) {
	_, err := db.Exec(`INSERT OR IGNORE INTO upstream_subscription (upstream, type, category, url)
		VALUES (?, ?, ?, ?)`, up, typ, category, url)
	if err != nil {
		return 0, err
	}
	var id int64
	err = db.Get(&id, `SELECT id FROM upstream_subscription
		WHERE upstream = ? AND type = ? AND category = ? AND url = ?`, up, typ, category, url)
	return id, err
}

// ListSubscriptions returns every subscription, ordered by upstream and id.
func (db *DB) ListSubscriptions() ([]upstream.Subscription, error) {
	var subs []upstream.Subscription
	err := db.Select(&subs, `SELECT id, upstream, type, category, url, last_update
		FROM upstream_subscription ORDER BY upstream, id`)
	return subs, err
}

// SubscriptionsForUpstream returns the subscriptions under one upstream.
func (db *DB) SubscriptionsForUpstream(name string) ([]upstream.Subscription, error) {
	var subs []upstream.Subscription
	err := db.Select(&subs, `SELECT id, upstream, type, category, url, last_update
		FROM upstream_subscription WHERE upstream = ? ORDER BY id`, name)
	return subs, err
}

// LoadCursor assembles the fetch cursor for a subscription: the monotone
// last_update watermark plus any cached validator and checker state.
func (db *DB) LoadCursor(subID int64) (upstream.Cursor, error) {
	cur := upstream.Cursor{}
	err := db.Get(&cur.LastUpdate, `SELECT last_update FROM upstream_subscription WHERE id = ?`, subID)
	if err != nil {
		return cur, err
	}

	row := struct {
		Validator string `db:"validator"`
		State     string `db:"state"`
	}{}
	err = db.Get(&row, `SELECT validator, state FROM subscription_cursor WHERE subscription = ?`, subID)
	if err == sql.ErrNoRows {
		return cur, nil
	}
	if err != nil {
		return cur, err
	}
	cur.Validator = row.Validator
	cur.State = row.State
	return cur, nil
}

// CommitCheck stores a check result atomically: events are inserted with
// url-unique dedup, the subscription watermark advances (never regresses),
// and the cursor is replaced, all in one transaction. Every event must
// reference an existing upstream or the whole commit fails with
// ErrUnknownUpstream. Returns the number of events that were actually new.
func (db *DB) CommitCheck(sub upstream.Subscription, res upstream.Result) (int64, error) {
	tx, err := db.Beginx()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	checked := make(map[string]bool)
	for _, ev := range res.Events {
		if checked[ev.Upstream] {
			continue
		}
		var n int
		if err := tx.Get(&n, `SELECT COUNT(*) FROM upstreams WHERE name = ?`, ev.Upstream); err != nil {
			return 0, err
		}
		if n == 0 {
			return 0, fmt.Errorf("%w: %q", ErrUnknownUpstream, ev.Upstream)
		}
		checked[ev.Upstream] = true
	}

	var inserted int64
	for _, ev := range res.Events {
		r, err := tx.NamedExec(`INSERT OR IGNORE INTO upstream_update
			(upstream, category, time, subscription, title, content, url)
			VALUES (:upstream, :category, :time, :subscription, :title, :content, :url)`, ev)
		if err != nil {
			return 0, err
		}
		n, err := r.RowsAffected()
		if err != nil {
			return 0, err
		}
		inserted += n
	}

	_, err = tx.Exec(`UPDATE upstream_subscription SET last_update = MAX(last_update, ?)
		WHERE id = ?`, res.Cursor.LastUpdate, sub.ID)
	if err != nil {
		return 0, err
	}
	_, err = tx.Exec(`REPLACE INTO subscription_cursor (subscription, validator, state)
		VALUES (?, ?, ?)`, sub.ID, res.Cursor.Validator, res.Cursor.State)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}
