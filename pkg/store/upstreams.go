package store

import (
	"database/sql"

	"github.com/pkgwatch/pkgwatch/pkg/upstream"
)

// UpsertUpstream creates or updates an upstream. If the checker type
// changed, cached cursors for its subscriptions are dropped and the
// subscription channels created for the former type are removed, so the
// old checker never runs against the upstream again.
func (db *DB) UpsertUpstream(u upstream.Upstream) error {
	tx, err := db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var prevType string
	err = tx.Get(&prevType, `SELECT type FROM upstreams WHERE name = ?`, u.Name)
	if err != nil && err != sql.ErrNoRows {
		return err
	}
	if err == nil && prevType != u.Type {
		_, err = tx.Exec(`DELETE FROM subscription_cursor WHERE subscription IN
			(SELECT id FROM upstream_subscription WHERE upstream = ?)`, u.Name)
		if err != nil {
			return err
		}
		_, err = tx.Exec(`DELETE FROM upstream_subscription WHERE upstream = ? AND type = ?`,
			u.Name, prevType)
		if err != nil {
			return err
		}
	}

	_, err = tx.NamedExec(`REPLACE INTO upstreams (name, type, url, branch)
		VALUES (:name, :type, :url, :branch)`, u)
	if err != nil {
		return err
	}
	return tx.Commit()
}

// GetUpstream returns the upstream by name, or (nil, nil) when absent.
func (db *DB) GetUpstream(name string) (*upstream.Upstream, error) {
	u := &upstream.Upstream{}
	err := db.Get(u, `SELECT name, type, url, branch FROM upstreams WHERE name = ?`, name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// ListUpstreams returns all upstreams ordered by name.
func (db *DB) ListUpstreams() ([]upstream.Upstream, error) {
	var ups []upstream.Upstream
	err := db.Select(&ups, `SELECT name, type, url, branch FROM upstreams ORDER BY name`)
	return ups, err
}

// DeleteUpstream removes an upstream together with its subscriptions and
// cursors. Stored update events are kept as history.
func (db *DB) DeleteUpstream(name string) error {
	tx, err := db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM subscription_cursor WHERE subscription IN
		(SELECT id FROM upstream_subscription WHERE upstream = ?)`, name); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM upstream_subscription WHERE upstream = ?`, name); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM upstreams WHERE name = ?`, name); err != nil {
		return err
	}
	return tx.Commit()
}
