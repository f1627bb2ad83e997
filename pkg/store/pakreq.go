package store

import "database/sql"

// Request is a packaging request: someone wants a package added or
// updated. Independent of the update pipeline.
type Request struct {
	Package     string `db:"package"`
	Description string `db:"description"`
	URL         string `db:"url"`
	Resolution  string `db:"resolution"`
}

// AddRequest files a packaging request, replacing any previous request
// for the same package.
func (db *DB) AddRequest(r Request) error {
	_, err := db.NamedExec(`REPLACE INTO pakreq (package, description, url, resolution)
		VALUES (:package, :description, :url, :resolution)`, r)
	return err
}

// ResolveRequest records the outcome of a request.
func (db *DB) ResolveRequest(pkg, resolution string) error {
	_, err := db.Exec(`UPDATE pakreq SET resolution = ? WHERE package = ?`, resolution, pkg)
	return err
}

// GetRequest returns the request for pkg, or (nil, nil) when absent.
func (db *DB) GetRequest(pkg string) (*Request, error) {
	r := &Request{}
	err := db.Get(r, `SELECT package, description, url, resolution FROM pakreq WHERE package = ?`, pkg)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// ListRequests returns requests; open only (empty resolution) unless all
// is set.
func (db *DB) ListRequests(all bool) ([]Request, error) {
	query := `SELECT package, description, url, resolution FROM pakreq`
	if !all {
		query += ` WHERE resolution = '' OR resolution IS NULL`
	}
	query += ` ORDER BY package`

	var reqs []Request
	err := db.Select(&reqs, query)
	return reqs, err
}
