package store

import "database/sql"

// Package is one tracked source package and the version currently shipped.
type Package struct {
	Name        string `db:"name"`
	Category    string `db:"category"`
	Section     string `db:"section"`
	PkgSection  string `db:"pkg_section"`
	Version     string `db:"version"`
	Release     string `db:"release"`
	Description string `db:"description"`
}

// UpsertPackage creates or replaces the package row.
func (db *DB) UpsertPackage(p Package) error {
	query := `REPLACE INTO packages (name, category, section, pkg_section, version, release, description)
		VALUES (:name, :category, :section, :pkg_section, :version, :release, :description)`
	_, err := db.NamedExec(query, p)
	return err
}

// GetPackage returns the package by name, or (nil, nil) when absent.
func (db *DB) GetPackage(name string) (*Package, error) {
	p := &Package{}
	err := db.Get(p, `SELECT name, category, section, pkg_section, version, release, description
		FROM packages WHERE name = ?`, name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ListPackages returns all packages ordered by name.
func (db *DB) ListPackages() ([]Package, error) {
	var pkgs []Package
	err := db.Select(&pkgs, `SELECT name, category, section, pkg_section, version, release, description
		FROM packages ORDER BY name`)
	return pkgs, err
}

// LinkPackage associates a package with the upstream that feeds it.
func (db *DB) LinkPackage(pkg, upstream string) error {
	_, err := db.Exec(`REPLACE INTO package_upstream (package, upstream) VALUES (?, ?)`, pkg, upstream)
	return err
}

// UpstreamForPackage returns the upstream name linked to pkg, or "" if none.
func (db *DB) UpstreamForPackage(pkg string) (string, error) {
	var name string
	err := db.Get(&name, `SELECT upstream FROM package_upstream WHERE package = ?`, pkg)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return name, err
}
