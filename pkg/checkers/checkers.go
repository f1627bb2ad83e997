// Package checkers assembles the default checker registry: one checker
// per upstream type, all sharing one HTTP client.
package checkers

import (
	"github.com/pkgwatch/pkgwatch/pkg/checkers/bitbucket"
	"github.com/pkgwatch/pkgwatch/pkg/checkers/cgit"
	"github.com/pkgwatch/pkgwatch/pkg/checkers/dirlist"
	"github.com/pkgwatch/pkgwatch/pkg/checkers/feed"
	"github.com/pkgwatch/pkgwatch/pkg/checkers/ftpdir"
	"github.com/pkgwatch/pkgwatch/pkg/checkers/github"
	"github.com/pkgwatch/pkgwatch/pkg/checkers/gitlab"
	"github.com/pkgwatch/pkgwatch/pkg/checkers/htmlsel"
	"github.com/pkgwatch/pkgwatch/pkg/checkers/launchpad"
	"github.com/pkgwatch/pkgwatch/pkg/checkers/npm"
	"github.com/pkgwatch/pkgwatch/pkg/checkers/pypi"
	"github.com/pkgwatch/pkgwatch/pkg/checkers/rubygems"
	"github.com/pkgwatch/pkgwatch/pkg/checkers/sourceforge"
	"github.com/pkgwatch/pkgwatch/pkg/fetch"
	"github.com/pkgwatch/pkgwatch/pkg/upstream"
)

// Default builds the registry with every supported upstream type.
func Default(client *fetch.Client) *upstream.Registry {
	dl := dirlist.New(client)
	return upstream.NewRegistry(
		feed.New(client),
		github.New(client),
		bitbucket.New(client),
		gitlab.New(client),
		pypi.New(client),
		rubygems.New(client),
		npm.New(client),
		cgit.New(client),
		launchpad.New(client),
		sourceforge.New(client),
		dl,
		alias{name: "dirlisting", Checker: dl},
		ftpdir.New(),
		htmlsel.New(client),
	)
}

// alias registers an existing checker under a second type name.
type alias struct {
	upstream.Checker
	name string
}

func (a alias) Type() string { return a.name }
