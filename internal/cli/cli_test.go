package cli

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pkgwatch/pkgwatch/internal/config"
	"github.com/pkgwatch/pkgwatch/pkg/engine"
)

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	printSummary(&buf, &engine.Summary{
		Checked:     5,
		NewEvents:   3,
		NotModified: 1,
		Duration:    1234 * time.Millisecond,
		Failed: []engine.Failure{
			{Upstream: "broken", Err: errors.New("upstream unreachable")},
		},
		Deferred: []engine.Deferral{
			{Upstream: "github-thing", RetryAfter: time.Minute},
		},
	})

	out := buf.String()
	for _, want := range []string{
		"checked 5 subscriptions",
		"3 new",
		"1 unchanged",
		"1 failed",
		"1 deferred",
		"failed: broken: upstream unreachable",
		"deferred: github-thing (retry after 1m0s)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestRegistryCoversCatalogTypes(t *testing.T) {
	a := &app{cfg: &config.Config{}}
	reg := a.newRegistry()
	for _, typ := range []string{"feed", "github", "bitbucket", "gitlab", "pypi", "rubygems", "npm", "cgit", "launchpad", "sourceforge", "dirlist", "dirlisting", "ftp", "htmlsel"} {
		if _, err := reg.Dispatch(typ); err != nil {
			t.Errorf("type %q not registered: %v", typ, err)
		}
	}
}
