// Package ftpdir checks FTP directories for new release tarballs. FTP
// has no conditional-request mechanism, so the previous directory
// listing is kept in the cursor state and an unchanged listing is
// reported as not modified.
package ftpdir

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"

	"github.com/pkgwatch/pkgwatch/pkg/upstream"
	"github.com/pkgwatch/pkgwatch/pkg/version"
)

const dialTimeout = 30 * time.Second

type Checker struct{}

func New() *Checker { return &Checker{} }

func (c *Checker) Type() string { return "ftp" }

type state struct {
	Names   []string `json:"names"`
	Version string   `json:"version"`
}

func (c *Checker) Check(ctx context.Context, u upstream.Upstream, sub upstream.Subscription, cur upstream.Cursor) (upstream.Result, error) {
	target := sub.URL
	if target == "" {
		target = u.URL
	}
	parsed, err := url.Parse(target)
	if err != nil || parsed.Hostname() == "" {
		return upstream.Result{Cursor: cur}, fmt.Errorf("%w: bad ftp url %q", upstream.ErrMalformed, target)
	}

	addr := parsed.Host
	if parsed.Port() == "" {
		addr += ":21"
	}
	conn, err := ftp.Dial(addr, ftp.DialWithContext(ctx), ftp.DialWithTimeout(dialTimeout))
	if err != nil {
		return upstream.Result{Cursor: cur}, fmt.Errorf("%w: dial %s: %v", upstream.ErrUnreachable, addr, err)
	}
	defer conn.Quit()

	user, pass := "anonymous", "anonymous"
	if parsed.User != nil {
		user = parsed.User.Username()
		if p, ok := parsed.User.Password(); ok {
			pass = p
		}
	}
	if err := conn.Login(user, pass); err != nil {
		return upstream.Result{Cursor: cur}, fmt.Errorf("%w: login %s: %v", upstream.ErrAuthRequired, addr, err)
	}

	entries, err := conn.List(parsed.Path)
	if err != nil {
		return upstream.Result{Cursor: cur}, fmt.Errorf("%w: list %s: %v", upstream.ErrUnreachable, target, err)
	}
	return c.fromEntries(u, sub, cur, target, entries)
}

// fromEntries is the protocol-independent half, split out for tests.
func (c *Checker) fromEntries(u upstream.Upstream, sub upstream.Subscription, cur upstream.Cursor, target string, entries []*ftp.Entry) (upstream.Result, error) {
	var st state
	if err := cur.LoadState(&st); err != nil {
		st = state{}
	}

	fetchTime := time.Now().Unix()
	var (
		names    []string
		tarballs []version.Tarball
	)
	for _, entry := range entries {
		if entry.Type != ftp.EntryTypeFile {
			continue
		}
		ts := fetchTime
		if !entry.Time.IsZero() {
			ts = entry.Time.Unix()
		}
		names = append(names, entry.Name)
		tarballs = append(tarballs, version.Tarball{Name: entry.Name, Updated: ts})
	}
	sort.Strings(names)

	if len(st.Names) > 0 && equal(st.Names, names) {
		return upstream.Result{Cursor: cur}, upstream.ErrNotModified
	}

	prevVersion := st.Version
	st.Names = names

	ver, tbl, ok := version.MaxTarball(tarballs, u.Name, prevVersion)
	if !ok || (prevVersion != "" && version.Compare(ver, prevVersion) <= 0) {
		if err := cur.SaveState(st); err != nil {
			return upstream.Result{Cursor: cur}, err
		}
		return upstream.Result{Cursor: cur}, nil
	}

	st.Version = ver
	if err := cur.SaveState(st); err != nil {
		return upstream.Result{Cursor: cur}, err
	}
	ts := tbl.Updated
	if ts > fetchTime {
		ts = fetchTime
	}
	if ts > cur.LastUpdate {
		cur.LastUpdate = ts
	}
	return upstream.Result{
		Events: []upstream.Event{{
			Upstream:     u.Name,
			Category:     upstream.CategoryRelease,
			Time:         ts,
			Subscription: sub.ID,
			Title:        fmt.Sprintf("%s %s", u.Name, ver),
			Content:      tbl.Name,
			URL:          strings.TrimSuffix(target, "/") + "/" + tbl.Name,
		}},
		Cursor: cur,
	}, nil
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
