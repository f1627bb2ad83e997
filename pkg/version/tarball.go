package version

import (
	"regexp"
	"strings"
)

var (
	reTarball = regexp.MustCompile(`(?i)^(.+?)[._-][vr]?(\d.*?)(?:[._-](?:orig|src|source))?(\.tar\.xz|\.tar\.bz2|\.tar\.gz|\.t.z|\.zip|\.gem)$`)
	reBinary  = regexp.MustCompile(`(?i)[._+-](linux32|linux64|windows|win32|win64|win\b|w32|w64|mingw|msvc|mac|osx|darwin|ios|x86|i.86|x64|amd64|arm64|armhf|armel|mips|ppc|powerpc|s390x|portable|dbgsym)`)
)

// Tarball is a candidate release artifact: a bare filename plus whatever
// timestamp and link the source attached to it.
type Tarball struct {
	Name    string
	Updated int64
	URL     string
}

// Tag is a candidate SCM tag.
type Tag struct {
	Name    string
	Updated int64
	URL     string
}

// ParseTarball splits a source-tarball filename into package prefix and
// version. Returns ok=false for names that don't look like source tarballs.
func ParseTarball(filename string) (prefix, ver string, ok bool) {
	m := reTarball.FindStringSubmatch(filename)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// IsBinaryArtifact reports whether a filename names a per-platform binary
// build rather than a source release.
func IsBinaryArtifact(filename string) bool { return reBinary.MatchString(filename) }

// MaxTarball picks the highest-versioned source tarball from list. When
// prefix is non-empty only filenames starting with it (case-insensitive)
// are considered, and candidates whose parsed prefix equals it exactly are
// preferred. origVersion, when known, biases toward candidates of the same
// version shape. Returns ok=false when nothing qualifies.
func MaxTarball(list []Tarball, prefix, origVersion string) (string, Tarball, bool) {
	lower := strings.ToLower(prefix)
	shape := Format(origVersion)

	var (
		best      Tarball
		bestVer   string
		bestPfx   bool
		bestShape bool
		found     bool
	)
	for _, t := range list {
		if lower != "" && !strings.HasPrefix(strings.ToLower(t.Name), lower) {
			continue
		}
		if IsBinaryArtifact(t.Name) {
			continue
		}
		pfx, ver, ok := ParseTarball(t.Name)
		if !ok {
			continue
		}
		pfxMatch := prefix != "" && pfx == prefix
		shapeMatch := shape.MatchString(ver)
		if !found || lessCandidate(bestPfx, bestShape, bestVer, pfxMatch, shapeMatch, ver) {
			best, bestVer, bestPfx, bestShape, found = t, ver, pfxMatch, shapeMatch, true
		}
	}
	return bestVer, best, found
}

// MaxTag picks the highest version among SCM tags, stripping the project
// prefix and version markers first and discarding tags that don't look like
// versions at all.
func MaxTag(tags []Tag, prefix, origVersion string) (string, Tag, bool) {
	shape := Format(origVersion)

	var (
		best      Tag
		bestVer   string
		bestShape bool
		found     bool
	)
	for _, t := range tags {
		ver := StripPrefix(t.Name, prefix)
		if !Plausible(ver) {
			continue
		}
		shapeMatch := shape.MatchString(ver)
		if !found || lessCandidate(true, bestShape, bestVer, true, shapeMatch, ver) {
			best, bestVer, bestShape, found = t, ver, shapeMatch, true
		}
	}
	return bestVer, best, found
}

// lessCandidate orders candidates by (prefix match, shape match, version).
func lessCandidate(curPfx, curShape bool, curVer string, pfx, shape bool, ver string) bool {
	if curPfx != pfx {
		return pfx
	}
	if curShape != shape {
		return shape
	}
	return Compare(curVer, ver) < 0
}
