// Package version implements a deterministic total order over heterogeneous
// version strings, plus the filename/tag heuristics used to pull versions
// out of release artifacts.
//
// The comparison is Debian-style: strings are split into alternating runs
// of digits and non-digits, digit runs compare numerically, non-digit runs
// compare by a modified byte order in which '~' sorts before everything
// (so "1.0~rc1" < "1.0"). This is a heuristic fallback that behaves sanely
// for semver, date-based and epoch/suffix schemes alike; it makes no
// guarantee of matching any particular upstream's own ordering for exotic
// schemes.
package version

import (
	"regexp"
	"strings"
)

var (
	reRun       = regexp.MustCompile(`\d+|\D+`)
	reDigits    = regexp.MustCompile(`^\d+$`)
	reCharClass = regexp.MustCompile(`[A-Za-z]+|\d+|[._+~-]+`)
	rePrefix    = regexp.MustCompile(`(?i)^(?:version|ver|v|releases|release|rel|r)[._/-]?`)
	reVersion   = regexp.MustCompile(`^(?:\d+\.\d+|\d{3,})`)
)

// Compare returns -1, 0 or 1 as a sorts before, equal to or after b.
func Compare(a, b string) int {
	ra := reRun.FindAllString(a, -1)
	rb := reRun.FindAllString(b, -1)
	for i := 0; i < len(ra) || i < len(rb); i++ {
		x, y := "0", "0"
		if i < len(ra) {
			x = ra[i]
		}
		if i < len(rb) {
			y = rb[i]
		}
		if reDigits.MatchString(x) && reDigits.MatchString(y) {
			if c := compareNumeric(x, y); c != 0 {
				return c
			}
		} else if c := compareRuns(x, y); c != 0 {
			return c
		}
	}
	return strings.Compare(a, b)
}

// Less reports whether a sorts strictly before b.
func Less(a, b string) bool { return Compare(a, b) < 0 }

// compareNumeric compares two all-digit runs as integers of arbitrary
// length: strip leading zeros, then longer wins, then lexicographic.
func compareNumeric(a, b string) int {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}

// charOrder assigns '~' a value below every other byte, digits just above
// it, letters their byte value, and everything else above the letters.
func charOrder(c byte) int {
	switch {
	case c == '~':
		return -1
	case c >= '0' && c <= '9':
		return int(c-'0') + 1
	case (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z'):
		return int(c)
	default:
		return int(c) + 256
	}
}

func compareRuns(a, b string) int {
	for i := 0; i < len(a) || i < len(b); i++ {
		x, y := 0, 0
		if i < len(a) {
			x = charOrder(a[i])
		}
		if i < len(b) {
			y = charOrder(b[i])
		}
		if x != y {
			if x < y {
				return -1
			}
			return 1
		}
	}
	return 0
}

// StripPrefix removes a leading "v"/"version"/"release" style marker and,
// when pkg is given, a leading package-name prefix ("foo-1.2" -> "1.2").
// Versions with no dots get their underscores promoted to dots.
func StripPrefix(s, pkg string) string {
	v := rePrefix.ReplaceAllString(s, "")
	if pkg != "" {
		re, err := regexp.Compile(`(?i)^` + regexp.QuoteMeta(pkg) + `[._-]`)
		if err == nil {
			v = re.ReplaceAllString(v, "")
		}
	}
	if !strings.Contains(v, ".") {
		v = strings.ReplaceAll(v, "_", ".")
	}
	return v
}

// Plausible reports whether s looks like a version at all (either has a
// dotted numeric component or a run of three-plus digits).
func Plausible(s string) bool { return reVersion.MatchString(s) }

// Format builds a shape-matching regexp from a known version, so that
// candidates of the same shape ("1.2.3" vs date stamps) can be preferred.
// An empty version yields a match-anything pattern.
func Format(version string) *regexp.Regexp {
	if version == "" {
		return regexp.MustCompile("")
	}
	var b strings.Builder
	b.WriteString("^")
	for _, s := range reCharClass.FindAllString(version, -1) {
		switch {
		case reDigits.MatchString(s):
			if len(s) < 3 {
				b.WriteString(`\d+`)
			} else {
				b.WriteString(`\d{3,}`)
			}
		case isAlpha(s):
			b.WriteString(`[A-Za-z]+`)
		default:
			b.WriteString(`[._+~-]+`)
		}
	}
	return regexp.MustCompile(b.String())
}

func isAlpha(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !((c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')) {
			return false
		}
	}
	return len(s) > 0
}
