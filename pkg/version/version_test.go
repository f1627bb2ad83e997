package version

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestCompare(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"1.0", "1.0", 0},
		{"1.0", "1.1", -1},
		{"1.9", "1.10", -1},
		{"1.99", "2.0", -1},
		{"1.0", "1.0.1", -1},
		{"1.0~rc1", "1.0", -1},
		{"1.0~beta", "1.0~rc1", -1},
		{"1.0a", "1.0", 1},
		{"1.02", "1.2", -1}, // numerically equal, byte order breaks the tie
		{"20240101", "20231231", 1},
		{"2.0-rc1", "2.0", 1},
		{"1.0+git20240101", "1.0", 1},
	}
	for _, c := range cases {
		if got := Compare(c.a, c.b); sign(got) != c.want {
			t.Errorf("Compare(%q, %q) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	}
	return 0
}

func genVersion() gopter.Gen {
	return gen.OneGenOf(
		gen.RegexMatch(`[0-9]{1,3}\.[0-9]{1,3}(\.[0-9]{1,3})?`),
		gen.RegexMatch(`[0-9]{1,2}\.[0-9]{1,2}(~rc[0-9])?`),
		gen.RegexMatch(`[0-9]{8}`),
		gen.RegexMatch(`[0-9]\.[0-9]{1,2}[a-z]?`),
	)
}

func TestCompareOrderProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("reflexive", prop.ForAll(
		func(a string) bool { return Compare(a, a) == 0 },
		genVersion(),
	))

	properties.Property("antisymmetric", prop.ForAll(
		func(a, b string) bool { return sign(Compare(a, b)) == -sign(Compare(b, a)) },
		genVersion(),
		genVersion(),
	))

	properties.Property("transitive", prop.ForAll(
		func(a, b, c string) bool {
			if Compare(a, b) <= 0 && Compare(b, c) <= 0 {
				return Compare(a, c) <= 0
			}
			return true
		},
		genVersion(),
		genVersion(),
		genVersion(),
	))

	properties.Property("appending a component sorts after", prop.ForAll(
		func(a string, n uint8) bool { return Compare(a, a+"."+string('1'+rune(n%9))) < 0 },
		genVersion(),
		gen.UInt8(),
	))

	properties.TestingRun(t)
}

func TestStripPrefix(t *testing.T) {
	cases := []struct {
		in, pkg, want string
	}{
		{"v1.2.3", "", "1.2.3"},
		{"release-2.0", "", "2.0"},
		{"foo-1.2", "foo", "1.2"},
		{"foo_1_2", "foo", "1.2"},
		{"Foo-1.2", "foo", "1.2"},
		{"1.2.3", "", "1.2.3"},
		{"ver1.0", "", "1.0"},
	}
	for _, c := range cases {
		if got := StripPrefix(c.in, c.pkg); got != c.want {
			t.Errorf("StripPrefix(%q, %q) = %q, want %q", c.in, c.pkg, got, c.want)
		}
	}
}

func TestPlausible(t *testing.T) {
	for _, s := range []string{"1.0", "0.99.1", "20240101", "123"} {
		if !Plausible(s) {
			t.Errorf("Plausible(%q) = false", s)
		}
	}
	for _, s := range []string{"master", "tip", "v", "1", "latest"} {
		if Plausible(s) {
			t.Errorf("Plausible(%q) = true", s)
		}
	}
}

func TestParseTarball(t *testing.T) {
	cases := []struct {
		in          string
		prefix, ver string
		ok          bool
	}{
		{"foo-1.2.3.tar.gz", "foo", "1.2.3", true},
		{"foo-bar_2.0.orig.tar.xz", "foo-bar", "2.0", true},
		{"foo-v1.0.zip", "foo", "1.0", true},
		{"libbar-0.9-src.tar.bz2", "libbar", "0.9", true},
		{"rails-7.1.0.gem", "rails", "7.1.0", true},
		{"README.txt", "", "", false},
		{"foo.tar.gz", "", "", false},
	}
	for _, c := range cases {
		prefix, ver, ok := ParseTarball(c.in)
		if ok != c.ok || prefix != c.prefix || ver != c.ver {
			t.Errorf("ParseTarball(%q) = (%q, %q, %v), want (%q, %q, %v)",
				c.in, prefix, ver, ok, c.prefix, c.ver, c.ok)
		}
	}
}

func TestMaxTarball(t *testing.T) {
	list := []Tarball{
		{Name: "foo-1.0.tar.gz"},
		{Name: "foo-1.2.tar.gz"},
		{Name: "foo-2.0-linux64.tar.gz"},
		{Name: "foobar-9.9.tar.gz"},
		{Name: "notes.txt"},
	}

	// Exact prefix match beats a higher version under a longer prefix, and
	// the per-platform binary is never a candidate.
	ver, tbl, ok := MaxTarball(list, "foo", "")
	if !ok || ver != "1.2" || tbl.Name != "foo-1.2.tar.gz" {
		t.Errorf("MaxTarball(foo) = (%q, %q, %v), want (1.2, foo-1.2.tar.gz, true)", ver, tbl.Name, ok)
	}

	// Without a prefix the highest version wins outright.
	ver, tbl, ok = MaxTarball(list, "", "")
	if !ok || ver != "9.9" || tbl.Name != "foobar-9.9.tar.gz" {
		t.Errorf("MaxTarball() = (%q, %q, %v), want (9.9, foobar-9.9.tar.gz, true)", ver, tbl.Name, ok)
	}
}

func TestMaxTarballShapeBias(t *testing.T) {
	list := []Tarball{
		{Name: "foo-20240101.tar.gz"},
		{Name: "foo-1.2.tar.gz"},
	}
	// Known version 1.0: the date-stamped candidate has a different shape
	// and loses even though it compares higher.
	ver, _, ok := MaxTarball(list, "foo", "1.0")
	if !ok || ver != "1.2" {
		t.Errorf("MaxTarball shape bias: got %q, want 1.2", ver)
	}
}

func TestMaxTag(t *testing.T) {
	tags := []Tag{
		{Name: "v1.0"},
		{Name: "v1.10"},
		{Name: "foo-1.5"},
		{Name: "master"},
	}
	ver, tag, ok := MaxTag(tags, "foo", "")
	if !ok || ver != "1.10" || tag.Name != "v1.10" {
		t.Errorf("MaxTag = (%q, %q, %v), want (1.10, v1.10, true)", ver, tag.Name, ok)
	}
}

func TestIsBinaryArtifact(t *testing.T) {
	for _, s := range []string{"foo-1.0-linux64.tar.gz", "foo-1.0-win32.zip", "foo_1.0_amd64.tar.gz"} {
		if !IsBinaryArtifact(s) {
			t.Errorf("IsBinaryArtifact(%q) = false", s)
		}
	}
	if IsBinaryArtifact("foo-1.0.tar.gz") {
		t.Error("source tarball flagged as binary")
	}
}
