// Package listing parses Apache and nginx style directory index pages.
// Servers render these in one of three shapes, a <pre> block, a <table>
// with recognizable column headers, or a bare <ul>, and this package
// tries each in that order.
package listing

import (
	"io"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Entry is one row of a directory listing. Size is -1 when the page
// did not state one, Modified is zero when no timestamp was parsed.
type Entry struct {
	Name        string
	Modified    time.Time
	Size        int64
	Description string
}

// IsDir reports whether the entry names a subdirectory.
func (e Entry) IsDir() bool { return strings.HasSuffix(e.Name, "/") }

var datetimeFormats = []struct {
	re     *regexp.Regexp
	layout string
}{
	{regexp.MustCompile(`^\d+-[A-Z][a-z]{2}-\d{4} \d+:\d{2}`), "2-Jan-2006 15:04"},
	{regexp.MustCompile(`^\d{4}-\d+-\d+ \d+:\d{2}`), "2006-1-2 15:04"},
	{regexp.MustCompile(`^\d{4}-[A-Z][a-z]{2}-\d+ \d+:\d{2}:\d{2}`), "2006-Jan-2 15:04:05"},
	{regexp.MustCompile(`^[A-Z][a-z]{2} [A-Z][a-z]{2} +\d+ \d{2}:\d{2}:\d{2} \d{4}`), "Mon Jan _2 15:04:05 2006"},
	{regexp.MustCompile(`^\d{4}-\d+-\d+`), "2006-1-2"},
	{regexp.MustCompile(`^\d+/\d+/\d{4} \d{2}:\d{2}:\d{2} [+-]\d{4}`), "2/1/2006 15:04:05 -0700"},
}

var (
	reFileSize   = regexp.MustCompile(`(?i)^(?:\d+(?:\.\d+)? ?[BKMGTPEZY]|\d+|-)`)
	reAbsPath    = regexp.MustCompile(`^(?:(?:ht|f)tps?:/)?/`)
	reCommonHead = regexp.MustCompile(`(?i)Name|(Last )?modifi(ed|cation)|date|Size|Description|Metadata|Type|Parent Directory`)
)

// Parse extracts the directory name and file entries from an index
// page. An empty listing with no error means the page had none of the
// known layouts.
func Parse(r io.Reader) (cwd string, entries []Entry, err error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", nil, err
	}

	if t := doc.Find("title").First().Text(); strings.HasPrefix(t, "Index of ") {
		cwd = strings.TrimPrefix(t, "Index of ")
	} else if h := strings.TrimSpace(doc.Find("h1").First().Text()); strings.HasPrefix(h, "Index of ") {
		cwd = strings.TrimPrefix(h, "Index of ")
	}
	doc.Find("img").Remove()

	var pre *goquery.Selection
	doc.Find("pre").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		linked := false
		s.Find("a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
			if strings.TrimSpace(a.Text()) != "" {
				linked = true
				return false
			}
			return true
		})
		if linked {
			pre = s
			return false
		}
		return true
	})
	if pre != nil {
		return cwd, parsePre(pre), nil
	}

	var table *goquery.Selection
	doc.Find("table").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if reCommonHead.MatchString(s.Text()) {
			table = s
			return false
		}
		return true
	})
	if table != nil {
		return cwd, parseTable(table), nil
	}

	if ul := doc.Find("ul").First(); ul.Length() > 0 {
		return cwd, parseUnordered(ul), nil
	}
	return cwd, nil, nil
}

// parsePre handles the classic Apache fancy-index layout: anchors
// interleaved with text nodes carrying the timestamp, size, and
// description columns.
func parsePre(pre *goquery.Selection) []Entry {
	root := pre.Get(0)
	start := root.FirstChild
	for n := root.FirstChild; n != nil; n = n.NextSibling {
		if n.Type == html.ElementNode && n.Data == "hr" {
			start = n.NextSibling
			break
		}
	}

	var entries []Entry
	started := false
	cur := Entry{Size: -1}
	have := false

	flush := func() {
		if have && cur.Name != "" {
			entries = append(entries, cur)
		}
		cur = Entry{Size: -1}
		have = false
	}

	for n := start; n != nil; n = n.NextSibling {
		switch {
		case n.Type == html.ElementNode && n.Data == "a":
			text := strings.TrimSpace(nodeText(n))
			href := attr(n, "href")
			if text == "" {
				continue
			}
			if started {
				flush()
				cur.Name = unquote(href)
				have = true
			} else if isParentLink(text) {
				started = true
			} else if href != "" && href[0] != '?' && href[0] != '/' {
				// No parent link above the first file; start here.
				started = true
				cur.Name = unquote(href)
				have = true
			}
		case n.Type == html.TextNode:
			line, _, _ := strings.Cut(strings.ReplaceAll(n.Data, "\r", ""), "\n")
			line = strings.TrimLeft(line, " \t")
			if t, rest, ok := matchDatetime(line); ok {
				cur.Modified = t
				line = strings.TrimLeft(rest, " \t")
			}
			if m := reFileSize.FindString(line); m != "" {
				if m != "-" {
					if size, ok := humanSize(strings.ReplaceAll(m, " ", "")); ok {
						cur.Size = size
					}
				}
				line = strings.TrimLeft(line[len(m):], " \t")
			}
			if line = strings.TrimRight(line, " \t"); line != "" {
				if cur.Name != "" && line == "/" {
					cur.Name += "/"
				} else {
					cur.Description = line
				}
			}
		}
	}
	flush()
	return entries
}

func parseTable(table *goquery.Selection) []Entry {
	var entries []Entry
	var heads []string
	started := false

	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		if !started {
			if tr.Find("hr").Length() > 0 {
				started = true
				return
			}
			if !reCommonHead.MatchString(tr.Text()) {
				return
			}
			cells := tr.Find("th")
			if cells.Length() == 0 {
				cells = tr.Find("td")
			}
			cells.Each(func(_ int, th *goquery.Selection) {
				name := strings.ToLower(strings.TrimSpace(strings.Trim(th.Text(), " ")))
				switch {
				case name == "":
				case name == "name" || name == "size" || name == "description":
					heads = append(heads, name)
				case strings.HasSuffix(name, "name") || strings.HasPrefix(name, "file") || strings.HasPrefix(name, "download"):
					heads = append(heads, "name")
				case strings.Contains(name, "modifi") || strings.HasPrefix(name, "uploaded") || strings.Contains(name, "date"):
					heads = append(heads, "modified")
				case strings.Contains(name, "size"):
					heads = append(heads, "size")
				case strings.HasSuffix(name, "signature"):
					heads = append(heads, "signature")
				default:
					heads = append(heads, "description")
				}
			})
			if len(heads) == 0 {
				heads = []string{"name", "modified", "size", "description"}
			} else if !contains(heads, "name") {
				heads[0] = "name"
			}
			started = true
			return
		}

		parent := goquery.NodeName(tr.Parent())
		if parent == "thead" || parent == "tfoot" || tr.Find("th").Length() > 0 {
			return
		}

		cur := Entry{Size: -1}
		col := 0
		broke := false
		tr.Find("td").EachWithBreak(func(_ int, td *goquery.Selection) bool {
			if _, ok := td.Attr("colspan"); ok || col >= len(heads) {
				return true
			}
			switch heads[col] {
			case "name":
				a := td.Find("a").First()
				if a.Length() == 0 {
					return true
				}
				text := strings.TrimSpace(a.Text())
				href := a.AttrOr("href", "")
				if text == "" || href == "" || href[0] == '#' {
					return true
				}
				if text == "Parent Directory" || href == "../" {
					broke = true
					return false
				}
				cur.Name = unquote(href)
				if strings.HasSuffix(cur.Name, text) {
					cur.Name = text
				}
				col = 1
			case "modified":
				if s := strings.TrimSpace(td.Text()); s != "" {
					if t, _, ok := matchDatetime(s); ok {
						cur.Modified = t
					} else if v, ok := td.Attr("data-sort-value"); ok {
						if secs, err := strconv.ParseInt(v, 10, 64); err == nil {
							cur.Modified = time.Unix(secs, 0).UTC()
						}
					}
				}
				col++
			case "size":
				s := strings.TrimSpace(td.Text())
				if v, ok := td.Attr("data-sort-value"); ok && s != "-" && s != "" {
					if size, err := strconv.ParseInt(v, 10, 64); err == nil {
						cur.Size = size
					}
				} else if m := reFileSize.FindString(s); m != "" && m != "-" {
					if size, ok := humanSize(strings.ReplaceAll(m, " ", "")); ok {
						cur.Size = size
					}
				}
				col++
			case "description":
				if cur.Description == "" {
					if h, err := td.Html(); err == nil {
						cur.Description = strings.TrimSpace(strings.Trim(h, " "))
					}
				}
				col++
			default:
				if col > 0 {
					col++
				}
			}
			return true
		})
		if !broke && cur.Name != "" {
			entries = append(entries, cur)
		}
	})
	return entries
}

func parseUnordered(ul *goquery.Selection) []Entry {
	var entries []Entry
	ul.Find("li").Each(func(_ int, li *goquery.Selection) {
		href := li.Find("a").First().AttrOr("href", "")
		if href == "" {
			return
		}
		name := unquote(href)
		if isParentLink(name) || name == "." || name == "./" || name == "#" || reAbsPath.MatchString(name) {
			return
		}
		entries = append(entries, Entry{Name: name, Size: -1})
	})
	return entries
}

func matchDatetime(s string) (time.Time, string, bool) {
	for _, f := range datetimeFormats {
		if m := f.re.FindString(s); m != "" {
			if t, err := time.Parse(f.layout, m); err == nil {
				return t, s[len(m):], true
			}
		}
	}
	return time.Time{}, s, false
}

// humanSize converts listing sizes like "1.2M" or "318" to bytes.
func humanSize(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	const units = "BKMGTPEZY"
	c := s[len(s)-1]
	if c >= 'a' && c <= 'z' {
		c -= 'a' - 'A'
	}
	unit := strings.IndexByte(units, c)
	if unit < 0 {
		return 0, false
	}
	num, err := strconv.ParseFloat(strings.TrimSpace(s[:len(s)-1]), 64)
	if err != nil {
		return 0, false
	}
	return int64(num * float64(int64(1)<<(unit*10))), true
}

func isParentLink(s string) bool {
	return s == "Parent Directory" || s == ".." || s == "../"
}

func unquote(s string) string {
	if u, err := url.PathUnescape(s); err == nil {
		return u
	}
	return s
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		} else {
			b.WriteString(nodeText(c))
		}
	}
	return b.String()
}
