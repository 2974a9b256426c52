package catalog

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Row is one search result scraped from a catalog payload.
type Row struct {
	SubjectID string
	Tag       string
	Title     string
	// Year is a release year found alongside the row, 0 when unknown.
	Year int
}

// Parser isolates the markup conventions of the catalog's search page.
type Parser interface {
	// ParseRows returns result rows in document order.
	ParseRows(payload string) []Row
	// FindDetailPath returns the slug-based details path for subjectID, or "".
	FindDetailPath(payload, subjectID, slug string) string
}

var (
	// The search page embeds its state as flat arrays listing
	// "<subjectId>", "<tag>", "<title>" per result.
	rowRegex       = regexp.MustCompile(`"(\d{16,})",\s*"((?:[^"\\]|\\.)*)",\s*"((?:[^"\\]|\\.)*)"`)
	tagYearRegex   = regexp.MustCompile(`^((?:19|20)\d{2})(?:-\d{2}-\d{2})?$`)
	titleYearRegex = regexp.MustCompile(`\(((?:19|20)\d{2})\)`)
)

// ScriptParser reads rows and detail paths from the serialized page state.
type ScriptParser struct{}

// ParseRows implements Parser.
func (ScriptParser) ParseRows(payload string) []Row {
	matches := rowRegex.FindAllStringSubmatch(payload, -1)
	rows := make([]Row, 0, len(matches))
	for _, m := range matches {
		tag := unescape(m[2])
		title := unescape(m[3])
		rows = append(rows, Row{
			SubjectID: m[1],
			Tag:       tag,
			Title:     title,
			Year:      rowYear(tag, title),
		})
	}
	return rows
}

// FindDetailPath implements Parser. It looks only at the text preceding the
// first quoted occurrence of subjectID and returns the last quoted string
// starting with slug.
func (ScriptParser) FindDetailPath(payload, subjectID, slug string) string {
	if subjectID == "" || slug == "" {
		return ""
	}

	idx := strings.Index(payload, `"`+subjectID+`"`)
	if idx < 0 {
		return ""
	}
	before := payload[:idx]

	pathRegex, err := regexp.Compile(`(?i)"(` + regexp.QuoteMeta(slug) + `[^"]+)"`)
	if err != nil {
		return ""
	}

	matches := pathRegex.FindAllStringSubmatch(before, -1)
	if len(matches) == 0 {
		return ""
	}
	return matches[len(matches)-1][1]
}

// AnchorParser reads rows and detail paths from rendered result links of the
// form /movies/<slug>?id=<subjectId>.
type AnchorParser struct{}

type anchor struct {
	subjectID string
	segment   string
	text      string
}

func anchors(payload string) []anchor {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(payload))
	if err != nil {
		return nil
	}

	var out []anchor
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		u, err := url.Parse(href)
		if err != nil {
			return
		}
		id := u.Query().Get("id")
		if len(id) < 16 || !isDigits(id) {
			return
		}
		segment := u.Path
		if i := strings.LastIndex(segment, "/"); i >= 0 {
			segment = segment[i+1:]
		}
		text := strings.TrimSpace(sel.Text())
		if text == "" {
			text = strings.TrimSpace(sel.AttrOr("title", ""))
		}
		out = append(out, anchor{subjectID: id, segment: segment, text: text})
	})
	return out
}

// ParseRows implements Parser.
func (AnchorParser) ParseRows(payload string) []Row {
	var rows []Row
	for _, a := range anchors(payload) {
		if a.text == "" {
			continue
		}
		rows = append(rows, Row{
			SubjectID: a.subjectID,
			Tag:       "anchor",
			Title:     a.text,
			Year:      rowYear("", a.text),
		})
	}
	return rows
}

// FindDetailPath implements Parser.
func (AnchorParser) FindDetailPath(payload, subjectID, slug string) string {
	if subjectID == "" || slug == "" {
		return ""
	}
	for _, a := range anchors(payload) {
		if a.subjectID == subjectID && strings.HasPrefix(strings.ToLower(a.segment), slug) {
			return a.segment
		}
	}
	return ""
}

// ChainParser consults each parser in order and keeps the first non-empty answer.
type ChainParser []Parser

// DefaultParser reads the serialized page state first and falls back to links.
func DefaultParser() Parser {
	return ChainParser{ScriptParser{}, AnchorParser{}}
}

// ParseRows implements Parser.
func (c ChainParser) ParseRows(payload string) []Row {
	for _, p := range c {
		if rows := p.ParseRows(payload); len(rows) > 0 {
			return rows
		}
	}
	return nil
}

// FindDetailPath implements Parser.
func (c ChainParser) FindDetailPath(payload, subjectID, slug string) string {
	for _, p := range c {
		if path := p.FindDetailPath(payload, subjectID, slug); path != "" {
			return path
		}
	}
	return ""
}

func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	if out, err := strconv.Unquote(`"` + s + `"`); err == nil {
		return out
	}
	return s
}

// rowYear reads a year from a tag that is a bare year or release date, or
// from a parenthesized year in the title. Years that are part of a title
// ("2001: A Space Odyssey") are not release years.
func rowYear(tag, title string) int {
	if m := tagYearRegex.FindStringSubmatch(strings.TrimSpace(tag)); m != nil {
		y, _ := strconv.Atoi(m[1])
		return y
	}
	if m := titleYearRegex.FindStringSubmatch(title); m != nil {
		y, _ := strconv.Atoi(m[1])
		return y
	}
	return 0
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
