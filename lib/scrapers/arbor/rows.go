package arbor

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"arborwatch/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// Row is one list entry scraped off a portal page, field name → value.
// The field names here are the contract with the watcher's per-section
// configuration (identity and comparison field sets).
type Row map[string]string

// Snapshot is the raw scrape result for one section.
type Snapshot struct {
	Section   string
	Rows      []Row
	ScrapedAt time.Time
	// Complete is only set once every row of the page was extracted.
	// Consumers must treat an incomplete snapshot as a failed scrape,
	// otherwise a truncated page reads as mass removals.
	Complete bool
}

var metaSeparator = regexp.MustCompile(`·|\||–|-{1,2}`)

const maxPreviewLen = 200

// ExtractListRows pulls list-like entries out of a portal container.
// Arbor renders every section as some flavor of list; the selectors are
// deliberately broad so a markup refresh does not silently empty a
// section.
func ExtractListRows(container *goquery.Selection, limit int) []Row {
	items := container.Find("li, div[role=listitem], .ListItem, .card, .row")

	var rows []Row
	items.EachWithBreak(func(i int, item *goquery.Selection) bool {
		if limit > 0 && len(rows) >= limit {
			return false
		}

		row := Row{}

		title := ""
		for _, sel := range []string{"h3", "h4", ".title", ".Heading", "strong"} {
			el := item.Find(sel).First()
			if el.Length() > 0 {
				title = htmlutil.CleanText(el.Text())
				break
			}
		}
		if title == "" {
			title = htmlutil.FirstLine(item.Text())
		}
		if title == "" {
			return true
		}
		row["title"] = title

		sub := item.Find("small, .meta, .subtext, .subtitle")
		if sub.Length() > 0 {
			var parts []string
			sub.EachWithBreak(func(i int, s *goquery.Selection) bool {
				parts = append(parts, htmlutil.CleanText(s.Text()))
				return i < 1
			})
			metaText := strings.Join(parts, " ")
			split := metaSeparator.Split(metaText, -1)
			if len(split) > 0 {
				row["meta"] = strings.TrimSpace(split[0])
			}
			if len(split) > 1 {
				row["when"] = strings.TrimSpace(split[1])
			}
		}

		preview := item.Find("p, .preview, .desc, .description").First()
		if preview.Length() > 0 {
			text := htmlutil.CleanText(preview.Text())
			if len(text) > maxPreviewLen {
				// back off to a rune boundary so the cut never leaves
				// an invalid utf-8 tail in the preview
				cut := maxPreviewLen
				for cut > 0 && !utf8.RuneStart(text[cut]) {
					cut--
				}
				text = strings.TrimRight(text[:cut], " ") + " …"
			}
			if text != "" {
				row["preview"] = text
			}
		}

		if href, ok := item.Find("a").First().Attr("href"); ok && href != "" {
			row["href"] = href
		}

		// read/unread state is volatile: opening a message changes it
		// without the message itself changing
		class := item.AttrOr("class", "")
		if strings.Contains(class, "unread") {
			row["read"] = "false"
		} else if strings.Contains(class, "read") {
			row["read"] = "true"
		}

		rows = append(rows, row)
		return true
	})
	return rows
}
