package arbor

import (
	"context"
	"fmt"
	"strings"

	"arborwatch/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"github.com/antzucaro/matchr"
)

// dashboardBlocks maps a section key to the heading its block carries
// on the guardian dashboard.
var dashboardBlocks = map[string]string{
	"consultations": "Guardian Consultations",
	"overdue":       "Overdue Assignments",
	"due":           "Assignments that are due",
	"submitted":     "Submitted Assignments",
}

var dashboardPaths = []string{"/guardian#/dashboard", "/guardian"}

// headings drift slightly between tenants and releases
// ("Assignments due" vs "Assignments that are due"), so a fuzzy match
// beats exact comparison
const headingSimilarityThreshold = 0.85

func matchHeading(heading, wanted string) bool {
	heading = strings.ToLower(htmlutil.CleanText(heading))
	wanted = strings.ToLower(wanted)
	if heading == "" {
		return false
	}
	if strings.Contains(heading, wanted) {
		return true
	}
	return matchr.JaroWinkler(heading, wanted, false) >= headingSimilarityThreshold
}

// scrapeDashboardBlock finds the block under the matching heading on
// the guardian dashboard and extracts its rows.
func (c *Client) scrapeDashboardBlock(ctx context.Context, key string, limit int) ([]Row, error) {
	wanted, ok := dashboardBlocks[key]
	if !ok {
		return nil, fmt.Errorf("unknown dashboard block: %s", key)
	}

	var doc *goquery.Document
	var lastErr error
	for _, path := range dashboardPaths {
		politeSleep(ctx)
		var err error
		doc, err = c.getDocument(ctx, path)
		if err != nil {
			lastErr = err
			if err == ErrMaintenance {
				return nil, err
			}
			doc = nil
			continue
		}
		break
	}
	if doc == nil {
		return nil, lastErr
	}

	return FindBlockRows(doc, wanted, limit)
}

// FindBlockRows locates the heading matching `wanted` and extracts the
// list rows of its enclosing block.
func FindBlockRows(doc *goquery.Document, wanted string, limit int) ([]Row, error) {
	var rows []Row
	found := false

	doc.Find("h2, h3, h4, .card-title, .panel-title").EachWithBreak(func(_ int, heading *goquery.Selection) bool {
		if !matchHeading(heading.Text(), wanted) {
			return true
		}
		found = true

		block := heading.Closest("section, .card, .panel, .block")
		if block.Length() == 0 {
			block = heading.Parent()
		}
		rows = ExtractListRows(block, limit)
		return false
	})

	if !found {
		return nil, fmt.Errorf("dashboard block not found: %s", wanted)
	}
	return rows, nil
}
