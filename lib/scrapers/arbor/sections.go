package arbor

import (
	"context"
	"fmt"

	"arborwatch/lib/timezone"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// sectionPaths lists the candidate guardian routes per section key.
// Tenants differ in which route a section lives under, so each is
// tried in order until one yields rows.
var sectionPaths = map[string][]string{
	"messages":       {"/guardian#/messages"},
	"communications": {"/guardian#/communications", "/guardian#/comms", "/guardian#/communication-log"},
	"noticeboard":    {"/guardian#/noticeboard", "/guardian#/announcements", "/guardian#/news"},
	"calendar":       {"/guardian#/calendar", "/guardian#/events"},
	"trips":          {"/guardian#/trips", "/guardian#/activities"},
	"payments":       {"/guardian#/payments", "/guardian#/accounts"},
	"clubs":          {"/guardian#/clubs", "/guardian#/activities/clubs"},
	"documents":      {"/guardian#/documents", "/guardian#/report-cards", "/guardian#/letters"},
}

// KnownSection reports whether this scraper knows how to reach the
// section, either as a page route or a dashboard block.
func KnownSection(key string) bool {
	if _, ok := sectionPaths[key]; ok {
		return true
	}
	_, ok := dashboardBlocks[key]
	return ok
}

// ScrapeSection fetches one section and extracts up to limit rows.
// The returned snapshot is only marked Complete when a page was
// fetched and fully parsed; callers must not diff incomplete
// snapshots against a baseline.
func (c *Client) ScrapeSection(ctx context.Context, key string, limit int) (Snapshot, error) {
	ctx, span := tracer.Start(ctx, "client:ScrapeSection")
	defer span.End()
	span.SetAttributes(attribute.String("section", key))

	snapshot := Snapshot{
		Section:   key,
		ScrapedAt: timezone.Now(),
	}

	if _, ok := dashboardBlocks[key]; ok {
		rows, err := c.scrapeDashboardBlock(ctx, key, limit)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "dashboard block scrape failed")
			return snapshot, err
		}
		snapshot.Rows = rows
		snapshot.Complete = true
		return snapshot, nil
	}

	paths, ok := sectionPaths[key]
	if !ok {
		err := fmt.Errorf("unknown section: %s", key)
		span.SetStatus(codes.Error, err.Error())
		return snapshot, err
	}

	var lastErr error
	for _, path := range paths {
		politeSleep(ctx)

		var doc *goquery.Document
		err := withBackoff(ctx, 3, func() error {
			var fetchErr error
			doc, fetchErr = c.getDocument(ctx, path)
			return fetchErr
		})
		if err != nil {
			lastErr = err
			if err == ErrMaintenance {
				return snapshot, err
			}
			continue
		}

		container := doc.Find("main")
		if container.Length() == 0 {
			container = doc.Find("body")
		}
		rows := ExtractListRows(container, limit)
		if len(rows) == 0 && path != paths[len(paths)-1] {
			// an empty page can mean the tenant routes this section
			// elsewhere; try the next candidate before concluding the
			// section is genuinely empty
			continue
		}

		snapshot.Rows = rows
		snapshot.Complete = true
		return snapshot, nil
	}

	if lastErr == nil {
		// every candidate rendered but none had rows: genuinely empty
		snapshot.Complete = true
		return snapshot, nil
	}
	span.RecordError(lastErr)
	span.SetStatus(codes.Error, "all candidate paths failed")
	return snapshot, lastErr
}
