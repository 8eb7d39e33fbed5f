// Package watcher is the change-detection core: it normalizes raw
// section scrapes into identity-bearing records, diffs them against the
// last committed baseline, renders a digest of what changed and commits
// the new baseline.
package watcher

import "time"

// RawRecord is one scraped entry, opaque field name → value.
type RawRecord map[string]string

// RawSnapshot is what the scraping collaborator hands us for one
// section at one point in time.
type RawSnapshot struct {
	Section   string
	Records   []RawRecord
	ScrapedAt time.Time
	// Complete must be set by the scraper once it extracted the whole
	// page. An incomplete snapshot is never diffed or committed: a
	// truncated page would read as mass removals.
	Complete bool
}

// Record is the unit of comparison: a stable identity plus a
// fingerprint over the comparison-relevant fields. Fields keeps the
// scraped values needed to render a digest line.
type Record struct {
	Identity    string
	Fingerprint string
	Fields      RawRecord
}

// SectionSnapshot is the full normalized state of one section,
// keyed by record identity.
type SectionSnapshot map[string]Record

// SectionDelta is the result of diffing two section snapshots.
// Added, Removed and Changed are pairwise disjoint and sorted by
// identity so repeated runs over identical input render identically.
type SectionDelta struct {
	Section string
	// Bootstrap marks a delta computed against an absent baseline.
	// Its Added set holds every current record, but it is rendered as
	// a one-line notice rather than an enumeration.
	Bootstrap bool
	Added     []Record
	Removed   []Record
	Changed   []Record
}

// Empty reports whether the delta carries nothing worth telling the
// user about. A bootstrap delta is never empty: establishing a
// baseline is itself news, exactly once.
func (d SectionDelta) Empty() bool {
	if d.Bootstrap {
		return false
	}
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

// Digest is the rendered, size-bounded summary of one run.
type Digest struct {
	Text      string
	Truncated bool
	// Empty distinguishes "nothing changed, send nothing" from a
	// zero-length text; the orchestrator skips notification on it.
	Empty bool
}
