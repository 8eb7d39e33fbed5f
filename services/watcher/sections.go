package watcher

import "fmt"

// SectionConfig declares how one portal section is normalized and
// rendered. Identity and comparison rules are configuration, not
// inference: every section names the fields that identify a record
// across re-scrapes and the fields whose changes are news-worthy.
// Everything else (read flags, re-rendered previews) is volatile and
// ignored.
type SectionConfig struct {
	// Key is the stable section name used in baselines and config.
	Key string
	// Title heads the section's digest block.
	Title string
	// IDField names a field carrying a portal-assigned id (usually the
	// row's href). When present on a record it wins over
	// IdentityFields.
	IDField string
	// IdentityFields derive a synthetic identity when IDField is
	// absent: a hash over these values. They must be fields that do
	// not change across re-scrapes of the same logical item.
	IdentityFields []string
	// CompareFields feed the content fingerprint. A field not listed
	// here can change freely without producing a delta.
	CompareFields []string
	// LineTemplate renders one digest line, with {field} placeholders.
	LineTemplate string
	// Limit caps how many rows the scraper extracts, keeping the
	// snapshot deterministic for long pages.
	Limit int
}

const (
	ProfileEverything  = "everything"
	ProfileAssignments = "assignments"
)

// everythingSections covers the portal areas of the full watch
// profile. Messages and communications carry portal hrefs; one-off
// announcements and events do not, so their identity comes from
// title+date.
var everythingSections = []SectionConfig{
	{
		Key: "messages", Title: "Messages",
		IDField:        "href",
		IdentityFields: []string{"title", "meta", "when"},
		CompareFields:  []string{"title", "meta", "when", "preview"},
		LineTemplate:   "{title} — {meta}",
		Limit:          25,
	},
	{
		Key: "communications", Title: "Communications",
		IDField:        "href",
		IdentityFields: []string{"title", "meta", "when"},
		CompareFields:  []string{"title", "meta", "when", "preview"},
		LineTemplate:   "{title} — {meta}",
		Limit:          25,
	},
	{
		Key: "noticeboard", Title: "Noticeboard",
		IdentityFields: []string{"title", "when"},
		CompareFields:  []string{"title", "when", "preview"},
		LineTemplate:   "{title}",
		Limit:          25,
	},
	{
		Key: "calendar", Title: "Calendar",
		IdentityFields: []string{"title", "when"},
		CompareFields:  []string{"title", "meta", "when"},
		LineTemplate:   "{title} on {when}",
		Limit:          25,
	},
	{
		Key: "trips", Title: "Trips",
		IDField:        "href",
		IdentityFields: []string{"title", "when"},
		CompareFields:  []string{"title", "meta", "when"},
		LineTemplate:   "{title} on {when}",
		Limit:          25,
	},
	{
		Key: "payments", Title: "Payments",
		IdentityFields: []string{"title"},
		CompareFields:  []string{"title", "meta", "when"},
		LineTemplate:   "{title} — {meta}",
		Limit:          25,
	},
	{
		Key: "clubs", Title: "Clubs",
		IDField:        "href",
		IdentityFields: []string{"title"},
		CompareFields:  []string{"title", "meta", "when"},
		LineTemplate:   "{title}",
		Limit:          25,
	},
	{
		Key: "documents", Title: "Documents",
		IDField:        "href",
		IdentityFields: []string{"title", "when"},
		CompareFields:  []string{"title", "when"},
		LineTemplate:   "{title}",
		Limit:          25,
	},
}

// assignmentsSections watches the guardian dashboard blocks.
var assignmentsSections = []SectionConfig{
	{
		Key: "consultations", Title: "Guardian Consultations",
		IdentityFields: []string{"title", "when"},
		CompareFields:  []string{"title", "meta", "when"},
		LineTemplate:   "{title} — {when}",
		Limit:          10,
	},
	{
		Key: "overdue", Title: "Overdue Assignments",
		IDField:        "href",
		IdentityFields: []string{"title", "meta"},
		CompareFields:  []string{"title", "meta", "when"},
		LineTemplate:   "{title} — {meta}",
		Limit:          10,
	},
	{
		Key: "due", Title: "Assignments Due",
		IDField:        "href",
		IdentityFields: []string{"title", "meta"},
		CompareFields:  []string{"title", "meta", "when"},
		LineTemplate:   "{title} — due {when}",
		Limit:          10,
	},
	{
		Key: "submitted", Title: "Submitted Assignments",
		IDField:        "href",
		IdentityFields: []string{"title", "meta"},
		CompareFields:  []string{"title", "meta", "when"},
		LineTemplate:   "{title}",
		Limit:          10,
	},
}

// fastSections are the high-churn sections each profile narrows to
// under --fast.
var fastSections = map[string][]string{
	ProfileEverything:  {"messages", "noticeboard", "payments"},
	ProfileAssignments: {"overdue", "due"},
}

// Profile returns the ordered section set of a watch profile. The
// order is fixed so digests are reproducible run over run.
func Profile(name string, fast bool) ([]SectionConfig, error) {
	var sections []SectionConfig
	switch name {
	case ProfileEverything:
		sections = everythingSections
	case ProfileAssignments:
		sections = assignmentsSections
	default:
		return nil, fmt.Errorf("unknown profile: %s", name)
	}

	if !fast {
		return sections, nil
	}

	keep := map[string]bool{}
	for _, key := range fastSections[name] {
		keep[key] = true
	}
	var narrowed []SectionConfig
	for _, s := range sections {
		if keep[s.Key] {
			narrowed = append(narrowed, s)
		}
	}
	return narrowed, nil
}
