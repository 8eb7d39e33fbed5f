package watcher

import "slices"

func sortByIdentity(records []Record) {
	slices.SortFunc(records, func(a, b Record) int {
		switch {
		case a.Identity < b.Identity:
			return -1
		case a.Identity > b.Identity:
			return 1
		}
		return 0
	})
}

// Diff computes the structured delta between a section's baseline and
// its current snapshot. Pure, O(current + baseline) using map lookups.
// Each bucket comes back sorted by identity so repeated runs over
// identical input produce byte-identical digests.
//
// Records unchanged between the two snapshots are dropped silently.
func Diff(section string, baseline, current SectionSnapshot) SectionDelta {
	delta := SectionDelta{Section: section}

	for id, record := range current {
		prev, ok := baseline[id]
		if !ok {
			delta.Added = append(delta.Added, record)
			continue
		}
		if prev.Fingerprint != record.Fingerprint {
			delta.Changed = append(delta.Changed, record)
		}
	}
	for id, record := range baseline {
		if _, ok := current[id]; !ok {
			delta.Removed = append(delta.Removed, record)
		}
	}

	sortByIdentity(delta.Added)
	sortByIdentity(delta.Removed)
	sortByIdentity(delta.Changed)
	return delta
}

// BootstrapDelta is the first-run delta for a section with no
// baseline: every current record counts as added, but the digest
// renders it as a single "baseline established" line.
func BootstrapDelta(section string, current SectionSnapshot) SectionDelta {
	delta := Diff(section, nil, current)
	delta.Bootstrap = true
	return delta
}
