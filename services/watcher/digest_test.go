package watcher_test

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"arborwatch/services/watcher"

	"github.com/stretchr/testify/require"
)

var digestSections = []watcher.SectionConfig{
	{Key: "messages", Title: "Messages", LineTemplate: "{title} — {meta}"},
	{Key: "payments", Title: "Payments", LineTemplate: "{title} — {meta}"},
}

var digestAt = time.Date(2026, 3, 14, 9, 26, 0, 0, time.UTC)

func TestBuildDigestEmptyWhenNothingChanged(t *testing.T) {
	deltas := map[string]watcher.SectionDelta{
		"messages": {Section: "messages"},
	}
	digest := watcher.BuildDigest(digestSections, deltas, digestAt, 0)
	require.True(t, digest.Empty)
	require.Empty(t, digest.Text)
}

func TestBuildDigestHeaderAndLines(t *testing.T) {
	deltas := map[string]watcher.SectionDelta{
		"messages": {
			Section: "messages",
			Added:   []watcher.Record{record2("Trip letter", "Office")},
			Changed: []watcher.Record{record2("Homework", "Maths")},
		},
	}
	digest := watcher.BuildDigest(digestSections, deltas, digestAt, 0)

	require.False(t, digest.Empty)
	require.False(t, digest.Truncated)
	require.True(t, strings.HasPrefix(digest.Text, "Arbor digest at 2026-03-14 09:26Z"))
	require.Contains(t, digest.Text, "Messages:")
	require.Contains(t, digest.Text, "+ Trip letter — Office")
	require.Contains(t, digest.Text, "~ Homework — Maths")
}

func TestBuildDigestBootstrapOneLiner(t *testing.T) {
	deltas := map[string]watcher.SectionDelta{
		"messages": {
			Section:   "messages",
			Bootstrap: true,
			Added: []watcher.Record{
				record2("One", ""), record2("Two", ""), record2("Three", ""),
			},
		},
	}
	digest := watcher.BuildDigest(digestSections, deltas, digestAt, 0)

	require.Contains(t, digest.Text, "Messages: baseline established, 3 items")
	require.NotContains(t, digest.Text, "+ One")
}

func TestBuildDigestRendersEmptyFieldsCleanly(t *testing.T) {
	deltas := map[string]watcher.SectionDelta{
		"messages": {
			Section: "messages",
			Added:   []watcher.Record{record2("Just a title", "")},
		},
	}
	digest := watcher.BuildDigest(digestSections, deltas, digestAt, 0)

	// template is "{title} — {meta}": the dangling separator must be
	// trimmed when meta is empty
	require.True(t, strings.HasSuffix(digest.Text, "+ Just a title"))
	require.NotContains(t, digest.Text, "Just a title —")
}

func TestBuildDigestTruncatesWithinBudget(t *testing.T) {
	var added []watcher.Record
	for i := 0; i < 200; i++ {
		added = append(added, record2(
			fmt.Sprintf("Item number %03d with a reasonably long title", i), "Office"))
	}
	deltas := map[string]watcher.SectionDelta{
		"messages": {Section: "messages", Added: added},
	}

	budget := 600
	digest := watcher.BuildDigest(digestSections, deltas, digestAt, budget)

	require.True(t, digest.Truncated)
	require.LessOrEqual(t, len(digest.Text), budget)
	require.Contains(t, digest.Text, "more")
}

func TestBuildDigestKeepsEverySectionWhenTruncating(t *testing.T) {
	// a long first section must not push the trailing one out of the
	// digest: worst case Payments shrinks to "Payments:\n  +N more"
	for budget := 512; budget <= 900; budget += 16 {
		for _, titleLen := range []int{5, 30, 60, 120} {
			var added []watcher.Record
			for i := 0; i < 40; i++ {
				added = append(added, record2(
					fmt.Sprintf("%0*d", titleLen, i), "Office"))
			}
			deltas := map[string]watcher.SectionDelta{
				"messages": {Section: "messages", Added: added},
				"payments": {Section: "payments", Added: added[:20]},
			}

			digest := watcher.BuildDigest(digestSections, deltas, digestAt, budget)

			require.LessOrEqual(t, len(digest.Text), budget,
				"budget=%d titleLen=%d", budget, titleLen)
			require.Contains(t, digest.Text, "Messages:",
				"budget=%d titleLen=%d", budget, titleLen)
			require.Contains(t, digest.Text, "Payments:",
				"budget=%d titleLen=%d", budget, titleLen)
		}
	}
}

func TestBuildDigestTruncatedSectionCarriesFullCount(t *testing.T) {
	var added []watcher.Record
	for i := 0; i < 30; i++ {
		added = append(added, record2(
			fmt.Sprintf("Item number %03d with a reasonably long title", i), "Office"))
	}
	deltas := map[string]watcher.SectionDelta{
		"messages": {Section: "messages", Added: added},
		"payments": {Section: "payments", Added: added},
	}

	digest := watcher.BuildDigest(digestSections, deltas, digestAt, 512)

	require.True(t, digest.Truncated)
	// Messages eats the budget, so Payments renders as just its header
	// and the full count
	require.Contains(t, digest.Text, "Payments:\n  +30 more")
}

func TestBuildDigestBootstrapSectionSurvivesTruncation(t *testing.T) {
	var added []watcher.Record
	for i := 0; i < 60; i++ {
		added = append(added, record2(
			fmt.Sprintf("Item number %03d with a reasonably long title", i), "Office"))
	}
	deltas := map[string]watcher.SectionDelta{
		"messages": {Section: "messages", Added: added},
		"payments": {Section: "payments", Bootstrap: true, Added: added[:12]},
	}

	digest := watcher.BuildDigest(digestSections, deltas, digestAt, 512)

	require.LessOrEqual(t, len(digest.Text), 512)
	require.Contains(t, digest.Text, "Payments: baseline established, 12 items")
}

func TestBuildDigestTruncationIsDeterministic(t *testing.T) {
	var added []watcher.Record
	for i := 0; i < 50; i++ {
		added = append(added, record2(fmt.Sprintf("Item %02d", i), "Office"))
	}
	deltas := map[string]watcher.SectionDelta{
		"messages": {Section: "messages", Added: added},
		"payments": {Section: "payments", Added: added[:10]},
	}

	first := watcher.BuildDigest(digestSections, deltas, digestAt, 700)
	second := watcher.BuildDigest(digestSections, deltas, digestAt, 700)
	require.Equal(t, first, second)
}

func TestSubject(t *testing.T) {
	require.Equal(t, "Arbor: no changes",
		watcher.Subject(digestSections, map[string]watcher.SectionDelta{}))

	require.Equal(t, "Arbor: baseline established",
		watcher.Subject(digestSections, map[string]watcher.SectionDelta{
			"messages": {Section: "messages", Bootstrap: true},
		}))

	require.Equal(t, "Arbor: new updates in Messages, Payments",
		watcher.Subject(digestSections, map[string]watcher.SectionDelta{
			"messages": {Section: "messages", Added: []watcher.Record{record2("a", "")}},
			"payments": {Section: "payments", Added: []watcher.Record{record2("b", "")}},
		}))
}

func TestDigestHashStable(t *testing.T) {
	require.Equal(t, watcher.DigestHash("hello"), watcher.DigestHash("hello"))
	require.NotEqual(t, watcher.DigestHash("hello"), watcher.DigestHash("hello!"))
	require.Len(t, watcher.DigestHash("hello"), 16)
}

func record2(title, meta string) watcher.Record {
	fields := watcher.RawRecord{"title": title, "meta": meta}
	return watcher.Record{
		Identity:    "id:" + title,
		Fingerprint: watcher.DigestHash(title + "|" + meta),
		Fields:      fields,
	}
}
