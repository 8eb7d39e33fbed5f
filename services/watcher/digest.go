package watcher

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// DefaultDigestBudget is the Telegram message cap; every channel gets
// the same bounded digest.
const DefaultDigestBudget = 4000

// minDigestBudget guarantees room for the header plus every section's
// floor line, so truncation shrinks a section to its "+N more" summary
// instead of dropping it.
const minDigestBudget = 512

var placeholderPattern = regexp.MustCompile(`\{(\w+)\}`)

// renderLine fills a section's line template from a record's fields
// and trims separators left dangling by empty fields.
func renderLine(template string, fields RawRecord) string {
	line := placeholderPattern.ReplaceAllStringFunc(template, func(m string) string {
		name := m[1 : len(m)-1]
		return fields[name]
	})
	line = strings.Join(strings.Fields(line), " ")
	line = strings.TrimRight(line, " —-·:,")
	return line
}

func bucketLines(cfg SectionConfig, delta SectionDelta) []string {
	var lines []string
	for _, r := range delta.Added {
		lines = append(lines, "+ "+renderLine(cfg.LineTemplate, r.Fields))
	}
	for _, r := range delta.Changed {
		lines = append(lines, "~ "+renderLine(cfg.LineTemplate, r.Fields))
	}
	for _, r := range delta.Removed {
		lines = append(lines, "- "+renderLine(cfg.LineTemplate, r.Fields))
	}
	return lines
}

func bootstrapLine(cfg SectionConfig, delta SectionDelta) string {
	return fmt.Sprintf("\n\n%s: baseline established, %d items", cfg.Title, len(delta.Added))
}

func sectionHeader(cfg SectionConfig) string {
	return fmt.Sprintf("\n\n%s:", cfg.Title)
}

func moreMarker(n int) string {
	return fmt.Sprintf("\n  +%d more", n)
}

// sectionFloor is the smallest rendering a section can shrink to under
// budget pressure: its header plus a full-count "+N more" marker, or
// the bootstrap one-liner (already its full rendering).
func sectionFloor(cfg SectionConfig, delta SectionDelta) int {
	if delta.Bootstrap {
		return len(bootstrapLine(cfg, delta))
	}
	n := len(delta.Added) + len(delta.Changed) + len(delta.Removed)
	return len(sectionHeader(cfg)) + len(moreMarker(n))
}

// Subject is the one-line summary used as the email subject and log
// line for a digest.
func Subject(sections []SectionConfig, deltas map[string]SectionDelta) string {
	var changed []string
	bootstrapOnly := true
	for _, cfg := range sections {
		delta, ok := deltas[cfg.Key]
		if !ok || delta.Empty() {
			continue
		}
		changed = append(changed, cfg.Title)
		if !delta.Bootstrap {
			bootstrapOnly = false
		}
	}
	if len(changed) == 0 {
		return "Arbor: no changes"
	}
	if bootstrapOnly {
		return "Arbor: baseline established"
	}
	return "Arbor: new updates in " + strings.Join(changed, ", ")
}

// BuildDigest renders the per-section deltas into a single bounded
// message. Sections with an empty delta are skipped entirely; when the
// budget runs out, lines are cut at record granularity and a "+N more"
// marker is appended. Every non-empty section always appears: the
// floor of each later section is reserved up front, so a long early
// section can only shrink a later one down to its summary line, never
// push it out of the digest.
func BuildDigest(sections []SectionConfig, deltas map[string]SectionDelta, now time.Time, budget int) Digest {
	if budget <= 0 {
		budget = DefaultDigestBudget
	}
	if budget < minDigestBudget {
		budget = minDigestBudget
	}

	type pending struct {
		cfg   SectionConfig
		delta SectionDelta
	}
	var todo []pending
	for _, cfg := range sections {
		delta, ok := deltas[cfg.Key]
		if !ok || delta.Empty() {
			continue
		}
		todo = append(todo, pending{cfg, delta})
	}
	if len(todo) == 0 {
		return Digest{Empty: true}
	}

	reserve := 0
	for _, p := range todo {
		reserve += sectionFloor(p.cfg, p.delta)
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("Arbor digest at %s", now.UTC().Format("2006-01-02 15:04Z")))

	truncated := false
	for _, p := range todo {
		reserve -= sectionFloor(p.cfg, p.delta)

		if p.delta.Bootstrap {
			b.WriteString(bootstrapLine(p.cfg, p.delta))
			continue
		}

		b.WriteString(sectionHeader(p.cfg))
		lines := bucketLines(p.cfg, p.delta)

		// keep room for this section's own marker so cutting a line
		// never makes the section look complete
		const moreReserve = len("\n  +9999 more")

		written := 0
		for _, line := range lines {
			if b.Len()+len("\n")+len(line)+moreReserve+reserve > budget {
				break
			}
			b.WriteString("\n")
			b.WriteString(line)
			written++
		}
		if written < len(lines) {
			b.WriteString(moreMarker(len(lines) - written))
			truncated = true
		}
	}

	return Digest{
		Text:      b.String(),
		Truncated: truncated,
	}
}

// DigestHash fingerprints a rendered digest, used to suppress
// re-sending an identical digest within the cooldown window.
func DigestHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])[:16]
}
