package watcher

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// hashFields produces the 16-hex-char digest used for both synthetic
// identities and content fingerprints. Field names are part of the
// input so "title=a, meta=" and "title=, meta=a" cannot collide.
func hashFields(fields RawRecord, names []string) string {
	var b strings.Builder
	for i, name := range names {
		if i > 0 {
			b.WriteByte('|')
		}
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(fields[name])
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])[:16]
}

// identity derives a record's identity per section config: a
// portal-assigned id field when present, else a hash over the
// configured identity fields. Never derived from scrape order or the
// clock, so re-scraping unchanged content yields the same identity.
func identity(cfg SectionConfig, fields RawRecord) string {
	if cfg.IDField != "" {
		if v := fields[cfg.IDField]; v != "" {
			return "id:" + v
		}
	}
	return hashFields(fields, cfg.IdentityFields)
}

func hasAnyField(fields RawRecord, names []string) bool {
	for _, name := range names {
		if fields[name] != "" {
			return true
		}
	}
	return false
}

// Normalize converts a raw section scrape into a SectionSnapshot.
// Pure: no I/O, no clock. Returns a NormalizationError when the
// snapshot is not safe to diff against a baseline.
func Normalize(cfg SectionConfig, raw RawSnapshot) (SectionSnapshot, error) {
	if !raw.Complete {
		return nil, &NormalizationError{
			Section: cfg.Key,
			Reason:  "scrape flagged as failed or partial",
		}
	}

	snapshot := make(SectionSnapshot, len(raw.Records))
	for _, fields := range raw.Records {
		if fields == nil {
			continue
		}
		if cfg.IDField == "" || fields[cfg.IDField] == "" {
			if !hasAnyField(fields, cfg.IdentityFields) {
				// a record carrying none of its identity fields is a
				// parse artifact, not content
				continue
			}
		}

		record := Record{
			Identity:    identity(cfg, fields),
			Fingerprint: hashFields(fields, cfg.CompareFields),
			Fields:      fields,
		}

		existing, dup := snapshot[record.Identity]
		if dup {
			if existing.Fingerprint == record.Fingerprint {
				// the same logical item rendered twice; keep one
				continue
			}
			// identical identity fields but different content: keep
			// both under an identity disambiguated by content, so the
			// result is still deterministic across re-scrapes
			record.Identity = record.Identity + "#" + record.Fingerprint[:4]
			if _, still := snapshot[record.Identity]; still {
				continue
			}
		}
		snapshot[record.Identity] = record
	}

	return snapshot, nil
}
