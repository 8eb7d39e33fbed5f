package watcher

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"arborwatch/services/watcher/db"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("services/watcher")

// SchemaVersion tags committed baselines. A section committed under a
// different version is treated as absent, so a format change
// re-bootstraps instead of producing a garbage delta.
const SchemaVersion = 1

// Baseline is the last committed snapshot of every section in a
// profile, plus when each was committed.
type Baseline struct {
	Profile     string
	Sections    map[string]SectionSnapshot
	CommittedAt map[string]time.Time
}

// Section returns a section's snapshot and whether one was committed.
func (b Baseline) Section(key string) (SectionSnapshot, bool) {
	snap, ok := b.Sections[key]
	return snap, ok
}

// Store persists baselines. All writes go through per-section
// transactions: a crash mid-commit leaves the previous snapshot
// intact, never a half-written one.
type Store struct {
	db  *sql.DB
	qry *db.Queries
}

func NewStore(database *sql.DB) Store {
	return Store{
		db:  database,
		qry: db.New(database),
	}
}

// Load reads a profile's committed baseline. ErrNotFound means the
// profile has never committed anything: every section bootstraps.
func (s Store) Load(ctx context.Context, profile string) (Baseline, error) {
	ctx, span := tracer.Start(ctx, "store:Load")
	defer span.End()
	span.SetAttributes(attribute.String("profile", profile))

	meta, err := s.qry.ListSectionMeta(ctx, profile)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Baseline{}, err
	}
	if len(meta) == 0 {
		return Baseline{}, ErrNotFound
	}

	baseline := Baseline{
		Profile:     profile,
		Sections:    map[string]SectionSnapshot{},
		CommittedAt: map[string]time.Time{},
	}
	for _, m := range meta {
		if m.SchemaVersion != SchemaVersion {
			slog.Warn("skipping baseline section with stale schema",
				"profile", profile,
				"section", m.Section,
				"version", m.SchemaVersion,
			)
			continue
		}

		rows, err := s.qry.ListSectionRecords(ctx, db.ListSectionRecordsParams{
			Profile: profile,
			Section: m.Section,
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return Baseline{}, err
		}

		snapshot := make(SectionSnapshot, len(rows))
		for _, row := range rows {
			var fields RawRecord
			if err := json.Unmarshal([]byte(row.Fields), &fields); err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "corrupt baseline record")
				return Baseline{}, err
			}
			snapshot[row.Identity] = Record{
				Identity:    row.Identity,
				Fingerprint: row.Fingerprint,
				Fields:      fields,
			}
		}
		baseline.Sections[m.Section] = snapshot
		baseline.CommittedAt[m.Section] = time.Unix(m.CommittedAt, 0)
	}

	if len(baseline.Sections) == 0 {
		return Baseline{}, ErrNotFound
	}
	return baseline, nil
}

// Commit atomically replaces one section's baseline with the given
// snapshot. Other sections, and the section itself on failure, are
// untouched.
func (s Store) Commit(ctx context.Context, profile, section string, snapshot SectionSnapshot, at time.Time) error {
	ctx, span := tracer.Start(ctx, "store:Commit")
	defer span.End()
	span.SetAttributes(
		attribute.String("profile", profile),
		attribute.String("section", section),
		attribute.Int("records", len(snapshot)),
	)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	defer tx.Rollback()
	txqry := s.qry.WithTx(tx)

	err = txqry.DeleteSectionRecords(ctx, db.DeleteSectionRecordsParams{
		Profile: profile,
		Section: section,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	for _, record := range snapshot {
		fields, err := json.Marshal(record.Fields)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		err = txqry.CreateSectionRecord(ctx, db.CreateSectionRecordParams{
			Profile:     profile,
			Section:     section,
			Identity:    record.Identity,
			Fingerprint: record.Fingerprint,
			Fields:      string(fields),
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
	}

	err = txqry.UpsertSectionMeta(ctx, db.UpsertSectionMetaParams{
		Profile:       profile,
		Section:       section,
		CommittedAt:   at.Unix(),
		SchemaVersion: SchemaVersion,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	err = tx.Commit()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// LastDigest returns the hash and send time of the last digest
// attempted for a profile. A profile that never sent one returns zero
// values, not an error.
func (s Store) LastDigest(ctx context.Context, profile string) (string, time.Time, error) {
	row, err := s.qry.GetDigestLog(ctx, profile)
	if errors.Is(err, sql.ErrNoRows) {
		return "", time.Time{}, nil
	}
	if err != nil {
		return "", time.Time{}, err
	}
	return row.DigestHash, time.Unix(row.SentAt, 0), nil
}

// RecordDigest remembers a digest attempt for cooldown deduping.
func (s Store) RecordDigest(ctx context.Context, profile, hash string, at time.Time) error {
	return s.qry.UpsertDigestLog(ctx, db.UpsertDigestLogParams{
		Profile:    profile,
		DigestHash: hash,
		SentAt:     at.Unix(),
	})
}
