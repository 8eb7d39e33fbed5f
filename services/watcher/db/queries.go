package db

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

const listSectionMeta = `
SELECT section, committed_at, schema_version FROM baseline_section
WHERE profile = ? ORDER BY section
`

type ListSectionMetaRow struct {
	Section       string
	CommittedAt   int64
	SchemaVersion int64
}

func (q *Queries) ListSectionMeta(ctx context.Context, profile string) ([]ListSectionMetaRow, error) {
	rows, err := q.db.QueryContext(ctx, listSectionMeta, profile)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []ListSectionMetaRow
	for rows.Next() {
		var i ListSectionMetaRow
		if err := rows.Scan(&i.Section, &i.CommittedAt, &i.SchemaVersion); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const listSectionRecords = `
SELECT identity, fingerprint, fields FROM baseline_record
WHERE profile = ? AND section = ? ORDER BY identity
`

type ListSectionRecordsParams struct {
	Profile string
	Section string
}

type ListSectionRecordsRow struct {
	Identity    string
	Fingerprint string
	Fields      string
}

func (q *Queries) ListSectionRecords(ctx context.Context, arg ListSectionRecordsParams) ([]ListSectionRecordsRow, error) {
	rows, err := q.db.QueryContext(ctx, listSectionRecords, arg.Profile, arg.Section)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []ListSectionRecordsRow
	for rows.Next() {
		var i ListSectionRecordsRow
		if err := rows.Scan(&i.Identity, &i.Fingerprint, &i.Fields); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const deleteSectionRecords = `
DELETE FROM baseline_record WHERE profile = ? AND section = ?
`

type DeleteSectionRecordsParams struct {
	Profile string
	Section string
}

func (q *Queries) DeleteSectionRecords(ctx context.Context, arg DeleteSectionRecordsParams) error {
	_, err := q.db.ExecContext(ctx, deleteSectionRecords, arg.Profile, arg.Section)
	return err
}

const createSectionRecord = `
INSERT INTO baseline_record (profile, section, identity, fingerprint, fields)
VALUES (?, ?, ?, ?, ?)
`

type CreateSectionRecordParams struct {
	Profile     string
	Section     string
	Identity    string
	Fingerprint string
	Fields      string
}

func (q *Queries) CreateSectionRecord(ctx context.Context, arg CreateSectionRecordParams) error {
	_, err := q.db.ExecContext(ctx, createSectionRecord,
		arg.Profile, arg.Section, arg.Identity, arg.Fingerprint, arg.Fields)
	return err
}

const upsertSectionMeta = `
INSERT INTO baseline_section (profile, section, committed_at, schema_version)
VALUES (?, ?, ?, ?)
ON CONFLICT (profile, section) DO UPDATE
SET committed_at = excluded.committed_at, schema_version = excluded.schema_version
`

type UpsertSectionMetaParams struct {
	Profile       string
	Section       string
	CommittedAt   int64
	SchemaVersion int64
}

func (q *Queries) UpsertSectionMeta(ctx context.Context, arg UpsertSectionMetaParams) error {
	_, err := q.db.ExecContext(ctx, upsertSectionMeta,
		arg.Profile, arg.Section, arg.CommittedAt, arg.SchemaVersion)
	return err
}

const getDigestLog = `
SELECT digest_hash, sent_at FROM digest_log WHERE profile = ?
`

type GetDigestLogRow struct {
	DigestHash string
	SentAt     int64
}

func (q *Queries) GetDigestLog(ctx context.Context, profile string) (GetDigestLogRow, error) {
	var i GetDigestLogRow
	err := q.db.QueryRowContext(ctx, getDigestLog, profile).Scan(&i.DigestHash, &i.SentAt)
	return i, err
}

const upsertDigestLog = `
INSERT INTO digest_log (profile, digest_hash, sent_at)
VALUES (?, ?, ?)
ON CONFLICT (profile) DO UPDATE
SET digest_hash = excluded.digest_hash, sent_at = excluded.sent_at
`

type UpsertDigestLogParams struct {
	Profile    string
	DigestHash string
	SentAt     int64
}

func (q *Queries) UpsertDigestLog(ctx context.Context, arg UpsertDigestLogParams) error {
	_, err := q.db.ExecContext(ctx, upsertDigestLog,
		arg.Profile, arg.DigestHash, arg.SentAt)
	return err
}
