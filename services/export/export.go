// Package export dumps a profile's committed baseline to disk as CSV
// and JSON, bundled into a zip archive, so the watch history can be
// inspected or migrated without poking at the database.
package export

import (
	"archive/zip"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"arborwatch/services/watcher"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("services/export")

type SectionSummary struct {
	Section     string
	Records     int
	CommittedAt time.Time
}

type Summary struct {
	Profile  string
	Sections []SectionSummary
	Archive  string
}

type Exporter struct {
	Store watcher.Store
}

// fieldColumns is the union of field names across a snapshot, sorted,
// so every record fits one header row.
func fieldColumns(snapshot watcher.SectionSnapshot) []string {
	seen := map[string]bool{}
	for _, record := range snapshot {
		for name := range record.Fields {
			seen[name] = true
		}
	}
	columns := make([]string, 0, len(seen))
	for name := range seen {
		columns = append(columns, name)
	}
	sort.Strings(columns)
	return columns
}

func sortedRecords(snapshot watcher.SectionSnapshot) []watcher.Record {
	records := make([]watcher.Record, 0, len(snapshot))
	for _, record := range snapshot {
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Identity < records[j].Identity
	})
	return records
}

func writeSectionCsv(path string, snapshot watcher.SectionSnapshot) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	columns := fieldColumns(snapshot)
	header := append([]string{"identity", "fingerprint"}, columns...)
	if err := w.Write(header); err != nil {
		return err
	}
	for _, record := range sortedRecords(snapshot) {
		row := []string{record.Identity, record.Fingerprint}
		for _, col := range columns {
			row = append(row, record.Fields[col])
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func writeBaselineJson(path string, baseline watcher.Baseline) error {
	type sectionDump struct {
		CommittedAt time.Time        `json:"committedAt"`
		Records     []watcher.Record `json:"records"`
	}
	dump := map[string]sectionDump{}
	for section, snapshot := range baseline.Sections {
		dump[section] = sectionDump{
			CommittedAt: baseline.CommittedAt[section],
			Records:     sortedRecords(snapshot),
		}
	}

	data, err := json.MarshalIndent(dump, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func writeArchive(archivePath, dir string, names []string) error {
	f, err := os.Create(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		entry, err := zw.Create(name)
		if err != nil {
			return err
		}
		if _, err := entry.Write(data); err != nil {
			return err
		}
	}
	return zw.Close()
}

// Export writes a profile's baseline under outDir/<profile>-<stamp>/
// with one CSV per section and a full JSON dump, then zips the lot.
func (e Exporter) Export(ctx context.Context, profile, outDir string, at time.Time) (Summary, error) {
	ctx, span := tracer.Start(ctx, "export:Export")
	defer span.End()
	span.SetAttributes(attribute.String("profile", profile))

	baseline, err := e.Store.Load(ctx, profile)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Summary{}, err
	}

	stamp := at.UTC().Format("20060102-150405")
	dir := filepath.Join(outDir, fmt.Sprintf("%s-%s", profile, stamp))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return Summary{}, err
	}

	summary := Summary{Profile: profile}
	var names []string

	sections := make([]string, 0, len(baseline.Sections))
	for section := range baseline.Sections {
		sections = append(sections, section)
	}
	sort.Strings(sections)

	for _, section := range sections {
		snapshot := baseline.Sections[section]
		name := section + ".csv"
		if err := writeSectionCsv(filepath.Join(dir, name), snapshot); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return Summary{}, err
		}
		names = append(names, name)
		summary.Sections = append(summary.Sections, SectionSummary{
			Section:     section,
			Records:     len(snapshot),
			CommittedAt: baseline.CommittedAt[section],
		})
	}

	if err := writeBaselineJson(filepath.Join(dir, "baseline.json"), baseline); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Summary{}, err
	}
	names = append(names, "baseline.json")

	summary.Archive = dir + ".zip"
	if err := writeArchive(summary.Archive, dir, names); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Summary{}, err
	}

	return summary, nil
}
