package export_test

import (
	"archive/zip"
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"arborwatch/lib/testutil"
	"arborwatch/services/export"
	"arborwatch/services/watcher"
	"arborwatch/services/watcher/db"

	"github.com/stretchr/testify/require"
)

func setupExporter(t *testing.T) (export.Exporter, watcher.Store) {
	result, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "export",
		DbSchema: db.Schema,
	})
	t.Cleanup(cleanup)
	store := watcher.NewStore(result.DB)
	return export.Exporter{Store: store}, store
}

func TestExportMissingProfile(t *testing.T) {
	exporter, _ := setupExporter(t)
	_, err := exporter.Export(context.Background(), "everything", t.TempDir(), time.Now())
	require.ErrorIs(t, err, watcher.ErrNotFound)
}

func TestExportWritesCsvJsonAndArchive(t *testing.T) {
	exporter, store := setupExporter(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	snap := watcher.SectionSnapshot{
		"id:/m/1": {
			Identity:    "id:/m/1",
			Fingerprint: "aaaa",
			Fields:      watcher.RawRecord{"title": "Trip letter", "meta": "Office"},
		},
		"id:/m/2": {
			Identity:    "id:/m/2",
			Fingerprint: "bbbb",
			Fields:      watcher.RawRecord{"title": "Newsletter"},
		},
	}
	require.NoError(t, store.Commit(ctx, "everything", "messages", snap, at))

	outDir := t.TempDir()
	summary, err := exporter.Export(ctx, "everything", outDir, at)
	require.NoError(t, err)
	require.Equal(t, "everything", summary.Profile)
	require.Len(t, summary.Sections, 1)
	require.Equal(t, "messages", summary.Sections[0].Section)
	require.Equal(t, 2, summary.Sections[0].Records)

	dir := filepath.Join(outDir, "everything-20260314-090000")

	// csv: header + one row per record, sorted by identity
	f, err := os.Open(filepath.Join(dir, "messages.csv"))
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, []string{"identity", "fingerprint", "meta", "title"}, rows[0])
	require.Equal(t, "id:/m/1", rows[1][0])
	require.Equal(t, "Trip letter", rows[1][3])
	require.Equal(t, "id:/m/2", rows[2][0])

	// json dump round-trips
	data, err := os.ReadFile(filepath.Join(dir, "baseline.json"))
	require.NoError(t, err)
	var dump map[string]struct {
		Records []watcher.Record `json:"records"`
	}
	require.NoError(t, json.Unmarshal(data, &dump))
	require.Len(t, dump["messages"].Records, 2)

	// archive holds both files
	zr, err := zip.OpenReader(summary.Archive)
	require.NoError(t, err)
	defer zr.Close()
	var names []string
	for _, entry := range zr.File {
		names = append(names, entry.Name)
	}
	require.ElementsMatch(t, []string{"messages.csv", "baseline.json"}, names)
}
