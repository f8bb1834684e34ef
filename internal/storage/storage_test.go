package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siteprint/siteprint/internal/types"
)

func sampleRecords() []types.ExportRecord {
	now := time.Now().UTC().Truncate(time.Second)
	return []types.ExportRecord{
		{
			URL:        "https://sites.example/org/kb/getting-started",
			Filename:   "getting_started.pdf",
			Title:      "Getting Started",
			Bytes:      20480,
			Status:     types.StatusExported,
			DurationMS: 850,
			ExportedAt: now,
		},
		{
			URL:        "https://sites.example/org/kb/broken",
			Status:     types.StatusFailed,
			Error:      "navigation timed out after 10s",
			DurationMS: 10010,
			ExportedAt: now,
		},
		{
			URL:        "https://sites.example/org/kb/old",
			Filename:   "old.pdf",
			Status:     types.StatusSkipped,
			ExportedAt: now,
		},
	}
}

func TestStorageRoundTrip(t *testing.T) {
	dir := t.TempDir()

	s, err := New(dir)
	require.NoError(t, err)

	for _, rec := range sampleRecords() {
		require.NoError(t, s.SaveRecord(rec))
	}

	records, err := LoadRecords(dir)
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, "getting_started.pdf", records[0].Filename)
	assert.Equal(t, types.StatusFailed, records[1].Status)
	assert.Equal(t, "navigation timed out after 10s", records[1].Error)

	require.NoError(t, s.Close())
}

func TestLoadRecordsNoManifest(t *testing.T) {
	records, err := LoadRecords(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestIndexStatsAndRecords(t *testing.T) {
	dir := t.TempDir()

	s, err := New(dir)
	require.NoError(t, err)
	for _, rec := range sampleRecords() {
		require.NoError(t, s.SaveRecord(rec))
	}
	require.NoError(t, s.Close())

	idx, err := OpenIndex(filepath.Join(dir, indexName))
	require.NoError(t, err)
	defer idx.Close()

	stats, err := idx.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats[types.StatusExported])
	assert.Equal(t, 1, stats[types.StatusFailed])
	assert.Equal(t, 1, stats[types.StatusSkipped])

	failed, err := idx.Records(types.StatusFailed)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "https://sites.example/org/kb/broken", failed[0].URL)

	all, err := idx.Records("")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestIndexUpsertsByURL(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)
	defer s.Close()

	rec := sampleRecords()[1]
	require.NoError(t, s.SaveRecord(rec))

	// A rerun of the same URL replaces the old row instead of duplicating it.
	rec.Status = types.StatusExported
	rec.Error = ""
	rec.Filename = "broken.pdf"
	require.NoError(t, s.SaveRecord(rec))

	all, err := s.Index().Records("")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, types.StatusExported, all[0].Status)
}
