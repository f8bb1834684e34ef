package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/siteprint/siteprint/internal/types"
)

const (
	manifestName = "manifest.jsonl"
	indexName    = "export.db"
)

// Storage persists export records as they commit: an append-only JSONL
// manifest next to the PDFs, plus a SQLite index for the report command.
type Storage struct {
	mu       sync.Mutex
	manifest *os.File
	index    *Index
}

// New opens (creating if needed) the output directory's manifest and index.
func New(outputDir string) (*Storage, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	manifest, err := os.OpenFile(filepath.Join(outputDir, manifestName),
		os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}

	index, err := NewIndex(filepath.Join(outputDir, indexName))
	if err != nil {
		manifest.Close()
		return nil, err
	}

	return &Storage{
		manifest: manifest,
		index:    index,
	}, nil
}

// SaveRecord appends the record to the manifest and upserts it in the index.
func (s *Storage) SaveRecord(rec types.ExportRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	if _, err := s.manifest.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	return s.index.Save(rec)
}

// LoadRecords reads every record in a directory's manifest, oldest first,
// without touching the index. Unparseable lines are skipped.
func LoadRecords(outputDir string) ([]types.ExportRecord, error) {
	file, err := os.Open(filepath.Join(outputDir, manifestName))
	if err != nil {
		if os.IsNotExist(err) {
			return []types.ExportRecord{}, nil
		}
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer file.Close()

	records := make([]types.ExportRecord, 0)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var rec types.ExportRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err == nil {
			records = append(records, rec)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return records, nil
}

// Index exposes the SQLite index for read-side queries.
func (s *Storage) Index() *Index {
	return s.index
}

// Close flushes and closes the manifest and the index.
func (s *Storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	if s.manifest != nil {
		if err := s.manifest.Close(); err != nil {
			firstErr = err
		}
		s.manifest = nil
	}
	if s.index != nil {
		if err := s.index.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		s.index = nil
	}
	return firstErr
}
