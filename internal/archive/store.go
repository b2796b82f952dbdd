// File path: internal/archive/store.go
package archive

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/zhupanlab/datadocs/internal/lineage"
)

// Entry is one archived manifest version. Every successful refresh appends an
// entry, so the archive is the audit history of what each manifest looked
// like at each pull.
type Entry struct {
	RunID       string                  `json:"run_id"`
	PipelineID  string                  `json:"pipeline_id"`
	DataframeID string                  `json:"dataframe_id"`
	RenderedAt  time.Time               `json:"rendered_at"`
	Manifest    string                  `json:"manifest"`
	Record      lineage.DataframeRecord `json:"record"`
}

// Store persists manifest history as one JSONL file per pipeline under a root
// directory. Appends are the only write path; history is never rewritten.
type Store struct {
	path string
	mu   sync.RWMutex
}

// NewStore creates (if needed) the archive root directory.
func NewStore(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("archive path required")
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	return &Store{path: path}, nil
}

// Root returns the directory used for persistence.
func (s *Store) Root() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Append adds manifest entries to a pipeline's history file.
func (s *Store) Append(ctx context.Context, pipelineID string, entries []Entry) error {
	if s == nil {
		return errors.New("archive store not initialized")
	}
	if len(entries) == 0 {
		return nil
	}
	filePath, err := s.pipelineFile(pipelineID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	file, err := os.OpenFile(filePath, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer file.Close()
	enc := json.NewEncoder(file)
	for _, entry := range entries {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := enc.Encode(entry); err != nil {
			return fmt.Errorf("encode entry: %w", err)
		}
	}
	return nil
}

// History returns the archived entries for a pipeline, oldest first. When
// dataframeID is non-empty only that dataframe's versions are returned.
func (s *Store) History(ctx context.Context, pipelineID, dataframeID string) ([]Entry, error) {
	if s == nil {
		return nil, errors.New("archive store not initialized")
	}
	filePath, err := s.pipelineFile(pipelineID)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	file, err := os.Open(filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer file.Close()
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64<<10), 8<<20)
	var entries []Entry
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			return nil, fmt.Errorf("decode entry: %w", err)
		}
		if dataframeID != "" && entry.DataframeID != dataframeID {
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan archive: %w", err)
	}
	return entries, nil
}

// PipelineInfo summarises one archived pipeline.
type PipelineInfo struct {
	ID      string `json:"id"`
	Entries int    `json:"entries"`
}

// Pipelines lists the pipelines with archived history, sorted by ID.
func (s *Store) Pipelines(ctx context.Context) ([]PipelineInfo, error) {
	if s == nil {
		return nil, errors.New("archive store not initialized")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	dirEntries, err := os.ReadDir(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read archive dir: %w", err)
	}
	infos := make([]PipelineInfo, 0, len(dirEntries))
	for _, dirEntry := range dirEntries {
		if dirEntry.IsDir() {
			continue
		}
		pipelineID, ok := decodePipelineFile(dirEntry.Name())
		if !ok {
			continue
		}
		count, err := s.countEntries(ctx, dirEntry.Name())
		if err != nil {
			return nil, err
		}
		infos = append(infos, PipelineInfo{ID: pipelineID, Entries: count})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos, nil
}

func (s *Store) countEntries(ctx context.Context, name string) (int, error) {
	file, err := os.Open(filepath.Join(s.path, name))
	if err != nil {
		return 0, fmt.Errorf("open archive: %w", err)
	}
	defer file.Close()
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64<<10), 8<<20)
	count := 0
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		default:
		}
		if len(scanner.Bytes()) > 0 {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("scan archive: %w", err)
	}
	return count, nil
}

// Pipeline IDs can contain path-hostile characters, so file names are the
// base64 of the ID.
func (s *Store) pipelineFile(pipelineID string) (string, error) {
	trimmed := strings.TrimSpace(pipelineID)
	if trimmed == "" {
		return "", errors.New("pipeline id required")
	}
	encoded := base64.RawURLEncoding.EncodeToString([]byte(trimmed))
	return filepath.Join(s.path, encoded+".jsonl"), nil
}

func decodePipelineFile(name string) (string, bool) {
	if !strings.HasSuffix(name, ".jsonl") {
		return "", false
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimSuffix(name, ".jsonl"))
	if err != nil {
		return "", false
	}
	return string(raw), true
}
