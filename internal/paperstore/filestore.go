package paperstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// partitionFile is the name of the JSON document inside each topic directory.
const partitionFile = "papers_info.json"

// FileStore is a [Store] backed by the local filesystem. Each topic partition
// is a directory under the root containing a single JSON document that maps
// paper IDs to metadata. Writes follow a read-merge-write cycle under a
// per-partition lock and land via a temp file renamed over the document, so a
// crash mid-write leaves the previous document intact.
type FileStore struct {
	root string

	mu    sync.Mutex // guards locks
	locks map[string]*sync.Mutex
}

// Compile-time interface check.
var _ Store = (*FileStore)(nil)

// NewFileStore creates a [FileStore] rooted at dir, creating the directory if
// it does not exist.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("paperstore: create root %q: %w", dir, err)
	}
	return &FileStore{
		root:  dir,
		locks: make(map[string]*sync.Mutex),
	}, nil
}

// partitionLock returns the mutex for the given normalized topic, creating it
// on first use.
func (s *FileStore) partitionLock(topic string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[topic]
	if !ok {
		l = &sync.Mutex{}
		s.locks[topic] = l
	}
	return l
}

// Upsert merges records into the topic's partition document.
func (s *FileStore) Upsert(ctx context.Context, topic string, records []PaperRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	norm := NormalizeTopic(topic)

	lock := s.partitionLock(norm)
	lock.Lock()
	defer lock.Unlock()

	existing, err := s.readPartition(norm)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	if existing == nil {
		existing = make(map[string]PaperRecord, len(records))
	}
	for _, r := range records {
		existing[r.PaperID] = r
	}
	return s.writePartition(norm, existing)
}

// Find scans partitions in lexicographic order and returns the first record
// matching the paper ID.
func (s *FileStore) Find(ctx context.Context, paperID string) (*PaperRecord, error) {
	topics, err := s.Topics(ctx)
	if err != nil {
		return nil, err
	}
	for _, topic := range topics {
		lock := s.partitionLock(topic)
		lock.Lock()
		partition, err := s.readPartition(topic)
		lock.Unlock()
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		if r, ok := partition[paperID]; ok {
			r.PaperID = paperID
			return &r, nil
		}
	}
	return nil, ErrNotFound
}

// Topics lists all partition directories in lexicographic order.
func (s *FileStore) Topics(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("paperstore: read root %q: %w", s.root, err)
	}
	var topics []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(s.root, e.Name(), partitionFile)); err != nil {
			continue
		}
		topics = append(topics, e.Name())
	}
	sort.Strings(topics)
	return topics, nil
}

// Papers returns all records in the topic's partition ordered by paper ID.
func (s *FileStore) Papers(ctx context.Context, topic string) ([]PaperRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	norm := NormalizeTopic(topic)

	lock := s.partitionLock(norm)
	lock.Lock()
	partition, err := s.readPartition(norm)
	lock.Unlock()
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(partition))
	for id := range partition {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	records := make([]PaperRecord, 0, len(ids))
	for _, id := range ids {
		r := partition[id]
		r.PaperID = id
		records = append(records, r)
	}
	return records, nil
}

// readPartition loads the partition document for a normalized topic. The
// caller must hold the partition lock.
func (s *FileStore) readPartition(topic string) (map[string]PaperRecord, error) {
	path := filepath.Join(s.root, topic, partitionFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("paperstore: read partition %q: %w", topic, err)
	}
	var partition map[string]PaperRecord
	if err := json.Unmarshal(data, &partition); err != nil {
		return nil, fmt.Errorf("paperstore: decode partition %q: %w", topic, err)
	}
	return partition, nil
}

// writePartition atomically replaces the partition document for a normalized
// topic. The caller must hold the partition lock.
func (s *FileStore) writePartition(topic string, partition map[string]PaperRecord) error {
	dir := filepath.Join(s.root, topic)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("paperstore: create partition %q: %w", topic, err)
	}

	data, err := json.MarshalIndent(partition, "", "  ")
	if err != nil {
		return fmt.Errorf("paperstore: encode partition %q: %w", topic, err)
	}

	tmp, err := os.CreateTemp(dir, partitionFile+".tmp-*")
	if err != nil {
		return fmt.Errorf("paperstore: create temp file for %q: %w", topic, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("paperstore: write partition %q: %w", topic, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("paperstore: close temp file for %q: %w", topic, err)
	}
	if err := os.Rename(tmpName, filepath.Join(dir, partitionFile)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("paperstore: replace partition %q: %w", topic, err)
	}
	return nil
}
