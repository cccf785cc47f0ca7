// Package paperstore provides persistent storage for arXiv paper metadata,
// partitioned by research topic. A [PaperRecord] is the durable metadata for a
// single paper; records are grouped into topic partitions and merged
// idempotently on write.
//
// The primary abstraction is the [Store] interface. [FileStore] keeps one JSON
// document per topic directory on the local filesystem; [PostgresStore] keeps
// one row per (topic, paper_id) in a PostgreSQL database. Both implementations
// share the same merge semantics: re-storing an existing paper replaces its
// metadata in place without touching other records in the partition.
package paperstore

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound is returned by [Store.Find] when no partition contains the
// requested paper ID, and by [Store.Papers] when the topic partition does not
// exist.
var ErrNotFound = errors.New("paperstore: not found")

// PaperRecord is the durable metadata stored for a single paper. Field names
// match the on-disk JSON document layout.
type PaperRecord struct {
	// PaperID is the short arXiv identifier, e.g. "2301.12345". It is the
	// record key within a partition and is not repeated inside the JSON value.
	PaperID string `json:"-"`

	Title     string   `json:"title"`
	Authors   []string `json:"authors"`
	Summary   string   `json:"summary"`
	PDFURL    string   `json:"pdf_url"`
	Published string   `json:"published"`
}

// Store persists paper metadata grouped by topic partition.
// Implementations must be safe for concurrent use.
type Store interface {
	// Upsert merges the given records into the topic's partition, creating the
	// partition if needed. Records already present (by paper ID) are replaced;
	// all other records in the partition are left untouched. Upsert is
	// idempotent: storing the same records twice yields the same partition
	// state as storing them once.
	Upsert(ctx context.Context, topic string, records []PaperRecord) error

	// Find returns the stored record for the given paper ID, scanning
	// partitions in lexicographic topic order and returning the first match.
	// Returns [ErrNotFound] if no partition contains the ID.
	Find(ctx context.Context, paperID string) (*PaperRecord, error)

	// Topics returns all partition names in lexicographic order.
	Topics(ctx context.Context) ([]string, error)

	// Papers returns all records in the given topic's partition, ordered by
	// paper ID. Returns [ErrNotFound] if the partition does not exist.
	Papers(ctx context.Context, topic string) ([]PaperRecord, error)
}

// NormalizeTopic converts a free-form topic string into its canonical
// partition name: lowercase with spaces replaced by underscores. Both store
// implementations apply it on every call, so "Graph Theory" and "graph_theory"
// address the same partition.
func NormalizeTopic(topic string) string {
	return strings.ReplaceAll(strings.ToLower(topic), " ", "_")
}
