package indexer

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/embedsync/embedsync/internal/vecstore"
)

// Embedder converts document text into fixed-length vectors. It may fail
// transiently; implementations are expected to retry rate limits internally
// before surfacing an error.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorStore is the remote index keyed by document identifier. Upsert
// replaces rows in place and Delete treats absent rows as success, so both
// are idempotent and safe under at-least-once delivery.
type VectorStore interface {
	Upsert(ctx context.Context, docs []*vecstore.Document) error
	Delete(ctx context.Context, ids []string) error
}

// EngineConfig wires the sync engine's collaborators.
type EngineConfig struct {
	Root       string
	Interval   time.Duration
	Workers    int
	BatchSize  int
	MaxRetries uint64

	Scanner  *Scanner
	Journal  *Journal
	Embedder Embedder
	Store    VectorStore
	Watcher  *Watcher // optional fs-event trigger
}

// pendingDoc is a created/updated document staged for embedding and upsert.
type pendingDoc struct {
	path        string
	docID       string
	content     string
	fingerprint string
	size        int64
	modTime     time.Time
	isNew       bool
}

// tickStats aggregates one tick's outcomes across workers.
type tickStats struct {
	created atomic.Int64
	updated atomic.Int64
	deleted atomic.Int64
	skipped atomic.Int64
	failed  atomic.Int64
}
