package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"github.com/embedsync/embedsync/internal/vecstore"
)

var ErrSyncAlreadyRunning = errors.New("sync already running")

// Engine is the synchronizer: it snapshots the watch root, diffs it against
// the journal, and drives the embedder and vector store to convergence.
//
// Per-document transitions are atomic with respect to the journal: the
// journal is written only after the remote operation succeeded, so any crash
// or failure simply causes the document to be re-detected on the next tick.
// Upsert and delete idempotency make the resulting at-least-once delivery
// safe.
type Engine struct {
	root       string
	interval   time.Duration
	workers    int
	batchSize  int
	maxRetries uint64

	scanner  *Scanner
	journal  *Journal
	embedder Embedder
	store    VectorStore
	watcher  *Watcher

	muSync sync.Mutex
}

func NewEngine(cfg *EngineConfig) *Engine {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 1
	}
	return &Engine{
		root:       cfg.Root,
		interval:   cfg.Interval,
		workers:    workers,
		batchSize:  batchSize,
		maxRetries: cfg.MaxRetries,
		scanner:    cfg.Scanner,
		journal:    cfg.Journal,
		embedder:   cfg.Embedder,
		store:      cfg.Store,
		watcher:    cfg.Watcher,
	}
}

// Run performs one immediate pass, then re-syncs on the poll interval until
// the context is canceled. A pending tick always finishes before Run
// returns. Filesystem events, when the watcher is enabled, only wake the
// loop early; they feed the same snapshot pipeline.
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("sync engine start", "root", e.root, "interval", e.interval)

	var nudges <-chan struct{}
	if e.watcher != nil {
		if err := e.watcher.Start(); err != nil {
			slog.Warn("fs events unavailable, polling only", "error", err)
		} else {
			nudges = e.watcher.Nudges()
			defer e.watcher.Stop()
		}
	}

	if err := e.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("initial sync failed", "error", err)
	}

	// a timer, not a ticker, so a slow tick never queues up followers
	timer := time.NewTimer(e.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("sync engine stop")
			return ctx.Err()
		case <-timer.C:
		case <-nudges:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}

		if err := e.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("sync failed", "error", err)
		}
		timer.Reset(e.interval)
	}
}

// RunOnce executes a single full synchronization pass. Ticks never overlap.
func (e *Engine) RunOnce(ctx context.Context) error {
	if !e.muSync.TryLock() {
		return ErrSyncAlreadyRunning
	}
	defer e.muSync.Unlock()

	start := time.Now()

	snapshot, err := e.scanner.Scan()
	if err != nil {
		return fmt.Errorf("scan watch dir: %w", err)
	}

	previous, err := e.journal.State()
	if err != nil {
		return fmt.Errorf("load journal state: %w", err)
	}

	changes := Diff(previous, snapshot)
	if changes.Empty() {
		slog.Debug("sync tick", "changes", 0, "tracked", len(snapshot), "took", time.Since(start))
		return nil
	}

	stats := &tickStats{}

	// deletions first, to free path-derived identifiers before new rows land
	e.applyDeletes(ctx, changes.Deleted, previous, stats)
	e.applyWrites(ctx, changes, snapshot, previous, stats)

	slog.Info("sync tick",
		"created", stats.created.Load(),
		"updated", stats.updated.Load(),
		"deleted", stats.deleted.Load(),
		"skipped", stats.skipped.Load(),
		"failed", stats.failed.Load(),
		"tracked", len(snapshot),
		"took", time.Since(start),
	)
	return nil
}

// applyDeletes removes remote rows for vanished paths, batched, and prunes
// the journal only for rows the store confirmed gone.
func (e *Engine) applyDeletes(ctx context.Context, paths []string, previous map[string]*Record, stats *tickStats) {
	for _, chunk := range chunkStrings(paths, e.batchSize) {
		ids := make([]string, len(chunk))
		for i, path := range chunk {
			if rec := previous[path]; rec != nil && rec.DocID != "" {
				ids[i] = rec.DocID
			} else {
				ids[i] = DocumentID(path)
			}
		}

		err := e.withRetry(ctx, func() error {
			return e.store.Delete(ctx, ids)
		})
		if err == nil {
			for _, path := range chunk {
				if err := e.journal.Delete(path); err != nil {
					slog.Error("journal delete failed", "path", path, "error", err)
					stats.failed.Add(1)
					continue
				}
				slog.Info("removed", "path", path)
				stats.deleted.Add(1)
			}
			continue
		}
		if ctx.Err() != nil {
			return
		}

		// batch kept failing: isolate per document so one bad row doesn't
		// defer its whole chunk
		slog.Warn("batch delete failed, retrying per document", "count", len(chunk), "error", err)
		for i, path := range chunk {
			if err := e.store.Delete(ctx, ids[i:i+1]); err != nil {
				slog.Error("delete deferred to next tick", "path", path, "error", err)
				stats.failed.Add(1)
				continue
			}
			if err := e.journal.Delete(path); err != nil {
				slog.Error("journal delete failed", "path", path, "error", err)
				stats.failed.Add(1)
				continue
			}
			slog.Info("removed", "path", path)
			stats.deleted.Add(1)
		}
	}
}

// applyWrites embeds and upserts created/updated documents on a bounded
// worker pool, journaling each document only after its upsert succeeded.
func (e *Engine) applyWrites(ctx context.Context, changes *ChangeSet, snapshot Snapshot, previous map[string]*Record, stats *tickStats) {
	var pending []*pendingDoc
	for _, path := range changes.Created {
		if doc := e.loadDocument(path, snapshot[path], stats); doc != nil {
			doc.isNew = true
			pending = append(pending, doc)
		}
	}
	for _, path := range changes.Updated {
		if doc := e.loadDocument(path, snapshot[path], stats); doc != nil {
			if rec := previous[path]; rec != nil && rec.DocID != "" {
				doc.docID = rec.DocID
			}
			pending = append(pending, doc)
		}
	}
	if len(pending) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for _, chunk := range chunkDocs(pending, e.batchSize) {
		chunk := chunk
		g.Go(func() error {
			e.processChunk(gctx, chunk, stats)
			return nil
		})
	}
	g.Wait()
}

// loadDocument reads a document's content for embedding. Unreadable or empty
// files are data errors: logged, counted and retried next tick.
func (e *Engine) loadDocument(path string, digest *FileDigest, stats *tickStats) *pendingDoc {
	absPath := filepath.Join(e.root, filepath.FromSlash(path))
	data, err := os.ReadFile(absPath)
	if err != nil {
		slog.Warn("skipping unreadable file", "path", path, "error", err)
		stats.skipped.Add(1)
		return nil
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		slog.Warn("skipping empty file", "path", path)
		stats.skipped.Add(1)
		return nil
	}

	return &pendingDoc{
		path: path,
		// fingerprint the bytes actually embedded, in case the file moved
		// on between the scan and this read
		fingerprint: FingerprintBytes(data),
		content:     string(data),
		docID:       DocumentID(path),
		size:        digest.Size,
		modTime:     digest.ModTime,
	}
}

// processChunk embeds one batch and upserts it. A failing embed batch falls
// back to per-document embeds, and a persistently failing upsert batch falls
// back to per-document upserts, so failures always attribute to single
// documents and everything else still lands.
func (e *Engine) processChunk(ctx context.Context, chunk []*pendingDoc, stats *tickStats) {
	texts := make([]string, len(chunk))
	for i, doc := range chunk {
		texts[i] = doc.content
	}

	var embedded []*pendingDoc
	var vectors [][]float32

	batchVectors, err := e.embedder.Embed(ctx, texts)
	if err == nil {
		embedded, vectors = chunk, batchVectors
	} else {
		if ctx.Err() != nil {
			return
		}
		slog.Warn("batch embed failed, retrying per document", "count", len(chunk), "error", err)
		for _, doc := range chunk {
			vs, err := e.embedder.Embed(ctx, []string{doc.content})
			if err != nil {
				slog.Error("embed deferred to next tick", "path", doc.path, "error", err)
				stats.failed.Add(1)
				continue
			}
			embedded = append(embedded, doc)
			vectors = append(vectors, vs[0])
		}
	}
	if len(embedded) == 0 {
		return
	}

	docs := make([]*vecstore.Document, len(embedded))
	for i, doc := range embedded {
		docs[i] = &vecstore.Document{
			ID:        doc.docID,
			Content:   doc.content,
			Metadata:  documentMetadata(doc),
			Embedding: vectors[i],
		}
	}

	err = e.withRetry(ctx, func() error {
		return e.store.Upsert(ctx, docs)
	})
	if err == nil {
		for _, doc := range embedded {
			e.journalWrite(doc, stats)
		}
		return
	}
	if ctx.Err() != nil {
		return
	}

	slog.Warn("batch upsert failed, retrying per document", "count", len(embedded), "error", err)
	for i, doc := range embedded {
		if err := e.store.Upsert(ctx, docs[i:i+1]); err != nil {
			slog.Error("upsert deferred to next tick", "path", doc.path, "error", err)
			stats.failed.Add(1)
			continue
		}
		e.journalWrite(doc, stats)
	}
}

// journalWrite records a successful upsert. Only reached after the remote
// row is durably written.
func (e *Engine) journalWrite(doc *pendingDoc, stats *tickStats) {
	record := &Record{
		Path:         doc.path,
		DocID:        doc.docID,
		Fingerprint:  doc.fingerprint,
		Size:         doc.size,
		LastModified: doc.modTime,
	}
	if err := e.journal.Set(record); err != nil {
		slog.Error("journal write failed", "path", doc.path, "error", err)
		stats.failed.Add(1)
		return
	}
	if doc.isNew {
		slog.Info("indexed", "op", "create", "path", doc.path)
		stats.created.Add(1)
	} else {
		slog.Info("indexed", "op", "update", "path", doc.path)
		stats.updated.Add(1)
	}
}

func documentMetadata(doc *pendingDoc) map[string]any {
	return map[string]any{
		"filename":    filepath.Base(doc.path),
		"path":        doc.path,
		"fingerprint": doc.fingerprint,
		"size":        doc.size,
		"modified_at": doc.modTime.UTC().Format(time.RFC3339),
	}
}

// withRetry runs fn with bounded exponential backoff for transient
// collaborator failures. Exhausted retries surface the last error; the
// caller defers the affected documents to the next tick.
func (e *Engine) withRetry(ctx context.Context, fn func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 8 * time.Second
	return backoff.Retry(fn, backoff.WithContext(backoff.WithMaxRetries(bo, e.maxRetries), ctx))
}

func chunkStrings(items []string, size int) [][]string {
	var chunks [][]string
	for len(items) > 0 {
		n := min(size, len(items))
		chunks = append(chunks, items[:n])
		items = items[n:]
	}
	return chunks
}

func chunkDocs(items []*pendingDoc, size int) [][]*pendingDoc {
	var chunks [][]*pendingDoc
	for len(items) > 0 {
		n := min(size, len(items))
		chunks = append(chunks, items[:n])
		items = items[n:]
	}
	return chunks
}
