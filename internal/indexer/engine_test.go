package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embedsync/embedsync/internal/vecstore"
)

type fakeEmbedder struct {
	mu    sync.Mutex
	calls int
	fail  bool
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail {
		return nil, errors.New("embeddings api down")
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = []float32{float32(len(text)), 1, 2}
	}
	return vectors, nil
}

func (f *fakeEmbedder) setFail(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = fail
}

type fakeStore struct {
	mu         sync.Mutex
	rows       map[string]*vecstore.Document
	upserts    int
	deletes    int
	failUpsert bool
	failDelete bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: make(map[string]*vecstore.Document)}
}

func (f *fakeStore) Upsert(ctx context.Context, docs []*vecstore.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts++
	if f.failUpsert {
		return errors.New("vector store unavailable")
	}
	for _, doc := range docs {
		if doc.ID == "" {
			return fmt.Errorf("document %s has no id", doc.Metadata["path"])
		}
		f.rows[doc.ID] = doc
	}
	return nil
}

func (f *fakeStore) Delete(ctx context.Context, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	if f.failDelete {
		return errors.New("vector store unavailable")
	}
	for _, id := range ids {
		delete(f.rows, id)
	}
	return nil
}

func (f *fakeStore) setFail(upsert, del bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failUpsert, f.failDelete = upsert, del
}

func (f *fakeStore) row(id string) *vecstore.Document {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[id]
}

func (f *fakeStore) size() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

type engineFixture struct {
	root     string
	engine   *Engine
	journal  *Journal
	store    *fakeStore
	embedder *fakeEmbedder
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	root := t.TempDir()

	journal := NewJournal(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, journal.Open())
	t.Cleanup(func() { _ = journal.Close() })

	ignore := NewIgnoreList(root)
	ignore.Load()

	store := newFakeStore()
	embedder := &fakeEmbedder{}

	engine := NewEngine(&EngineConfig{
		Root:       root,
		Workers:    2,
		BatchSize:  8,
		MaxRetries: 0,
		Scanner:    NewScanner(root, []string{".md", ".txt"}, ignore),
		Journal:    journal,
		Embedder:   embedder,
		Store:      store,
	})

	return &engineFixture{
		root:     root,
		engine:   engine,
		journal:  journal,
		store:    store,
		embedder: embedder,
	}
}

func TestEngineIndexesNewFiles(t *testing.T) {
	fix := newEngineFixture(t)
	writeDoc(t, fix.root, "readme.md", "# hello")
	writeDoc(t, fix.root, "guides/setup.md", "run the installer")

	require.NoError(t, fix.engine.RunOnce(context.Background()))

	assert.Equal(t, 2, fix.store.size())

	row := fix.store.row(DocumentID("guides/setup.md"))
	require.NotNil(t, row)
	assert.Equal(t, "run the installer", row.Content)
	assert.Equal(t, "guides/setup.md", row.Metadata["path"])
	assert.Equal(t, "setup.md", row.Metadata["filename"])
	assert.Equal(t, FingerprintBytes([]byte("run the installer")), row.Metadata["fingerprint"])
	assert.Len(t, row.Embedding, 3)

	count, err := fix.journal.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	rec, err := fix.journal.Get("readme.md")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, DocumentID("readme.md"), rec.DocID)
	assert.Equal(t, FingerprintBytes([]byte("# hello")), rec.Fingerprint)
}

func TestEngineIsIdempotent(t *testing.T) {
	fix := newEngineFixture(t)
	writeDoc(t, fix.root, "doc.md", "content")

	require.NoError(t, fix.engine.RunOnce(context.Background()))
	upserts := fix.store.upserts

	// nothing changed: the second tick must not touch the store
	require.NoError(t, fix.engine.RunOnce(context.Background()))
	assert.Equal(t, upserts, fix.store.upserts)
	assert.Equal(t, 0, fix.store.deletes)
	assert.Equal(t, 1, fix.store.size())
}

func TestEngineUpdatesInPlace(t *testing.T) {
	fix := newEngineFixture(t)
	writeDoc(t, fix.root, "doc.md", "first version")
	require.NoError(t, fix.engine.RunOnce(context.Background()))

	writeDoc(t, fix.root, "doc.md", "second version, reworked")
	require.NoError(t, fix.engine.RunOnce(context.Background()))

	// an edit replaces the same remote row, never adds one
	assert.Equal(t, 1, fix.store.size())
	row := fix.store.row(DocumentID("doc.md"))
	require.NotNil(t, row)
	assert.Equal(t, "second version, reworked", row.Content)

	rec, err := fix.journal.Get("doc.md")
	require.NoError(t, err)
	assert.Equal(t, FingerprintBytes([]byte("second version, reworked")), rec.Fingerprint)
}

func TestEngineDeletesRemovedFiles(t *testing.T) {
	fix := newEngineFixture(t)
	writeDoc(t, fix.root, "doc.md", "content")
	require.NoError(t, fix.engine.RunOnce(context.Background()))
	require.Equal(t, 1, fix.store.size())

	require.NoError(t, os.Remove(filepath.Join(fix.root, "doc.md")))
	require.NoError(t, fix.engine.RunOnce(context.Background()))

	assert.Equal(t, 0, fix.store.size())
	count, err := fix.journal.Count()
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestEngineEmbedFailureDefersDocument(t *testing.T) {
	fix := newEngineFixture(t)
	writeDoc(t, fix.root, "doc.md", "content")

	fix.embedder.setFail(true)
	require.NoError(t, fix.engine.RunOnce(context.Background()))

	// no vector, no remote row, no journal entry
	assert.Equal(t, 0, fix.store.size())
	count, err := fix.journal.Count()
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	// the next tick re-detects the document and converges
	fix.embedder.setFail(false)
	require.NoError(t, fix.engine.RunOnce(context.Background()))
	assert.Equal(t, 1, fix.store.size())
	count, err = fix.journal.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestEngineUpsertFailureKeepsJournalClean(t *testing.T) {
	fix := newEngineFixture(t)
	writeDoc(t, fix.root, "doc.md", "content")

	fix.store.setFail(true, false)
	require.NoError(t, fix.engine.RunOnce(context.Background()))

	count, err := fix.journal.Count()
	require.NoError(t, err)
	assert.Equal(t, 0, count, "journal must only record acknowledged upserts")

	fix.store.setFail(false, false)
	require.NoError(t, fix.engine.RunOnce(context.Background()))
	assert.Equal(t, 1, fix.store.size())
	count, err = fix.journal.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestEngineDeleteFailureRetainsRecord(t *testing.T) {
	fix := newEngineFixture(t)
	writeDoc(t, fix.root, "doc.md", "content")
	require.NoError(t, fix.engine.RunOnce(context.Background()))

	require.NoError(t, os.Remove(filepath.Join(fix.root, "doc.md")))
	fix.store.setFail(false, true)
	require.NoError(t, fix.engine.RunOnce(context.Background()))

	// the record survives so the delete is retried next tick
	rec, err := fix.journal.Get("doc.md")
	require.NoError(t, err)
	assert.NotNil(t, rec)

	fix.store.setFail(false, false)
	require.NoError(t, fix.engine.RunOnce(context.Background()))
	rec, err = fix.journal.Get("doc.md")
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.Equal(t, 0, fix.store.size())
}

func TestEngineSkipsEmptyFiles(t *testing.T) {
	fix := newEngineFixture(t)
	writeDoc(t, fix.root, "empty.md", "")
	writeDoc(t, fix.root, "blank.md", "  \n\t\n")
	writeDoc(t, fix.root, "real.md", "actual content")

	require.NoError(t, fix.engine.RunOnce(context.Background()))

	assert.Equal(t, 1, fix.store.size())
	count, err := fix.journal.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestEngineRejectsOverlappingTicks(t *testing.T) {
	fix := newEngineFixture(t)

	fix.engine.muSync.Lock()
	defer fix.engine.muSync.Unlock()

	err := fix.engine.RunOnce(context.Background())
	assert.ErrorIs(t, err, ErrSyncAlreadyRunning)
}
