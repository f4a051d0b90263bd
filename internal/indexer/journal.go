package indexer

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/embedsync/embedsync/internal/db"
)

const journalSchema = `
CREATE TABLE IF NOT EXISTS index_journal (
    path TEXT PRIMARY KEY,
    doc_id TEXT NOT NULL,
    fingerprint TEXT NOT NULL,
    size INTEGER NOT NULL,
    last_modified TEXT NOT NULL -- RFC3339
);

CREATE INDEX IF NOT EXISTS idx_journal_fingerprint ON index_journal(fingerprint);
`

// Record is the persisted state of one successfully indexed document.
// It exists only after the remote upsert succeeded, and is removed only
// after the remote delete succeeded.
type Record struct {
	Path         string
	DocID        string
	Fingerprint  string
	Size         int64
	LastModified time.Time
}

// dbRecord scans journal rows; time is stored as TEXT.
type dbRecord struct {
	Path         string `db:"path"`
	DocID        string `db:"doc_id"`
	Fingerprint  string `db:"fingerprint"`
	Size         int64  `db:"size"`
	LastModified string `db:"last_modified"`
}

func (r *dbRecord) toRecord() (*Record, error) {
	modTime, err := time.Parse(time.RFC3339Nano, r.LastModified)
	if err != nil {
		return nil, fmt.Errorf("parse stored timestamp for %s: %w", r.Path, err)
	}
	return &Record{
		Path:         r.Path,
		DocID:        r.DocID,
		Fingerprint:  r.Fingerprint,
		Size:         r.Size,
		LastModified: modTime,
	}, nil
}

// Journal is the durable local state of the indexer, backed by sqlite.
// Only the sync engine writes to it, and only after the corresponding
// remote operation succeeded.
type Journal struct {
	db     *sqlx.DB
	dbPath string
}

// NewJournal creates a Journal handle. Call Open before use.
func NewJournal(dbPath string) *Journal {
	return &Journal{dbPath: dbPath}
}

// Open opens the underlying database and initializes the schema.
func (j *Journal) Open() error {
	if j.db != nil {
		return fmt.Errorf("journal already open")
	}

	database, err := db.NewSqliteDB(db.WithPath(j.dbPath), db.WithMaxOpenConns(1))
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}

	if _, err := database.Exec(journalSchema); err != nil {
		database.Close()
		return fmt.Errorf("initialize journal schema: %w", err)
	}

	j.db = database
	return nil
}

func (j *Journal) Close() error {
	if j.db == nil {
		return fmt.Errorf("journal not open")
	}
	if err := j.db.Close(); err != nil {
		return err
	}
	j.db = nil
	slog.Debug("journal closed")
	return nil
}

// Get retrieves the record for a path, or nil if the path is unknown.
func (j *Journal) Get(path string) (*Record, error) {
	var row dbRecord
	err := j.db.Get(&row, "SELECT path, doc_id, fingerprint, size, last_modified FROM index_journal WHERE path = ?", path)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query path %s: %w", path, err)
	}
	return row.toRecord()
}

// Set inserts or replaces the record for a path.
func (j *Journal) Set(record *Record) error {
	if record == nil {
		return fmt.Errorf("cannot set nil record")
	}

	row := dbRecord{
		Path:         record.Path,
		DocID:        record.DocID,
		Fingerprint:  record.Fingerprint,
		Size:         record.Size,
		LastModified: record.LastModified.Format(time.RFC3339Nano),
	}
	query := `INSERT OR REPLACE INTO index_journal (path, doc_id, fingerprint, size, last_modified)
	          VALUES (:path, :doc_id, :fingerprint, :size, :last_modified)`
	if _, err := j.db.NamedExec(query, row); err != nil {
		return fmt.Errorf("set record for path %s: %w", record.Path, err)
	}
	slog.Debug("journal set", "path", record.Path, "fingerprint", record.Fingerprint)
	return nil
}

// Delete removes a record by path. Deleting an absent path is a no-op.
func (j *Journal) Delete(path string) error {
	if _, err := j.db.Exec("DELETE FROM index_journal WHERE path = ?", path); err != nil {
		return fmt.Errorf("delete path %s: %w", path, err)
	}
	slog.Debug("journal delete", "path", path)
	return nil
}

// State retrieves the whole journal as a path-keyed map.
func (j *Journal) State() (map[string]*Record, error) {
	var rows []dbRecord
	if err := j.db.Select(&rows, "SELECT path, doc_id, fingerprint, size, last_modified FROM index_journal"); err != nil {
		return nil, fmt.Errorf("query journal state: %w", err)
	}

	state := make(map[string]*Record, len(rows))
	for i := range rows {
		record, err := rows[i].toRecord()
		if err != nil {
			slog.Error("skipping corrupt journal row", "path", rows[i].Path, "error", err)
			continue
		}
		state[record.Path] = record
	}
	return state, nil
}

// Count returns the number of journaled documents.
func (j *Journal) Count() (int, error) {
	var count int
	if err := j.db.Get(&count, "SELECT COUNT(*) FROM index_journal"); err != nil {
		return 0, fmt.Errorf("count journal entries: %w", err)
	}
	return count, nil
}
