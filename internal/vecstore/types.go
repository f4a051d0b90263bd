package vecstore

// Document is one row destined for the vector table.
type Document struct {
	ID        string
	Content   string
	Metadata  map[string]any
	Embedding []float32
}

// MatchResult is one ranked row from a similarity search.
type MatchResult struct {
	ID         string
	Content    string
	Metadata   map[string]any
	Similarity float64
}

// Config for the vector store connection.
type Config struct {
	// DSN is a Postgres connection string; the server must have the
	// pgvector extension available.
	DSN string

	// Table is the documents table name. Created on connect if missing.
	Table string

	// Dimensions is the embedding vector width, e.g. 1536.
	Dimensions int
}
