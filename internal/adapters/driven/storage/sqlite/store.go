// Package sqlite provides SQLite-backed metadata storage for documents,
// passages, conversations and messages.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/docsage-labs/docsage-cli/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/docsage-labs/docsage-cli/internal/core/domain"
	"github.com/docsage-labs/docsage-cli/internal/core/ports/driven"
)

// Store is a unified SQLite-based storage that provides access to the
// metadata store interfaces through wrapper types.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.docsage/data/metadata.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".docsage", "data")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "metadata.db")

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	// Run migrations
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// DocumentStore returns a DocumentStore interface backed by this store.
func (s *Store) DocumentStore() driven.DocumentStore {
	return &documentStore{store: s}
}

// ConversationStore returns a ConversationStore interface backed by this store.
func (s *Store) ConversationStore() driven.ConversationStore {
	return &conversationStore{store: s}
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}
		if version <= currentVersion {
			continue // Already applied
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Document Store ====================

// documentStore implements driven.DocumentStore.
type documentStore struct {
	store *Store
}

var _ driven.DocumentStore = (*documentStore)(nil)

// SaveDocument stores or updates a document.
func (s *documentStore) SaveDocument(ctx context.Context, doc *domain.Document) error {
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO documents (id, source_ref, filename, content_hash, page_count, status,
			embedding_model, passage_count, truncated_passages, error, created_at, processed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source_ref = excluded.source_ref,
			filename = excluded.filename,
			content_hash = excluded.content_hash,
			page_count = excluded.page_count,
			status = excluded.status,
			embedding_model = excluded.embedding_model,
			passage_count = excluded.passage_count,
			truncated_passages = excluded.truncated_passages,
			error = excluded.error,
			processed_at = excluded.processed_at
	`, doc.ID, doc.SourceRef, doc.Filename, doc.ContentHash, doc.PageCount, string(doc.Status),
		doc.EmbeddingModel, doc.PassageCount, doc.TruncatedPassages, doc.Error,
		doc.CreatedAt, nullTime(doc.ProcessedAt))

	if err != nil {
		return fmt.Errorf("saving document: %w", err)
	}
	return nil
}

// GetDocument retrieves a document by ID.
func (s *documentStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, source_ref, filename, content_hash, page_count, status,
			embedding_model, passage_count, truncated_passages, error, created_at, processed_at
		FROM documents WHERE id = ?
	`, id)

	return scanDocument(row.Scan)
}

// FindByContentHash retrieves a document by its content hash.
func (s *documentStore) FindByContentHash(ctx context.Context, hash string) (*domain.Document, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, source_ref, filename, content_hash, page_count, status,
			embedding_model, passage_count, truncated_passages, error, created_at, processed_at
		FROM documents WHERE content_hash = ?
		ORDER BY created_at DESC LIMIT 1
	`, hash)

	return scanDocument(row.Scan)
}

// TransitionStatus atomically moves a document between processing
// statuses using compare-and-set semantics.
func (s *documentStore) TransitionStatus(ctx context.Context, id string, from, to domain.ProcessingStatus) error {
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s is not a forward transition", domain.ErrInvalidArgument, from, to)
	}

	res, err := s.store.db.ExecContext(ctx, `
		UPDATE documents SET status = ? WHERE id = ? AND status = ?
	`, string(to), id, string(from))
	if err != nil {
		return fmt.Errorf("transitioning status: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking transition result: %w", err)
	}
	if n == 0 {
		// Either the document is missing or its status moved under us.
		if _, err := s.GetDocument(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("document %s is not %s: %w", id, from, domain.ErrStatusConflict)
	}
	return nil
}

// SavePassages stores all passages for a document in one transaction.
func (s *documentStore) SavePassages(ctx context.Context, passages []domain.Passage) error {
	if len(passages) == 0 {
		return nil
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO passages (id, document_id, ordinal, first_page, last_page,
			text, token_count, overlap_with_prev, truncated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			text = excluded.text,
			truncated = excluded.truncated
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, p := range passages {
		if _, err := stmt.ExecContext(ctx, p.ID, p.DocumentID, p.Ordinal, p.FirstPage,
			p.LastPage, p.Text, p.TokenCount, p.OverlapWithPrev, boolToInt(p.Truncated)); err != nil {
			return fmt.Errorf("saving passage: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// GetPassages retrieves a document's passages ordered by ordinal.
func (s *documentStore) GetPassages(ctx context.Context, documentID string) ([]domain.Passage, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, document_id, ordinal, first_page, last_page, text, token_count, overlap_with_prev, truncated
		FROM passages WHERE document_id = ?
		ORDER BY ordinal
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("querying passages: %w", err)
	}
	defer rows.Close()

	var passages []domain.Passage //nolint:prealloc // size unknown from query
	for rows.Next() {
		p, err := scanPassage(rows.Scan)
		if err != nil {
			return nil, err
		}
		passages = append(passages, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating passages: %w", err)
	}
	return passages, nil
}

// GetPassage retrieves a specific passage by ID.
func (s *documentStore) GetPassage(ctx context.Context, id string) (*domain.Passage, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, document_id, ordinal, first_page, last_page, text, token_count, overlap_with_prev, truncated
		FROM passages WHERE id = ?
	`, id)

	return scanPassage(row.Scan)
}

// DeleteDocument removes a document; passages cascade.
func (s *documentStore) DeleteDocument(ctx context.Context, id string) error {
	_, err := s.store.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	return nil
}

// ListDocuments returns all documents, newest first.
func (s *documentStore) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, source_ref, filename, content_hash, page_count, status,
			embedding_model, passage_count, truncated_passages, error, created_at, processed_at
		FROM documents ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document //nolint:prealloc // size unknown from query
	for rows.Next() {
		doc, err := scanDocument(rows.Scan)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return docs, nil
}

// ==================== Conversation Store ====================

// conversationStore implements driven.ConversationStore.
type conversationStore struct {
	store *Store
}

var _ driven.ConversationStore = (*conversationStore)(nil)

// SaveConversation stores a new conversation.
func (s *conversationStore) SaveConversation(ctx context.Context, conv *domain.Conversation) error {
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = time.Now().UTC()
	}

	docIDs, err := json.Marshal(conv.DocumentIDs)
	if err != nil {
		return fmt.Errorf("marshalling document ids: %w", err)
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO conversations (id, document_ids, created_at) VALUES (?, ?, ?)
	`, conv.ID, string(docIDs), conv.CreatedAt)
	if err != nil {
		return fmt.Errorf("saving conversation: %w", err)
	}
	return nil
}

// GetConversation retrieves a conversation by ID.
func (s *conversationStore) GetConversation(ctx context.Context, id string) (*domain.Conversation, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, document_ids, created_at FROM conversations WHERE id = ?
	`, id)

	var conv domain.Conversation
	var docIDs string
	if err := row.Scan(&conv.ID, &docIDs, &conv.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning conversation: %w", err)
	}

	if err := json.Unmarshal([]byte(docIDs), &conv.DocumentIDs); err != nil {
		return nil, fmt.Errorf("unmarshalling document ids: %w", err)
	}
	return &conv, nil
}

// AppendMessage appends a message to a conversation.
func (s *conversationStore) AppendMessage(ctx context.Context, msg *domain.Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	citations, err := json.Marshal(msg.Citations)
	if err != nil {
		return fmt.Errorf("marshalling citations: %w", err)
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, role, content, citations, incomplete, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, msg.ID, msg.ConversationID, string(msg.Role), msg.Content, string(citations),
		boolToInt(msg.Incomplete), msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("appending message: %w", err)
	}
	return nil
}

// GetMessages returns a conversation's messages oldest first.
func (s *conversationStore) GetMessages(ctx context.Context, conversationID string) ([]domain.Message, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, conversation_id, role, content, citations, incomplete, created_at
		FROM messages WHERE conversation_id = ?
		ORDER BY created_at, id
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var msgs []domain.Message //nolint:prealloc // size unknown from query
	for rows.Next() {
		var msg domain.Message
		var role, citations string
		var incomplete int
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &role, &msg.Content,
			&citations, &incomplete, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		msg.Role = domain.Role(role)
		msg.Incomplete = incomplete != 0
		if err := json.Unmarshal([]byte(citations), &msg.Citations); err != nil {
			return nil, fmt.Errorf("unmarshalling citations: %w", err)
		}
		msgs = append(msgs, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}
	return msgs, nil
}

// DeleteConversation removes a conversation; messages cascade.
func (s *conversationStore) DeleteConversation(ctx context.Context, id string) error {
	_, err := s.store.db.ExecContext(ctx, "DELETE FROM conversations WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting conversation: %w", err)
	}
	return nil
}

// ==================== Helpers ====================

type scanFunc func(dest ...any) error

func scanDocument(scan scanFunc) (*domain.Document, error) {
	var doc domain.Document
	var status string
	var processedAt sql.NullTime
	if err := scan(&doc.ID, &doc.SourceRef, &doc.Filename, &doc.ContentHash, &doc.PageCount,
		&status, &doc.EmbeddingModel, &doc.PassageCount, &doc.TruncatedPassages, &doc.Error,
		&doc.CreatedAt, &processedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}
	doc.Status = domain.ProcessingStatus(status)
	if processedAt.Valid {
		doc.ProcessedAt = processedAt.Time
	}
	return &doc, nil
}

func scanPassage(scan scanFunc) (*domain.Passage, error) {
	var p domain.Passage
	var truncated int
	if err := scan(&p.ID, &p.DocumentID, &p.Ordinal, &p.FirstPage, &p.LastPage,
		&p.Text, &p.TokenCount, &p.OverlapWithPrev, &truncated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning passage: %w", err)
	}
	p.Truncated = truncated != 0
	return &p, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
