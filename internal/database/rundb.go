package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/hyperlinklaw/recordlink/internal/document"
	"github.com/hyperlinklaw/recordlink/internal/model"
)

// RunDB provides SQLite-based storage for recognized page text and run
// reports. It manages connection pooling and provides CRUD methods.
//
// Design decision: We use a single database file per case directory rather
// than one file per document. Page lookups during a rebuild span every
// brief plus the target record, and a single file keeps those queries and
// backup/restore trivial.
type RunDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures RunDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	// This is recommended for most use cases.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a RunDB at the specified directory.
// If CreateIfNotExists is true, the directory and database file are created.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*RunDB, error) {
	dbPath := filepath.Join(dbDir, "recordlink.db")

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// modernc.org/sqlite connection string: mode=rw prevents creating new
	// files, mode=rwc allows creation.
	var dsn string
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	} else {
		dsn = dbPath + "?mode=rw"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer; the OCR worker funnels all page
	// upserts through this single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	rdb := &RunDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := rdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return rdb, nil
}

// Close closes the database connection.
func (rdb *RunDB) Close() error {
	return rdb.db.Close()
}

// Path returns the path to the underlying database file.
func (rdb *RunDB) Path() string {
	return rdb.dbPath
}

// createTables creates the database schema if it doesn't exist.
func (rdb *RunDB) createTables() error {
	schema := `
	-- Page results store one recognized page per (document, page) pair
	CREATE TABLE IF NOT EXISTS ocr_pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		document_id TEXT NOT NULL,
		page_number INTEGER NOT NULL,
		text TEXT NOT NULL,
		words TEXT,
		confidence REAL NOT NULL,
		source TEXT NOT NULL,
		duration_ms INTEGER DEFAULT 0,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(document_id, page_number)
	);

	CREATE INDEX IF NOT EXISTS idx_pages_document ON ocr_pages(document_id);
	CREATE INDEX IF NOT EXISTS idx_pages_confidence ON ocr_pages(confidence);

	-- Run reports store complete rebuild results as JSON
	CREATE TABLE IF NOT EXISTS run_reports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		target_record TEXT NOT NULL,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		report_json TEXT NOT NULL,
		link_summary TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_runs_target ON run_reports(target_record);
	CREATE INDEX IF NOT EXISTS idx_runs_timestamp ON run_reports(timestamp);
	`

	_, err := rdb.db.ExecContext(context.Background(), schema)
	return err
}

// Get returns the stored content for (docID, pageNum), or nil when the page
// has not been processed yet. It satisfies document.PageStore.
func (rdb *RunDB) Get(ctx context.Context, docID string, pageNum int) (*document.PageContent, error) {
	query := `
	SELECT text, words, confidence, source
	FROM ocr_pages
	WHERE document_id = ? AND page_number = ?
	`

	var content document.PageContent
	var wordsJSON sql.NullString

	err := rdb.db.QueryRowContext(ctx, query, docID, pageNum).Scan(
		&content.Text,
		&wordsJSON,
		&content.Confidence,
		&content.Source,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get page %s/%d: %w", docID, pageNum, err)
	}

	if wordsJSON.Valid && wordsJSON.String != "" {
		if err := json.Unmarshal([]byte(wordsJSON.String), &content.Words); err != nil {
			return nil, fmt.Errorf("failed to parse words for %s/%d: %w", docID, pageNum, err)
		}
	}

	return &content, nil
}

// Upsert stores the content for (docID, pageNum), replacing any prior result
// for the same key. Re-running the OCR worker over already-processed pages
// is therefore harmless.
func (rdb *RunDB) Upsert(ctx context.Context, docID string, pageNum int, content *document.PageContent, durationMS int) error {
	wordsJSON, err := json.Marshal(content.Words)
	if err != nil {
		return fmt.Errorf("failed to serialize words: %w", err)
	}

	query := `
	INSERT INTO ocr_pages (document_id, page_number, text, words, confidence, source, duration_ms)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(document_id, page_number) DO UPDATE SET
		text = excluded.text,
		words = excluded.words,
		confidence = excluded.confidence,
		source = excluded.source,
		duration_ms = excluded.duration_ms,
		timestamp = CURRENT_TIMESTAMP
	`

	_, err = rdb.db.ExecContext(ctx, query,
		docID,
		pageNum,
		content.Text,
		string(wordsJSON),
		content.Confidence,
		content.Source,
		durationMS,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert page %s/%d: %w", docID, pageNum, err)
	}

	return nil
}

// ProcessedPages returns the set of page numbers already stored for a
// document. The OCR worker uses this to skip finished pages on resume.
func (rdb *RunDB) ProcessedPages(ctx context.Context, docID string) (map[int]bool, error) {
	query := `
	SELECT page_number FROM ocr_pages
	WHERE document_id = ?
	`

	rows, err := rdb.db.QueryContext(ctx, query, docID)
	if err != nil {
		return nil, fmt.Errorf("failed to query processed pages: %w", err)
	}
	defer rows.Close()

	pages := make(map[int]bool)
	for rows.Next() {
		var page int
		if err := rows.Scan(&page); err != nil {
			return nil, fmt.Errorf("failed to scan page number: %w", err)
		}
		pages[page] = true
	}

	return pages, rows.Err()
}

// LowConfidencePages returns page numbers stored below the given confidence,
// ordered ascending. These are the candidates for a higher-DPI retry.
func (rdb *RunDB) LowConfidencePages(ctx context.Context, docID string, threshold float64) ([]int, error) {
	query := `
	SELECT page_number FROM ocr_pages
	WHERE document_id = ? AND confidence < ?
	ORDER BY page_number ASC
	`

	rows, err := rdb.db.QueryContext(ctx, query, docID, threshold)
	if err != nil {
		return nil, fmt.Errorf("failed to query low-confidence pages: %w", err)
	}
	defer rows.Close()

	var pages []int
	for rows.Next() {
		var page int
		if err := rows.Scan(&page); err != nil {
			return nil, fmt.Errorf("failed to scan page number: %w", err)
		}
		pages = append(pages, page)
	}

	return pages, rows.Err()
}

// SaveRunReport saves a completed run as JSON alongside a small summary used
// for history listings.
func (rdb *RunDB) SaveRunReport(ctx context.Context, run *model.Run) error {
	runJSON, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to serialize run: %w", err)
	}

	linkSummary := map[string]int{
		"detected":     0,
		"auto_linked":  0,
		"escalated":    0,
		"needs_review": 0,
		"placed":       0,
	}
	if run.Validation != nil {
		linkSummary["detected"] = run.Validation.TotalDetected
		linkSummary["auto_linked"] = run.Validation.AutoLinked
		linkSummary["escalated"] = run.Validation.EscalatedLinked
		linkSummary["needs_review"] = run.Validation.NeedsReview
		linkSummary["placed"] = run.Validation.LinksPlaced
	}
	summaryJSON, _ := json.Marshal(linkSummary) //nolint:errcheck,errchkjson // linkSummary is a simple map; Marshal won't fail

	query := `
	INSERT INTO run_reports (run_id, target_record, report_json, link_summary)
	VALUES (?, ?, ?, ?)
	`

	_, err = rdb.db.ExecContext(ctx, query,
		run.ID,
		run.TargetRecord.ID,
		string(runJSON),
		string(summaryJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save run report: %w", err)
	}

	return nil
}

// GetLatestRun retrieves the most recent run for a target record.
func (rdb *RunDB) GetLatestRun(ctx context.Context, targetRecord string) (*model.Run, error) {
	query := `
	SELECT report_json FROM run_reports
	WHERE target_record = ?
	ORDER BY timestamp DESC
	LIMIT 1
	`

	var runJSON string
	err := rdb.db.QueryRowContext(ctx, query, targetRecord).Scan(&runJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run report: %w", err)
	}

	var run model.Run
	if err := json.Unmarshal([]byte(runJSON), &run); err != nil {
		return nil, fmt.Errorf("failed to parse run report: %w", err)
	}

	return &run, nil
}

// GetRunByID retrieves a run report by its run identifier.
func (rdb *RunDB) GetRunByID(ctx context.Context, runID string) (*model.Run, error) {
	query := `
	SELECT report_json FROM run_reports
	WHERE run_id = ?
	ORDER BY timestamp DESC
	LIMIT 1
	`

	var runJSON string
	err := rdb.db.QueryRowContext(ctx, query, runID).Scan(&runJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run report: %w", err)
	}

	var run model.Run
	if err := json.Unmarshal([]byte(runJSON), &run); err != nil {
		return nil, fmt.Errorf("failed to parse run report: %w", err)
	}

	return &run, nil
}

// RunMetadata contains summary information about a stored run.
// This is used for displaying run history without loading the full report.
type RunMetadata struct {
	// ID is the unique identifier of the report row in the database.
	ID int64

	// RunID is the run's identifier.
	RunID string

	// TargetRecord is the record the run was built against.
	TargetRecord string

	// Timestamp is when the run was saved.
	Timestamp time.Time

	// LinkSummary contains link counts by resolution outcome.
	LinkSummary map[string]int
}

// ListRuns retrieves metadata for stored runs, most recent first.
// This is more efficient than loading full reports when only metadata is needed.
func (rdb *RunDB) ListRuns(ctx context.Context, targetRecord string) ([]RunMetadata, error) {
	query := `
	SELECT id, run_id, target_record, timestamp, link_summary
	FROM run_reports
	WHERE 1=1
	`
	args := make([]interface{}, 0)

	if targetRecord != "" {
		query += " AND target_record = ?"
		args = append(args, targetRecord)
	}

	query += " ORDER BY timestamp DESC"

	rows, err := rdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var results []RunMetadata
	for rows.Next() {
		var meta RunMetadata
		var timestamp string
		var summaryJSON sql.NullString

		if err := rows.Scan(&meta.ID, &meta.RunID, &meta.TargetRecord, &timestamp, &summaryJSON); err != nil {
			return nil, fmt.Errorf("failed to scan metadata: %w", err)
		}

		meta.Timestamp = parseTimestamp(timestamp)

		if summaryJSON.Valid && summaryJSON.String != "" {
			if err := json.Unmarshal([]byte(summaryJSON.String), &meta.LinkSummary); err != nil {
				meta.LinkSummary = make(map[string]int)
			}
		} else {
			meta.LinkSummary = make(map[string]int)
		}

		results = append(results, meta)
	}

	return results, rows.Err()
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05Z",    // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	time.RFC3339,              // Full RFC3339 format
	time.RFC3339Nano,          // RFC3339 with nanoseconds
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// SQLite may return timestamps in different formats depending on configuration.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
