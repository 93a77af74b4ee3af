package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/olegiv/logtriage-go/internal/analyzer"
	"github.com/olegiv/logtriage-go/internal/logging"
)

// Storage archives triage runs in SQLite.
// It is a record of results only; the engine never reads it back.
type Storage struct {
	db  *sql.DB
	log *logging.SecureLogger
}

// Run is one archived triage of a log file.
type Run struct {
	ID          string           `json:"id" yaml:"id"`
	CreatedAt   time.Time        `json:"created_at" yaml:"created_at"`
	LogPath     string           `json:"log_path" yaml:"log_path"`
	TotalLines  int              `json:"total_lines" yaml:"total_lines"`
	Errorish    int              `json:"errorish" yaml:"errorish"`
	BinMinutes  int              `json:"bin_minutes" yaml:"bin_minutes"`
	Threshold   float64          `json:"threshold" yaml:"threshold"`
	LevelCounts map[string]int   `json:"level_counts" yaml:"level_counts"`
	TopClusters []ClusterSummary `json:"top_clusters" yaml:"top_clusters"`
}

// ClusterSummary is the archived part of a cluster.
type ClusterSummary struct {
	ID    int    `json:"cluster_id" yaml:"cluster_id"`
	Rep   string `json:"rep" yaml:"rep"`
	Count int    `json:"count" yaml:"count"`
}

// Option configures a Storage.
type Option func(*Storage)

// WithLogger sets the logger used for migration and cleanup messages.
func WithLogger(log *logging.SecureLogger) Option {
	return func(s *Storage) {
		s.log = log
	}
}

// Database configuration constants
const (
	// busyTimeoutMs is how long SQLite waits when database is locked (5 seconds)
	busyTimeoutMs = 5000
	// maxOpenConns limits concurrent connections (SQLite works best with 1)
	maxOpenConns = 1
	// maxIdleConns is the number of idle connections to keep
	maxIdleConns = 1
	// connMaxLifetime is how long a connection can be reused
	connMaxLifetime = 30 * time.Minute

	// timeLayout is fixed width so stored timestamps sort lexically.
	timeLayout = "2006-01-02T15:04:05.000000000Z"
)

// New creates a new storage instance
func New(dbPath string, opts ...Option) (*Storage, error) {
	// Create directory if it doesn't exist (0700 for security - owner only)
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// busy_timeout makes writers wait instead of failing with "database is locked".
	// modernc.org/sqlite applies _pragma parameters on every new connection.
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(%d)", dbPath, busyTimeoutMs)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	storage := &Storage{db: db, log: logging.Nop()}
	for _, opt := range opts {
		opt(storage)
	}

	if err := storage.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

// currentSchemaVersion is the latest schema version.
// Increment this when adding new migrations.
const currentSchemaVersion = 2

// initSchema creates the database schema if it doesn't exist
func (s *Storage) initSchema() error {
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		)
	`); err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	if err := s.migrateSchema(s.getSchemaVersion()); err != nil {
		return fmt.Errorf("schema migration failed: %w", err)
	}

	return nil
}

// getSchemaVersion returns the current schema version (0 if not set)
func (s *Storage) getSchemaVersion() int {
	var version int
	err := s.db.QueryRow(`SELECT version FROM schema_version LIMIT 1`).Scan(&version)
	if err != nil {
		return 0
	}
	return version
}

func (s *Storage) setSchemaVersion(version int) error {
	if _, err := s.db.Exec(`DELETE FROM schema_version`); err != nil {
		return err
	}
	if _, err := s.db.Exec(`INSERT INTO schema_version (version) VALUES (?)`, version); err != nil {
		return err
	}
	return nil
}

// migrateSchema runs migrations from currentVersion to latest
func (s *Storage) migrateSchema(currentVersion int) error {
	if currentVersion >= currentSchemaVersion {
		return nil
	}

	s.log.Info().
		Int("from", currentVersion).
		Int("to", currentSchemaVersion).
		Msg("storage: migrating schema")

	// Migration 0 -> 1: runs table
	if currentVersion < 1 {
		if err := s.migrateV1(); err != nil {
			return fmt.Errorf("migration v1 failed: %w", err)
		}
	}

	// Migration 1 -> 2: analysis parameters
	if currentVersion < 2 {
		if err := s.migrateV2(); err != nil {
			return fmt.Errorf("migration v2 failed: %w", err)
		}
	}

	if err := s.setSchemaVersion(currentSchemaVersion); err != nil {
		return fmt.Errorf("failed to update schema version: %w", err)
	}

	s.log.Info().Int("version", currentSchemaVersion).Msg("storage: schema migration completed")
	return nil
}

// migrateV1 creates the base runs table
func (s *Storage) migrateV1() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		created_at TEXT NOT NULL,
		log_path TEXT NOT NULL,
		total_lines INTEGER NOT NULL DEFAULT 0,
		errorish INTEGER NOT NULL DEFAULT 0,
		level_counts TEXT,
		top_clusters TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
	CREATE INDEX IF NOT EXISTS idx_runs_log_path ON runs(log_path);
	`

	_, err := s.db.Exec(schema)
	return err
}

// migrateV2 adds the bin size and threshold a run was computed with
func (s *Storage) migrateV2() error {
	hasColumn, err := s.hasColumn("runs", "bin_minutes")
	if err != nil {
		return err
	}
	if hasColumn {
		return nil
	}

	if _, err := s.db.Exec(`ALTER TABLE runs ADD COLUMN bin_minutes INTEGER NOT NULL DEFAULT 5`); err != nil {
		return fmt.Errorf("failed to add bin_minutes column: %w", err)
	}
	if _, err := s.db.Exec(`ALTER TABLE runs ADD COLUMN threshold REAL NOT NULL DEFAULT 0.82`); err != nil {
		return fmt.Errorf("failed to add threshold column: %w", err)
	}
	return nil
}

func (s *Storage) hasColumn(table, column string) (bool, error) {
	rows, err := s.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, fmt.Errorf("failed to get table info: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var cid int
		var name, colType string
		var notNull, pk int
		var dfltValue interface{}
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return false, fmt.Errorf("failed to scan column info: %w", err)
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

// NewRun builds an archive record from a triage report.
func NewRun(rep *analyzer.TriageReport) *Run {
	run := &Run{
		LogPath:     rep.LogPath,
		TotalLines:  rep.Levels.TotalLines,
		Errorish:    rep.Clusters.ExtractedErrorish,
		BinMinutes:  rep.Levels.BinMinutes,
		Threshold:   rep.Clusters.Threshold,
		LevelCounts: make(map[string]int, len(rep.Levels.LevelCounts)),
		TopClusters: make([]ClusterSummary, 0, len(rep.Clusters.Clusters)),
	}
	for lvl, n := range rep.Levels.LevelCounts {
		run.LevelCounts[string(lvl)] = n
	}
	for _, c := range rep.Clusters.Clusters {
		run.TopClusters = append(run.TopClusters, ClusterSummary{ID: c.ID, Rep: c.Rep, Count: c.Count})
	}
	return run
}

// SaveRun saves a run, assigning an ID and creation time when unset.
func (s *Storage) SaveRun(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}

	levelCountsJSON, err := json.Marshal(run.LevelCounts)
	if err != nil {
		return fmt.Errorf("failed to marshal level counts: %w", err)
	}
	topClustersJSON, err := json.Marshal(run.TopClusters)
	if err != nil {
		return fmt.Errorf("failed to marshal clusters: %w", err)
	}

	query := `
		INSERT INTO runs (
			id, created_at, log_path, total_lines, errorish,
			bin_minutes, threshold, level_counts, top_clusters
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		run.ID,
		run.CreatedAt.UTC().Format(timeLayout),
		run.LogPath,
		run.TotalLines,
		run.Errorish,
		run.BinMinutes,
		run.Threshold,
		string(levelCountsJSON),
		string(topClustersJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	return nil
}

// RecentRuns returns up to limit runs, newest first. A non-empty logPath
// restricts the result to runs of that file.
func (s *Storage) RecentRuns(ctx context.Context, limit int, logPath string) ([]*Run, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive (got: %d)", limit)
	}

	query := `
		SELECT id, created_at, log_path, total_lines, errorish,
		       bin_minutes, threshold, level_counts, top_clusters
		FROM runs
	`
	var args []interface{}
	if logPath != "" {
		query += ` WHERE log_path = ?`
		args = append(args, logPath)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			s.log.Warn().Err(err).Msg("storage: failed to close database rows")
		}
	}(rows)

	runs := make([]*Run, 0, limit)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// CleanupOldRuns deletes runs older than N days
func (s *Storage) CleanupOldRuns(ctx context.Context, days int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -days).UTC().Format(timeLayout)

	result, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup old runs: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if affected > 0 {
		s.log.Info().Int64("deleted", affected).Int("days", days).Msg("storage: old runs cleaned up")
	}
	return affected, nil
}

// GetStatistics returns archive totals.
func (s *Storage) GetStatistics(ctx context.Context) (map[string]interface{}, error) {
	var runs int
	var lines, errorish int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(total_lines), 0), COALESCE(SUM(errorish), 0) FROM runs`,
	).Scan(&runs, &lines, &errorish)
	if err != nil {
		return nil, fmt.Errorf("failed to query statistics: %w", err)
	}

	var files int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT log_path) FROM runs`).Scan(&files); err != nil {
		return nil, fmt.Errorf("failed to query statistics: %w", err)
	}

	return map[string]interface{}{
		"total_runs":     runs,
		"distinct_files": files,
		"total_lines":    lines,
		"total_errorish": errorish,
	}, nil
}

// scanRun scans a database row into a Run struct
func scanRun(rows *sql.Rows) (*Run, error) {
	var (
		run                          Run
		createdAt                    string
		levelCountsJSON, clusterJSON string
	)

	err := rows.Scan(
		&run.ID, &createdAt, &run.LogPath, &run.TotalLines, &run.Errorish,
		&run.BinMinutes, &run.Threshold, &levelCountsJSON, &clusterJSON,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}

	if run.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse timestamp: %w", err)
	}
	if err := json.Unmarshal([]byte(levelCountsJSON), &run.LevelCounts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal level counts: %w", err)
	}
	if err := json.Unmarshal([]byte(clusterJSON), &run.TopClusters); err != nil {
		return nil, fmt.Errorf("failed to unmarshal clusters: %w", err)
	}

	return &run, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
