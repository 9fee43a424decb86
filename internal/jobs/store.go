package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"montage/internal/config"
	"montage/internal/logging"
	"montage/internal/render"
)

// Store manages render history backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

const recordColumns = "id, title, timeline_hash, status, artifact, chunks, placeholders, failures, error_message, report_json, created_at, finished_at"

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

// Open opens the history database configured in cfg.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.JobsDatabasePath())
}

// OpenPath opens or creates the history database at path.
func OpenPath(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record stores a finished render. doc is the timeline document that was
// rendered; it is kept zstd-compressed.
func (s *Store) Record(ctx context.Context, report render.Report, doc []byte) error {
	if strings.TrimSpace(report.RenderID) == "" {
		return errors.New("render id required")
	}
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	created := report.Started
	if created.IsZero() {
		created = time.Now().UTC()
	}
	finished := created.Add(report.Elapsed)
	_, err = s.execWithRetry(ctx,
		`INSERT OR REPLACE INTO renders (
            id, title, timeline_hash, status, artifact, chunks, placeholders, failures,
            error_message, report_json, timeline_zstd, created_at, finished_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		report.RenderID,
		report.Title,
		report.TimelineHash,
		string(report.Status),
		nullableString(report.Artifact),
		len(report.Chunks),
		len(report.PlaceholdersUsed),
		len(report.Failures),
		nullableString(report.Error),
		string(reportJSON),
		compressSnapshot(doc),
		created.UTC().Format(time.RFC3339Nano),
		finished.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert render: %w", err)
	}
	return nil
}

// Get returns the render with id, or nil when absent. A unique id prefix
// is accepted.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	if id = strings.TrimSpace(id); id == "" {
		return nil, errors.New("render id required")
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM renders WHERE id = ? OR id LIKE ? ORDER BY id LIMIT 2`,
		id, escapeLike(id)+"%")
	if err != nil {
		return nil, fmt.Errorf("get render: %w", err)
	}
	defer rows.Close()
	var found []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan render: %w", err)
		}
		if rec.ID == id {
			return rec, nil
		}
		found = append(found, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get render: %w", err)
	}
	switch len(found) {
	case 0:
		return nil, nil
	case 1:
		return found[0], nil
	default:
		return nil, fmt.Errorf("render id prefix %q is ambiguous", id)
	}
}

// List returns the most recent renders first. A limit of zero lists all.
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	query := `SELECT ` + recordColumns + ` FROM renders ORDER BY created_at DESC, id`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list renders: %w", err)
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan render: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// ByHash returns renders of the timeline with hash, most recent first.
func (s *Store) ByHash(ctx context.Context, hash string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM renders WHERE timeline_hash = ? ORDER BY created_at DESC`, hash)
	if err != nil {
		return nil, fmt.Errorf("find renders by hash: %w", err)
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan render: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// Snapshot returns the timeline document stored for id.
func (s *Store) Snapshot(ctx context.Context, id string) ([]byte, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx, `SELECT timeline_zstd FROM renders WHERE id = ?`, id).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("render %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return decompressSnapshot(blob)
}

// Clear deletes all history and returns the number of rows removed.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM renders`)
	if err != nil {
		return 0, fmt.Errorf("clear renders: %w", err)
	}
	return res.RowsAffected()
}

// PruneBefore deletes renders created before cutoff.
func (s *Store) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM renders WHERE created_at < ?`, cutoff.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("prune renders: %w", err)
	}
	return res.RowsAffected()
}

// Observer returns a render.Observer that records each report with doc as
// its snapshot. Failures to record are logged, not returned.
func (s *Store) Observer(ctx context.Context, doc []byte, logger *slog.Logger) render.Observer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return observer{store: s, ctx: context.WithoutCancel(ctx), doc: doc, logger: logger}
}

type observer struct {
	store  *Store
	ctx    context.Context
	doc    []byte
	logger *slog.Logger
}

func (o observer) ObserveRender(report render.Report) {
	if err := o.store.Record(o.ctx, report, o.doc); err != nil {
		logging.WarnWithContext(o.logger, "render history not recorded", "history_write_failed",
			logging.String("render_id", report.RenderID),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check "+o.store.Path()),
			logging.String(logging.FieldImpact, "render missing from montage history"),
		)
	}
}

func scanRecord(scanner interface{ Scan(dest ...any) error }) (*Record, error) {
	var (
		rec         Record
		status      string
		artifact    sql.NullString
		errMessage  sql.NullString
		reportJSON  sql.NullString
		createdRaw  string
		finishedRaw sql.NullString
	)
	if err := scanner.Scan(
		&rec.ID,
		&rec.Title,
		&rec.TimelineHash,
		&status,
		&artifact,
		&rec.Chunks,
		&rec.Placeholders,
		&rec.Failures,
		&errMessage,
		&reportJSON,
		&createdRaw,
		&finishedRaw,
	); err != nil {
		return nil, err
	}
	rec.Status = render.Status(status)
	rec.Artifact = artifact.String
	rec.ErrorMessage = errMessage.String
	rec.ReportJSON = reportJSON.String
	rec.CreatedAt = parseTime(createdRaw)
	rec.FinishedAt = parseTime(finishedRaw.String)
	return &rec, nil
}

func decodeReport(raw string) (render.Report, error) {
	var report render.Report
	if strings.TrimSpace(raw) == "" {
		return report, errors.New("no report stored")
	}
	if err := json.Unmarshal([]byte(raw), &report); err != nil {
		return report, fmt.Errorf("decode report: %w", err)
	}
	return report, nil
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return ts
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func escapeLike(value string) string {
	return strings.NewReplacer("%", "", "_", "").Replace(value)
}
