package out

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"devtrack/internal/modules/session/domain"

	_ "modernc.org/sqlite"
)

// SQLiteSessionProjector mirrors sessions into a SQLite table for
// aggregate reports. The JSON document remains the source of truth.
type SQLiteSessionProjector struct {
	db  *sql.DB
	loc *time.Location
}

func NewSQLiteSessionProjector(dbPath string, loc *time.Location) (*SQLiteSessionProjector, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if loc == nil {
		loc = time.Local
	}
	projector := &SQLiteSessionProjector{db: db, loc: loc}
	if err := projector.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return projector, nil
}

func (s *SQLiteSessionProjector) Close() error {
	return s.db.Close()
}

func (s *SQLiteSessionProjector) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS sessions (
  id TEXT PRIMARY KEY,
  project TEXT NOT NULL,
  start_time TEXT NOT NULL,
  end_time TEXT,
  duration_seconds REAL,
  notes TEXT NOT NULL,
  completed INTEGER NOT NULL
);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create sessions table: %w", err)
	}
	return nil
}

func (s *SQLiteSessionProjector) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions`); err != nil {
		return fmt.Errorf("reset sessions: %w", err)
	}
	return nil
}

func (s *SQLiteSessionProjector) UpsertSession(ctx context.Context, session domain.Session) error {
	if session.ID == "" {
		return nil
	}
	const stmt = `
INSERT INTO sessions (id, project, start_time, end_time, duration_seconds, notes, completed)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  project=excluded.project,
  start_time=excluded.start_time,
  end_time=excluded.end_time,
  duration_seconds=excluded.duration_seconds,
  notes=excluded.notes,
  completed=excluded.completed;
`
	project := session.Project
	if project == "" {
		project = domain.DefaultProject
	}
	completed := 0
	if session.Completed(s.loc) {
		completed = 1
	}
	_, err := s.db.ExecContext(ctx, stmt,
		session.ID,
		project,
		session.StartTime,
		session.EndTime,
		session.Duration,
		session.Notes,
		completed,
	)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

func (s *SQLiteSessionProjector) DeleteSession(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *SQLiteSessionProjector) ProjectTotals(ctx context.Context) ([]domain.ProjectTotal, error) {
	const query = `
SELECT project, COUNT(*), COALESCE(SUM(duration_seconds), 0)
FROM sessions
WHERE completed = 1
GROUP BY project
ORDER BY SUM(duration_seconds) DESC, project ASC;
`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query project totals: %w", err)
	}
	defer rows.Close()

	totals := []domain.ProjectTotal{}
	for rows.Next() {
		total := domain.ProjectTotal{}
		if err := rows.Scan(&total.Project, &total.Sessions, &total.TotalSeconds); err != nil {
			return nil, fmt.Errorf("scan project total: %w", err)
		}
		totals = append(totals, total)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate project totals: %w", err)
	}
	return totals, nil
}
