package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const sessionColumns = `id, account_id, task_id, status, started_at, target_end_at, is_paused, remaining_seconds, paused_at, ended_at`

// sqlStore holds the queries shared by the SQLite and Postgres
// repositories. Queries are written with ? placeholders and rebound for
// drivers that number them.
type sqlStore struct {
	db       *sql.DB
	numbered bool
}

func (s *sqlStore) bind(query string) string {
	if !s.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *sqlStore) Create(ctx context.Context, record *SessionRecord) error {
	query := s.bind(`
		INSERT INTO focus_sessions (` + sessionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)

	_, err := s.db.ExecContext(
		ctx,
		query,
		record.ID,
		record.AccountID,
		record.TaskID,
		string(record.Status),
		record.StartedAt.UTC(),
		record.TargetEndAt.UTC(),
		record.IsPaused,
		record.RemainingSeconds,
		nullTime(record.PausedAt),
		nullTime(record.EndedAt),
	)
	if err != nil {
		return fmt.Errorf("create session %s: %w", record.ID, err)
	}
	return nil
}

func (s *sqlStore) Get(ctx context.Context, id string) (*SessionRecord, error) {
	query := s.bind(`SELECT ` + sessionColumns + ` FROM focus_sessions WHERE id = ?`)
	return s.scanOne(s.db.QueryRowContext(ctx, query, id))
}

func (s *sqlStore) FindRunning(ctx context.Context, accountID, taskID string) (*SessionRecord, error) {
	query := s.bind(`
		SELECT ` + sessionColumns + `
		FROM focus_sessions
		WHERE account_id = ? AND task_id = ? AND status = ?
		ORDER BY started_at DESC
		LIMIT 1
	`)
	return s.scanOne(s.db.QueryRowContext(ctx, query, accountID, taskID, string(StatusRunning)))
}

func (s *sqlStore) Update(ctx context.Context, record *SessionRecord) error {
	query := s.bind(`
		UPDATE focus_sessions
		SET status = ?, started_at = ?, target_end_at = ?, is_paused = ?,
			remaining_seconds = ?, paused_at = ?, ended_at = ?
		WHERE id = ?
	`)

	res, err := s.db.ExecContext(
		ctx,
		query,
		string(record.Status),
		record.StartedAt.UTC(),
		record.TargetEndAt.UTC(),
		record.IsPaused,
		record.RemainingSeconds,
		nullTime(record.PausedAt),
		nullTime(record.EndedAt),
		record.ID,
	)
	if err != nil {
		return fmt.Errorf("update session %s: %w", record.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update session %s: %w", record.ID, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqlStore) ListRunning(ctx context.Context, accountID string) ([]SessionRecord, error) {
	query := s.bind(`
		SELECT ` + sessionColumns + `
		FROM focus_sessions
		WHERE account_id = ? AND status = ?
		ORDER BY started_at ASC
	`)

	rows, err := s.db.QueryContext(ctx, query, accountID, string(StatusRunning))
	if err != nil {
		return nil, fmt.Errorf("list running sessions: %w", err)
	}
	defer rows.Close()

	var records []SessionRecord
	for rows.Next() {
		record, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}
	return records, rows.Err()
}

func (s *sqlStore) CountCompleted(ctx context.Context, accountID, taskID string) (int, error) {
	query := s.bind(`
		SELECT COUNT(*)
		FROM focus_sessions
		WHERE account_id = ? AND task_id = ? AND status = ?
	`)

	var n int
	if err := s.db.QueryRowContext(ctx, query, accountID, taskID, string(StatusCompleted)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count completed sessions: %w", err)
	}
	return n, nil
}

func (s *sqlStore) CompletedByTask(ctx context.Context, accountID string) (map[string]int, error) {
	query := s.bind(`
		SELECT task_id, COUNT(*)
		FROM focus_sessions
		WHERE account_id = ? AND status = ?
		GROUP BY task_id
	`)

	rows, err := s.db.QueryContext(ctx, query, accountID, string(StatusCompleted))
	if err != nil {
		return nil, fmt.Errorf("count completed sessions: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			taskID string
			n      int
		)
		if err := rows.Scan(&taskID, &n); err != nil {
			return nil, err
		}
		counts[taskID] = n
	}
	return counts, rows.Err()
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}

func (s *sqlStore) scanOne(row *sql.Row) (*SessionRecord, error) {
	record, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return record, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*SessionRecord, error) {
	var (
		record   SessionRecord
		status   string
		pausedAt sql.NullTime
		endedAt  sql.NullTime
	)
	err := row.Scan(
		&record.ID,
		&record.AccountID,
		&record.TaskID,
		&status,
		&record.StartedAt,
		&record.TargetEndAt,
		&record.IsPaused,
		&record.RemainingSeconds,
		&pausedAt,
		&endedAt,
	)
	if err != nil {
		return nil, err
	}

	record.Status = Status(status)
	record.StartedAt = record.StartedAt.UTC()
	record.TargetEndAt = record.TargetEndAt.UTC()
	if pausedAt.Valid {
		record.PausedAt = pausedAt.Time.UTC()
	}
	if endedAt.Valid {
		record.EndedAt = endedAt.Time.UTC()
	}
	return &record, nil
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
