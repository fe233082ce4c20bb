package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/chiahung/remibot/internal/logger"
	"github.com/chiahung/remibot/internal/retry"
)

// Store is the SQLite-backed reminder repository. All operations are
// wrapped in a bounded retry so transient failures do not surface on the
// first hiccup; exhausted retries are returned to the caller.
type Store struct {
	db       *sql.DB
	logger   *logger.Logger
	retryCfg retry.Config
}

// Open opens or creates the reminder database at the given path.
func Open(dbPath string, log *logger.Logger, retryCfg retry.Config) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &Store{db: db, logger: log, retryCfg: retryCfg}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS reminders (
		id                INTEGER PRIMARY KEY AUTOINCREMENT,
		creator           TEXT NOT NULL,
		target            TEXT NOT NULL,
		target_kind       TEXT NOT NULL DEFAULT 'user',
		display_name      TEXT NOT NULL DEFAULT '',
		content           TEXT NOT NULL,
		occurs_at         TEXT,
		next_fire_at      TEXT,
		fired             INTEGER NOT NULL DEFAULT 0,
		recurrence        TEXT,
		priority          INTEGER NOT NULL DEFAULT 0,
		repeats_remaining INTEGER NOT NULL DEFAULT 0,
		created_at        TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_reminders_creator ON reminders(creator);
	CREATE INDEX IF NOT EXISTS idx_reminders_next_fire ON reminders(next_fire_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

const reminderColumns = `id, creator, target, target_kind, display_name, content,
	occurs_at, next_fire_at, fired, recurrence, priority, repeats_remaining, created_at`

// Create inserts a new reminder and returns its assigned id.
func (s *Store) Create(ctx context.Context, r *Reminder) (int64, error) {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	var rule sql.NullString
	if r.Recurrence != nil {
		rule = sql.NullString{String: r.Recurrence.String(), Valid: true}
	}

	var id int64
	err := retry.Do(ctx, func() error {
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO reminders (creator, target, target_kind, display_name, content,
				occurs_at, next_fire_at, fired, recurrence, priority, repeats_remaining, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.Creator, r.Target, string(r.TargetKind), r.DisplayName, r.Content,
			encodeTime(r.OccursAt), encodeTime(r.NextFireAt), boolToInt(r.Fired),
			rule, r.Priority, r.RepeatsRemaining, r.CreatedAt.Format(time.RFC3339Nano))
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	}, s.retryCfg)
	if err != nil {
		return 0, fmt.Errorf("create reminder: %w", err)
	}

	r.ID = id
	return id, nil
}

// Get returns the reminder with the given id, or (nil, nil) when it does
// not exist. Absence is a normal outcome, not an error.
func (s *Store) Get(ctx context.Context, id int64) (*Reminder, error) {
	var r *Reminder
	err := retry.Do(ctx, func() error {
		row := s.db.QueryRowContext(ctx,
			`SELECT `+reminderColumns+` FROM reminders WHERE id = ?`, id)
		rec, err := scanReminder(row)
		if err == sql.ErrNoRows {
			r = nil
			return nil
		}
		if err != nil {
			return err
		}
		r = rec
		return nil
	}, s.retryCfg)
	if err != nil {
		return nil, fmt.Errorf("get reminder %d: %w", id, err)
	}
	return r, nil
}

// UpdateContent replaces the reminder body. Returns false when the
// reminder does not exist.
func (s *Store) UpdateContent(ctx context.Context, id int64, content string) (bool, error) {
	return s.updateOne(ctx, `UPDATE reminders SET content = ? WHERE id = ?`, content, id)
}

// SetFired marks the single occurrence of a one-off reminder as notified.
func (s *Store) SetFired(ctx context.Context, id int64) (bool, error) {
	return s.updateOne(ctx, `UPDATE reminders SET fired = 1 WHERE id = ?`, id)
}

// ResetFired clears the notified flag, used by snooze to re-open the
// single occurrence.
func (s *Store) ResetFired(ctx context.Context, id int64) (bool, error) {
	return s.updateOne(ctx, `UPDATE reminders SET fired = 0 WHERE id = ?`, id)
}

// SetNextFire sets the next notification moment; nil means do not schedule.
func (s *Store) SetNextFire(ctx context.Context, id int64, at *time.Time) (bool, error) {
	return s.updateOne(ctx, `UPDATE reminders SET next_fire_at = ? WHERE id = ?`, encodeTime(at), id)
}

// Reschedule changes the nominal occurrence, moves the fire time with it,
// and re-opens the reminder.
func (s *Store) Reschedule(ctx context.Context, id int64, at time.Time) (bool, error) {
	enc := encodeTime(&at)
	return s.updateOne(ctx,
		`UPDATE reminders SET occurs_at = ?, next_fire_at = ?, fired = 0 WHERE id = ?`,
		enc, enc, id)
}

// DecrementRepeats decrements the retry budget if it is still positive and
// returns the remaining count.
func (s *Store) DecrementRepeats(ctx context.Context, id int64) (int, error) {
	var remaining int
	err := retry.Do(ctx, func() error {
		if _, err := s.db.ExecContext(ctx,
			`UPDATE reminders SET repeats_remaining = repeats_remaining - 1
			 WHERE id = ? AND repeats_remaining > 0`, id); err != nil {
			return err
		}
		row := s.db.QueryRowContext(ctx,
			`SELECT repeats_remaining FROM reminders WHERE id = ?`, id)
		if err := row.Scan(&remaining); err == sql.ErrNoRows {
			remaining = 0
			return nil
		} else if err != nil {
			return err
		}
		return nil
	}, s.retryCfg)
	if err != nil {
		return 0, fmt.Errorf("decrement repeats for %d: %w", id, err)
	}
	return remaining, nil
}

// Delete removes a reminder after verifying the requester is its creator.
// An unauthorized delete reports not-found, never a distinct error.
func (s *Store) Delete(ctx context.Context, id int64, requester string) (DeleteResult, error) {
	var result DeleteResult
	err := retry.Do(ctx, func() error {
		row := s.db.QueryRowContext(ctx,
			`SELECT recurrence IS NOT NULL FROM reminders WHERE id = ? AND creator = ?`,
			id, requester)
		var wasRecurring int
		if err := row.Scan(&wasRecurring); err == sql.ErrNoRows {
			result = DeleteResult{}
			return nil
		} else if err != nil {
			return err
		}

		if _, err := s.db.ExecContext(ctx,
			`DELETE FROM reminders WHERE id = ? AND creator = ?`, id, requester); err != nil {
			return err
		}
		result = DeleteResult{OK: true, WasRecurring: wasRecurring == 1}
		return nil
	}, s.retryCfg)
	if err != nil {
		return DeleteResult{}, fmt.Errorf("delete reminder %d: %w", id, err)
	}
	return result, nil
}

// ListByCreator returns every reminder created by the given user, one-offs
// first in occurs_at order, recurring reminders after them ordered by id.
func (s *Store) ListByCreator(ctx context.Context, creator string) ([]*Reminder, error) {
	return s.list(ctx,
		`SELECT `+reminderColumns+` FROM reminders WHERE creator = ?
		 ORDER BY occurs_at IS NULL, occurs_at ASC, id ASC`, creator)
}

// ListRecurring returns every recurring reminder. Used by scheduler recovery.
func (s *Store) ListRecurring(ctx context.Context) ([]*Reminder, error) {
	return s.list(ctx,
		`SELECT `+reminderColumns+` FROM reminders WHERE recurrence IS NOT NULL ORDER BY id ASC`)
}

// ListPendingOneOff returns every unfired one-off reminder that still has a
// fire time, including overdue ones. Used by scheduler recovery.
func (s *Store) ListPendingOneOff(ctx context.Context) ([]*Reminder, error) {
	return s.list(ctx,
		`SELECT `+reminderColumns+` FROM reminders
		 WHERE recurrence IS NULL AND fired = 0 AND next_fire_at IS NOT NULL
		 ORDER BY id ASC`)
}

func (s *Store) list(ctx context.Context, query string, args ...any) ([]*Reminder, error) {
	var out []*Reminder
	err := retry.Do(ctx, func() error {
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = out[:0]
		for rows.Next() {
			r, err := scanReminder(rows)
			if err != nil {
				return err
			}
			out = append(out, r)
		}
		return rows.Err()
	}, s.retryCfg)
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	return out, nil
}

func (s *Store) updateOne(ctx context.Context, query string, args ...any) (bool, error) {
	var found bool
	err := retry.Do(ctx, func() error {
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		found = n > 0
		return nil
	}, s.retryCfg)
	if err != nil {
		return false, fmt.Errorf("update reminder: %w", err)
	}
	return found, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReminder(row rowScanner) (*Reminder, error) {
	var (
		r          Reminder
		kind       string
		occursAt   sql.NullString
		nextFireAt sql.NullString
		fired      int
		rule       sql.NullString
		createdAt  string
	)
	if err := row.Scan(&r.ID, &r.Creator, &r.Target, &kind, &r.DisplayName, &r.Content,
		&occursAt, &nextFireAt, &fired, &rule, &r.Priority, &r.RepeatsRemaining, &createdAt); err != nil {
		return nil, err
	}

	r.TargetKind = TargetKind(kind)
	r.Fired = fired == 1

	var err error
	if r.OccursAt, err = decodeTime(occursAt); err != nil {
		return nil, err
	}
	if r.NextFireAt, err = decodeTime(nextFireAt); err != nil {
		return nil, err
	}
	if rule.Valid {
		parsed, err := ParseRecurrence(rule.String)
		if err != nil {
			return nil, err
		}
		r.Recurrence = &parsed
	}
	if r.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, err
	}
	return &r, nil
}

// encodeTime stores instants as UTC RFC3339 text; nil stays NULL.
func encodeTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339Nano), Valid: true}
}

func decodeTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
