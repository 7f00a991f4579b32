// ABOUTME: SQLite-backed Store (modernc.org/sqlite, no cgo) with the recorder's archive schema
// ABOUTME: Creates and migrates tables on open; all statements are parameterized

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"
)

// SchemaVersion is the t_info version this package writes.
const SchemaVersion = "2"

const schema = `
CREATE TABLE IF NOT EXISTS t_info (
	name TEXT,
	value TEXT
);
CREATE TABLE IF NOT EXISTS t_record (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	pos_id INTEGER,
	pos_name TEXT,
	start INTEGER,
	stop INTEGER,
	relate_channels TEXT,
	partial INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS t_record_pos_id_and_start_index
	ON t_record (pos_id ASC, start ASC);
CREATE TABLE IF NOT EXISTS t_item (
	id INTEGER,
	i INTEGER,
	item TEXT,
	CONSTRAINT fkey0 FOREIGN KEY (id) REFERENCES t_record (id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS t_item_id_i_index
	ON t_item (id ASC, i ASC);
CREATE TABLE IF NOT EXISTS t_record_terminal (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	pos_id INTEGER,
	pos_name TEXT,
	terminal_code TEXT,
	card_id TEXT,
	money TEXT,
	terminal_model TEXT,
	serial TEXT,
	time TEXT,
	dev_time TEXT,
	relate_channels TEXT
);
CREATE INDEX IF NOT EXISTS t_record_terminal_pos_id_and_time_index
	ON t_record_terminal (pos_id ASC, time ASC);
`

// SQLite is a Store over a single database file.
type SQLite struct {
	db     *sql.DB
	path   string
	closed atomic.Bool
}

// Open opens (creating if needed) the database at path and brings its schema
// up to SchemaVersion. ":memory:" opens a private in-memory database.
func Open(ctx context.Context, path string) (*SQLite, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}
	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}
	// One connection: writes are serialized and :memory: stays a single database.
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db, path: path}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Path returns the database location.
func (s *SQLite) Path() string { return s.path }

func (s *SQLite) migrate(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	defer tx.Rollback()

	// Version 1 databases predate the partial column; detect them before
	// CREATE TABLE IF NOT EXISTS leaves the old table untouched.
	var version string
	err = tx.QueryRowContext(ctx, `SELECT value FROM t_info WHERE name='version'`).Scan(&version)
	if err != nil && !errors.Is(err, sql.ErrNoRows) && !strings.Contains(err.Error(), "no such table") {
		return fmt.Errorf("read schema version: %w", err)
	}
	if _, err := tx.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	switch version {
	case "":
		if _, err := tx.ExecContext(ctx, `INSERT INTO t_info(name, value) VALUES('version', ?)`, SchemaVersion); err != nil {
			return fmt.Errorf("write schema version: %w", err)
		}
	case "1":
		if _, err := tx.ExecContext(ctx, `ALTER TABLE t_record ADD COLUMN partial INTEGER NOT NULL DEFAULT 0`); err != nil {
			return fmt.Errorf("migrate schema 1 -> 2: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE t_info SET value=? WHERE name='version'`, SchemaVersion); err != nil {
			return fmt.Errorf("write schema version: %w", err)
		}
	case SchemaVersion:
	default:
		return fmt.Errorf("unsupported schema version %q", version)
	}
	return tx.Commit()
}

// Write inserts rec and its items in one transaction and returns the new id.
func (s *SQLite) Write(ctx context.Context, rec Record) (int64, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("write record: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO t_record(pos_id, pos_name, start, stop, relate_channels, partial) VALUES(?, ?, ?, ?, ?, ?)`,
		rec.PosID, rec.PosName, rec.Start.Unix(), rec.Stop.Unix(), JoinChannels(rec.Channels), boolInt(rec.Partial))
	if err != nil {
		return 0, fmt.Errorf("insert record: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("record id: %w", err)
	}

	if len(rec.Items) > 0 {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO t_item(id, i, item) VALUES(?, ?, ?)`)
		if err != nil {
			return 0, fmt.Errorf("prepare item insert: %w", err)
		}
		defer stmt.Close()
		for i, item := range rec.Items {
			if _, err := stmt.ExecContext(ctx, id, i, item); err != nil {
				return 0, fmt.Errorf("insert item %d: %w", i, err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit record: %w", err)
	}
	return id, nil
}

// QueryRecords returns matching records ordered by start time. Items are not
// loaded; use QueryItems.
func (s *SQLite) QueryRecords(ctx context.Context, q Query) ([]Record, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	var b strings.Builder
	b.WriteString(`SELECT id, pos_name, start, stop, relate_channels, partial FROM t_record
WHERE pos_id=? AND start>=? AND start<=?`)
	args := []any{q.PosID, q.Begin.Unix(), endOf(q.End).Unix()}

	var keys []string
	for _, k := range q.Keywords {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	if len(keys) > 0 {
		join := " OR "
		if q.MatchAll {
			join = " AND "
		}
		b.WriteString(" AND (")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(join)
			}
			b.WriteString(`EXISTS (SELECT 1 FROM t_item WHERE t_item.id=t_record.id AND item LIKE ? ESCAPE '\')`)
			args = append(args, "%"+escapeLike(k)+"%")
		}
		b.WriteString(")")
	}
	b.WriteString(" ORDER BY start ASC, id ASC LIMIT ?")
	args = append(args, limitOf(q.Limit))

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec         Record
			start, stop int64
			channels    string
			partial     int
		)
		if err := rows.Scan(&rec.ID, &rec.PosName, &start, &stop, &channels, &partial); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec.PosID = q.PosID
		rec.Start = time.Unix(start, 0)
		rec.Stop = time.Unix(stop, 0)
		rec.Channels = SplitChannels(channels)
		rec.Partial = partial != 0
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	return out, nil
}

// QueryItems returns a record's items in their original order.
func (s *SQLite) QueryItems(ctx context.Context, recordID int64) ([]string, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	rows, err := s.db.QueryContext(ctx, `SELECT item FROM t_item WHERE id=? ORDER BY i ASC`, recordID)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	var items []string
	for rows.Next() {
		var item string
		if err := rows.Scan(&item); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	return items, nil
}

// WriteTerminal inserts a terminal record. A zero DevTime is stamped with now.
func (s *SQLite) WriteTerminal(ctx context.Context, rec TerminalRecord) (int64, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}
	if rec.DevTime.IsZero() {
		rec.DevTime = time.Now()
	}
	channels, err := json.Marshal(nonNil(rec.Channels))
	if err != nil {
		return 0, fmt.Errorf("encode channels: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO t_record_terminal(pos_id, pos_name, terminal_code, card_id, money, terminal_model, serial, time, dev_time, relate_channels)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.PosID, rec.PosName, rec.TerminalCode, rec.CardID, rec.Money, rec.TerminalModel, rec.Serial,
		rec.Time, rec.DevTime.Format(TimeLayout), string(channels))
	if err != nil {
		return 0, fmt.Errorf("insert terminal record: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("terminal record id: %w", err)
	}
	return id, nil
}

// QueryTerminal returns matching terminal records ordered by terminal time.
func (s *SQLite) QueryTerminal(ctx context.Context, q TerminalQuery) ([]TerminalRecord, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	var b strings.Builder
	b.WriteString(`SELECT id, pos_id, pos_name, terminal_code, card_id, money, terminal_model, serial, time, dev_time, relate_channels
FROM t_record_terminal WHERE pos_id=? AND time>=? AND time<=?`)
	args := []any{q.PosID, q.Begin.Format(TimeLayout), endOf(q.End).Format(TimeLayout)}

	filters := []struct {
		column, value string
	}{
		{"terminal_code", q.TerminalCode},
		{"card_id", q.CardID},
		{"terminal_model", q.TerminalModel},
		{"serial", q.Serial},
	}
	for _, f := range filters {
		if f.value == "" {
			continue
		}
		b.WriteString(" AND " + f.column + ` LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(f.value)+"%")
	}
	b.WriteString(" ORDER BY time ASC, id ASC LIMIT ?")
	args = append(args, limitOf(q.Limit))

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query terminal records: %w", err)
	}
	defer rows.Close()

	var out []TerminalRecord
	for rows.Next() {
		var (
			rec      TerminalRecord
			devTime  string
			channels string
		)
		if err := rows.Scan(&rec.ID, &rec.PosID, &rec.PosName, &rec.TerminalCode, &rec.CardID, &rec.Money,
			&rec.TerminalModel, &rec.Serial, &rec.Time, &devTime, &channels); err != nil {
			return nil, fmt.Errorf("scan terminal record: %w", err)
		}
		if t, err := time.ParseInLocation(TimeLayout, devTime, time.Local); err == nil {
			rec.DevTime = t
		}
		if err := json.Unmarshal([]byte(channels), &rec.Channels); err != nil {
			rec.Channels = SplitChannels(strings.Trim(channels, "[]"))
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query terminal records: %w", err)
	}
	return out, nil
}

// Close releases the database. Further calls return ErrClosed.
func (s *SQLite) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.db.Close()
}

// endOf treats a zero end as unbounded.
func endOf(t time.Time) time.Time {
	if t.IsZero() {
		return time.Date(9999, 12, 31, 23, 59, 59, 0, time.Local)
	}
	return t
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nonNil(ch []int) []int {
	if ch == nil {
		return []int{}
	}
	return ch
}
