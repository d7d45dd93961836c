// Package journal keeps a SQLite record of every decoded realtime message and
// of saved LED states.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/dltrophy/simulator/internal/ledstate"
	"github.com/dltrophy/simulator/internal/monitoring"
	"github.com/dltrophy/simulator/internal/protocol"
	"github.com/dltrophy/simulator/internal/timeutil"
	"github.com/dltrophy/simulator/internal/trophy"
)

// ErrNoState is returned by LatestState when nothing was saved yet.
var ErrNoState = errors.New("no saved state")

// kindUnreadable is stored in the kind column for packets that did not decode.
const kindUnreadable = "unreadable"

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA temp_store=MEMORY",
}

// Journal is the simulator database.
type Journal struct {
	db      *sql.DB
	path    string
	session string
	clock   timeutil.Clock

	mu        sync.Mutex
	retention Retention
	// lastID and lastKey identify the newest row, so an identical message
	// that follows it only bumps its repeat count.
	lastID  string
	lastKey string
}

// Open opens or creates the database at path and migrates it to the latest
// schema. Every Open starts a new session id that tags recorded messages.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal %s: %w", path, err)
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	j := &Journal{
		db:        db,
		path:      path,
		session:   uuid.NewString(),
		clock:     timeutil.RealClock{},
		retention: DefaultRetention(),
	}
	if err := j.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	monitoring.Logf("[Journal] opened %s (session %s)", path, j.session)
	return j, nil
}

// Close closes the database.
func (j *Journal) Close() error { return j.db.Close() }

// DB exposes the underlying database for admin tooling.
func (j *Journal) DB() *sql.DB { return j.db }

// Session is the id attached to messages recorded since Open.
func (j *Journal) Session() string { return j.session }

// SetClock replaces the clock used to stamp saved states.
func (j *Journal) SetClock(c timeutil.Clock) { j.clock = c }

type entryJSON struct {
	Index int   `json:"index"`
	R     uint8 `json:"r"`
	G     uint8 `json:"g"`
	B     uint8 `json:"b"`
}

func encodeEntries(entries []protocol.Entry) (string, error) {
	rows := make([]entryJSON, len(entries))
	for i, e := range entries {
		rows[i] = entryJSON{Index: e.Index, R: e.Color.R, G: e.Color.G, B: e.Color.B}
	}
	b, err := json.Marshal(rows)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeEntries(s string) ([]protocol.Entry, error) {
	var rows []entryJSON
	if err := json.Unmarshal([]byte(s), &rows); err != nil {
		return nil, err
	}
	entries := make([]protocol.Entry, len(rows))
	for i, r := range rows {
		entries[i] = protocol.Entry{Index: r.Index, Color: protocol.Color{R: r.R, G: r.G, B: r.B}}
	}
	return entries, nil
}

// RecordMessage stores one decoded message. It satisfies frameloop.Recorder.
// A message identical to the previous one (same sender, protocol, timeout and
// payload) is folded into the previous row: its repeats count goes up and
// last_received_at moves forward.
func (j *Journal) RecordMessage(ctx context.Context, m protocol.Message) error {
	var (
		kind    string
		timeout sql.NullInt64
		count   int
		reason  string
		entries = "[]"
		raw     []byte
	)
	switch m := m.(type) {
	case *protocol.Update:
		kind = m.Kind.String()
		if m.HasTimeout {
			timeout = sql.NullInt64{Int64: m.Timeout.Milliseconds(), Valid: true}
		}
		count = len(m.Entries)
		var err error
		if entries, err = encodeEntries(m.Entries); err != nil {
			return fmt.Errorf("failed to encode entries: %w", err)
		}
	case *protocol.Unreadable:
		kind = kindUnreadable
		reason = m.Reason
		raw = m.Raw
	default:
		return fmt.Errorf("cannot record %T", m)
	}

	key := fmt.Sprintf("%s|%s|%v|%s|%s|%x", kind, m.Source(), timeout, reason, entries, raw)
	received := m.Received().UnixNano()

	j.mu.Lock()
	defer j.mu.Unlock()

	if j.lastID != "" && key == j.lastKey {
		res, err := j.db.ExecContext(ctx, `
			UPDATE messages SET repeats = repeats + 1, last_received_at = ?
			WHERE message_id = ?`, received, j.lastID)
		if err != nil {
			return fmt.Errorf("failed to update repeated message: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 1 {
			return nil
		}
		// The row was pruned; start a new one.
	}

	id := uuid.NewString()
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO messages (message_id, session_id, kind, source, received_at, timeout_ms, entry_count, reason, entries_json, raw)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, j.session, kind, m.Source(), received, timeout, count, reason, entries, raw)
	if err != nil {
		j.lastID, j.lastKey = "", ""
		return fmt.Errorf("failed to insert message: %w", err)
	}
	j.lastID, j.lastKey = id, key
	return nil
}

// MessageRecord is one row of the messages table.
type MessageRecord struct {
	ID         string           `json:"id"`
	Session    string           `json:"session"`
	Kind       string           `json:"kind"`
	Source     string           `json:"source"`
	ReceivedAt time.Time        `json:"received_at"`
	Timeout    *time.Duration   `json:"timeout,omitempty"`
	EntryCount int              `json:"entry_count"`
	Reason     string           `json:"reason,omitempty"`
	Entries    []protocol.Entry `json:"entries,omitempty"`
	// Repeats counts identical messages folded into this row.
	Repeats        int        `json:"repeats,omitempty"`
	LastReceivedAt *time.Time `json:"last_received_at,omitempty"`
}

// Unreadable reports whether the record is a packet that failed to decode.
func (r MessageRecord) Unreadable() bool { return r.Kind == kindUnreadable }

// RecentMessages returns up to limit messages, newest first.
func (j *Journal) RecentMessages(ctx context.Context, limit int) ([]MessageRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT message_id, session_id, kind, source, received_at, timeout_ms, entry_count, reason, entries_json, repeats, last_received_at
		FROM messages
		ORDER BY received_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var out []MessageRecord
	for rows.Next() {
		var (
			r        MessageRecord
			received int64
			timeout  sql.NullInt64
			entries  string
			last     sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &r.Session, &r.Kind, &r.Source, &received, &timeout, &r.EntryCount, &r.Reason, &entries, &r.Repeats, &last); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		r.ReceivedAt = time.Unix(0, received)
		if last.Valid {
			t := time.Unix(0, last.Int64)
			r.LastReceivedAt = &t
		}
		if timeout.Valid {
			d := time.Duration(timeout.Int64) * time.Millisecond
			r.Timeout = &d
		}
		if r.Entries, err = decodeEntries(entries); err != nil {
			return nil, fmt.Errorf("message %s has bad entries: %w", r.ID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SavedState is a stored snapshot of the display.
type SavedState struct {
	ID      string
	Label   string
	SavedAt time.Time
	Colors  []protocol.Color
	Shape   trophy.Shape
}

// SaveState stores colors and the shape they were shown on. It returns the
// new state's id.
func (j *Journal) SaveState(ctx context.Context, label string, colors ledstate.Colors, shape trophy.Shape) (string, error) {
	shapeJSON, err := json.Marshal(shape)
	if err != nil {
		return "", fmt.Errorf("failed to encode shape: %w", err)
	}
	id := uuid.NewString()
	_, err = j.db.ExecContext(ctx, `
		INSERT INTO states (state_id, label, saved_at, colors, shape_json)
		VALUES (?, ?, ?, ?, ?)`,
		id, label, j.clock.Now().UnixNano(), colors.PackedRGB(), string(shapeJSON))
	if err != nil {
		return "", fmt.Errorf("failed to insert state: %w", err)
	}
	return id, nil
}

// LatestState returns the most recently saved state, or ErrNoState.
func (j *Journal) LatestState(ctx context.Context) (*SavedState, error) {
	var (
		s         SavedState
		savedAt   int64
		packed    []byte
		shapeJSON string
	)
	err := j.db.QueryRowContext(ctx, `
		SELECT state_id, label, saved_at, colors, shape_json
		FROM states
		ORDER BY saved_at DESC, rowid DESC
		LIMIT 1`).Scan(&s.ID, &s.Label, &savedAt, &packed, &shapeJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoState
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query state: %w", err)
	}
	if len(packed)%3 != 0 {
		return nil, fmt.Errorf("state %s has %d color bytes", s.ID, len(packed))
	}

	s.SavedAt = time.Unix(0, savedAt)
	s.Colors = make([]protocol.Color, len(packed)/3)
	for i := range s.Colors {
		s.Colors[i] = protocol.Color{R: packed[3*i], G: packed[3*i+1], B: packed[3*i+2]}
	}
	if err := json.Unmarshal([]byte(shapeJSON), &s.Shape); err != nil {
		return nil, fmt.Errorf("state %s has bad shape: %w", s.ID, err)
	}
	return &s, nil
}
