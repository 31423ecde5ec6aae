package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("not found")

// metadata keys
const metaEventsPruned = "events_pruned_at"

type DB struct {
	sql *sql.DB
}

func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	conn.SetMaxOpenConns(1)
	if _, err := conn.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, err
	}
	if _, err := conn.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return nil, err
	}
	return &DB{sql: conn}, nil
}

func (d *DB) Close() error {
	return d.sql.Close()
}

func (d *DB) Migrate() error {
	stmts := []struct{ name, ddl string }{
		{"metadata", `
			CREATE TABLE IF NOT EXISTS metadata (
				key   TEXT PRIMARY KEY,
				value TEXT NOT NULL
			)`},
		{"tickets", `
			CREATE TABLE IF NOT EXISTS tickets (
				patient_id      TEXT PRIMARY KEY,
				queue_number    INTEGER NOT NULL DEFAULT 0,
				station         TEXT NOT NULL DEFAULT '',
				chief_complaint TEXT NOT NULL DEFAULT '',
				language        TEXT NOT NULL DEFAULT 'th',
				check_in_time   TEXT NOT NULL DEFAULT '',
				created_at      INTEGER NOT NULL
			)`},
		{"event_log", `
			CREATE TABLE IF NOT EXISTS event_log (
				id         INTEGER PRIMARY KEY,
				client_id  TEXT NOT NULL,
				ts         INTEGER NOT NULL,
				event_type TEXT NOT NULL,
				payload    TEXT NOT NULL DEFAULT ''
			)`},
		{"event_log index", `CREATE INDEX IF NOT EXISTS idx_event_log_client ON event_log(client_id, ts DESC)`},
		{"chat_messages", `
			CREATE TABLE IF NOT EXISTS chat_messages (
				id         TEXT PRIMARY KEY,
				role       TEXT NOT NULL,
				content    TEXT NOT NULL,
				created_at INTEGER NOT NULL
			)`},
		{"accounts", `
			CREATE TABLE IF NOT EXISTS accounts (
				id            TEXT PRIMARY KEY,
				username      TEXT NOT NULL UNIQUE,
				password_hash TEXT NOT NULL,
				created_at    INTEGER NOT NULL
			)`},
	}
	for _, s := range stmts {
		if _, err := d.sql.Exec(s.ddl); err != nil {
			return fmt.Errorf("create %s: %w", s.name, err)
		}
	}
	return nil
}

// SaveTicket inserts or replaces the ticket for t.PatientID.
func (d *DB) SaveTicket(t *Ticket) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	_, err := d.sql.Exec(`
		INSERT OR REPLACE INTO tickets (
			patient_id, queue_number, station, chief_complaint, language, check_in_time, created_at
		) VALUES (?,?,?,?,?,?,?)`,
		t.PatientID, t.QueueNumber, t.Station, t.ChiefComplaint, t.Language, t.CheckInTime,
		t.CreatedAt.UnixMilli(),
	)
	return err
}

// GetTicket returns the ticket saved for patientID, or ErrNotFound.
func (d *DB) GetTicket(patientID string) (*Ticket, error) {
	row := d.sql.QueryRow(`
		SELECT patient_id, queue_number, station, chief_complaint, language, check_in_time, created_at
		FROM tickets WHERE patient_id = ?`, patientID)
	return scanTicket(row)
}

// LatestTicket returns the most recently saved ticket, or ErrNotFound.
func (d *DB) LatestTicket() (*Ticket, error) {
	row := d.sql.QueryRow(`
		SELECT patient_id, queue_number, station, chief_complaint, language, check_in_time, created_at
		FROM tickets ORDER BY created_at DESC LIMIT 1`)
	return scanTicket(row)
}

func (d *DB) DeleteTicket(patientID string) error {
	_, err := d.sql.Exec("DELETE FROM tickets WHERE patient_id = ?", patientID)
	return err
}

// rowScanner is implemented by both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicket(row rowScanner) (*Ticket, error) {
	var t Ticket
	var createdAt int64
	err := row.Scan(&t.PatientID, &t.QueueNumber, &t.Station, &t.ChiefComplaint, &t.Language, &t.CheckInTime, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	t.CreatedAt = time.UnixMilli(createdAt)
	return &t, nil
}

func (d *DB) InsertEvent(clientID, eventType, payload string) error {
	_, err := d.sql.Exec(
		`INSERT INTO event_log (client_id, ts, event_type, payload) VALUES (?, ?, ?, ?)`,
		clientID, time.Now().UnixMilli(), eventType, payload,
	)
	return err
}

// RecentEvents returns up to limit events, newest first. An empty clientID
// matches every client.
func (d *DB) RecentEvents(clientID string, limit int) ([]LoggedEvent, error) {
	rows, err := d.sql.Query(
		`SELECT id, client_id, ts, event_type, payload
		 FROM event_log
		 WHERE ? = '' OR client_id = ?
		 ORDER BY ts DESC, id DESC
		 LIMIT ?`,
		clientID, clientID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []LoggedEvent
	for rows.Next() {
		var e LoggedEvent
		var ts int64
		if err := rows.Scan(&e.ID, &e.ClientID, &ts, &e.EventType, &e.Payload); err != nil {
			return nil, err
		}
		e.Ts = time.UnixMilli(ts)
		events = append(events, e)
	}
	return events, rows.Err()
}

// PruneEvents deletes events older than cutoff and records when it ran.
func (d *DB) PruneEvents(cutoff time.Time) (int64, error) {
	res, err := d.sql.Exec("DELETE FROM event_log WHERE ts < ?", cutoff.UnixMilli())
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if err := d.setMeta(metaEventsPruned, strconv.FormatInt(time.Now().UnixMilli(), 10)); err != nil {
		return n, fmt.Errorf("record prune time: %w", err)
	}
	return n, nil
}

// EventsPrunedAt is when PruneEvents last ran, or the zero time if it never has.
func (d *DB) EventsPrunedAt() (time.Time, error) {
	v, err := d.getMeta(metaEventsPruned)
	if err != nil || v == "" {
		return time.Time{}, err
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %s: %w", metaEventsPruned, err)
	}
	return time.UnixMilli(ms), nil
}

func (d *DB) SaveChatMessage(m ChatMessage) error {
	_, err := d.sql.Exec(
		`INSERT OR REPLACE INTO chat_messages (id, role, content, created_at) VALUES (?,?,?,?)`,
		m.ID, string(m.Role), m.Content, m.CreatedAt.UnixMilli(),
	)
	return err
}

// LoadChatMessages returns the transcript oldest first.
func (d *DB) LoadChatMessages() ([]ChatMessage, error) {
	rows, err := d.sql.Query(`SELECT id, role, content, created_at FROM chat_messages ORDER BY created_at, rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []ChatMessage
	for rows.Next() {
		var m ChatMessage
		var role string
		var createdAt int64
		if err := rows.Scan(&m.ID, &role, &m.Content, &createdAt); err != nil {
			return nil, err
		}
		m.Role = ChatRole(role)
		m.CreatedAt = time.UnixMilli(createdAt)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (d *DB) ClearChatMessages() error {
	_, err := d.sql.Exec("DELETE FROM chat_messages")
	return err
}

func (d *DB) CreateAccount(username, passwordHash string) (*Account, error) {
	acc := &Account{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().Truncate(time.Millisecond),
	}
	_, err := d.sql.Exec(
		`INSERT INTO accounts (id, username, password_hash, created_at) VALUES (?,?,?,?)`,
		acc.ID, acc.Username, acc.PasswordHash, acc.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	return acc, nil
}

func (d *DB) GetAccountByUsername(username string) (*Account, error) {
	var acc Account
	var createdAt int64
	err := d.sql.QueryRow(
		`SELECT id, username, password_hash, created_at FROM accounts WHERE username = ?`, username,
	).Scan(&acc.ID, &acc.Username, &acc.PasswordHash, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	acc.CreatedAt = time.UnixMilli(createdAt)
	return &acc, nil
}

func (d *DB) UpdateAccountPassword(id, passwordHash string) error {
	res, err := d.sql.Exec("UPDATE accounts SET password_hash = ? WHERE id = ?", passwordHash, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (d *DB) HasAnyAccount() (bool, error) {
	var count int
	err := d.sql.QueryRow("SELECT COUNT(*) FROM accounts").Scan(&count)
	return count > 0, err
}

func (d *DB) setMeta(key, value string) error {
	_, err := d.sql.Exec("INSERT OR REPLACE INTO metadata (key, value) VALUES (?,?)", key, value)
	return err
}

// getMeta returns "" for a missing key.
func (d *DB) getMeta(key string) (string, error) {
	var value string
	err := d.sql.QueryRow("SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}
