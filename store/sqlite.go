package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	// tell sql to use sqlite
	_ "modernc.org/sqlite"
)

// Direction a logged message travelled
const (
	DirRx = "rx"
	DirTx = "tx"
)

// Record is one logged message
type Record struct {
	ID          string
	Time        time.Time
	Bus         string
	Dir         string
	PGN         uint32
	Priority    uint8
	Source      uint8
	Destination uint8
	Data        []byte
}

// DbSqlite represents a SQLite message log
type DbSqlite struct {
	db *sql.DB
}

// NewSqliteDb opens (creating when needed) the message log in dbFile
func NewSqliteDb(dbFile string) (*DbSqlite, error) {
	db, err := sql.Open("sqlite", dbFile)
	if err != nil {
		return nil, err
	}

	// sqlite only allows one writer, so don't let the pool fan out
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS messages (id TEXT NOT NULL PRIMARY KEY,
				time_s INT,
				time_ns INT,
				bus TEXT,
				dir TEXT,
				pgn INT,
				priority INT,
				source INT,
				destination INT,
				data BLOB)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("Error creating messages table: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS messages_pgn ON messages(pgn, time_s, time_ns)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("Error creating messages index: %w", err)
	}

	return &DbSqlite{db: db}, nil
}

// Insert logs a message. A blank ID or zero time is filled in.
func (sdb *DbSqlite) Insert(r Record) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}

	if r.Time.IsZero() {
		r.Time = time.Now()
	}

	_, err := sdb.db.Exec(`INSERT INTO messages(id, time_s, time_ns, bus, dir, pgn, priority,
		source, destination, data) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Time.Unix(), r.Time.Nanosecond(), r.Bus, r.Dir, r.PGN, r.Priority,
		r.Source, r.Destination, r.Data)
	if err != nil {
		return fmt.Errorf("Error inserting message: %w", err)
	}

	return nil
}

// Recent returns up to limit of the newest messages, newest first. A pgn of
// 0 matches all messages.
func (sdb *DbSqlite) Recent(pgn uint32, limit int) ([]Record, error) {
	q := `SELECT id, time_s, time_ns, bus, dir, pgn, priority, source, destination, data
		FROM messages`
	args := []any{}

	if pgn != 0 {
		q += ` WHERE pgn=?`
		args = append(args, pgn)
	}

	q += ` ORDER BY time_s DESC, time_ns DESC LIMIT ?`
	args = append(args, limit)

	rows, err := sdb.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("Error querying messages: %w", err)
	}
	defer rows.Close()

	var ret []Record

	for rows.Next() {
		var r Record
		var timeS, timeNS int64
		err := rows.Scan(&r.ID, &timeS, &timeNS, &r.Bus, &r.Dir, &r.PGN, &r.Priority,
			&r.Source, &r.Destination, &r.Data)
		if err != nil {
			return nil, fmt.Errorf("Error scanning message: %w", err)
		}
		r.Time = time.Unix(timeS, timeNS)
		ret = append(ret, r)
	}

	return ret, rows.Err()
}

// Count returns the number of logged messages
func (sdb *DbSqlite) Count() (int, error) {
	var count int
	err := sdb.db.QueryRow(`SELECT COUNT(*) FROM messages`).Scan(&count)
	return count, err
}

// Prune deletes messages older than t and returns how many were removed
func (sdb *DbSqlite) Prune(t time.Time) (int64, error) {
	res, err := sdb.db.Exec(`DELETE FROM messages WHERE time_s < ? OR (time_s = ? AND time_ns < ?)`,
		t.Unix(), t.Unix(), t.Nanosecond())
	if err != nil {
		return 0, fmt.Errorf("Error pruning messages: %w", err)
	}

	return res.RowsAffected()
}

// Close the store
func (sdb *DbSqlite) Close() error {
	return sdb.db.Close()
}
