package db

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

type Database struct {
	db *sql.DB
}

// CachedResult is one memoized code-execution outcome.
type CachedResult struct {
	Key        string
	Language   string
	Output     string
	Hits       int
	CreatedAt  time.Time
	LastUsedAt time.Time
}

// RoomActivity tracks aggregate usage of a room for the stats endpoint.
// Live membership lives only in the hub; these rows are counters.
type RoomActivity struct {
	RoomID       string    `json:"room_id"`
	PeakMembers  int       `json:"peak_members"`
	Joins        int       `json:"joins"`
	LastActiveAt time.Time `json:"last_active_at"`
}

func New(dbPath string) (*Database, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, err
	}

	if err := createTables(db); err != nil {
		return nil, err
	}

	slog.Info("database initialized", "path", dbPath)
	return &Database{db: db}, nil
}

func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS exec_cache (
		key TEXT PRIMARY KEY,
		language TEXT NOT NULL,
		output TEXT NOT NULL,
		hits INTEGER DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		last_used_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_exec_cache_last_used ON exec_cache(last_used_at);

	CREATE TABLE IF NOT EXISTS room_activity (
		room_id TEXT PRIMARY KEY,
		peak_members INTEGER DEFAULT 0,
		joins INTEGER DEFAULT 0,
		last_active_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`

	_, err := db.Exec(schema)
	return err
}

func (d *Database) Close() error {
	return d.db.Close()
}

// CacheKey derives the cache key for one execution request.
func CacheKey(language, code, input string) string {
	h := sha256.New()
	h.Write([]byte(language))
	h.Write([]byte{0})
	h.Write([]byte(code))
	h.Write([]byte{0})
	h.Write([]byte(input))
	return hex.EncodeToString(h.Sum(nil))
}

// Execution cache operations

func (d *Database) GetCachedResult(key string) (*CachedResult, error) {
	row := d.db.QueryRow(
		"SELECT key, language, output, hits, created_at, last_used_at FROM exec_cache WHERE key = ?",
		key,
	)

	var r CachedResult
	err := row.Scan(&r.Key, &r.Language, &r.Output, &r.Hits, &r.CreatedAt, &r.LastUsedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	_, err = d.db.Exec(
		"UPDATE exec_cache SET hits = hits + 1, last_used_at = CURRENT_TIMESTAMP WHERE key = ?",
		key,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (d *Database) PutCachedResult(key, language, output string) error {
	_, err := d.db.Exec(`
		INSERT INTO exec_cache (key, language, output)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			output = excluded.output,
			last_used_at = CURRENT_TIMESTAMP
	`, key, language, output)
	return err
}

func (d *Database) GetCacheSize() (int, error) {
	var count int
	err := d.db.QueryRow("SELECT COUNT(*) FROM exec_cache").Scan(&count)
	return count, err
}

// TrimCache deletes the least recently used cache rows beyond keepCount.
func (d *Database) TrimCache(keepCount int) (int, error) {
	result, err := d.db.Exec(`
		DELETE FROM exec_cache
		WHERE key NOT IN (
			SELECT key FROM exec_cache
			ORDER BY last_used_at DESC
			LIMIT ?
		)
	`, keepCount)
	if err != nil {
		return 0, err
	}
	deleted, err := result.RowsAffected()
	return int(deleted), err
}

// Room activity operations

// RecordJoin bumps the join counter for a room and raises its member peak.
func (d *Database) RecordJoin(roomID string, memberCount int) error {
	_, err := d.db.Exec(`
		INSERT INTO room_activity (room_id, peak_members, joins, last_active_at)
		VALUES (?, ?, 1, CURRENT_TIMESTAMP)
		ON CONFLICT(room_id) DO UPDATE SET
			peak_members = MAX(peak_members, excluded.peak_members),
			joins = joins + 1,
			last_active_at = CURRENT_TIMESTAMP
	`, roomID, memberCount)
	return err
}

func (d *Database) GetRoomActivity(roomID string) (*RoomActivity, error) {
	row := d.db.QueryRow(
		"SELECT room_id, peak_members, joins, last_active_at FROM room_activity WHERE room_id = ?",
		roomID,
	)

	var a RoomActivity
	err := row.Scan(&a.RoomID, &a.PeakMembers, &a.Joins, &a.LastActiveAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// DeleteStaleActivity removes activity rows idle for longer than maxAge.
func (d *Database) DeleteStaleActivity(maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge).UTC()
	result, err := d.db.Exec(
		"DELETE FROM room_activity WHERE last_active_at < ?",
		cutoff,
	)
	if err != nil {
		return 0, err
	}
	deleted, err := result.RowsAffected()
	return int(deleted), err
}

// Stats

func (d *Database) GetStats() (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var roomCount int
	if err := d.db.QueryRow("SELECT COUNT(*) FROM room_activity").Scan(&roomCount); err != nil {
		return nil, err
	}
	stats["room_count"] = roomCount

	var totalJoins sql.NullInt64
	if err := d.db.QueryRow("SELECT SUM(joins) FROM room_activity").Scan(&totalJoins); err != nil {
		return nil, err
	}
	stats["total_joins"] = int(totalJoins.Int64)

	var cacheSize int
	if err := d.db.QueryRow("SELECT COUNT(*) FROM exec_cache").Scan(&cacheSize); err != nil {
		return nil, err
	}
	stats["exec_cache_size"] = cacheSize

	var cacheHits sql.NullInt64
	if err := d.db.QueryRow("SELECT SUM(hits) FROM exec_cache").Scan(&cacheHits); err != nil {
		return nil, err
	}
	stats["exec_cache_hits"] = int(cacheHits.Int64)

	return stats, nil
}
