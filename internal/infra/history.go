package infra

import (
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sqlcipher "github.com/mutecomm/go-sqlcipher/v4"

	"github.com/eliteGoblin/enough/internal/domain"
)

// Ensure sqlcipher driver is registered.
var _ = sqlcipher.ErrBusy

const (
	historyDBName = "history.db"

	// DefaultDataDir holds the history database and its key.
	DefaultDataDir = "/var/lib/enough"
)

// EncryptedHistory implements domain.HistoryStore using a SQLCipher
// encrypted SQLite database.
type EncryptedHistory struct {
	db     *sql.DB
	dbPath string
}

// NewEncryptedHistory opens (or creates) the history database in dataDir.
// The key is used as the SQLCipher passphrase via PRAGMA key.
func NewEncryptedHistory(dataDir string, key []byte) (*EncryptedHistory, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, classifyFSError("create", dataDir, err)
	}

	dbPath := filepath.Join(dataDir, historyDBName)
	dsn := fmt.Sprintf("%s?_pragma_key=x'%s'&_pragma_cipher_page_size=4096", dbPath, hex.EncodeToString(key))
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	// A wrong key only surfaces on first access.
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to history database: %w", err)
	}

	h := &EncryptedHistory{db: db, dbPath: dbPath}
	if err := h.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create history tables: %w", err)
	}
	return h, nil
}

// OpenHistory resolves the key for dataDir, generating it on first use,
// and opens the database.
func OpenHistory(dataDir string) (*EncryptedHistory, error) {
	key, err := EnsureKey(NewFileKeyProvider(dataDir))
	if err != nil {
		return nil, err
	}
	return NewEncryptedHistory(dataDir, key)
}

func (h *EncryptedHistory) createTables() error {
	_, err := h.db.Exec(`
	CREATE TABLE IF NOT EXISTS block_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		event TEXT NOT NULL,
		profile_name TEXT NOT NULL,
		websites INTEGER NOT NULL DEFAULT 0,
		unblock_time INTEGER NOT NULL DEFAULT 0,
		recorded_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_block_history_recorded_at ON block_history (recorded_at);
	`)
	return err
}

// Record appends entry. A zero RecordedAt is stamped with the current time.
func (h *EncryptedHistory) Record(entry domain.HistoryEntry) error {
	recorded := entry.RecordedAt
	if recorded.IsZero() {
		recorded = time.Now()
	}
	var unblock int64
	if !entry.UnblockTime.IsZero() {
		unblock = entry.UnblockTime.Unix()
	}

	_, err := h.db.Exec(`
		INSERT INTO block_history (event, profile_name, websites, unblock_time, recorded_at)
		VALUES (?, ?, ?, ?, ?)`,
		string(entry.Event), entry.ProfileName, entry.Websites, unblock, recorded.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to record history entry: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (h *EncryptedHistory) Recent(limit int) ([]domain.HistoryEntry, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := h.db.Query(`
		SELECT id, event, profile_name, websites, unblock_time, recorded_at
		FROM block_history
		ORDER BY recorded_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var entries []domain.HistoryEntry
	for rows.Next() {
		var (
			e        domain.HistoryEntry
			event    string
			unblock  int64
			recorded int64
		)
		if err := rows.Scan(&e.ID, &event, &e.ProfileName, &e.Websites, &unblock, &recorded); err != nil {
			return nil, err
		}
		e.Event = domain.HistoryEvent(event)
		if unblock != 0 {
			e.UnblockTime = time.Unix(unblock, 0)
		}
		e.RecordedAt = time.Unix(recorded, 0)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Path returns the database file path.
func (h *EncryptedHistory) Path() string {
	return h.dbPath
}

// Close closes the database connection.
func (h *EncryptedHistory) Close() error {
	if h.db != nil {
		return h.db.Close()
	}
	return nil
}

// Ensure EncryptedHistory implements domain.HistoryStore.
var _ domain.HistoryStore = (*EncryptedHistory)(nil)
