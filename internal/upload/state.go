package upload

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// StateDB tracks which plan files have been submitted to avoid re-importing
// unchanged files.
type StateDB struct {
	db *sql.DB
}

// Submission is one recorded plan file.
type Submission struct {
	Path        string
	Size        int64
	Hash        string
	ImportLogID string
}

// OpenStateDB opens (or creates) the SQLite state database at dir/state.db.
func OpenStateDB(dir string) (*StateDB, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating state dir %s: %w", dir, err)
	}

	dbPath := filepath.Join(dir, "state.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening state db: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS submitted_plans (
		path          TEXT PRIMARY KEY,
		size          INTEGER NOT NULL,
		hash          TEXT NOT NULL,
		import_log_id TEXT NOT NULL,
		submitted_at  TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating state table: %w", err)
	}

	return &StateDB{db: db}, nil
}

// IsSubmitted checks if a file has already been submitted with the same size and hash.
func (s *StateDB) IsSubmitted(relPath string, size int64, hash string) (bool, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM submitted_plans WHERE path = ? AND size = ? AND hash = ?`,
		relPath, size, hash,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking %s: %w", relPath, err)
	}
	return count > 0, nil
}

// MarkSubmitted records that a file was imported under importLogID. A changed
// file replaces its previous row.
func (s *StateDB) MarkSubmitted(relPath string, size int64, hash, importLogID string) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO submitted_plans (path, size, hash, import_log_id) VALUES (?, ?, ?, ?)`,
		relPath, size, hash, importLogID,
	)
	if err != nil {
		return fmt.Errorf("recording %s: %w", relPath, err)
	}
	return nil
}

// Lookup returns the recorded submission for relPath, if any.
func (s *StateDB) Lookup(relPath string) (*Submission, error) {
	var sub Submission
	err := s.db.QueryRow(
		`SELECT path, size, hash, import_log_id FROM submitted_plans WHERE path = ?`,
		relPath,
	).Scan(&sub.Path, &sub.Size, &sub.Hash, &sub.ImportLogID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("looking up %s: %w", relPath, err)
	}
	return &sub, nil
}

// Close closes the state database.
func (s *StateDB) Close() error {
	return s.db.Close()
}

// HashFile computes the SHA-256 hash of a file.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
