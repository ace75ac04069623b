package persist

import (
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ngmaloney/pendulum/internal/database"
)

// ErrNotFound is returned when a slot has never been written
var ErrNotFound = errors.New("persist: key not found")

// MaxValueSize bounds a single slot, matching the watch's persist limit
const MaxValueSize = 256

// Store is a small key-value store of independent slots keyed by integer
// ids, backed by sqlite. It is accessed only from the event loop.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the store at path
func Open(path string) (*Store, error) {
	db, err := database.Open(path)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

// Exists reports whether key has a value
func (s *Store) Exists(key uint32) (bool, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM persist WHERE key = ?", key).Scan(&n); err != nil {
		return false, fmt.Errorf("checking key %d: %w", key, err)
	}
	return n > 0, nil
}

// ReadData returns the raw bytes stored under key
func (s *Store) ReadData(key uint32) ([]byte, error) {
	var value []byte
	err := s.db.QueryRow("SELECT value FROM persist WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading key %d: %w", key, err)
	}
	return value, nil
}

// WriteData stores raw bytes under key, replacing any previous value
func (s *Store) WriteData(key uint32, value []byte) error {
	if len(value) > MaxValueSize {
		return fmt.Errorf("writing key %d: value of %d bytes exceeds %d", key, len(value), MaxValueSize)
	}

	_, err := s.db.Exec(`
		INSERT INTO persist (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, key, value)
	if err != nil {
		return fmt.Errorf("writing key %d: %w", key, err)
	}
	return nil
}

// ReadInt returns the 32-bit integer stored under key
func (s *Store) ReadInt(key uint32) (int32, error) {
	b, err := s.ReadData(key)
	if err != nil {
		return 0, err
	}
	if len(b) != 4 {
		return 0, fmt.Errorf("reading key %d: %d bytes is not an int", key, len(b))
	}
	return int32(binary.LittleEndian.Uint32(b)), nil
}

// WriteInt stores a 32-bit integer under key
func (s *Store) WriteInt(key uint32, v int32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(v))
	return s.WriteData(key, b[:])
}

// ReadString returns the string stored under key
func (s *Store) ReadString(key uint32) (string, error) {
	b, err := s.ReadData(key)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// WriteString stores a string under key
func (s *Store) WriteString(key uint32, v string) error {
	return s.WriteData(key, []byte(v))
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(key uint32) error {
	if _, err := s.db.Exec("DELETE FROM persist WHERE key = ?", key); err != nil {
		return fmt.Errorf("deleting key %d: %w", key, err)
	}
	return nil
}
