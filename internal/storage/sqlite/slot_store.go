package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/champ/internal/storage"
)

var _ storage.Store = (*SlotStore)(nil)

// SlotStore implements storage.Store over the slots table.
type SlotStore struct {
	db *DB
}

// NewSlotStore creates a new SQLite-backed slot store.
func NewSlotStore(db *DB) *SlotStore {
	return &SlotStore{db: db}
}

// Save upserts the JSON encoding of data.
func (s *SlotStore) Save(collection, id string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal slot: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO slots (collection, id, data, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET
			data=excluded.data,
			updated_at=excluded.updated_at`,
		collection, id, string(payload), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert slot: %w", err)
	}
	return nil
}

// Load decodes the stored slot into data.
func (s *SlotStore) Load(collection, id string, data any) error {
	var payload string
	err := s.db.QueryRow(`SELECT data FROM slots WHERE collection = ? AND id = ?`, collection, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("query slot: %w", err)
	}

	if err := json.Unmarshal([]byte(payload), data); err != nil {
		return fmt.Errorf("unmarshal slot: %w", err)
	}
	return nil
}

// Delete removes a slot.
func (s *SlotStore) Delete(collection, id string) error {
	res, err := s.db.Exec(`DELETE FROM slots WHERE collection = ? AND id = ?`, collection, id)
	if err != nil {
		return fmt.Errorf("delete slot: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// List returns the slot IDs in a collection.
func (s *SlotStore) List(collection string) ([]string, error) {
	rows, err := s.db.Query(`SELECT id FROM slots WHERE collection = ? ORDER BY id`, collection)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan slot id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
