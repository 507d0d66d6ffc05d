// Package storage defines the durable key-value slots that services persist
// their snapshots into.
package storage

import "errors"

// ErrNotFound is returned when a slot has never been written
var ErrNotFound = errors.New("not found")

// Slot collections. Each holds one snapshot per user ID.
const (
	SlotProgress = "typescript-champ-storage"
	SlotPractice = "typescript-champ-practice"
	SlotRecap    = "typescript-champ-recap"
	SlotSprints  = "typescript-champ-sprints"
)

// Store persists JSON-encodable snapshots by (collection, id)
type Store interface {
	Save(collection, id string, data any) error
	Load(collection, id string, data any) error
	Delete(collection, id string) error
}
