// Package store implements the generic document store: CRUD and filtered
// queries over collection tables, polymorphic lookup by composite id, and
// lazy similarity-index provisioning with embedding-triggered writes.
//
// Every persisted entity embeds Metadata and declares its collection name.
// Identity is a composite id of the form "<collection>:<uuid>", so a
// document can be resolved without knowing its concrete type in advance
// (see Registry).
//
// Store is safe for concurrent use by multiple goroutines. Writes follow
// last-write-wins: there is no version token, and two concurrent saves of
// the same id may clobber each other.
package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/remindhq/remind/internal/errs"
)

// Metadata carries the server-assigned identity and timestamps of a persisted
// entity. Embed it by value in every entity struct; the fields are excluded
// from the JSON document body and populated by the store after each write.
type Metadata struct {
	ID        string    `json:"-"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// Meta returns the embedded metadata, satisfying the Entity interface.
func (m *Metadata) Meta() *Metadata { return m }

// Saved reports whether the entity has been persisted at least once.
func (m *Metadata) Saved() bool { return m.ID != "" }

// Entity is the contract every persisted type satisfies. Collection names
// must be registered in a Registry before the store can operate on them.
type Entity interface {
	Meta() *Metadata
	Collection() string
}

// Embeddable marks entity types whose content should be embedded on save.
// An empty EmbeddingText() skips embedding for that particular instance.
type Embeddable interface {
	Entity
	EmbeddingText() string
}

// FormatID builds the composite id "<collection>:<key>".
func FormatID(collection string, key uuid.UUID) string {
	return collection + ":" + key.String()
}

// ParseID splits a composite id into its collection name and key.
// Malformed ids fail with ErrInvalidInput.
func ParseID(id string) (string, uuid.UUID, error) {
	collection, raw, ok := strings.Cut(id, ":")
	if !ok || collection == "" {
		return "", uuid.Nil, fmt.Errorf("%w: malformed id %q (want <collection>:<uuid>)", errs.ErrInvalidInput, id)
	}
	key, err := uuid.Parse(raw)
	if err != nil {
		return "", uuid.Nil, fmt.Errorf("%w: malformed id %q: %v", errs.ErrInvalidInput, id, err)
	}
	return collection, key, nil
}
