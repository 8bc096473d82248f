package datastore

import (
	"context"
	"errors"
	"fmt"
)

// --------------------------------------------------------------------------
// Keys, Entities and Queries
// --------------------------------------------------------------------------

// Key names one entity: the kind it belongs to and its numeric id.
// A key with ID 0 is incomplete and gets its id assigned by the client on Save.
type Key struct {
	Kind string
	ID   int64
}

// IDKey creates a complete key for the given kind and id.
func IDKey(kind string, id int64) *Key {
	return &Key{Kind: kind, ID: id}
}

// IncompleteKey creates a key for the given kind without an id.
// Saving an entity under this key makes the client allocate a new id.
func IncompleteKey(kind string) *Key {
	return &Key{Kind: kind}
}

// Incomplete reports whether the key still lacks an id.
func (k *Key) Incomplete() bool {
	return k.ID == 0
}

func (k *Key) String() string {
	if k == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s(%d)", k.Kind, k.ID)
}

// Property is a single named value of an entity as it is written to the datastore.
type Property struct {
	Name               string
	Value              interface{}
	ExcludeFromIndexes bool
}

// Entity is an entity as it is read from the datastore.
type Entity struct {
	Key  *Key
	Data map[string]interface{}
}

// Query selects all entities of one kind.
type Query struct {
	Kind string
}

// NewQuery creates an unfiltered query for the given kind.
func NewQuery(kind string) *Query {
	return &Query{Kind: kind}
}

// ErrNoSuchEntity is returned by Client.Get when no entity exists for the key.
var ErrNoSuchEntity = errors.New("datastore: no such entity")

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// ClientFactory creates a new client. Used by the tests and the backends package.
type ClientFactory func() Client

// Client is the interface of a key-value datastore holding entities grouped by kind.
// Implementations must be safe for concurrent use.
type Client interface {
	// Get returns the entity stored under key, or ErrNoSuchEntity.
	Get(ctx context.Context, key *Key) (*Entity, error)
	// RunQuery returns all entities matching the query. The order is defined by the implementation.
	RunQuery(ctx context.Context, q *Query) ([]*Entity, error)
	// Save inserts or replaces the entity stored under key and returns the complete key.
	// If key is incomplete, a new id is allocated.
	Save(ctx context.Context, key *Key, props []Property) (*Key, error)
	// Delete removes the entity stored under key. Deleting a missing entity is not an error.
	Delete(ctx context.Context, key *Key) error
	// Close releases all resources held by the client.
	Close() error
}

// PropertiesToMap converts a property list to the data mapping of an Entity.
func PropertiesToMap(props []Property) map[string]interface{} {
	data := make(map[string]interface{}, len(props))
	for _, p := range props {
		data[p.Name] = p.Value
	}
	return data
}

// ValidateKey checks that key can be used for Get or Delete.
func ValidateKey(key *Key) error {
	if key == nil {
		return WithStatus(400, errors.New("datastore: nil key"))
	}
	if key.Kind == "" {
		return WithStatus(400, errors.New("datastore: key has no kind"))
	}
	if key.Incomplete() {
		return WithStatus(400, fmt.Errorf("datastore: incomplete key %s", key))
	}
	return nil
}
