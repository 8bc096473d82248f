package boltds

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ValentinKolb/recstore/lib/datastore"
	"github.com/lni/dragonboat/v4/logger"
	bolt "go.etcd.io/bbolt"
)

var Logger = logger.GetLogger("datastore")

// Options configures the bbolt client.
type Options struct {
	// Path of the database file. Created if it does not exist.
	Path string
	// Timeout for acquiring the file lock. Zero waits forever.
	Timeout time.Duration
}

type clientImpl struct {
	db *bolt.DB
}

// storedProperty is the on-disk form of a datastore.Property.
type storedProperty struct {
	Name    string          `json:"n"`
	Value   json.RawMessage `json:"v"`
	NoIndex bool            `json:"x,omitempty"`
}

// Open opens (or creates) a bbolt database file and returns a client on top of it.
// Each kind is stored in its own bucket, ids are allocated with the bucket sequence.
func Open(opts Options) (datastore.Client, error) {
	db, err := bolt.Open(opts.Path, 0600, &bolt.Options{Timeout: opts.Timeout})
	if err != nil {
		return nil, fmt.Errorf("boltds: could not open %s: %w", opts.Path, wrapErr(err))
	}
	Logger.Infof("opened bolt datastore at %s", opts.Path)
	return &clientImpl{db: db}, nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see datastore/interface.go)
// --------------------------------------------------------------------------

func (c *clientImpl) Get(ctx context.Context, key *datastore.Key) (*datastore.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := datastore.ValidateKey(key); err != nil {
		return nil, err
	}

	var entity *datastore.Entity
	err := c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(key.Kind))
		if b == nil {
			return datastore.ErrNoSuchEntity
		}
		raw := b.Get(encodeID(key.ID))
		if raw == nil {
			return datastore.ErrNoSuchEntity
		}
		data, err := decodeData(raw)
		if err != nil {
			return err
		}
		entity = &datastore.Entity{Key: datastore.IDKey(key.Kind, key.ID), Data: data}
		return nil
	})
	if err != nil {
		return nil, wrapErr(err)
	}
	return entity, nil
}

func (c *clientImpl) RunQuery(ctx context.Context, q *datastore.Query) ([]*datastore.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entities := make([]*datastore.Entity, 0)
	err := c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(q.Kind))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			data, err := decodeData(v)
			if err != nil {
				return err
			}
			entities = append(entities, &datastore.Entity{
				Key:  datastore.IDKey(q.Kind, decodeID(k)),
				Data: data,
			})
			return nil
		})
	})
	if err != nil {
		return nil, wrapErr(err)
	}
	return entities, nil
}

func (c *clientImpl) Save(ctx context.Context, key *datastore.Key, props []datastore.Property) (*datastore.Key, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if key == nil || key.Kind == "" {
		return nil, datastore.WithStatus(400, errors.New("boltds: key has no kind"))
	}

	raw, err := encodeProperties(props)
	if err != nil {
		return nil, datastore.WithStatus(400, err)
	}

	id := key.ID
	err = c.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(key.Kind))
		if err != nil {
			return err
		}
		if key.Incomplete() {
			seq, err := b.NextSequence()
			if err != nil {
				return err
			}
			id = int64(seq)
		} else if uint64(id) > b.Sequence() {
			// keep the sequence ahead of explicitly used ids
			if err := b.SetSequence(uint64(id)); err != nil {
				return err
			}
		}
		return b.Put(encodeID(id), raw)
	})
	if err != nil {
		return nil, wrapErr(err)
	}
	return datastore.IDKey(key.Kind, id), nil
}

func (c *clientImpl) Delete(ctx context.Context, key *datastore.Key) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := datastore.ValidateKey(key); err != nil {
		return err
	}
	err := c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(key.Kind))
		if b == nil {
			return nil
		}
		return b.Delete(encodeID(key.ID))
	})
	return wrapErr(err)
}

func (c *clientImpl) Close() error {
	return c.db.Close()
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// encodeID encodes an id big-endian so that bucket iteration follows id order.
func encodeID(id int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(id))
	return buf
}

func decodeID(b []byte) int64 {
	return int64(binary.BigEndian.Uint64(b))
}

func encodeProperties(props []datastore.Property) ([]byte, error) {
	stored := make([]storedProperty, 0, len(props))
	for _, p := range props {
		v, err := json.Marshal(p.Value)
		if err != nil {
			return nil, fmt.Errorf("boltds: property %s: %w", p.Name, err)
		}
		stored = append(stored, storedProperty{Name: p.Name, Value: v, NoIndex: p.ExcludeFromIndexes})
	}
	return json.Marshal(stored)
}

func decodeData(raw []byte) (map[string]interface{}, error) {
	var stored []storedProperty
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, fmt.Errorf("boltds: corrupt entity: %w", err)
	}
	data := make(map[string]interface{}, len(stored))
	for _, p := range stored {
		v, err := decodeValue(p.Value)
		if err != nil {
			return nil, fmt.Errorf("boltds: property %s: %w", p.Name, err)
		}
		data[p.Name] = v
	}
	return data, nil
}

// decodeValue decodes a JSON value, turning integral numbers into int64 and all other numbers into float64.
func decodeValue(raw json.RawMessage) (interface{}, error) {
	return datastore.DecodeJSON(bytes.NewReader(raw))
}

func wrapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, datastore.ErrNoSuchEntity):
		return err
	case errors.Is(err, bolt.ErrTimeout), errors.Is(err, bolt.ErrDatabaseNotOpen):
		return datastore.WithStatus(503, err)
	default:
		return err
	}
}
