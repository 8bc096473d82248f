package memds

import (
	"context"
	"errors"
	"sort"
	"sync/atomic"

	"github.com/ValentinKolb/recstore/lib/datastore"
	"github.com/puzpuzpuz/xsync/v3"
)

var errClosed = datastore.WithStatus(503, errors.New("memds: client is closed"))

type kindMap = *xsync.MapOf[int64, []datastore.Property]

type clientImpl struct {
	kinds  *xsync.MapOf[string, kindMap]
	lastID atomic.Int64
	closed atomic.Bool
}

// New creates a new in-memory client.
// Entities are kept in concurrent maps (one per kind) and are lost when the process exits.
func New() datastore.Client {
	return &clientImpl{
		kinds: xsync.NewMapOf[string, kindMap](),
	}
}

// nextID allocates a new id. Ids are unique across all kinds.
//
// Thread-safety: This method is thread-safe since it uses atomic operations.
func (c *clientImpl) nextID() int64 {
	return c.lastID.Add(1)
}

// kind returns the map holding all entities of a kind, creating it on demand.
func (c *clientImpl) kind(name string) kindMap {
	m, _ := c.kinds.LoadOrCompute(name, func() kindMap {
		return xsync.NewMapOf[int64, []datastore.Property]()
	})
	return m
}

// bumpID makes sure later allocations never hand out an explicitly used id.
func (c *clientImpl) bumpID(id int64) {
	for {
		cur := c.lastID.Load()
		if id <= cur || c.lastID.CompareAndSwap(cur, id) {
			return
		}
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see datastore/interface.go)
// --------------------------------------------------------------------------

func (c *clientImpl) Get(ctx context.Context, key *datastore.Key) (*datastore.Entity, error) {
	if err := c.check(ctx); err != nil {
		return nil, err
	}
	if err := datastore.ValidateKey(key); err != nil {
		return nil, err
	}
	m, ok := c.kinds.Load(key.Kind)
	if !ok {
		return nil, datastore.ErrNoSuchEntity
	}
	props, ok := m.Load(key.ID)
	if !ok {
		return nil, datastore.ErrNoSuchEntity
	}
	return &datastore.Entity{
		Key:  datastore.IDKey(key.Kind, key.ID),
		Data: datastore.PropertiesToMap(props),
	}, nil
}

func (c *clientImpl) RunQuery(ctx context.Context, q *datastore.Query) ([]*datastore.Entity, error) {
	if err := c.check(ctx); err != nil {
		return nil, err
	}
	entities := make([]*datastore.Entity, 0)
	m, ok := c.kinds.Load(q.Kind)
	if !ok {
		return entities, nil
	}
	m.Range(func(id int64, props []datastore.Property) bool {
		entities = append(entities, &datastore.Entity{
			Key:  datastore.IDKey(q.Kind, id),
			Data: datastore.PropertiesToMap(props),
		})
		return true
	})
	// key order, like a real datastore scan
	sort.Slice(entities, func(i, j int) bool {
		return entities[i].Key.ID < entities[j].Key.ID
	})
	return entities, nil
}

func (c *clientImpl) Save(ctx context.Context, key *datastore.Key, props []datastore.Property) (*datastore.Key, error) {
	if err := c.check(ctx); err != nil {
		return nil, err
	}
	if key == nil || key.Kind == "" {
		return nil, datastore.WithStatus(400, errors.New("memds: key has no kind"))
	}
	id := key.ID
	if key.Incomplete() {
		id = c.nextID()
	} else {
		c.bumpID(id)
	}

	stored := make([]datastore.Property, len(props))
	copy(stored, props)
	c.kind(key.Kind).Store(id, stored)

	return datastore.IDKey(key.Kind, id), nil
}

func (c *clientImpl) Delete(ctx context.Context, key *datastore.Key) error {
	if err := c.check(ctx); err != nil {
		return err
	}
	if err := datastore.ValidateKey(key); err != nil {
		return err
	}
	if m, ok := c.kinds.Load(key.Kind); ok {
		m.Delete(key.ID)
	}
	return nil
}

func (c *clientImpl) Close() error {
	c.closed.Store(true)
	return nil
}

// check fails if the context is done or the client was closed.
func (c *clientImpl) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return datastore.WithStatus(499, err)
	}
	if c.closed.Load() {
		return errClosed
	}
	return nil
}
