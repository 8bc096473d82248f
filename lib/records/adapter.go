package records

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/ValentinKolb/recstore/lib/datastore"
)

// Ref names the collection an operation works on: the datastore client to use
// and the kind of the entities. It is passed to every call, the package keeps no state.
type Ref struct {
	Client datastore.Client
	Kind   string
}

func (r Ref) validate() error {
	if r.Client == nil {
		return NewError(http.StatusInternalServerError, "no datastore client configured")
	}
	if r.Kind == "" {
		return NewError(http.StatusInternalServerError, "no kind configured")
	}
	return nil
}

// ParseID parses a record id. Ids are positive base-10 integers.
func ParseID(id string) (int64, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil || n <= 0 {
		return 0, NewError(http.StatusBadRequest, fmt.Sprintf("invalid id %q", id))
	}
	return n, nil
}

// keyFor validates ref and builds the complete key for id.
func keyFor(ref Ref, id string) (*datastore.Key, error) {
	if err := ref.validate(); err != nil {
		return nil, err
	}
	n, err := ParseID(id)
	if err != nil {
		return nil, err
	}
	return datastore.IDKey(ref.Kind, n), nil
}

// --------------------------------------------------------------------------
// Operations
// --------------------------------------------------------------------------

// Read returns the record with the given id.
// It fails with status 404 if no such record exists.
func Read(ctx context.Context, ref Ref, id string) (Record, error) {
	key, err := keyFor(ref, id)
	if err != nil {
		return nil, err
	}
	e, err := ref.Client.Get(ctx, key)
	if errors.Is(err, datastore.ErrNoSuchEntity) {
		return nil, NewNotFoundError()
	}
	if err != nil {
		return nil, NewServiceError(err)
	}
	return FromDatastore(e), nil
}

// List returns all records of the kind, in the order returned by the datastore.
func List(ctx context.Context, ref Ref) ([]Record, error) {
	if err := ref.validate(); err != nil {
		return nil, err
	}
	entities, err := ref.Client.RunQuery(ctx, datastore.NewQuery(ref.Kind))
	if err != nil {
		return nil, NewServiceError(err)
	}
	recs := make([]Record, 0, len(entities))
	for _, e := range entities {
		recs = append(recs, FromDatastore(e))
	}
	return recs, nil
}

// Update stores rec under id, or under a newly allocated id if id is empty.
// On success rec gets the id of the stored entity and is returned.
// On failure rec is left untouched.
func Update(ctx context.Context, ref Ref, id string, rec Record) (Record, error) {
	var key *datastore.Key
	if id == "" {
		if err := ref.validate(); err != nil {
			return nil, err
		}
		key = datastore.IncompleteKey(ref.Kind)
	} else {
		var err error
		if key, err = keyFor(ref, id); err != nil {
			return nil, err
		}
	}

	saved, err := ref.Client.Save(ctx, key, ToDatastore(rec))
	if err != nil {
		return nil, NewServiceError(err)
	}

	if rec == nil {
		rec = make(Record, 1)
	}
	rec[IDField] = saved.ID
	return rec, nil
}

// Remove deletes the record with the given id.
// Removing a record that does not exist is not reported as an error.
func Remove(ctx context.Context, ref Ref, id string) error {
	key, err := keyFor(ref, id)
	if err != nil {
		return err
	}
	if err := ref.Client.Delete(ctx, key); err != nil {
		return NewServiceError(err)
	}
	return nil
}
