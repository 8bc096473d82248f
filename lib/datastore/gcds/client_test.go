package gcds

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"sync"
	"testing"

	gcd "cloud.google.com/go/datastore"
	"github.com/ValentinKolb/recstore/lib/datastore"
	dstesting "github.com/ValentinKolb/recstore/lib/datastore/testing"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// fakeGCD is an in-memory stand-in for the Cloud Datastore SDK client.
type fakeGCD struct {
	mu       sync.Mutex
	lastID   int64
	entities map[string]map[int64]gcd.PropertyList
	failWith error
}

func newFakeGCD() *fakeGCD {
	return &fakeGCD{entities: make(map[string]map[int64]gcd.PropertyList)}
}

func (f *fakeGCD) Get(_ context.Context, key *gcd.Key, dst interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	pl, ok := f.entities[key.Kind][key.ID]
	if !ok {
		return gcd.ErrNoSuchEntity
	}
	*dst.(*gcd.PropertyList) = append(gcd.PropertyList(nil), pl...)
	return nil
}

func (f *fakeGCD) GetAll(_ context.Context, q *gcd.Query, dst interface{}) ([]*gcd.Key, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	kind := queryKind(q)
	ids := make([]int64, 0)
	for id := range f.entities[kind] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := dst.(*[]gcd.PropertyList)
	keys := make([]*gcd.Key, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, gcd.IDKey(kind, id, nil))
		*out = append(*out, f.entities[kind][id])
	}
	return keys, nil
}

func (f *fakeGCD) Put(_ context.Context, key *gcd.Key, src interface{}) (*gcd.Key, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	id := key.ID
	if key.Incomplete() {
		f.lastID++
		id = f.lastID
	} else if id > f.lastID {
		f.lastID = id
	}
	if f.entities[key.Kind] == nil {
		f.entities[key.Kind] = make(map[int64]gcd.PropertyList)
	}
	f.entities[key.Kind][id] = append(gcd.PropertyList(nil), *src.(*gcd.PropertyList)...)
	return gcd.IDKey(key.Kind, id, nil), nil
}

func (f *fakeGCD) Delete(_ context.Context, key *gcd.Key) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	delete(f.entities[key.Kind], key.ID)
	return nil
}

func (f *fakeGCD) Close() error { return nil }

// queryKind reads the unexported kind of a query.
func queryKind(q *gcd.Query) string {
	return reflect.ValueOf(q).Elem().FieldByName("kind").String()
}

func TestCloudDatastoreClient(t *testing.T) {
	dstesting.RunClientTests(t, "gcds", func() datastore.Client {
		return NewWithClient(newFakeGCD())
	})
}

func TestNoIndexIsForwarded(t *testing.T) {
	fake := newFakeGCD()
	c := NewWithClient(fake)

	k, err := c.Save(context.Background(), datastore.IncompleteKey("Book"), []datastore.Property{
		{Name: "title", Value: "Dune"},
		{Name: "description", Value: "long", ExcludeFromIndexes: true},
	})
	if err != nil {
		t.Fatal(err)
	}

	for _, p := range fake.entities["Book"][k.ID] {
		if want := p.Name == "description"; p.NoIndex != want {
			t.Errorf("property %s: NoIndex=%v, want %v", p.Name, p.NoIndex, want)
		}
	}
}

func TestValueNormalization(t *testing.T) {
	fake := newFakeGCD()
	c := NewWithClient(fake)

	k, err := c.Save(context.Background(), datastore.IncompleteKey("Book"), []datastore.Property{
		{Name: "pages", Value: 412},
		{Name: "meta", Value: map[string]interface{}{"isbn": "0441013597"}},
	})
	if err != nil {
		t.Fatal(err)
	}

	stored := fake.entities["Book"][k.ID]
	for _, p := range stored {
		switch p.Name {
		case "pages":
			if _, ok := p.Value.(int64); !ok {
				t.Errorf("pages stored as %T, want int64", p.Value)
			}
		case "meta":
			if _, ok := p.Value.(*gcd.Entity); !ok {
				t.Errorf("meta stored as %T, want *datastore.Entity", p.Value)
			}
		}
	}

	e, err := c.Get(context.Background(), k)
	if err != nil {
		t.Fatal(err)
	}
	meta, ok := e.Data["meta"].(map[string]interface{})
	if !ok || meta["isbn"] != "0441013597" {
		t.Errorf("unexpected meta %#v", e.Data["meta"])
	}
}

func TestErrorStatusMapping(t *testing.T) {
	tests := []struct {
		code codes.Code
		want int
	}{
		{codes.Unavailable, 503},
		{codes.PermissionDenied, 403},
		{codes.DeadlineExceeded, 504},
		{codes.Internal, 500},
	}
	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			fake := newFakeGCD()
			fake.failWith = status.Error(tt.code, "backend says no")
			c := NewWithClient(fake)

			_, err := c.Get(context.Background(), datastore.IDKey("Book", 1))
			if got := datastore.StatusOf(err); got != tt.want {
				t.Errorf("status = %d, want %d", got, tt.want)
			}
			if err.Error() != "backend says no" {
				t.Errorf("message = %q", err.Error())
			}
		})
	}
}

func TestPlainErrorPassesThrough(t *testing.T) {
	fake := newFakeGCD()
	fake.failWith = errors.New("plain")
	c := NewWithClient(fake)

	err := c.Delete(context.Background(), datastore.IDKey("Book", 1))
	if datastore.StatusOf(err) != 500 {
		t.Errorf("expected default status 500, got %d", datastore.StatusOf(err))
	}
}
