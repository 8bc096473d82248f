package records

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/ValentinKolb/recstore/lib/datastore"
	"github.com/ValentinKolb/recstore/lib/datastore/memds"
	"github.com/google/go-cmp/cmp"
)

// failingClient fails every call with the configured error.
type failingClient struct {
	err error
}

func (f failingClient) Get(context.Context, *datastore.Key) (*datastore.Entity, error) {
	return nil, f.err
}

func (f failingClient) RunQuery(context.Context, *datastore.Query) ([]*datastore.Entity, error) {
	return nil, f.err
}

func (f failingClient) Save(context.Context, *datastore.Key, []datastore.Property) (*datastore.Key, error) {
	return nil, f.err
}

func (f failingClient) Delete(context.Context, *datastore.Key) error {
	return f.err
}

func (f failingClient) Close() error { return nil }

// recordingClient remembers the last saved properties.
type recordingClient struct {
	datastore.Client
	saved []datastore.Property
}

func (r *recordingClient) Save(ctx context.Context, key *datastore.Key, props []datastore.Property) (*datastore.Key, error) {
	r.saved = props
	return r.Client.Save(ctx, key, props)
}

func newRef() Ref {
	return Ref{Client: memds.New(), Kind: "Book"}
}

func requireStatus(t *testing.T, err error, status int) *Error {
	t.Helper()
	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("expected *Error, got %T (%v)", err, err)
	}
	if e.Status != status {
		t.Fatalf("expected status %d, got %d (%s)", status, e.Status, e.Message)
	}
	return e
}

func TestReadNotFound(t *testing.T) {
	_, err := Read(context.Background(), newRef(), "123")
	e := requireStatus(t, err, 404)
	if e.Message != "Not found" {
		t.Errorf("unexpected message %q", e.Message)
	}
	if !IsNotFound(err) {
		t.Error("IsNotFound should be true")
	}
}

func TestReadServiceError(t *testing.T) {
	ref := Ref{
		Client: failingClient{err: datastore.WithStatus(503, errors.New("backend unavailable"))},
		Kind:   "Book",
	}
	_, err := Read(context.Background(), ref, "1")
	e := requireStatus(t, err, 503)
	if e.Message != "backend unavailable" {
		t.Errorf("expected the client message, got %q", e.Message)
	}
}

func TestServiceErrorDefaultsTo500(t *testing.T) {
	ref := Ref{Client: failingClient{err: errors.New("boom")}, Kind: "Book"}
	ctx := context.Background()

	_, err := Read(ctx, ref, "1")
	requireStatus(t, err, 500)

	_, err = List(ctx, ref)
	requireStatus(t, err, 500)

	_, err = Update(ctx, ref, "", Record{"title": "Dune"})
	requireStatus(t, err, 500)

	err = Remove(ctx, ref, "1")
	requireStatus(t, err, 500)
}

func TestListEmpty(t *testing.T) {
	recs, err := List(context.Background(), newRef())
	if err != nil {
		t.Fatal(err)
	}
	if recs == nil || len(recs) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", recs)
	}
}

func TestCreateReadList(t *testing.T) {
	ctx := context.Background()
	ref := newRef()

	created, err := Update(ctx, ref, "", Record{"title": "Dune", "author": "Herbert"})
	if err != nil {
		t.Fatal(err)
	}
	id, ok := created["id"].(int64)
	if !ok || id <= 0 {
		t.Fatalf("expected allocated id, got %#v", created["id"])
	}

	got, err := Read(ctx, ref, strconv.FormatInt(id, 10))
	if err != nil {
		t.Fatal(err)
	}
	want := Record{"id": id, "title": "Dune", "author": "Herbert"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Read() mismatch (-want +got):\n%s", diff)
	}

	list, err := List(ctx, ref)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]Record{want}, list); diff != "" {
		t.Errorf("List() mismatch (-want +got):\n%s", diff)
	}
}

func TestUpdateExistingKeepsID(t *testing.T) {
	ctx := context.Background()
	ref := newRef()

	rec, err := Update(ctx, ref, "42", Record{"title": "Emma"})
	if err != nil {
		t.Fatal(err)
	}
	if rec["id"] != int64(42) {
		t.Errorf("expected id 42, got %#v", rec["id"])
	}

	_, err = Update(ctx, ref, "42", Record{"title": "Emma", "year": int64(1815)})
	if err != nil {
		t.Fatal(err)
	}
	got, err := Read(ctx, ref, "42")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(Record{"id": int64(42), "title": "Emma", "year": int64(1815)}, got); diff != "" {
		t.Errorf("Read() after update mismatch (-want +got):\n%s", diff)
	}
}

func TestUpdateMutatesAndReturnsRecord(t *testing.T) {
	rec := Record{"title": "Dune"}
	out, err := Update(context.Background(), newRef(), "", rec)
	if err != nil {
		t.Fatal(err)
	}
	if rec["id"] == nil || rec["id"] != out["id"] {
		t.Errorf("expected the passed record to carry the id, got %#v", rec)
	}
}

func TestUpdateFailureLeavesRecordUntouched(t *testing.T) {
	ref := Ref{Client: failingClient{err: datastore.WithStatus(503, errors.New("down"))}, Kind: "Book"}
	rec := Record{"title": "Dune", "id": int64(5)}

	_, err := Update(context.Background(), ref, "", rec)
	requireStatus(t, err, 503)
	if rec["id"] != int64(5) {
		t.Errorf("record id changed on failed update: %#v", rec["id"])
	}
}

func TestUpdateNilRecord(t *testing.T) {
	rec, err := Update(context.Background(), newRef(), "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := rec["id"].(int64); !ok {
		t.Errorf("expected id on record created from nil, got %#v", rec)
	}
}

func TestUpdateWritesNoNonIndexedFields(t *testing.T) {
	rc := &recordingClient{Client: memds.New()}
	ref := Ref{Client: rc, Kind: "Book"}

	_, err := Update(context.Background(), ref, "", Record{"title": "Dune", "notes": nil})
	if err != nil {
		t.Fatal(err)
	}
	want := []datastore.Property{{Name: "title", Value: "Dune"}}
	if diff := cmp.Diff(want, rc.saved); diff != "" {
		t.Errorf("saved properties mismatch (-want +got):\n%s", diff)
	}
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	ref := newRef()

	rec, err := Update(ctx, ref, "", Record{"title": "Dune"})
	if err != nil {
		t.Fatal(err)
	}
	id := "1"
	if rec["id"] != int64(1) {
		t.Fatalf("expected first id 1, got %#v", rec["id"])
	}

	if err := Remove(ctx, ref, id); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	_, err = Read(ctx, ref, id)
	requireStatus(t, err, 404)

	// removing again is not an error
	if err := Remove(ctx, ref, id); err != nil {
		t.Errorf("second Remove failed: %v", err)
	}
}

func TestInvalidIDs(t *testing.T) {
	ctx := context.Background()
	ref := newRef()

	for _, id := range []string{"", "abc", "12abc", "0", "-3", "1.5", "99999999999999999999"} {
		t.Run(id, func(t *testing.T) {
			_, err := Read(ctx, ref, id)
			requireStatus(t, err, 400)
			err = Remove(ctx, ref, id)
			requireStatus(t, err, 400)
		})
	}

	// empty id means create for Update, everything else must be valid
	_, err := Update(ctx, ref, "abc", Record{})
	requireStatus(t, err, 400)
}

func TestInvalidRef(t *testing.T) {
	ctx := context.Background()

	_, err := Read(ctx, Ref{Kind: "Book"}, "1")
	requireStatus(t, err, 500)

	_, err = List(ctx, Ref{Client: memds.New()})
	requireStatus(t, err, 500)

	_, err = Update(ctx, Ref{Client: memds.New()}, "", Record{})
	requireStatus(t, err, 500)
}

func TestErrorString(t *testing.T) {
	err := NewNotFoundError()
	if err.Error() != "RecordError (status 404): Not found" {
		t.Errorf("unexpected error string %q", err.Error())
	}
}
