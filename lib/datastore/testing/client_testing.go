package testing

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/ValentinKolb/recstore/lib/datastore"
)

// RunClientTests runs the conformance test suite for a datastore.Client implementation.
// Every subtest gets a fresh client from factory and closes it when done.
func RunClientTests(t *testing.T, name string, factory datastore.ClientFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("SaveAllocatesID", func(t *testing.T) {
			testSaveAllocatesID(t, factory())
		})

		t.Run("SaveExplicitID", func(t *testing.T) {
			testSaveExplicitID(t, factory())
		})

		t.Run("SaveReplaces", func(t *testing.T) {
			testSaveReplaces(t, factory())
		})

		t.Run("GetMissing", func(t *testing.T) {
			testGetMissing(t, factory())
		})

		t.Run("RunQueryEmpty", func(t *testing.T) {
			testRunQueryEmpty(t, factory())
		})

		t.Run("RunQueryByKind", func(t *testing.T) {
			testRunQueryByKind(t, factory())
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, factory())
		})

		t.Run("DeleteMissing", func(t *testing.T) {
			testDeleteMissing(t, factory())
		})

		t.Run("ValueTypes", func(t *testing.T) {
			testValueTypes(t, factory())
		})

		t.Run("ConcurrentAllocation", func(t *testing.T) {
			testConcurrentAllocation(t, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

func props(kv ...interface{}) []datastore.Property {
	out := make([]datastore.Property, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, datastore.Property{Name: kv[i].(string), Value: kv[i+1]})
	}
	return out
}

func mustSave(t *testing.T, c datastore.Client, key *datastore.Key, p []datastore.Property) *datastore.Key {
	t.Helper()
	k, err := c.Save(context.Background(), key, p)
	if err != nil {
		t.Fatalf("Save(%s) failed: %v", key, err)
	}
	return k
}

func mustGet(t *testing.T, c datastore.Client, key *datastore.Key) *datastore.Entity {
	t.Helper()
	e, err := c.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("Get(%s) failed: %v", key, err)
	}
	return e
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testSaveAllocatesID(t *testing.T, c datastore.Client) {
	defer c.Close()

	k1 := mustSave(t, c, datastore.IncompleteKey("Book"), props("title", "Dune"))
	k2 := mustSave(t, c, datastore.IncompleteKey("Book"), props("title", "Emma"))

	if k1.Incomplete() || k2.Incomplete() {
		t.Fatalf("Expected complete keys, got %s and %s", k1, k2)
	}
	if k1.Kind != "Book" || k2.Kind != "Book" {
		t.Errorf("Expected kind Book, got %s and %s", k1.Kind, k2.Kind)
	}
	if k1.ID == k2.ID {
		t.Errorf("Expected distinct ids, got %d twice", k1.ID)
	}

	e := mustGet(t, c, k1)
	if e.Key.ID != k1.ID || e.Data["title"] != "Dune" {
		t.Errorf("Unexpected entity %s: %v", e.Key, e.Data)
	}
}

func testSaveExplicitID(t *testing.T, c datastore.Client) {
	defer c.Close()

	k := mustSave(t, c, datastore.IDKey("Book", 4711), props("title", "Ulysses"))
	if k.ID != 4711 {
		t.Errorf("Expected id 4711, got %d", k.ID)
	}

	e := mustGet(t, c, datastore.IDKey("Book", 4711))
	if e.Data["title"] != "Ulysses" {
		t.Errorf("Expected title Ulysses, got %v", e.Data["title"])
	}
}

func testSaveReplaces(t *testing.T, c datastore.Client) {
	defer c.Close()

	k := mustSave(t, c, datastore.IncompleteKey("Book"), props("title", "Dune", "author", "Herbert"))
	mustSave(t, c, k, props("title", "Dune Messiah"))

	e := mustGet(t, c, k)
	if e.Data["title"] != "Dune Messiah" {
		t.Errorf("Expected replaced title, got %v", e.Data["title"])
	}
	if _, ok := e.Data["author"]; ok {
		t.Errorf("Save should replace the whole entity, author still present")
	}
}

func testGetMissing(t *testing.T, c datastore.Client) {
	defer c.Close()

	_, err := c.Get(context.Background(), datastore.IDKey("Book", 999))
	if !errors.Is(err, datastore.ErrNoSuchEntity) {
		t.Errorf("Expected ErrNoSuchEntity, got %v", err)
	}

	// same id in another kind must not be visible
	mustSave(t, c, datastore.IDKey("Shelf", 999), props("name", "A"))
	_, err = c.Get(context.Background(), datastore.IDKey("Book", 999))
	if !errors.Is(err, datastore.ErrNoSuchEntity) {
		t.Errorf("Expected ErrNoSuchEntity across kinds, got %v", err)
	}
}

func testRunQueryEmpty(t *testing.T, c datastore.Client) {
	defer c.Close()

	entities, err := c.RunQuery(context.Background(), datastore.NewQuery("Book"))
	if err != nil {
		t.Fatalf("RunQuery failed: %v", err)
	}
	if len(entities) != 0 {
		t.Errorf("Expected no entities, got %d", len(entities))
	}
}

func testRunQueryByKind(t *testing.T, c datastore.Client) {
	defer c.Close()

	want := map[int64]string{}
	for _, title := range []string{"Dune", "Emma", "Ulysses"} {
		k := mustSave(t, c, datastore.IncompleteKey("Book"), props("title", title))
		want[k.ID] = title
	}
	mustSave(t, c, datastore.IncompleteKey("Shelf"), props("name", "fiction"))

	entities, err := c.RunQuery(context.Background(), datastore.NewQuery("Book"))
	if err != nil {
		t.Fatalf("RunQuery failed: %v", err)
	}
	if len(entities) != len(want) {
		t.Fatalf("Expected %d entities, got %d", len(want), len(entities))
	}
	for _, e := range entities {
		if e.Key.Kind != "Book" {
			t.Errorf("Unexpected kind %s", e.Key.Kind)
		}
		if want[e.Key.ID] != e.Data["title"] {
			t.Errorf("Entity %s: expected title %q, got %v", e.Key, want[e.Key.ID], e.Data["title"])
		}
	}
}

func testDelete(t *testing.T, c datastore.Client) {
	defer c.Close()

	k := mustSave(t, c, datastore.IncompleteKey("Book"), props("title", "Dune"))
	if err := c.Delete(context.Background(), k); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	_, err := c.Get(context.Background(), k)
	if !errors.Is(err, datastore.ErrNoSuchEntity) {
		t.Errorf("Expected ErrNoSuchEntity after delete, got %v", err)
	}

	entities, err := c.RunQuery(context.Background(), datastore.NewQuery("Book"))
	if err != nil {
		t.Fatalf("RunQuery failed: %v", err)
	}
	if len(entities) != 0 {
		t.Errorf("Expected no entities after delete, got %d", len(entities))
	}
}

func testDeleteMissing(t *testing.T, c datastore.Client) {
	defer c.Close()

	if err := c.Delete(context.Background(), datastore.IDKey("Book", 12345)); err != nil {
		t.Errorf("Deleting a missing entity should succeed, got %v", err)
	}
}

func testValueTypes(t *testing.T, c datastore.Client) {
	defer c.Close()

	in := []datastore.Property{
		{Name: "title", Value: "Dune"},
		{Name: "pages", Value: int64(412)},
		{Name: "rating", Value: 4.5},
		{Name: "available", Value: true},
		{Name: "description", Value: "long text", ExcludeFromIndexes: true},
	}
	k := mustSave(t, c, datastore.IncompleteKey("Book"), in)

	e := mustGet(t, c, k)
	want := map[string]interface{}{
		"title":       "Dune",
		"pages":       int64(412),
		"rating":      4.5,
		"available":   true,
		"description": "long text",
	}
	if !reflect.DeepEqual(e.Data, want) {
		t.Errorf("Value round trip mismatch:\n got: %#v\nwant: %#v", e.Data, want)
	}
}

func testConcurrentAllocation(t *testing.T, c datastore.Client) {
	defer c.Close()

	const writers = 8
	const perWriter = 10

	var mu sync.Mutex
	seen := make(map[int64]bool)

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				k, err := c.Save(context.Background(), datastore.IncompleteKey("Book"), props("n", int64(i)))
				if err != nil {
					t.Errorf("Save failed: %v", err)
					return
				}
				mu.Lock()
				if seen[k.ID] {
					t.Errorf("Id %d allocated twice", k.ID)
				}
				seen[k.ID] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != writers*perWriter {
		t.Errorf("Expected %d distinct ids, got %d", writers*perWriter, len(seen))
	}
}
