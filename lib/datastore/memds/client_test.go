package memds

import (
	"context"
	"testing"

	"github.com/ValentinKolb/recstore/lib/datastore"
	dstesting "github.com/ValentinKolb/recstore/lib/datastore/testing"
)

func TestMemoryClient(t *testing.T) {
	dstesting.RunClientTests(t, "memds", New)
}

func TestExplicitIDNotReallocated(t *testing.T) {
	c := New()
	defer c.Close()

	ctx := context.Background()
	if _, err := c.Save(ctx, datastore.IDKey("Book", 5), nil); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		k, err := c.Save(ctx, datastore.IncompleteKey("Book"), nil)
		if err != nil {
			t.Fatal(err)
		}
		if k.ID == 5 {
			t.Fatalf("id 5 was allocated although it is in use")
		}
	}
}

func TestClosedClient(t *testing.T) {
	c := New()
	_ = c.Close()

	_, err := c.Get(context.Background(), datastore.IDKey("Book", 1))
	if datastore.StatusOf(err) != 503 {
		t.Errorf("Expected status 503 on closed client, got %v", err)
	}
}

func TestCanceledContext(t *testing.T) {
	c := New()
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := c.Save(ctx, datastore.IncompleteKey("Book"), nil); err == nil {
		t.Error("Expected error for canceled context")
	}
}
