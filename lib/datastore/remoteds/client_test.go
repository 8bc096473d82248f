package remoteds

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/recstore/lib/api"
	"github.com/ValentinKolb/recstore/lib/common"
	"github.com/ValentinKolb/recstore/lib/datastore"
	"github.com/ValentinKolb/recstore/lib/datastore/memds"
	dstesting "github.com/ValentinKolb/recstore/lib/datastore/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// serverClient closes the test server together with the client
type serverClient struct {
	datastore.Client
	server *httptest.Server
}

func (c serverClient) Close() error {
	err := c.Client.Close()
	c.server.Close()
	return err
}

func newHandler(backing datastore.Client) http.Handler {
	conf := common.ServerConfig{Client: common.ClientConfig{TimeoutSecond: 5, LogLevel: "info"}}
	return api.NewServer(conf, backing).Handler()
}

func newServer(backing datastore.Client) *httptest.Server {
	return httptest.NewServer(newHandler(backing))
}

func newRemote(t *testing.T, endpoints ...string) datastore.Client {
	t.Helper()
	c, err := New(Options{Endpoints: endpoints, RetryCount: 2})
	require.NoError(t, err)
	return c
}

func TestRemoteClient(t *testing.T) {
	dstesting.RunClientTests(t, "remoteds", func() datastore.Client {
		ts := newServer(memds.New())
		return serverClient{Client: newRemote(t, ts.URL), server: ts}
	})
}

func TestRoundRobin(t *testing.T) {
	backing := memds.New()
	var hits [2]atomic.Int32
	servers := make([]*httptest.Server, 2)
	for i := range servers {
		handler := newHandler(backing)
		i := i
		servers[i] = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits[i].Add(1)
			handler.ServeHTTP(w, r)
		}))
		defer servers[i].Close()
	}

	c := newRemote(t, servers[0].URL, servers[1].URL+"/")
	defer c.Close()

	ctx := context.Background()
	for i := 0; i < 4; i++ {
		_, err := c.Save(ctx, datastore.IncompleteKey("Book"), []datastore.Property{{Name: "n", Value: int64(i)}})
		require.NoError(t, err)
	}
	assert.Equal(t, int32(2), hits[0].Load())
	assert.Equal(t, int32(2), hits[1].Load())

	entities, err := c.RunQuery(ctx, datastore.NewQuery("Book"))
	require.NoError(t, err)
	assert.Len(t, entities, 4)
}

func TestServerStatusIsForwarded(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":503,"message":"backend down"}`))
	}))
	defer ts.Close()

	c := newRemote(t, ts.URL)
	defer c.Close()

	_, err := c.Get(context.Background(), datastore.IDKey("Book", 1))
	require.Error(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, datastore.StatusOf(err))
	assert.Equal(t, "backend down", err.Error())
}

func TestUnreachableServer(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	c := newRemote(t, url)
	defer c.Close()

	_, err := c.RunQuery(context.Background(), datastore.NewQuery("Book"))
	assert.Equal(t, http.StatusServiceUnavailable, datastore.StatusOf(err))
}

func TestInvalidOptions(t *testing.T) {
	for name, opts := range map[string]Options{
		"no endpoints": {},
		"no scheme":    {Endpoints: []string{"localhost:8080"}},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := New(opts)
			assert.Error(t, err)
		})
	}
}

func TestClosedClient(t *testing.T) {
	ts := newServer(memds.New())
	defer ts.Close()

	c := newRemote(t, ts.URL)
	require.NoError(t, c.Close())

	err := c.Delete(context.Background(), datastore.IDKey("Book", 1))
	assert.Equal(t, http.StatusServiceUnavailable, datastore.StatusOf(err))
}
