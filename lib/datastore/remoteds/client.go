package remoteds

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/recstore/lib/datastore"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("datastore")

// idField is the field the server puts the entity id in
const idField = "id"

// Options configures the connection to one or more recstore servers.
type Options struct {
	// Base URLs of the servers, e.g. http://localhost:8080. Requests are
	// distributed round-robin.
	Endpoints []string
	// How many times a request is sent before a transport error is returned
	RetryCount int
	// Idle connection timeout
	Timeout time.Duration
}

type clientImpl struct {
	serverURLs []*url.URL
	client     *http.Client
	counter    uint32
	retryCount int
	closed     atomic.Bool
}

// New returns a client that stores entities through the HTTP api of a recstore server.
// Non-indexed flags are not part of the api and are not forwarded.
func New(opts Options) (datastore.Client, error) {
	if len(opts.Endpoints) == 0 {
		return nil, errors.New("remoteds: at least one endpoint is required")
	}

	// Parse each server URL
	parsedURLs := make([]*url.URL, len(opts.Endpoints))
	for i, server := range opts.Endpoints {
		parsedURL, err := url.Parse(strings.TrimSuffix(strings.TrimSpace(server), "/"))
		if err != nil {
			return nil, fmt.Errorf("remoteds: invalid endpoint %q: %w", server, err)
		}
		if parsedURL.Scheme == "" || parsedURL.Host == "" {
			return nil, fmt.Errorf("remoteds: invalid endpoint %q (expected e.g. http://localhost:8080)", server)
		}
		parsedURLs[i] = parsedURL
	}

	retries := opts.RetryCount
	if retries < 1 {
		retries = 1
	}

	return &clientImpl{
		serverURLs: parsedURLs,
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     opts.Timeout,
			},
		},
		retryCount: retries,
	}, nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see datastore/interface.go)
// --------------------------------------------------------------------------

func (c *clientImpl) Get(ctx context.Context, key *datastore.Key) (*datastore.Entity, error) {
	if err := datastore.ValidateKey(key); err != nil {
		return nil, err
	}

	var data map[string]interface{}
	status, err := c.send(ctx, http.MethodGet, recordPath(key), nil, &data)
	if status == http.StatusNotFound {
		return nil, datastore.ErrNoSuchEntity
	}
	if err != nil {
		return nil, err
	}
	return toEntity(key.Kind, data)
}

func (c *clientImpl) RunQuery(ctx context.Context, q *datastore.Query) ([]*datastore.Entity, error) {
	if q == nil || q.Kind == "" {
		return nil, datastore.WithStatus(http.StatusBadRequest, errors.New("query without kind"))
	}

	var list []map[string]interface{}
	if _, err := c.send(ctx, http.MethodGet, "/records/"+url.PathEscape(q.Kind), nil, &list); err != nil {
		return nil, err
	}

	entities := make([]*datastore.Entity, 0, len(list))
	for _, data := range list {
		e, err := toEntity(q.Kind, data)
		if err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}
	return entities, nil
}

func (c *clientImpl) Save(ctx context.Context, key *datastore.Key, props []datastore.Property) (*datastore.Key, error) {
	if key == nil || key.Kind == "" {
		return nil, datastore.WithStatus(http.StatusBadRequest, errors.New("key without kind"))
	}

	body, err := json.Marshal(datastore.PropertiesToMap(props))
	if err != nil {
		return nil, datastore.WithStatus(http.StatusBadRequest, fmt.Errorf("remoteds: failed to encode properties: %w", err))
	}

	method, path := http.MethodPut, recordPath(key)
	if key.Incomplete() {
		method, path = http.MethodPost, "/records/"+url.PathEscape(key.Kind)
	}

	var saved map[string]interface{}
	if _, err := c.send(ctx, method, path, body, &saved); err != nil {
		return nil, err
	}

	id, err := entityID(saved)
	if err != nil {
		return nil, err
	}
	return datastore.IDKey(key.Kind, id), nil
}

func (c *clientImpl) Delete(ctx context.Context, key *datastore.Key) error {
	if err := datastore.ValidateKey(key); err != nil {
		return err
	}
	_, err := c.send(ctx, http.MethodDelete, recordPath(key), nil, nil)
	return err
}

func (c *clientImpl) Close() error {
	if c.closed.CompareAndSwap(false, true) {
		c.client.CloseIdleConnections()
	}
	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func recordPath(key *datastore.Key) string {
	return "/records/" + url.PathEscape(key.Kind) + "/" + strconv.FormatInt(key.ID, 10)
}

// send performs the request against the next server and decodes a successful
// response into out. Failed requests are answered with the status of the server.
func (c *clientImpl) send(ctx context.Context, method, path string, body []byte, out interface{}) (int, error) {
	if c.closed.Load() {
		return 0, datastore.WithStatus(http.StatusServiceUnavailable, errors.New("remoteds: client is closed"))
	}

	// Select the next server via round-robin
	idx := atomic.AddUint32(&c.counter, 1) % uint32(len(c.serverURLs))
	requestURL := c.serverURLs[idx].String() + path

	// Send the request (with retries)
	var (
		resp *http.Response
		err  error
	)
	for i := 0; i < c.retryCount; i++ {
		var req *http.Request
		req, err = http.NewRequestWithContext(ctx, method, requestURL, bytes.NewReader(body))
		if err != nil {
			return 0, err
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		resp, err = c.client.Do(req)
		if err == nil || ctx.Err() != nil {
			break
		}
		Logger.Debugf("%s %s failed (attempt %d/%d): %v", method, requestURL, i+1, c.retryCount, err)
	}
	if err != nil {
		return 0, datastore.WithStatus(http.StatusServiceUnavailable, fmt.Errorf("remoteds: %s %s: %w", method, requestURL, err))
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			Logger.Errorf("Failed to close response body: %v", err)
		}
	}()

	if resp.StatusCode >= 300 {
		return resp.StatusCode, datastore.WithStatus(resp.StatusCode, errors.New(errorMessage(resp)))
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return resp.StatusCode, nil
	}

	v, err := datastore.DecodeJSON(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("remoteds: invalid response body: %w", err)
	}
	switch o := out.(type) {
	case *map[string]interface{}:
		m, ok := v.(map[string]interface{})
		if !ok {
			return resp.StatusCode, fmt.Errorf("remoteds: expected a JSON object, got %T", v)
		}
		*o = m
	case *[]map[string]interface{}:
		items, ok := v.([]interface{})
		if !ok {
			return resp.StatusCode, fmt.Errorf("remoteds: expected a JSON array, got %T", v)
		}
		for _, item := range items {
			m, ok := item.(map[string]interface{})
			if !ok {
				return resp.StatusCode, fmt.Errorf("remoteds: expected a JSON object, got %T", item)
			}
			*o = append(*o, m)
		}
	}
	return resp.StatusCode, nil
}

// errorMessage extracts the message of an error response
func errorMessage(resp *http.Response) string {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Message != "" {
		return body.Message
	}
	if len(raw) > 0 {
		return strings.TrimSpace(string(raw))
	}
	return resp.Status
}

// entityID reads the id field of a record returned by the server
func entityID(data map[string]interface{}) (int64, error) {
	switch id := data[idField].(type) {
	case int64:
		return id, nil
	case float64:
		return int64(id), nil
	default:
		return 0, fmt.Errorf("remoteds: response without valid id (%v)", data[idField])
	}
}

// toEntity converts a record of the server back to an entity, the id moves into the key
func toEntity(kind string, data map[string]interface{}) (*datastore.Entity, error) {
	id, err := entityID(data)
	if err != nil {
		return nil, err
	}
	delete(data, idField)
	return &datastore.Entity{Key: datastore.IDKey(kind, id), Data: data}, nil
}
