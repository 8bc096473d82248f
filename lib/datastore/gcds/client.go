package gcds

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	gcd "cloud.google.com/go/datastore"
	"github.com/ValentinKolb/recstore/lib/datastore"
	"github.com/lni/dragonboat/v4/logger"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var Logger = logger.GetLogger("datastore")

// GCDClient is the subset of *datastore.Client from the Google Cloud SDK used by this package.
type GCDClient interface {
	Get(ctx context.Context, key *gcd.Key, dst interface{}) error
	GetAll(ctx context.Context, q *gcd.Query, dst interface{}) ([]*gcd.Key, error)
	Put(ctx context.Context, key *gcd.Key, src interface{}) (*gcd.Key, error)
	Delete(ctx context.Context, key *gcd.Key) error
	Close() error
}

type clientImpl struct {
	client GCDClient
}

// New connects to Google Cloud Datastore for the given project.
// Credentials are resolved by the SDK (application default credentials);
// if DATASTORE_EMULATOR_HOST is set the emulator is used instead.
func New(ctx context.Context, projectID string) (datastore.Client, error) {
	c, err := gcd.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("gcds: could not create client for project %q: %w", projectID, wrapErr(err))
	}
	Logger.Infof("connected to cloud datastore (project %q)", projectID)
	return NewWithClient(c), nil
}

// NewWithClient wraps an existing SDK client.
func NewWithClient(c GCDClient) datastore.Client {
	return &clientImpl{client: c}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see datastore/interface.go)
// --------------------------------------------------------------------------

func (c *clientImpl) Get(ctx context.Context, key *datastore.Key) (*datastore.Entity, error) {
	if err := datastore.ValidateKey(key); err != nil {
		return nil, err
	}
	var pl gcd.PropertyList
	if err := c.client.Get(ctx, gcd.IDKey(key.Kind, key.ID, nil), &pl); err != nil {
		return nil, wrapErr(err)
	}
	return &datastore.Entity{Key: datastore.IDKey(key.Kind, key.ID), Data: fromPropertyList(pl)}, nil
}

func (c *clientImpl) RunQuery(ctx context.Context, q *datastore.Query) ([]*datastore.Entity, error) {
	var lists []gcd.PropertyList
	keys, err := c.client.GetAll(ctx, gcd.NewQuery(q.Kind), &lists)
	if err != nil {
		return nil, wrapErr(err)
	}
	entities := make([]*datastore.Entity, 0, len(keys))
	for i, k := range keys {
		entities = append(entities, &datastore.Entity{
			Key:  datastore.IDKey(k.Kind, k.ID),
			Data: fromPropertyList(lists[i]),
		})
	}
	return entities, nil
}

func (c *clientImpl) Save(ctx context.Context, key *datastore.Key, props []datastore.Property) (*datastore.Key, error) {
	if key == nil || key.Kind == "" {
		return nil, datastore.WithStatus(http.StatusBadRequest, errors.New("gcds: key has no kind"))
	}
	gkey := gcd.IncompleteKey(key.Kind, nil)
	if !key.Incomplete() {
		gkey = gcd.IDKey(key.Kind, key.ID, nil)
	}

	pl := toPropertyList(props)
	completed, err := c.client.Put(ctx, gkey, &pl)
	if err != nil {
		return nil, wrapErr(err)
	}
	return datastore.IDKey(completed.Kind, completed.ID), nil
}

func (c *clientImpl) Delete(ctx context.Context, key *datastore.Key) error {
	if err := datastore.ValidateKey(key); err != nil {
		return err
	}
	return wrapErr(c.client.Delete(ctx, gcd.IDKey(key.Kind, key.ID, nil)))
}

func (c *clientImpl) Close() error {
	return c.client.Close()
}

// --------------------------------------------------------------------------
// Conversion
// --------------------------------------------------------------------------

func toPropertyList(props []datastore.Property) gcd.PropertyList {
	pl := make(gcd.PropertyList, 0, len(props))
	for _, p := range props {
		pl = append(pl, gcd.Property{
			Name:    p.Name,
			Value:   toValue(p.Value),
			NoIndex: p.ExcludeFromIndexes,
		})
	}
	return pl
}

func fromPropertyList(pl gcd.PropertyList) map[string]interface{} {
	data := make(map[string]interface{}, len(pl))
	for _, p := range pl {
		data[p.Name] = fromValue(p.Value)
	}
	return data
}

// toValue converts a Go value into one of the types the datastore SDK accepts.
// Smaller integer and float types are widened, maps become embedded entities.
func toValue(v interface{}) interface{} {
	switch t := v.(type) {
	case int:
		return int64(t)
	case int8:
		return int64(t)
	case int16:
		return int64(t)
	case int32:
		return int64(t)
	case uint8:
		return int64(t)
	case uint16:
		return int64(t)
	case uint32:
		return int64(t)
	case float32:
		return float64(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i := range t {
			out[i] = toValue(t[i])
		}
		return out
	case map[string]interface{}:
		e := &gcd.Entity{}
		for k, val := range t {
			e.Properties = append(e.Properties, gcd.Property{Name: k, Value: toValue(val)})
		}
		return e
	default:
		return v
	}
}

func fromValue(v interface{}) interface{} {
	switch t := v.(type) {
	case []interface{}:
		out := make([]interface{}, len(t))
		for i := range t {
			out[i] = fromValue(t[i])
		}
		return out
	case *gcd.Entity:
		m := make(map[string]interface{}, len(t.Properties))
		for _, p := range t.Properties {
			m[p.Name] = fromValue(p.Value)
		}
		return m
	case *gcd.Key:
		if t == nil {
			return nil
		}
		return t.ID
	default:
		return v
	}
}

// wrapErr maps SDK errors to datastore errors and attaches an HTTP status derived from the gRPC code.
func wrapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gcd.ErrNoSuchEntity) {
		return datastore.ErrNoSuchEntity
	}
	if s, ok := status.FromError(err); ok {
		return datastore.WithStatus(httpStatusFromCode(s.Code()), errors.New(s.Message()))
	}
	return err
}

// httpStatusFromCode converts a gRPC code to the matching HTTP status.
func httpStatusFromCode(code codes.Code) int {
	switch code {
	case codes.OK:
		return http.StatusOK
	case codes.Canceled:
		return 499
	case codes.InvalidArgument, codes.FailedPrecondition, codes.OutOfRange:
		return http.StatusBadRequest
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	case codes.NotFound:
		return http.StatusNotFound
	case codes.AlreadyExists, codes.Aborted:
		return http.StatusConflict
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests
	case codes.Unimplemented:
		return http.StatusNotImplemented
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
