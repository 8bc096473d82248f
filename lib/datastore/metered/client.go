package metered

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ValentinKolb/recstore/lib/datastore"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("datastore")

type clientImpl struct {
	next    datastore.Client
	backend string
	set     *metrics.Set
}

// Wrap returns a client that records request counts, error counts and
// durations for every call to next. Metrics are registered in the default set
// and carry the backend name as label.
func Wrap(next datastore.Client, backend string) datastore.Client {
	return WrapWithSet(next, backend, nil)
}

// WrapWithSet is like Wrap but registers the metrics in set.
// A nil set selects the global default set.
func WrapWithSet(next datastore.Client, backend string, set *metrics.Set) datastore.Client {
	return &clientImpl{next: next, backend: backend, set: set}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see datastore/interface.go)
// --------------------------------------------------------------------------

func (c *clientImpl) Get(ctx context.Context, key *datastore.Key) (*datastore.Entity, error) {
	start := time.Now()
	e, err := c.next.Get(ctx, key)
	// a missing entity is a regular answer, not a backend failure
	c.observe("get", start, ignore(err, datastore.ErrNoSuchEntity))
	Logger.Debugf("get %s took %s (err=%v)", key, time.Since(start), err)
	return e, err
}

func (c *clientImpl) RunQuery(ctx context.Context, q *datastore.Query) ([]*datastore.Entity, error) {
	start := time.Now()
	entities, err := c.next.RunQuery(ctx, q)
	c.observe("query", start, err)
	Logger.Debugf("query %s returned %d entities in %s (err=%v)", q.Kind, len(entities), time.Since(start), err)
	return entities, err
}

func (c *clientImpl) Save(ctx context.Context, key *datastore.Key, props []datastore.Property) (*datastore.Key, error) {
	start := time.Now()
	k, err := c.next.Save(ctx, key, props)
	c.observe("save", start, err)
	Logger.Debugf("save %s (%d properties) took %s (err=%v)", key, len(props), time.Since(start), err)
	return k, err
}

func (c *clientImpl) Delete(ctx context.Context, key *datastore.Key) error {
	start := time.Now()
	err := c.next.Delete(ctx, key)
	c.observe("delete", start, err)
	Logger.Debugf("delete %s took %s (err=%v)", key, time.Since(start), err)
	return err
}

func (c *clientImpl) Close() error {
	return c.next.Close()
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func (c *clientImpl) observe(op string, start time.Time, err error) {
	labels := fmt.Sprintf(`{backend=%q,op=%q}`, c.backend, op)
	c.counter("recstore_datastore_requests_total" + labels).Inc()
	if err != nil {
		c.counter("recstore_datastore_errors_total" + labels).Inc()
	}
	c.histogram("recstore_datastore_request_duration_seconds" + labels).UpdateDuration(start)
}

func (c *clientImpl) counter(name string) *metrics.Counter {
	if c.set != nil {
		return c.set.GetOrCreateCounter(name)
	}
	return metrics.GetOrCreateCounter(name)
}

func (c *clientImpl) histogram(name string) *metrics.Histogram {
	if c.set != nil {
		return c.set.GetOrCreateHistogram(name)
	}
	return metrics.GetOrCreateHistogram(name)
}

func ignore(err, target error) error {
	if errors.Is(err, target) {
		return nil
	}
	return err
}
