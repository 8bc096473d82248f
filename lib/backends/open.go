package backends

import (
	"context"
	"fmt"
	"time"

	"github.com/ValentinKolb/recstore/lib/common"
	"github.com/ValentinKolb/recstore/lib/datastore"
	"github.com/ValentinKolb/recstore/lib/datastore/boltds"
	"github.com/ValentinKolb/recstore/lib/datastore/dynamods"
	"github.com/ValentinKolb/recstore/lib/datastore/gcds"
	"github.com/ValentinKolb/recstore/lib/datastore/memds"
	"github.com/ValentinKolb/recstore/lib/datastore/metered"
	"github.com/ValentinKolb/recstore/lib/datastore/remoteds"
)

// Open creates the datastore client selected by the configuration.
// The returned client records metrics labeled with the backend name.
func Open(ctx context.Context, conf common.ClientConfig) (datastore.Client, error) {
	var (
		client datastore.Client
		err    error
	)

	switch conf.Backend {
	case common.BackendMemory:
		client = memds.New()
	case common.BackendBolt:
		if conf.Bolt.Path == "" {
			return nil, fmt.Errorf("bolt backend requires a database path")
		}
		client, err = boltds.Open(boltds.Options{
			Path:    conf.Bolt.Path,
			Timeout: time.Duration(conf.Bolt.LockTimeoutSec) * time.Second,
		})
	case common.BackendDatastore:
		if conf.Datastore.ProjectID == "" {
			return nil, fmt.Errorf("datastore backend requires a project id")
		}
		client, err = gcds.New(ctx, conf.Datastore.ProjectID)
	case common.BackendDynamoDB:
		client, err = dynamods.New(ctx, dynamods.Options{
			Table:          conf.DynamoDB.Table,
			Region:         conf.DynamoDB.Region,
			Endpoint:       conf.DynamoDB.Endpoint,
			ConsistentRead: conf.DynamoDB.ConsistentRead,
		})
	case common.BackendRemote:
		client, err = remoteds.New(remoteds.Options{
			Endpoints:  conf.Remote.Endpoints,
			RetryCount: conf.Remote.RetryCount,
			Timeout:    time.Duration(conf.TimeoutSecond) * time.Second,
		})
	default:
		return nil, fmt.Errorf("unknown backend %q", conf.Backend)
	}
	if err != nil {
		return nil, err
	}

	return metered.Wrap(client, string(conf.Backend)), nil
}
