package dynamods

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/ValentinKolb/recstore/lib/datastore"
	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("datastore")

// Attribute names of the table layout.
//
//	aws dynamodb create-table \
//	  --table-name records \
//	  --attribute-definitions AttributeName=kind,AttributeType=S AttributeName=id,AttributeType=N \
//	  --key-schema AttributeName=kind,KeyType=HASH AttributeName=id,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
const (
	attrKind      = "kind"
	attrID        = "id"
	attrData      = "data"
	attrUnindexed = "unindexed"
	attrSeq       = "seq"

	// the item with this id holds the id sequence of its kind
	sequenceID = 0
)

// DDBClient is the interface for DynamoDB operations.
type DDBClient interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Options configures the DynamoDB client.
type Options struct {
	// Table is the name of the DynamoDB table (required).
	Table string
	// Region overrides the region from the shared AWS config.
	Region string
	// Endpoint overrides the service endpoint, e.g. for DynamoDB Local.
	Endpoint string
	// ConsistentRead enables strongly consistent reads for Get and RunQuery.
	ConsistentRead bool
}

type clientImpl struct {
	ddb  DDBClient
	opts Options
}

// New creates a client using the default AWS credential chain.
func New(ctx context.Context, opts Options) (datastore.Client, error) {
	if opts.Table == "" {
		return nil, errors.New("dynamods: table name is required")
	}

	var loadOpts []func(*config.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.Region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("dynamods: failed to load AWS config: %w", err)
	}

	ddb := dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
	})
	Logger.Infof("using dynamodb table %s (region %q)", opts.Table, cfg.Region)
	return NewWithClient(ddb, opts), nil
}

// NewWithClient creates a client on top of an existing DynamoDB client.
func NewWithClient(ddb DDBClient, opts Options) datastore.Client {
	return &clientImpl{ddb: ddb, opts: opts}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see datastore/interface.go)
// --------------------------------------------------------------------------

func (c *clientImpl) Get(ctx context.Context, key *datastore.Key) (*datastore.Entity, error) {
	if err := datastore.ValidateKey(key); err != nil {
		return nil, err
	}
	resp, err := c.ddb.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(c.opts.Table),
		Key:            itemKey(key.Kind, key.ID),
		ConsistentRead: aws.Bool(c.opts.ConsistentRead),
	})
	if err != nil {
		return nil, wrapErr("get", err)
	}
	if len(resp.Item) == 0 {
		return nil, datastore.ErrNoSuchEntity
	}
	return entityFromItem(key.Kind, resp.Item)
}

func (c *clientImpl) RunQuery(ctx context.Context, q *datastore.Query) ([]*datastore.Entity, error) {
	paginator := dynamodb.NewQueryPaginator(c.ddb, &dynamodb.QueryInput{
		TableName:              aws.String(c.opts.Table),
		KeyConditionExpression: aws.String("#k = :kind AND #i > :seq"),
		ExpressionAttributeNames: map[string]string{
			"#k": attrKind,
			"#i": attrID,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":kind": &types.AttributeValueMemberS{Value: q.Kind},
			":seq":  &types.AttributeValueMemberN{Value: strconv.Itoa(sequenceID)},
		},
		ConsistentRead: aws.Bool(c.opts.ConsistentRead),
	})

	entities := make([]*datastore.Entity, 0)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, wrapErr("query", err)
		}
		for _, item := range page.Items {
			e, err := entityFromItem(q.Kind, item)
			if err != nil {
				return nil, err
			}
			entities = append(entities, e)
		}
	}
	return entities, nil
}

func (c *clientImpl) Save(ctx context.Context, key *datastore.Key, props []datastore.Property) (*datastore.Key, error) {
	if key == nil || key.Kind == "" {
		return nil, datastore.WithStatus(http.StatusBadRequest, errors.New("dynamods: key has no kind"))
	}

	data := make(map[string]types.AttributeValue, len(props))
	var unindexed []string
	for _, p := range props {
		av, err := toAttributeValue(p.Value)
		if err != nil {
			return nil, datastore.WithStatus(http.StatusBadRequest, fmt.Errorf("dynamods: property %s: %w", p.Name, err))
		}
		data[p.Name] = av
		if p.ExcludeFromIndexes {
			unindexed = append(unindexed, p.Name)
		}
	}

	id := key.ID
	if key.Incomplete() {
		var err error
		if id, err = c.allocateID(ctx, key.Kind); err != nil {
			return nil, err
		}
	} else if err := c.advanceSequence(ctx, key.Kind, id); err != nil {
		return nil, err
	}

	item := itemKey(key.Kind, id)
	item[attrData] = &types.AttributeValueMemberM{Value: data}
	if len(unindexed) > 0 {
		item[attrUnindexed] = &types.AttributeValueMemberSS{Value: unindexed}
	}

	_, err := c.ddb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.opts.Table),
		Item:      item,
	})
	if err != nil {
		return nil, wrapErr("put", err)
	}
	return datastore.IDKey(key.Kind, id), nil
}

func (c *clientImpl) Delete(ctx context.Context, key *datastore.Key) error {
	if err := datastore.ValidateKey(key); err != nil {
		return err
	}
	_, err := c.ddb.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(c.opts.Table),
		Key:       itemKey(key.Kind, key.ID),
	})
	return wrapErr("delete", err)
}

func (c *clientImpl) Close() error {
	return nil
}

// --------------------------------------------------------------------------
// Id sequence
// --------------------------------------------------------------------------

// allocateID atomically increments the sequence item of a kind and returns the new value.
func (c *clientImpl) allocateID(ctx context.Context, kind string) (int64, error) {
	resp, err := c.ddb.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                aws.String(c.opts.Table),
		Key:                      itemKey(kind, sequenceID),
		UpdateExpression:         aws.String("ADD #s :one"),
		ExpressionAttributeNames: map[string]string{"#s": attrSeq},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, wrapErr("allocate id", err)
	}
	seq, ok := resp.Attributes[attrSeq].(*types.AttributeValueMemberN)
	if !ok {
		return 0, errors.New("dynamods: sequence attribute missing in response")
	}
	id, err := strconv.ParseInt(seq.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("dynamods: invalid sequence value %q: %w", seq.Value, err)
	}
	return id, nil
}

// advanceSequence moves the sequence of a kind to id if it is behind, so that
// explicitly used ids are never allocated later on.
func (c *clientImpl) advanceSequence(ctx context.Context, kind string, id int64) error {
	_, err := c.ddb.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                aws.String(c.opts.Table),
		Key:                      itemKey(kind, sequenceID),
		UpdateExpression:         aws.String("SET #s = :id"),
		ConditionExpression:      aws.String("attribute_not_exists(#s) OR #s < :id"),
		ExpressionAttributeNames: map[string]string{"#s": attrSeq},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":id": &types.AttributeValueMemberN{Value: strconv.FormatInt(id, 10)},
		},
	})
	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		// sequence is already ahead
		return nil
	}
	return wrapErr("advance sequence", err)
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func itemKey(kind string, id int64) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrKind: &types.AttributeValueMemberS{Value: kind},
		attrID:   &types.AttributeValueMemberN{Value: strconv.FormatInt(id, 10)},
	}
}

func entityFromItem(kind string, item map[string]types.AttributeValue) (*datastore.Entity, error) {
	idAttr, ok := item[attrID].(*types.AttributeValueMemberN)
	if !ok {
		return nil, errors.New("dynamods: invalid id attribute")
	}
	id, err := strconv.ParseInt(idAttr.Value, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("dynamods: failed to parse id: %w", err)
	}

	data := make(map[string]interface{})
	if m, ok := item[attrData].(*types.AttributeValueMemberM); ok {
		for name, av := range m.Value {
			data[name] = fromAttributeValue(av)
		}
	}
	return &datastore.Entity{Key: datastore.IDKey(kind, id), Data: data}, nil
}

// wrapErr annotates an SDK error. The HTTP status of the response stays reachable for datastore.StatusOf.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var re *awshttp.ResponseError
	if errors.As(err, &re) {
		Logger.Debugf("dynamodb %s failed (request %s, status %d): %v", op, re.RequestID, re.HTTPStatusCode(), err)
	}
	return fmt.Errorf("dynamods: %s failed: %w", op, err)
}
