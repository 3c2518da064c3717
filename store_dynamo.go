package flight

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoAPI captures the subset of DynamoDB client methods used by the store.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

const (
	dynamoEnsureTableMaxAttempts = 20
	dynamoEnsureTableRetryDelay  = 150 * time.Millisecond
	// BatchWriteItem accepts at most 25 requests.
	dynamoBatchWriteLimit = 25
)

// dynamoStore keeps one item per key: k (string hash key), v (binary value)
// and ea (expiry in unix milliseconds).
type dynamoStore struct {
	client     DynamoAPI
	table      string
	prefix     string
	defaultTTL time.Duration
}

func newDynamoStore(ctx context.Context, cfg StoreConfig) (Store, error) {
	client := cfg.DynamoClient
	if client == nil {
		built, err := newDynamoClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		client = built
	}
	table := cfg.DynamoTable
	if table == "" {
		table = defaultDynamoTable
	}
	if err := ensureDynamoTable(ctx, client, table); err != nil {
		return nil, err
	}
	ttl := cfg.DefaultTTL
	if ttl <= 0 {
		ttl = defaultStoreTTL
	}
	return &dynamoStore{
		client:     client,
		table:      table,
		prefix:     cfg.Prefix,
		defaultTTL: ttl,
	}, nil
}

func newDynamoClient(ctx context.Context, cfg StoreConfig) (*dynamodb.Client, error) {
	region := cfg.DynamoRegion
	if region == "" {
		region = defaultDynamoRegion
	}
	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.DynamoEndpoint != "" {
		// Local endpoints accept any credentials.
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("local", "local", "")))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	if cfg.DynamoEndpoint != "" {
		endpoint := cfg.DynamoEndpoint
		awsCfg.EndpointResolverWithOptions = aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{URL: endpoint, HostnameImmutable: true}, nil
		})
	}
	return dynamodb.NewFromConfig(awsCfg), nil
}

func (s *dynamoStore) Driver() Driver { return DriverDynamo }

func (s *dynamoStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            s.itemKey(s.storeKey(key)),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, false, err
	}
	if out.Item == nil {
		return nil, false, nil
	}
	if dynamoItemExpired(out.Item, time.Now()) {
		_ = s.Delete(ctx, key)
		return nil, false, nil
	}
	v, ok := out.Item["v"].(*types.AttributeValueMemberB)
	if !ok {
		return nil, false, errors.New("flight: dynamodb item missing binary value")
	}
	return cloneBytes(v.Value), true, nil
}

func (s *dynamoStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	if value == nil {
		value = []byte{}
	}
	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item: map[string]types.AttributeValue{
			"k":  &types.AttributeValueMemberS{Value: s.storeKey(key)},
			"v":  &types.AttributeValueMemberB{Value: cloneBytes(value)},
			"ea": &types.AttributeValueMemberN{Value: strconv.FormatInt(time.Now().Add(ttl).UnixMilli(), 10)},
		},
	})
	return err
}

func (s *dynamoStore) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key:       s.itemKey(s.storeKey(key)),
	})
	return err
}

// Flush scans the table and deletes the items under this store's prefix.
func (s *dynamoStore) Flush(ctx context.Context) error {
	scope := ""
	if s.prefix != "" {
		scope = s.prefix + ":"
	}
	var start map[string]types.AttributeValue
	for {
		out, err := s.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:            aws.String(s.table),
			ProjectionExpression: aws.String("k"),
			ExclusiveStartKey:    start,
		})
		if err != nil {
			return err
		}
		var keys []string
		for _, item := range out.Items {
			if k, ok := item["k"].(*types.AttributeValueMemberS); ok && strings.HasPrefix(k.Value, scope) {
				keys = append(keys, k.Value)
			}
		}
		if err := s.batchDelete(ctx, keys); err != nil {
			return err
		}
		if len(out.LastEvaluatedKey) == 0 {
			return nil
		}
		start = out.LastEvaluatedKey
	}
}

// batchDelete removes already-prefixed keys in chunks the API accepts.
func (s *dynamoStore) batchDelete(ctx context.Context, keys []string) error {
	for len(keys) > 0 {
		n := min(len(keys), dynamoBatchWriteLimit)
		writes := make([]types.WriteRequest, 0, n)
		for _, k := range keys[:n] {
			writes = append(writes, types.WriteRequest{DeleteRequest: &types.DeleteRequest{Key: s.itemKey(k)}})
		}
		if _, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{s.table: writes},
		}); err != nil {
			return err
		}
		keys = keys[n:]
	}
	return nil
}

func (s *dynamoStore) itemKey(storeKey string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"k": &types.AttributeValueMemberS{Value: storeKey}}
}

func (s *dynamoStore) storeKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + ":" + key
}

func dynamoItemExpired(item map[string]types.AttributeValue, now time.Time) bool {
	av, ok := item["ea"].(*types.AttributeValueMemberN)
	if !ok {
		return false
	}
	exp, err := strconv.ParseInt(av.Value, 10, 64)
	if err != nil {
		return false
	}
	return now.UnixMilli() > exp
}

// ensureDynamoTable creates table when missing, retrying while a local
// endpoint is still starting up.
func ensureDynamoTable(ctx context.Context, client DynamoAPI, table string) error {
	var lastErr error
	for attempt := 1; attempt <= dynamoEnsureTableMaxAttempts; attempt++ {
		err := describeOrCreateDynamoTable(ctx, client, table)
		if err == nil {
			return nil
		}
		if !isDynamoStartupRetryable(err) {
			return fmt.Errorf("ensure dynamo table %q: %w", table, err)
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(dynamoEnsureTableRetryDelay):
		}
	}
	return fmt.Errorf("ensure dynamo table %q: %w", table, lastErr)
}

func describeOrCreateDynamoTable(ctx context.Context, client DynamoAPI, table string) error {
	_, err := client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(table)})
	var notFound *types.ResourceNotFoundException
	if err == nil || !errors.As(err, &notFound) {
		return err
	}
	_, err = client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(table),
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("k"), KeyType: types.KeyTypeHash},
		},
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("k"), AttributeType: types.ScalarAttributeTypeS},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	var inUse *types.ResourceInUseException
	if errors.As(err, &inUse) {
		return nil
	}
	return err
}

func isDynamoStartupRetryable(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"request send failed", "connection reset by peer", "connection refused", "timeout", "eof"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
