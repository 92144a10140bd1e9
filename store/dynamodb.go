package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/sicko7947/hrflow"
)

// DynamoDBStore implements hrflow.Store using AWS DynamoDB.
// Expired items are filtered on read because DynamoDB deletes TTL'd items lazily.
type DynamoDBStore struct {
	client    DynamoDBClient
	tableName string
	now       func() time.Time
}

// DynamoDBOption configures a DynamoDBStore
type DynamoDBOption func(*DynamoDBStore)

// WithDynamoDBClock overrides the clock used for TTL arithmetic
func WithDynamoDBClock(now func() time.Time) DynamoDBOption {
	return func(s *DynamoDBStore) {
		s.now = now
	}
}

// NewDynamoDBStore creates a new DynamoDB-backed store
func NewDynamoDBStore(client DynamoDBClient, tableName string, opts ...DynamoDBOption) *DynamoDBStore {
	s := &DynamoDBStore{
		client:    client,
		tableName: tableName,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ hrflow.Store = (*DynamoDBStore)(nil)

func itemKey(key, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		AttrPK: &types.AttributeValueMemberS{Value: key},
		AttrSK: &types.AttributeValueMemberS{Value: sk},
	}
}

func (s *DynamoDBStore) expired(ttl int64) bool {
	return ttl > 0 && ttl <= s.now().Unix()
}

// Value operations

func (s *DynamoDBStore) Get(ctx context.Context, key string) ([]byte, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            itemKey(key, valueSK()),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}

	if result.Item == nil {
		return nil, hrflow.ErrKeyNotFound
	}

	var item valueItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}

	if s.expired(item.TTL) {
		return nil, hrflow.ErrKeyNotFound
	}

	return item.Data, nil
}

func (s *DynamoDBStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	now := s.now()
	item := valueItem{
		PK:         key,
		SK:         valueSK(),
		EntityType: EntityTypeValue,
		Data:       value,
		UpdatedAt:  now.UTC().Format(time.RFC3339),
	}
	if ttl > 0 {
		item.TTL = now.Add(ttl).Unix()
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}

	return nil
}

// Delete removes both the value and the set stored under key
func (s *DynamoDBStore) Delete(ctx context.Context, key string) error {
	_, err := s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Delete: &types.Delete{
					TableName: aws.String(s.tableName),
					Key:       itemKey(key, valueSK()),
				},
			},
			{
				Delete: &types.Delete{
					TableName: aws.String(s.tableName),
					Key:       itemKey(key, setSK()),
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}

	return nil
}

func (s *DynamoDBStore) Exists(ctx context.Context, key string) (bool, error) {
	var lastEvaluatedKey map[string]types.AttributeValue

	// Paginate through all results
	for {
		queryInput := &dynamodb.QueryInput{
			TableName:              aws.String(s.tableName),
			KeyConditionExpression: aws.String("PK = :pk"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk": &types.AttributeValueMemberS{Value: key},
			},
			ConsistentRead: aws.Bool(true),
		}

		if lastEvaluatedKey != nil {
			queryInput.ExclusiveStartKey = lastEvaluatedKey
		}

		result, err := s.client.Query(ctx, queryInput)
		if err != nil {
			return false, fmt.Errorf("failed to check %s: %w", key, err)
		}

		for _, av := range result.Items {
			sk, ok := av[AttrSK].(*types.AttributeValueMemberS)
			if !ok {
				continue
			}

			switch sk.Value {
			case valueSK():
				var item valueItem
				if err := attributevalue.UnmarshalMap(av, &item); err != nil {
					return false, fmt.Errorf("failed to unmarshal %s: %w", key, err)
				}
				if !s.expired(item.TTL) {
					return true, nil
				}
			case setSK():
				var item setItem
				if err := attributevalue.UnmarshalMap(av, &item); err != nil {
					return false, fmt.Errorf("failed to unmarshal %s: %w", key, err)
				}
				if len(item.Members) > 0 {
					return true, nil
				}
			}
		}

		// Check if there are more results
		if result.LastEvaluatedKey == nil {
			break
		}
		lastEvaluatedKey = result.LastEvaluatedKey
	}

	return false, nil
}

// Set operations

func (s *DynamoDBStore) AddMember(ctx context.Context, key, member string) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(s.tableName),
		Key:              itemKey(key, setSK()),
		UpdateExpression: aws.String("ADD #members :m SET #type = :type"),
		ExpressionAttributeNames: map[string]string{
			"#members": AttrMembers,
			"#type":    AttrEntityType,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":m":    &types.AttributeValueMemberSS{Value: []string{member}},
			":type": &types.AttributeValueMemberS{Value: EntityTypeSet},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to add member to %s: %w", key, err)
	}

	return nil
}

func (s *DynamoDBStore) RemoveMember(ctx context.Context, key, member string) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(s.tableName),
		Key:              itemKey(key, setSK()),
		UpdateExpression: aws.String("DELETE #members :m"),
		ExpressionAttributeNames: map[string]string{
			"#members": AttrMembers,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":m": &types.AttributeValueMemberSS{Value: []string{member}},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to remove member from %s: %w", key, err)
	}

	return nil
}

func (s *DynamoDBStore) Members(ctx context.Context, key string) ([]string, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            itemKey(key, setSK()),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get members of %s: %w", key, err)
	}

	if result.Item == nil {
		return []string{}, nil
	}

	var item setItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal members of %s: %w", key, err)
	}

	members := append([]string{}, item.Members...)
	sort.Strings(members)
	return members, nil
}

func (s *DynamoDBStore) Ping(ctx context.Context) error {
	_, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key:       itemKey("__ping__", valueSK()),
	})
	if err != nil {
		return fmt.Errorf("dynamodb ping failed: %w", err)
	}
	return nil
}

func (s *DynamoDBStore) Close() error {
	return nil
}

// EnsureTable creates the table with PK/SK keys and TTL enabled when it does not exist yet
func EnsureTable(ctx context.Context, admin DynamoDBAdmin, tableName string) error {
	_, err := admin.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(tableName),
	})
	if err == nil {
		return nil
	}

	var notFound *types.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		return fmt.Errorf("failed to describe table %s: %w", tableName, err)
	}

	_, err = admin.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(tableName),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(AttrPK), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String(AttrSK), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(AttrPK), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String(AttrSK), KeyType: types.KeyTypeRange},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		return fmt.Errorf("failed to create table %s: %w", tableName, err)
	}

	// Wait for table to be active
	waiter := dynamodb.NewTableExistsWaiter(admin)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(tableName),
	}, 2*time.Minute); err != nil {
		return fmt.Errorf("table %s did not become active: %w", tableName, err)
	}

	_, err = admin.UpdateTimeToLive(ctx, &dynamodb.UpdateTimeToLiveInput{
		TableName: aws.String(tableName),
		TimeToLiveSpecification: &types.TimeToLiveSpecification{
			AttributeName: aws.String(AttrTTL),
			Enabled:       aws.Bool(true),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to enable ttl on %s: %w", tableName, err)
	}

	return nil
}
