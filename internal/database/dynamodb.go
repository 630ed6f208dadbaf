package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/pbitips/workload/internal/model"
	"github.com/pkg/errors"
)

// Reserved DynamoDB attribute names.
const (
	attributePartitionKey = "PartitionKey"
	attributeRowKey       = "RowKey"
	attributeVersion      = "Version"
)

// DynamoDBTableTimeout is the maximum time waited for a created table to become active.
var DynamoDBTableTimeout = 2 * time.Minute

type dynamo struct {
	client *dynamodb.Client
}

// DynamoDBOpen returns a new DynamoDB client.
// The endpoint overrides the resolved AWS endpoint (e.g. DynamoDB Local) when not empty.
func DynamoDBOpen(ctx context.Context, region, endpoint string) (Client, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "could not load AWS configuration")
	}

	client := dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	return &dynamo{
		client: client,
	}, nil
}

func (c *dynamo) Init(ctx context.Context, table string) error {
	_, err := c.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName:   aws.String(table),
		BillingMode: types.BillingModePayPerRequest,
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(attributePartitionKey), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String(attributeRowKey), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(attributePartitionKey), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String(attributeRowKey), KeyType: types.KeyTypeRange},
		},
	})

	var inUse *types.ResourceInUseException
	if err != nil && !errors.As(err, &inUse) {
		return errors.Wrapf(err, "could not create table %s", table)
	}

	waiter := dynamodb.NewTableExistsWaiter(c.client)
	err = waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(table)}, DynamoDBTableTimeout)
	return errors.Wrapf(err, "table %s is not active", table)
}

func (c *dynamo) Get(ctx context.Context, table, partitionKey, rowKey string) (*model.Record, error) {
	out, err := c.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(table),
		Key:            dynamoKey(partitionKey, rowKey),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, errors.Wrap(err, "could not get record")
	}
	if out.Item == nil {
		return nil, errors.Wrapf(ErrNotFound, "%s/%s", partitionKey, rowKey)
	}

	return unmarshalDynamoRecord(out.Item)
}

func (c *dynamo) ScanByPartition(ctx context.Context, table, partitionKey string) ([]*model.Record, error) {
	return c.ScanByFilter(ctx, table, Filter{PartitionKey: partitionKey})
}

func (c *dynamo) ScanByFilter(ctx context.Context, table string, filter Filter) ([]*model.Record, error) {
	expr := dynamoFilterExpression(filter)

	var names map[string]string
	if len(expr.names) > 0 {
		names = expr.names
	}
	var values map[string]types.AttributeValue
	if len(expr.values) > 0 {
		values = expr.values
	}
	var filterExpression *string
	if expr.filter != "" {
		filterExpression = aws.String(expr.filter)
	}

	records := make([]*model.Record, 0)
	collect := func(items []map[string]types.AttributeValue) error {
		for _, item := range items {
			r, err := unmarshalDynamoRecord(item)
			if err != nil {
				return err
			}
			records = append(records, r)
		}
		return nil
	}

	if filter.PartitionKey != "" {
		paginator := dynamodb.NewQueryPaginator(c.client, &dynamodb.QueryInput{
			TableName:                 aws.String(table),
			KeyConditionExpression:    aws.String(expr.keyCondition),
			FilterExpression:          filterExpression,
			ExpressionAttributeNames:  names,
			ExpressionAttributeValues: values,
			ConsistentRead:            aws.Bool(true),
		})
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				return nil, errors.Wrap(err, "could not query records")
			}
			if err = collect(page.Items); err != nil {
				return nil, err
			}
		}
		return records, nil
	}

	paginator := dynamodb.NewScanPaginator(c.client, &dynamodb.ScanInput{
		TableName:                 aws.String(table),
		FilterExpression:          filterExpression,
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
		ConsistentRead:            aws.Bool(true),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "could not scan records")
		}
		if err = collect(page.Items); err != nil {
			return nil, err
		}
	}
	return records, nil
}

func (c *dynamo) Create(ctx context.Context, table string, r *model.Record) error {
	item, err := marshalDynamoRecord(r, 1)
	if err != nil {
		return err
	}

	_, err = c.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(table),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_not_exists(#rk)"),
		ExpressionAttributeNames: map[string]string{"#rk": attributeRowKey},
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return errors.Wrapf(ErrAlreadyExists, "%s/%s", r.PartitionKey, r.RowKey)
		}
		return errors.Wrap(err, "could not create record")
	}

	r.Version = 1
	return nil
}

func (c *dynamo) Update(ctx context.Context, table string, r *model.Record) error {
	item, err := marshalDynamoRecord(r, r.Version+1)
	if err != nil {
		return err
	}

	_, err = c.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(table),
		Item:                item,
		ConditionExpression: aws.String("attribute_exists(#rk) AND #v = :expected"),
		ExpressionAttributeNames: map[string]string{
			"#rk": attributeRowKey,
			"#v":  attributeVersion,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":expected": &types.AttributeValueMemberN{Value: fmt.Sprint(r.Version)},
		},
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			if len(condErr.Item) == 0 {
				return errors.Wrapf(ErrNotFound, "%s/%s", r.PartitionKey, r.RowKey)
			}
			return errors.Wrapf(ErrConcurrentModification, "%s/%s: expected version %d", r.PartitionKey, r.RowKey, r.Version)
		}
		return errors.Wrap(err, "could not update record")
	}

	r.Version++
	return nil
}

func (c *dynamo) Delete(ctx context.Context, table, partitionKey, rowKey string) error {
	_, err := c.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                aws.String(table),
		Key:                      dynamoKey(partitionKey, rowKey),
		ConditionExpression:      aws.String("attribute_exists(#rk)"),
		ExpressionAttributeNames: map[string]string{"#rk": attributeRowKey},
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return errors.Wrapf(ErrNotFound, "%s/%s", partitionKey, rowKey)
		}
		return errors.Wrap(err, "could not delete record")
	}
	return nil
}

// Close is a no-op, the HTTP client is shared by the SDK.
func (c *dynamo) Close() error {
	return nil
}

func (c *dynamo) IsNotFound(err error) bool {
	return isCause(err, ErrNotFound)
}

func (c *dynamo) IsAlreadyExists(err error) bool {
	return isCause(err, ErrAlreadyExists)
}

func (c *dynamo) IsConcurrentModification(err error) bool {
	return isCause(err, ErrConcurrentModification)
}

//
// Helpers
//

func dynamoKey(partitionKey, rowKey string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attributePartitionKey: &types.AttributeValueMemberS{Value: partitionKey},
		attributeRowKey:       &types.AttributeValueMemberS{Value: rowKey},
	}
}

// marshalDynamoRecord flattens the record properties next to its keys.
func marshalDynamoRecord(r *model.Record, version int64) (map[string]types.AttributeValue, error) {
	for _, name := range []string{attributePartitionKey, attributeRowKey, attributeVersion} {
		if _, ok := r.Properties[name]; ok {
			return nil, errors.Errorf("property %s is reserved", name)
		}
	}

	item, err := attributevalue.MarshalMap(map[string]any(r.Properties))
	if err != nil {
		return nil, errors.Wrap(err, "could not marshal record")
	}

	for k, v := range dynamoKey(r.PartitionKey, r.RowKey) {
		item[k] = v
	}
	item[attributeVersion] = &types.AttributeValueMemberN{Value: fmt.Sprint(version)}
	return item, nil
}

func unmarshalDynamoRecord(item map[string]types.AttributeValue) (*model.Record, error) {
	properties := model.Properties{}
	if err := attributevalue.UnmarshalMap(item, &properties); err != nil {
		return nil, errors.Wrap(err, "could not unmarshal record")
	}

	r := &model.Record{
		PartitionKey: properties.String(attributePartitionKey),
		RowKey:       properties.String(attributeRowKey),
		Version:      properties.Int64(attributeVersion),
		Properties:   properties,
	}
	delete(properties, attributePartitionKey)
	delete(properties, attributeRowKey)
	delete(properties, attributeVersion)

	return r, nil
}

type dynamoExpression struct {
	keyCondition string
	filter       string
	names        map[string]string
	values       map[string]types.AttributeValue
}

// dynamoFilterExpression builds the key condition and filter expressions of the given filter.
func dynamoFilterExpression(f Filter) dynamoExpression {
	expr := dynamoExpression{
		names:  map[string]string{},
		values: map[string]types.AttributeValue{},
	}

	if f.PartitionKey != "" {
		expr.keyCondition = "#pk = :pk"
		expr.names["#pk"] = attributePartitionKey
		expr.values[":pk"] = &types.AttributeValueMemberS{Value: f.PartitionKey}
	}

	var conditions []string
	for i, name := range f.equalNames() {
		n, v := fmt.Sprintf("#e%d", i), fmt.Sprintf(":e%d", i)
		expr.names[n] = name
		expr.values[v] = dynamoValue(f.Equal[name])

		condition := fmt.Sprintf("%s = %s", n, v)
		if b, ok := f.Equal[name].(bool); ok && !b {
			// A missing boolean property is false.
			condition = fmt.Sprintf("(attribute_not_exists(%s) OR %s)", n, condition)
		}
		conditions = append(conditions, condition)
	}

	if f.Search.Text != "" && len(f.Search.Properties) > 0 {
		expr.values[":search"] = &types.AttributeValueMemberS{Value: f.Search.Text}

		var search []string
		for i, name := range f.Search.Properties {
			n := fmt.Sprintf("#s%d", i)
			expr.names[n] = name
			search = append(search, fmt.Sprintf("contains(%s, :search)", n))
		}
		conditions = append(conditions, "("+strings.Join(search, " OR ")+")")
	}

	expr.filter = strings.Join(conditions, " AND ")
	return expr
}

func dynamoValue(v any) types.AttributeValue {
	if n, ok := model.ToInt64(v); ok {
		return &types.AttributeValueMemberN{Value: fmt.Sprint(n)}
	}

	switch x := v.(type) {
	case bool:
		return &types.AttributeValueMemberBOOL{Value: x}
	case nil:
		return &types.AttributeValueMemberNULL{Value: true}
	default:
		return &types.AttributeValueMemberS{Value: fmt.Sprint(x)}
	}
}
