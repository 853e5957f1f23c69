package history

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog/log"
)

// DynamoDB key constants for the single-table design. Each workspace owns a
// partition; one item per feature key holds that feature's serialized list.
const (
	pkPrefix = "WORKSPACE#"
	skPrefix = "STATE#"

	// StateTTL bounds how long an idle workspace's lists survive.
	StateTTL = 30 * 24 * time.Hour

	// maxDynamoItemBytes is the DynamoDB hard limit for a single item. The
	// payload budget stays a little under it to leave room for key and TTL
	// attributes.
	maxDynamoItemBytes = 400_000
	payloadBudgetBytes = maxDynamoItemBytes - 4_096
)

// stateRecord is the persisted item shape. PK, SK and expiresAt are added by
// the write path.
type stateRecord struct {
	Payload []byte `dynamodbav:"payload"`
}

// DynamoKV implements KV on a shared DynamoDB table, keyed by workspace.
// Oversized payloads are reported as ErrValueTooLarge before the call so the
// stores prune rather than burn a rejected write.
type DynamoKV struct {
	client      *dynamodb.Client
	tableName   string
	workspaceID string
}

var _ KV = (*DynamoKV)(nil)

// NewDynamoKV returns a KV bound to one workspace's partition. The client
// should come from the shared AWS config.
func NewDynamoKV(client *dynamodb.Client, tableName, workspaceID string) *DynamoKV {
	return &DynamoKV{
		client:      client,
		tableName:   tableName,
		workspaceID: workspaceID,
	}
}

func (d *DynamoKV) pk() string {
	return pkPrefix + d.workspaceID
}

func sk(key string) string {
	return skPrefix + key
}

// Get reads one feature's serialized list.
func (d *DynamoKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	result, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &d.tableName,
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: d.pk()},
			"SK": &types.AttributeValueMemberS{Value: sk(key)},
		},
	})
	if err != nil {
		return nil, false, fmt.Errorf("GetItem PK=%s SK=%s: %w", d.pk(), sk(key), err)
	}
	if result.Item == nil {
		return nil, false, nil
	}

	var record stateRecord
	if err := attributevalue.UnmarshalMap(result.Item, &record); err != nil {
		return nil, false, fmt.Errorf("unmarshal PK=%s SK=%s: %w", d.pk(), sk(key), err)
	}
	return record.Payload, true, nil
}

// Set writes one feature's serialized list with a refreshed TTL.
func (d *DynamoKV) Set(ctx context.Context, key string, value []byte) error {
	if len(value) > payloadBudgetBytes {
		return fmt.Errorf("%w: %d bytes exceeds item budget %d", ErrValueTooLarge, len(value), payloadBudgetBytes)
	}

	item, err := attributevalue.MarshalMap(stateRecord{Payload: value})
	if err != nil {
		return fmt.Errorf("marshal state for %s: %w", key, err)
	}
	item["PK"] = &types.AttributeValueMemberS{Value: d.pk()}
	item["SK"] = &types.AttributeValueMemberS{Value: sk(key)}
	item["expiresAt"] = &types.AttributeValueMemberN{
		Value: strconv.FormatInt(time.Now().Add(StateTTL).Unix(), 10),
	}

	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &d.tableName,
		Item:      item,
	})
	if err != nil {
		if isItemSizeError(err) {
			return fmt.Errorf("%w: %v", ErrValueTooLarge, err)
		}
		return fmt.Errorf("PutItem PK=%s SK=%s: %w", d.pk(), sk(key), err)
	}

	log.Debug().
		Str("workspaceId", d.workspaceID).
		Str("key", key).
		Int("bytes", len(value)).
		Msg("State persisted to DynamoDB")
	return nil
}

// Delete removes one feature's item.
func (d *DynamoKV) Delete(ctx context.Context, key string) error {
	_, err := d.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: &d.tableName,
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: d.pk()},
			"SK": &types.AttributeValueMemberS{Value: sk(key)},
		},
	})
	if err != nil {
		return fmt.Errorf("DeleteItem PK=%s SK=%s: %w", d.pk(), sk(key), err)
	}
	return nil
}

// isItemSizeError recognizes the service-side rejection for an item above
// the 400KB limit, in case a payload slips past the local budget check.
func isItemSizeError(err error) bool {
	return strings.Contains(err.Error(), "Item size has exceeded the maximum allowed size")
}
