package dynamo

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"context"

	"github.com/jacentio/graft/access"
	"github.com/jacentio/graft/internal/shard"
)

var _ access.GrantStore = (*Backend)(nil)

func grantRowKey(contentRef, userID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"pk":      &types.AttributeValueMemberS{Value: shard.GrantPK(contentRef)},
		"user_id": &types.AttributeValueMemberS{Value: userID},
	}
}

// PutGrant creates or replaces the grant for the pair.
func (b *Backend) PutGrant(ctx context.Context, contentRef, userID string, level access.Level) error {
	_, err := b.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(b.config.GrantTable),
		Item: map[string]types.AttributeValue{
			"pk":          &types.AttributeValueMemberS{Value: shard.GrantPK(contentRef)},
			"user_id":     &types.AttributeValueMemberS{Value: userID},
			"content_ref": &types.AttributeValueMemberS{Value: contentRef},
			"level":       &types.AttributeValueMemberS{Value: level.String()},
		},
	})
	return err
}

// GetGrant returns the grant level for the pair, if any.
func (b *Backend) GetGrant(ctx context.Context, contentRef, userID string) (access.Level, bool, error) {
	result, err := b.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(b.config.GrantTable),
		Key:            grantRowKey(contentRef, userID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return 0, false, err
	}
	if result.Item == nil {
		return 0, false, nil
	}
	raw, ok := result.Item["level"].(*types.AttributeValueMemberS)
	if !ok {
		return 0, false, nil
	}
	level, err := access.ParseLevel(raw.Value)
	if err != nil {
		return 0, false, err
	}
	return level, true, nil
}

// RevokeGrant removes the grant for the pair. Absent grants are a no-op.
func (b *Backend) RevokeGrant(ctx context.Context, contentRef, userID string) error {
	_, err := b.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(b.config.GrantTable),
		Key:       grantRowKey(contentRef, userID),
	})
	return err
}
