package dynamo

import (
	"context"
	"errors"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Cascade support for the stream handler. A repair plan that exceeds the
// transaction size limit is instead driven by TTL propagation: each item's
// TTL write triggers a stream event that expires its native descendants in
// turn. These operations are per-row and idempotent, not transactional.

// LinkSet names the outgoing link targets of one item row, as carried in a
// stream record image.
type LinkSet struct {
	ID             string
	Ascendant      string
	DescendantHead string
	PeerNext       string
	ContentRef     string
}

// MarkDeleted sets the item row's TTL, soft-deleting it. Already-deleted
// rows are left unchanged.
func (b *Backend) MarkDeleted(ctx context.Context, id string, ttl int64) error {
	_, err := b.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(b.config.ItemTable),
		Key:                 itemPK(id),
		UpdateExpression:    aws.String("SET #ttl = :ttl, #version = #version + :one"),
		ConditionExpression: aws.String("attribute_exists(id) AND attribute_not_exists(#ttl)"),
		ExpressionAttributeNames: map[string]string{
			"#ttl":     "ttl",
			"#version": "version",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":ttl": &types.AttributeValueMemberN{
				Value: strconv.FormatInt(ttl, 10),
			},
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
	})

	// Ignore condition failure - already has TTL (already deleted)
	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return nil
	}
	return err
}

// NativeDescendantRefs returns the ids of all items whose Ascendant is id,
// including already-deleted ones, so cascade propagation stays idempotent.
func (b *Backend) NativeDescendantRefs(ctx context.Context, id string) ([]string, error) {
	return b.queryLinkSources(ctx, kindAsc, id, false)
}

// DeleteSourceLinks hard-deletes the four outgoing link rows of a deleted
// item. Missing rows are a no-op.
func (b *Backend) DeleteSourceLinks(ctx context.Context, ls LinkSet) error {
	links := [][2]string{
		{kindAsc, ls.Ascendant},
		{kindHead, ls.DescendantHead},
		{kindPeer, ls.PeerNext},
		{kindContent, ls.ContentRef},
	}
	for _, l := range links {
		if l[1] == "" {
			continue
		}
		_, err := b.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(b.config.LinkTable),
			Key:       b.linkRowKey(l[0], l[1], ls.ID),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// ClearMountHead clears a stem's descendant head if it still points at the
// expected target, and removes the matching link row. Used when a cascaded
// subtree was mounted by a surviving foreign stem.
func (b *Backend) ClearMountHead(ctx context.Context, stemID, expectedHead string) error {
	_, err := b.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(b.config.ItemTable),
		Key:                 itemPK(stemID),
		UpdateExpression:    aws.String("SET #head = :empty, #version = #version + :one"),
		ConditionExpression: aws.String("#head = :expected"),
		ExpressionAttributeNames: map[string]string{
			"#head":    "descendant_head",
			"#version": "version",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":empty":    &types.AttributeValueMemberS{Value: ""},
			":expected": &types.AttributeValueMemberS{Value: expectedHead},
			":one":      &types.AttributeValueMemberN{Value: "1"},
		},
	})

	// Ignore condition failure - the stem moved on already
	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return nil
	}
	if err != nil {
		return err
	}

	_, err = b.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(b.config.LinkTable),
		Key:       b.linkRowKey(kindHead, expectedHead, stemID),
	})
	return err
}

// MountingStemRefs returns the ids of all items whose DescendantHead is id,
// including already-deleted ones.
func (b *Backend) MountingStemRefs(ctx context.Context, id string) ([]string, error) {
	return b.queryLinkSources(ctx, kindHead, id, false)
}
