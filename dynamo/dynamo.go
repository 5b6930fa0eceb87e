// Package dynamo implements the graft backend on DynamoDB.
//
// Every logical mutation is one TransactWriteItems call: the item rows and
// the adjacency link rows commit or fail together, with condition
// expressions enforcing existence and optimistic version checks. Deletes
// are TTL soft deletes; reads filter expired rows. The link table replaces
// secondary indexes so adjacency reads are strongly consistent with
// committed writes.
//
// # Consistency
//
// View provides per-item read-committed consistency, not a snapshot;
// deployments that need snapshot traversal semantics should prefer the
// badgerstore backend or accept that a concurrent mutation may be
// partially visible across the steps of one walk.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/graft/internal/shard"
	"github.com/jacentio/graft/store"
)

// maxTransactItems is the DynamoDB TransactWriteItems op limit.
const maxTransactItems = 100

// ErrTransactionTooLarge is returned when a repair plan does not fit in one
// transaction. Oversized cascades should go through the stream handler's
// TTL propagation instead.
var ErrTransactionTooLarge = errors.New("dynamo: repair plan exceeds transaction size limit")

// Backend is a store.Backend over DynamoDB tables.
type Backend struct {
	client *dynamodb.Client
	config Config
}

var _ store.Backend = (*Backend)(nil)

// New creates a new Backend instance.
func New(client *dynamodb.Client, config Config) *Backend {
	config.validate()
	return &Backend{
		client: client,
		config: config,
	}
}

// GetItem retrieves an item row, returning ErrNotFound if missing or
// soft-deleted.
func (b *Backend) GetItem(ctx context.Context, id string) (*store.Item, error) {
	result, err := b.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(b.config.ItemTable),
		Key:            itemPK(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if result.Item == nil || IsDeleted(result.Item) {
		return nil, store.ErrNotFound
	}
	rec, err := unmarshalRecord(result.Item)
	if err != nil {
		return nil, err
	}
	return rec.item(), nil
}

// NativeDescendants returns all active items whose Ascendant is id.
func (b *Backend) NativeDescendants(ctx context.Context, id string) ([]*store.Item, error) {
	return b.itemsByLink(ctx, kindAsc, id)
}

// MountingStems returns all active items whose DescendantHead is id.
func (b *Backend) MountingStems(ctx context.Context, id string) ([]*store.Item, error) {
	return b.itemsByLink(ctx, kindHead, id)
}

// PeerPredecessors returns all active items whose PeerNext is id.
func (b *Backend) PeerPredecessors(ctx context.Context, id string) ([]*store.Item, error) {
	return b.itemsByLink(ctx, kindPeer, id)
}

// ItemsByContent returns all active items referencing the given content.
func (b *Backend) ItemsByContent(ctx context.Context, contentRef string) ([]*store.Item, error) {
	return b.itemsByLink(ctx, kindContent, contentRef)
}

// View runs fn against the backend itself. DynamoDB offers no multi-item
// read snapshot; each step of the walk sees read-committed state.
func (b *Backend) View(ctx context.Context, fn func(r store.ItemReader) error) error {
	return fn(b)
}

func (b *Backend) itemsByLink(ctx context.Context, kind, target string) ([]*store.Item, error) {
	ids, err := b.queryLinkSources(ctx, kind, target, true)
	if err != nil {
		return nil, err
	}
	var items []*store.Item
	for _, id := range ids {
		it, err := b.GetItem(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, nil
}

// queryLinkSources returns the source ids of a target's link rows.
// activeOnly filters TTL-expired rows.
func (b *Backend) queryLinkSources(ctx context.Context, kind, target string, activeOnly bool) ([]string, error) {
	numShards := b.config.NumShards
	if numShards < 1 {
		numShards = 1
	}

	// Fast path for single shard (default)
	if numShards == 1 {
		return b.queryLinkShard(ctx, shard.LinkShardPK(kind, target, 0), activeOnly)
	}

	// Multi-shard fan-out
	var mu sync.Mutex
	var all []string
	var wg sync.WaitGroup
	errs := make(chan error, numShards)

	for shardNum := 0; shardNum < numShards; shardNum++ {
		wg.Add(1)
		go func(shardNum int) {
			defer wg.Done()

			sources, err := b.queryLinkShard(ctx, shard.LinkShardPK(kind, target, shardNum), activeOnly)
			if err != nil {
				errs <- fmt.Errorf("shard %02x: %w", shardNum, err)
				return
			}
			mu.Lock()
			all = append(all, sources...)
			mu.Unlock()
		}(shardNum)
	}

	go func() {
		wg.Wait()
		close(errs)
	}()

	for err := range errs {
		if err != nil {
			return nil, err
		}
	}

	return all, nil
}

func (b *Backend) queryLinkShard(ctx context.Context, pk string, activeOnly bool) ([]string, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(b.config.LinkTable),
		KeyConditionExpression: aws.String("pk = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: pk},
		},
		ConsistentRead: aws.Bool(true),
	}
	if activeOnly {
		input.FilterExpression = aws.String(TTLFilterExpr())
		input.ExpressionAttributeNames = TTLFilterNames()
		input.ExpressionAttributeValues[":now"] = TTLFilterValues()[":now"]
	}

	var sources []string
	paginator := dynamodb.NewQueryPaginator(b.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, row := range page.Items {
			if v, ok := row["source_id"].(*types.AttributeValueMemberS); ok {
				sources = append(sources, v.Value)
			}
		}
	}
	return sources, nil
}

func itemPK(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberS{Value: id},
	}
}

func (b *Backend) linkRowKey(kind, target, source string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"pk":        &types.AttributeValueMemberS{Value: shard.LinkPK(kind, target, source, b.config.NumShards)},
		"source_id": &types.AttributeValueMemberS{Value: source},
	}
}

// opKind tracks what each transact item represents, for error mapping.
type opKind int

const (
	opLink opKind = iota
	opPut
	opUpdate
	opDelete
)

// Apply applies the batch as one TransactWriteItems call.
func (b *Backend) Apply(ctx context.Context, tx *store.Tx) error {
	var items []types.TransactWriteItem
	var kinds []opKind
	now := nowISO()
	nowUnix := time.Now().Unix()

	for _, op := range tx.Ops {
		var err error
		switch {
		case op.Put != nil:
			err = b.buildPut(&items, &kinds, op.Put, now)
		case op.Update != nil:
			b.buildUpdate(&items, &kinds, op.Update, now)
		case op.Delete != nil:
			b.buildDelete(&items, &kinds, op.Delete, nowUnix)
		}
		if err != nil {
			return err
		}
	}

	if len(items) > maxTransactItems {
		return ErrTransactionTooLarge
	}

	_, err := b.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	})
	return mapTransactionError(err, kinds)
}

func (b *Backend) buildPut(items *[]types.TransactWriteItem, kinds *[]opKind, it *store.Item, now string) error {
	rec := recordFromItem(it)
	rec.Version = 1
	rec.CreatedAt = now
	rec.UpdatedAt = now

	row, err := marshalRecord(rec)
	if err != nil {
		return fmt.Errorf("marshal item: %w", err)
	}

	*items = append(*items, types.TransactWriteItem{
		Put: &types.Put{
			TableName:           aws.String(b.config.ItemTable),
			Item:                row,
			ConditionExpression: aws.String("attribute_not_exists(id)"),
		},
	})
	*kinds = append(*kinds, opPut)

	links := [][2]string{
		{kindAsc, it.Ascendant},
		{kindHead, it.DescendantHead},
		{kindPeer, it.PeerNext},
		{kindContent, it.ContentRef},
	}
	for _, l := range links {
		if l[1] == "" {
			continue
		}
		*items = append(*items, types.TransactWriteItem{
			Put: &types.Put{
				TableName: aws.String(b.config.LinkTable),
				Item: map[string]types.AttributeValue{
					"pk":        &types.AttributeValueMemberS{Value: shard.LinkPK(l[0], l[1], it.ID, b.config.NumShards)},
					"source_id": &types.AttributeValueMemberS{Value: it.ID},
					"kind":      &types.AttributeValueMemberS{Value: l[0]},
					"target":    &types.AttributeValueMemberS{Value: l[1]},
				},
			},
		})
		*kinds = append(*kinds, opLink)
	}
	return nil
}

func (b *Backend) buildUpdate(items *[]types.TransactWriteItem, kinds *[]opKind, u *store.PointerUpdate, now string) {
	names := map[string]string{
		"#version":    "version",
		"#updated_at": "updated_at",
		"#ttl":        "ttl",
	}
	values := map[string]types.AttributeValue{
		":expected":   &types.AttributeValueMemberN{Value: strconv.FormatInt(u.ExpectedVersion, 10)},
		":one":        &types.AttributeValueMemberN{Value: "1"},
		":updated_at": &types.AttributeValueMemberS{Value: now},
	}
	set := []string{"#version = #version + :one", "#updated_at = :updated_at"}

	if u.SetHead {
		names["#head"] = "descendant_head"
		values[":head"] = &types.AttributeValueMemberS{Value: u.NewHead}
		set = append(set, "#head = :head")
		b.moveLink(items, kinds, kindHead, u.OldHead, u.NewHead, u.ID)
	}
	if u.SetPeer {
		names["#peer"] = "peer_next"
		values[":peer"] = &types.AttributeValueMemberS{Value: u.NewPeer}
		set = append(set, "#peer = :peer")
		b.moveLink(items, kinds, kindPeer, u.OldPeer, u.NewPeer, u.ID)
	}
	if u.SetVisual {
		names["#visual"] = "visual_ref"
		values[":visual"] = &types.AttributeValueMemberS{Value: u.NewVisual}
		set = append(set, "#visual = :visual")
	}

	*items = append(*items, types.TransactWriteItem{
		Update: &types.Update{
			TableName:                 aws.String(b.config.ItemTable),
			Key:                       itemPK(u.ID),
			UpdateExpression:          aws.String("SET " + joinStrings(set, ", ")),
			ConditionExpression:       aws.String("#version = :expected AND attribute_not_exists(#ttl)"),
			ExpressionAttributeNames:  names,
			ExpressionAttributeValues: values,
		},
	})
	*kinds = append(*kinds, opUpdate)
}

func (b *Backend) moveLink(items *[]types.TransactWriteItem, kinds *[]opKind, kind, oldTarget, newTarget, source string) {
	if oldTarget == newTarget {
		return
	}
	if oldTarget != "" {
		*items = append(*items, types.TransactWriteItem{
			Delete: &types.Delete{
				TableName: aws.String(b.config.LinkTable),
				Key:       b.linkRowKey(kind, oldTarget, source),
			},
		})
		*kinds = append(*kinds, opLink)
	}
	if newTarget != "" {
		*items = append(*items, types.TransactWriteItem{
			Put: &types.Put{
				TableName: aws.String(b.config.LinkTable),
				Item: map[string]types.AttributeValue{
					"pk":        &types.AttributeValueMemberS{Value: shard.LinkPK(kind, newTarget, source, b.config.NumShards)},
					"source_id": &types.AttributeValueMemberS{Value: source},
					"kind":      &types.AttributeValueMemberS{Value: kind},
					"target":    &types.AttributeValueMemberS{Value: newTarget},
				},
			},
		})
		*kinds = append(*kinds, opLink)
	}
}

func (b *Backend) buildDelete(items *[]types.TransactWriteItem, kinds *[]opKind, it *store.Item, nowUnix int64) {
	*items = append(*items, types.TransactWriteItem{
		Update: &types.Update{
			TableName:           aws.String(b.config.ItemTable),
			Key:                 itemPK(it.ID),
			UpdateExpression:    aws.String("SET #ttl = :now"),
			ConditionExpression: aws.String("attribute_exists(id) AND attribute_not_exists(#ttl)"),
			ExpressionAttributeNames: map[string]string{
				"#ttl": "ttl",
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":now": &types.AttributeValueMemberN{
					Value: strconv.FormatInt(nowUnix, 10),
				},
			},
		},
	})
	*kinds = append(*kinds, opDelete)

	links := [][2]string{
		{kindAsc, it.Ascendant},
		{kindHead, it.DescendantHead},
		{kindPeer, it.PeerNext},
		{kindContent, it.ContentRef},
	}
	for _, l := range links {
		if l[1] == "" {
			continue
		}
		*items = append(*items, types.TransactWriteItem{
			Delete: &types.Delete{
				TableName: aws.String(b.config.LinkTable),
				Key:       b.linkRowKey(l[0], l[1], it.ID),
			},
		})
		*kinds = append(*kinds, opLink)
	}
}

// mapTransactionError maps DynamoDB transaction cancellations onto the
// store's error taxonomy using each op's role in the batch.
func mapTransactionError(err error, kinds []opKind) error {
	if err == nil {
		return nil
	}

	var txErr *types.TransactionCanceledException
	if errors.As(err, &txErr) {
		for i, reason := range txErr.CancellationReasons {
			if reason.Code == nil || *reason.Code != "ConditionalCheckFailed" {
				continue
			}
			if i >= len(kinds) {
				break
			}
			switch kinds[i] {
			case opPut:
				return store.ErrAlreadyExists
			case opUpdate:
				return store.ErrConcurrentModification
			case opDelete:
				return store.ErrNotFound
			}
		}
	}

	return err
}

// joinStrings joins strings with a separator (avoiding strings package import).
func joinStrings(strs []string, sep string) string {
	if len(strs) == 0 {
		return ""
	}
	result := strs[0]
	for _, s := range strs[1:] {
		result += sep + s
	}
	return result
}
