package dynamo

import (
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/graft/store"
)

// Link record kinds in the link table.
const (
	kindAsc     = "asc"
	kindHead    = "head"
	kindPeer    = "peer"
	kindContent = "content"
)

// record is the item table row shape.
type record struct {
	ID             string `dynamodbav:"id"`
	ContentRef     string `dynamodbav:"content_ref"`
	Ascendant      string `dynamodbav:"ascendant"`
	DescendantHead string `dynamodbav:"descendant_head"`
	PeerNext       string `dynamodbav:"peer_next"`
	VisualRef      string `dynamodbav:"visual_ref"`
	Version        int64  `dynamodbav:"version"`
	CreatedAt      string `dynamodbav:"created_at"`
	UpdatedAt      string `dynamodbav:"updated_at"`
}

func recordFromItem(it *store.Item) record {
	return record{
		ID:             it.ID,
		ContentRef:     it.ContentRef,
		Ascendant:      it.Ascendant,
		DescendantHead: it.DescendantHead,
		PeerNext:       it.PeerNext,
		VisualRef:      it.VisualRef,
		Version:        it.Version,
		CreatedAt:      it.CreatedAt,
		UpdatedAt:      it.UpdatedAt,
	}
}

func (r record) item() *store.Item {
	return &store.Item{
		ID:             r.ID,
		ContentRef:     r.ContentRef,
		Ascendant:      r.Ascendant,
		DescendantHead: r.DescendantHead,
		PeerNext:       r.PeerNext,
		VisualRef:      r.VisualRef,
		Version:        r.Version,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

func marshalRecord(r record) (map[string]types.AttributeValue, error) {
	return attributevalue.MarshalMap(r)
}

func unmarshalRecord(raw map[string]types.AttributeValue) (record, error) {
	var r record
	err := attributevalue.UnmarshalMap(raw, &r)
	return r, err
}

func nowISO() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// IsDeleted checks if a row has an expired TTL (is marked for deletion).
func IsDeleted(item map[string]types.AttributeValue) bool {
	ttlAttr, exists := item["ttl"]
	if !exists {
		return false // No TTL = active
	}
	ttlNum, ok := ttlAttr.(*types.AttributeValueMemberN)
	if !ok {
		return false
	}
	ttl, err := strconv.ParseInt(ttlNum.Value, 10, 64)
	if err != nil {
		return false
	}
	return ttl <= time.Now().Unix()
}

// TTLFilterExpr returns the filter expression to exclude deleted rows.
func TTLFilterExpr() string {
	return "attribute_not_exists(#ttl) OR #ttl > :now"
}

// TTLFilterNames returns expression attribute names for the TTL filter.
func TTLFilterNames() map[string]string {
	return map[string]string{"#ttl": "ttl"}
}

// TTLFilterValues returns expression attribute values for the TTL filter.
func TTLFilterValues() map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		":now": &types.AttributeValueMemberN{
			Value: strconv.FormatInt(time.Now().Unix(), 10),
		},
	}
}
