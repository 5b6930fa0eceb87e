// Package stream provides DynamoDB Streams handlers for cascade deletion.
//
// The synchronous delete path commits a whole repair plan in one
// transaction, which caps the cascade at the transaction size limit. For
// larger subtrees the deployment marks the victim's TTL instead and lets
// this handler propagate: every TTL write triggers a stream event that
// expires the row's native descendants, clears surviving mounts, and
// removes the row's link records. Propagation is idempotent and retried by
// the stream until it settles.
package stream

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/aws/aws-lambda-go/events"

	"github.com/jacentio/graft/dynamo"
)

// Handler processes item-table stream events for cascade deletes.
type Handler struct {
	backend *dynamo.Backend
	logger  *slog.Logger
}

// NewHandler creates a new stream handler.
func NewHandler(b *dynamo.Backend, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		backend: b,
		logger:  logger,
	}
}

// HandleCascadeDelete processes item-table stream events to propagate TTL
// to native descendants. This function is designed to be used as an AWS
// Lambda handler.
func (h *Handler) HandleCascadeDelete(ctx context.Context, event events.DynamoDBEvent) error {
	for i := range event.Records {
		record := &event.Records[i]
		if err := h.processRecord(ctx, record); err != nil {
			h.logger.Error("failed to process record",
				"eventID", record.EventID,
				"error", err,
			)
			return err // Will retry, eventually DLQ
		}
	}
	return nil
}

// processRecord processes a single stream record.
func (h *Handler) processRecord(ctx context.Context, record *events.DynamoDBEventRecord) error {
	// Only process MODIFY events where TTL was added
	if record.EventName != "MODIFY" {
		return nil
	}

	oldTTL := getNumberAttr(record.Change.OldImage, "ttl")
	newTTL := getNumberAttr(record.Change.NewImage, "ttl")

	// Only process when TTL is newly set (was absent/0, now present)
	if oldTTL != 0 || newTTL == 0 {
		return nil
	}

	ls := dynamo.LinkSet{
		ID:             getStringAttr(record.Change.NewImage, "id"),
		Ascendant:      getStringAttr(record.Change.NewImage, "ascendant"),
		DescendantHead: getStringAttr(record.Change.NewImage, "descendant_head"),
		PeerNext:       getStringAttr(record.Change.NewImage, "peer_next"),
		ContentRef:     getStringAttr(record.Change.NewImage, "content_ref"),
	}

	h.logger.Info("processing cascade delete",
		"item", ls.ID,
		"ttl", newTTL,
	)

	// 1. Expire all native descendants (including already-deleted ones -
	//    idempotent). Each TTL write triggers its own cascade via the
	//    stream.
	descendants, err := h.backend.NativeDescendantRefs(ctx, ls.ID)
	if err != nil {
		return fmt.Errorf("query native descendants: %w", err)
	}
	for _, id := range descendants {
		if err := h.backend.MarkDeleted(ctx, id, newTTL); err != nil {
			h.logger.Warn("failed to expire native descendant",
				"descendant", id,
				"error", err,
			)
			// Continue - idempotent, will retry
		}
	}

	// 2. Clear surviving stems still mounting the deleted item.
	stems, err := h.backend.MountingStemRefs(ctx, ls.ID)
	if err != nil {
		return fmt.Errorf("query mounting stems: %w", err)
	}
	for _, stemID := range stems {
		if err := h.backend.ClearMountHead(ctx, stemID, ls.ID); err != nil {
			h.logger.Warn("failed to clear mounting stem",
				"stem", stemID,
				"error", err,
			)
		}
	}

	// 3. Remove the item's own link records - no lookup needed, the
	//    stream image carries the targets.
	if err := h.backend.DeleteSourceLinks(ctx, ls); err != nil {
		h.logger.Warn("failed to delete link records",
			"item", ls.ID,
			"error", err,
		)
	}

	h.logger.Info("cascade delete completed",
		"item", ls.ID,
		"descendantsExpired", len(descendants),
		"stemsCleared", len(stems),
	)

	return nil
}

// getStringAttr extracts a string attribute from a DynamoDB stream image.
func getStringAttr(image map[string]events.DynamoDBAttributeValue, key string) string {
	if v, ok := image[key]; ok {
		return v.String()
	}
	return ""
}

// getNumberAttr extracts a number attribute from a DynamoDB stream image.
func getNumberAttr(image map[string]events.DynamoDBAttributeValue, key string) int64 {
	if v, ok := image[key]; ok {
		if v.DataType() == events.DataTypeNumber {
			n, _ := strconv.ParseInt(v.Number(), 10, 64)
			return n
		}
	}
	return 0
}
