// Package stream finalizes dependent records from DynamoDB Streams.
//
// The hosted store computes a few fields asynchronously after a write: when
// a service, staff member or discount is inserted it is stamped with
// finalized_at, services get a display_price, and the owning shop's counts
// are recomputed. Counts are recomputed again when a record is soft-deleted.
package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"github.com/jacentio/storefront/record"
)

// Handler processes DynamoDB stream events for finalization.
type Handler struct {
	client   record.Client
	config   record.Config
	registry *record.Registry
	counts   map[string]string
	logger   *slog.Logger
	now      func() time.Time
}

// NewHandler creates a new stream handler writing through client.
// If logger is nil, slog.Default() is used.
func NewHandler(client record.Client, config record.Config, logger *slog.Logger) *Handler {
	config.Validate()
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		client:   client,
		config:   config,
		registry: config.Registry(),
		counts: map[string]string{
			config.Services:  "service_count",
			config.Staff:     "staff_count",
			config.Discounts: "discount_count",
		},
		logger: logger,
		now:    time.Now,
	}
}

// HandleFinalize processes a batch of stream records. It is designed to be
// used as an AWS Lambda handler. A transient failure aborts the batch so the
// stream retries it; permanent ones are logged and skipped.
func (h *Handler) HandleFinalize(ctx context.Context, event events.DynamoDBEvent) error {
	for _, rec := range event.Records {
		err := h.processRecord(ctx, rec)
		if err == nil {
			continue
		}
		if record.IsTransient(err) {
			h.logger.Error("failed to process record",
				"eventID", rec.EventID,
				"error", err,
			)
			return err
		}
		h.logger.Warn("skipping record",
			"eventID", rec.EventID,
			"error", err,
		)
	}
	return nil
}

func (h *Handler) processRecord(ctx context.Context, rec events.DynamoDBEventRecord) error {
	table := TableName(rec.EventSourceArn)
	rel, ok := h.registry.ParentOf(table)
	if !ok {
		return nil
	}
	image := rec.Change.NewImage

	switch rec.EventName {
	case "INSERT":
		if err := h.finalize(ctx, table, image); err != nil {
			return err
		}
		return h.recount(ctx, rel, image)

	case "MODIFY":
		oldTTL := numberAttr(rec.Change.OldImage, "ttl")
		newTTL := numberAttr(image, "ttl")
		if oldTTL == 0 && newTTL != 0 {
			return h.recount(ctx, rel, image)
		}
		if newTTL == 0 && stringAttr(image, "finalized_at") == "" {
			return h.finalize(ctx, table, image)
		}
	}
	return nil
}

// finalize stamps finalized_at and, for services, display_price.
func (h *Handler) finalize(ctx context.Context, table string, image map[string]events.DynamoDBAttributeValue) error {
	id := stringAttr(image, "id")
	if id == "" {
		return nil
	}
	patch := record.Record{"finalized_at": h.now().UTC().Format(time.RFC3339Nano)}
	if table == h.config.Services {
		patch["display_price"] = DisplayPrice(numberAttr(image, "price"), optionPrices(image))
	}

	_, err := h.client.Update(ctx, table, id, patch)
	if errors.Is(err, record.ErrNotFound) {
		h.logger.Info("record gone before finalization", "table", table, "id", id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("finalize %s/%s: %w", table, id, err)
	}
	h.logger.Info("record finalized", "table", table, "id", id)
	return nil
}

// recount rewrites the parent's count for the collection that changed.
func (h *Handler) recount(ctx context.Context, rel record.Relationship, image map[string]events.DynamoDBAttributeValue) error {
	parentID := stringAttr(image, rel.OwnerField)
	field := h.counts[rel.ChildCollection]
	if parentID == "" || field == "" {
		return nil
	}

	rows, err := h.client.SelectWhere(ctx, rel.ChildCollection, record.Eq(rel.OwnerField, parentID))
	if err != nil {
		return fmt.Errorf("count %s: %w", rel.ChildCollection, err)
	}
	_, err = h.client.Update(ctx, rel.ParentCollection, parentID, record.Record{field: len(rows)})
	if errors.Is(err, record.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", rel.ParentCollection, parentID, err)
	}
	h.logger.Info("parent count updated",
		"parent", parentID,
		"field", field,
		"count", len(rows),
	)
	return nil
}

// DisplayPrice is price when positive, otherwise the lowest positive option
// price, otherwise zero.
func DisplayPrice(price float64, options []float64) float64 {
	if price > 0 {
		return price
	}
	low := 0.0
	for _, p := range options {
		if p > 0 && (low == 0 || p < low) {
			low = p
		}
	}
	return low
}

// TableName extracts the table name from a stream event source ARN such as
// arn:aws:dynamodb:eu-west-1:123456789012:table/services/stream/2026-01-01T00:00:00.000.
func TableName(arn string) string {
	_, rest, ok := strings.Cut(arn, ":table/")
	if !ok {
		return ""
	}
	name, _, _ := strings.Cut(rest, "/")
	return name
}

func optionPrices(image map[string]events.DynamoDBAttributeValue) []float64 {
	var out []float64
	for _, opt := range mapListAttr(image, "options") {
		out = append(out, numberAttr(opt, "price"))
	}
	return out
}
