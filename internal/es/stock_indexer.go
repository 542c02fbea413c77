package es

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/segmentio/kafka-go"

	"github.com/Skotchmaster/moto_shop/internal/events"
	"github.com/Skotchmaster/moto_shop/internal/mykafka"
	"github.com/Skotchmaster/moto_shop/pkg/logging"
)

// stockScript applies a delta once per event. Redelivered or partially
// applied events find their key in synced_events and turn into a noop.
const stockScript = `if (ctx._source.synced_events == null) { ctx._source.synced_events = []; }
if (ctx._source.synced_events.contains(params.event)) {
  ctx.op = 'noop';
} else {
  ctx._source.count += params.delta;
  ctx._source.synced_events.add(params.event);
  while (ctx._source.synced_events.size() > params.keep) { ctx._source.synced_events.remove(0); }
}`

// syncedEventsKept bounds the per-document dedup window.
const syncedEventsKept = 64

// StockIndexer keeps the count field of product documents in step with
// order events.
type StockIndexer struct {
	Client *elasticsearch.Client
	Index  string
}

func NewStockIndexer(client *elasticsearch.Client, index string) *StockIndexer {
	if index == "" {
		index = "product"
	}
	return &StockIndexer{Client: client, Index: index}
}

// HandleMessage decodes an order event from Kafka and applies it.
func (s *StockIndexer) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var ev events.OrderEvent
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		return mykafka.Permanent(fmt.Errorf("es: decode order event at offset %d: %w", msg.Offset, err))
	}
	return s.Apply(ctx, ev)
}

// Apply sends one scripted update per product. Documents missing from the
// index are skipped. Applying the same event again leaves counts alone.
func (s *StockIndexer) Apply(ctx context.Context, ev events.OrderEvent) error {
	deltas := ev.StockDeltas()
	if len(deltas) == 0 {
		return nil
	}
	l := logging.FromContext(ctx).With("op", "stock_sync", "order_id", ev.OrderID, "type", ev.Type)

	ids := make([]uint, 0, len(deltas))
	for id := range deltas {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		if deltas[id] == 0 {
			continue
		}
		if err := s.update(ctx, id, deltas[id], eventKey(ev)); err != nil {
			l.Error("stock_sync_failed", "product_id", id, "error", err)
			return err
		}
	}
	l.Info("stock_sync_success", "products", len(ids))
	return nil
}

func eventKey(ev events.OrderEvent) string {
	return ev.Type + ":" + ev.Key()
}

func (s *StockIndexer) update(ctx context.Context, productID uint, delta int, event string) error {
	body := map[string]any{
		"script": map[string]any{
			"source": stockScript,
			"lang":   "painless",
			"params": map[string]any{"delta": delta, "event": event, "keep": syncedEventsKept},
		},
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return err
	}

	docID := strconv.FormatUint(uint64(productID), 10)
	res, err := s.Client.Update(s.Index, docID, &buf, s.Client.Update.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("es: update %s/%s: %w", s.Index, docID, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		logging.FromContext(ctx).Warn("stock_sync_missing_document", "index", s.Index, "product_id", productID)
		return nil
	}
	if res.IsError() {
		msg, _ := io.ReadAll(res.Body)
		return fmt.Errorf("es: update %s/%s: %s: %s", s.Index, docID, res.Status(), msg)
	}
	return nil
}
