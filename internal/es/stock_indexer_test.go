package es

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/moto_shop/internal/events"
	"github.com/Skotchmaster/moto_shop/internal/mykafka"
)

type update struct {
	Path  string
	Delta int
}

// fakeES mimics the update endpoint, including the per-document event
// dedup stockScript performs.
type fakeES struct {
	mu      sync.Mutex
	updates []update
	missing map[string]bool
	failing map[string]int
	synced  map[string]map[string]bool
}

func (f *fakeES) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")

	if r.URL.Path == "/" {
		_, _ = w.Write([]byte(`{"name":"fake","cluster_name":"test","version":{"number":"9.0.0","build_flavor":"default"},"tagline":"You Know, for Search"}`))
		return
	}

	var body struct {
		Script struct {
			Source string `json:"source"`
			Params struct {
				Delta int    `json:"delta"`
				Event string `json:"event"`
				Keep  int    `json:"keep"`
			} `json:"params"`
		} `json:"script"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Script.Source != stockScript ||
		body.Script.Params.Event == "" || body.Script.Params.Keep <= 0 {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.missing[r.URL.Path] {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"type":"document_missing_exception"},"status":404}`))
		return
	}
	if f.failing[r.URL.Path] > 0 {
		f.failing[r.URL.Path]--
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"type":"script_exception"},"status":500}`))
		return
	}
	if f.synced == nil {
		f.synced = map[string]map[string]bool{}
	}
	if f.synced[r.URL.Path] == nil {
		f.synced[r.URL.Path] = map[string]bool{}
	}
	if f.synced[r.URL.Path][body.Script.Params.Event] {
		_, _ = w.Write([]byte(`{"result":"noop"}`))
		return
	}
	f.synced[r.URL.Path][body.Script.Params.Event] = true
	f.updates = append(f.updates, update{Path: r.URL.Path, Delta: body.Script.Params.Delta})
	_, _ = w.Write([]byte(`{"result":"updated"}`))
}

func newIndexer(t *testing.T, fake *fakeES) *StockIndexer {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client, err := NewClient(context.Background(), srv.URL, "", "")
	require.NoError(t, err)
	return NewStockIndexer(client, "")
}

func orderEvent(typ string) events.OrderEvent {
	return events.OrderEvent{
		Type:    typ,
		OrderID: 7,
		UserID:  uuid.New(),
		Lines: []events.Line{
			{ProductID: 2, Quantity: 3},
			{ProductID: 1, Quantity: 1},
		},
	}
}

func TestApply_CreatedDecrements(t *testing.T) {
	fake := &fakeES{}
	idx := newIndexer(t, fake)

	require.NoError(t, idx.Apply(context.Background(), orderEvent(events.TypeOrderCreated)))
	assert.Equal(t, []update{
		{Path: "/product/_update/1", Delta: -1},
		{Path: "/product/_update/2", Delta: -3},
	}, fake.updates)
}

func TestApply_StatusChangeIsNoop(t *testing.T) {
	fake := &fakeES{}
	idx := newIndexer(t, fake)

	require.NoError(t, idx.Apply(context.Background(), orderEvent(events.TypeOrderStatusChanged)))
	assert.Empty(t, fake.updates)
}

func TestHandleMessage_SkipsMissingDocuments(t *testing.T) {
	fake := &fakeES{missing: map[string]bool{"/product/_update/1": true}}
	idx := newIndexer(t, fake)

	raw, err := json.Marshal(orderEvent(events.TypeOrderCancelled))
	require.NoError(t, err)
	require.NoError(t, idx.HandleMessage(context.Background(), kafka.Message{Value: raw}))
	assert.Equal(t, []update{{Path: "/product/_update/2", Delta: 3}}, fake.updates)
}

func TestHandleMessage_RejectsGarbage(t *testing.T) {
	idx := newIndexer(t, &fakeES{})
	err := idx.HandleMessage(context.Background(), kafka.Message{Value: []byte("{")})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "decode order event"))
	assert.True(t, mykafka.IsPermanent(err), "garbage is skipped, not retried")
}

func TestApply_RedeliveryAfterPartialFailure(t *testing.T) {
	fake := &fakeES{failing: map[string]int{"/product/_update/2": 1}}
	idx := newIndexer(t, fake)
	ev := orderEvent(events.TypeOrderCreated)

	require.Error(t, idx.Apply(context.Background(), ev))
	assert.Equal(t, []update{{Path: "/product/_update/1", Delta: -1}}, fake.updates)

	require.NoError(t, idx.Apply(context.Background(), ev))
	require.NoError(t, idx.Apply(context.Background(), ev))
	assert.Equal(t, []update{
		{Path: "/product/_update/1", Delta: -1},
		{Path: "/product/_update/2", Delta: -3},
	}, fake.updates, "each product moves once per event")

	require.NoError(t, idx.Apply(context.Background(), orderEvent(events.TypeOrderCancelled)))
	assert.Len(t, fake.updates, 4, "the cancellation of the same order is a distinct event")
}
