// Package integration runs the inventory client against the fake REST API
// over real HTTP.
package integration

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c0deZ3R0/go-inventory-sync/connectivity"
	"github.com/c0deZ3R0/go-inventory-sync/errors"
	"github.com/c0deZ3R0/go-inventory-sync/internal/fakeapi"
	"github.com/c0deZ3R0/go-inventory-sync/inventory"
	"github.com/c0deZ3R0/go-inventory-sync/logging"
	"github.com/c0deZ3R0/go-inventory-sync/metrics"
	"github.com/c0deZ3R0/go-inventory-sync/storage/sqlite"
	"github.com/c0deZ3R0/go-inventory-sync/synckit"
	"github.com/c0deZ3R0/go-inventory-sync/transport/httptransport"
)

type harness struct {
	api     *fakeapi.Server
	server  *httptest.Server
	monitor *connectivity.Monitor
	client  *inventory.Client
}

func newHarness(t *testing.T, online bool, opts ...synckit.Option) *harness {
	t.Helper()
	api := fakeapi.New(fakeapi.WithLogger(logging.Discard()))
	server := httptest.NewServer(api)
	t.Cleanup(server.Close)
	return startClient(t, api, server, online, opts...)
}

func startClient(t *testing.T, api *fakeapi.Server, server *httptest.Server, online bool, opts ...synckit.Option) *harness {
	t.Helper()
	transport := httptransport.NewClient(server.URL, httptransport.WithLogger(logging.Discard()))
	monitor := connectivity.NewMonitor(online, connectivity.WithLogger(logging.Discard()))
	t.Cleanup(func() { monitor.Close() })

	opts = append([]synckit.Option{synckit.WithLogger(logging.Discard())}, opts...)
	client := inventory.NewClient(transport, transport, monitor, opts...)
	t.Cleanup(func() { client.Close() })
	require.NoError(t, client.Start(context.Background()))

	return &harness{api: api, server: server, monitor: monitor, client: client}
}

// reconnect flips the monitor online and waits for the triggered drains.
func (h *harness) reconnect(t *testing.T) {
	t.Helper()
	h.monitor.Set(true)
	h.client.Wait()
}

func productIDs(items []inventory.Product) []int64 {
	ids := make([]int64, 0, len(items))
	for _, p := range items {
		ids = append(ids, p.ID)
	}
	return ids
}

func TestOfflineEditsReplayInOrder(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	h.api.SeedProduct(inventory.Product{ID: 1, Name: "Bolt", Quantity: 10, Unit: "pcs", Status: inventory.ProductActive})
	h.api.SeedProduct(inventory.Product{ID: 2, Name: "Nut", Quantity: 3, Unit: "pcs", Status: inventory.ProductActive})
	require.NoError(t, h.client.Refresh(ctx))

	h.monitor.Set(false)
	qty := int64(20)
	_, err := h.client.Products.Update(ctx, 1, inventory.ProductPatch{Quantity: &qty})
	require.NoError(t, err)
	require.NoError(t, h.client.Products.Delete(ctx, 2, false))
	assert.Equal(t, 2, h.client.PendingCount())

	h.reconnect(t)

	assert.Equal(t, []string{"GET /products", "GET /orders", "PATCH /products/1", "DELETE /products/2"}, h.api.Requests())
	state := h.client.Products.State()
	assert.Empty(t, state.PendingOperations)
	assert.Equal(t, []int64{1}, productIDs(state.Items))
	assert.Equal(t, int64(20), state.Items[0].Quantity)

	remote, _ := h.api.Product(1)
	assert.Equal(t, int64(20), remote.Quantity)
}

func TestOnlineCreateNetworkFailureRollsBack(t *testing.T) {
	h := newHarness(t, true)
	h.server.Close()

	_, err := h.client.Products.Create(context.Background(), inventory.ProductForm{Name: "Bolt", Price: "1.00", Quantity: "5", Unit: "pcs"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.KindTransient))

	state := h.client.Products.State()
	assert.Empty(t, state.Items)
	assert.Empty(t, state.PendingOperations)
	assert.NotEmpty(t, state.Error)
	assert.Equal(t, errors.KindTransient, state.ErrorKind)
}

func TestOfflineCreateThenEditReconciles(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	created, err := h.client.Products.Create(ctx, inventory.ProductForm{Name: "Bolt", Price: "0.35", Quantity: "5", Unit: "pcs"})
	require.NoError(t, err)
	require.True(t, synckit.IsTemp(created.ID))

	qty := int64(12)
	_, err = h.client.Products.Update(ctx, created.ID, inventory.ProductPatch{Quantity: &qty})
	require.NoError(t, err)

	h.reconnect(t)

	items := h.client.Products.State().Items
	require.Len(t, items, 1)
	assert.False(t, synckit.IsTemp(items[0].ID))
	assert.Equal(t, int64(12), items[0].Quantity)
	assert.True(t, items[0].Price.Equal(decimal.RequireFromString("0.35")))

	remote, ok := h.api.Product(items[0].ID)
	require.True(t, ok)
	assert.Equal(t, int64(12), remote.Quantity)
}

func TestOutageDuringDrainKeepsQueue(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	order := h.api.SeedOrder(inventory.Order{CustomerName: "Ada", Status: inventory.OrderActive})
	require.NoError(t, h.client.Refresh(ctx))

	h.monitor.Set(false)
	require.NoError(t, h.client.Orders.AddTags(ctx, []string{"rush"}, []int64{order.ID}))
	h.api.SetDown(true)

	h.reconnect(t)
	assert.Equal(t, 1, h.client.PendingCount())
	local, _ := h.client.Orders.Get(order.ID)
	assert.Equal(t, []string{"rush"}, local.Tags)

	h.api.SetDown(false)
	n, err := h.client.Kick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Zero(t, h.client.PendingCount())

	remote, _ := h.api.Order(order.ID)
	assert.Equal(t, []string{"rush"}, remote.Tags)
}

func TestForceDeleteAfterRejection(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	p := h.api.SeedProduct(inventory.Product{Name: "Bolt", Quantity: 10, Unit: "pcs", Status: inventory.ProductActive})
	h.api.SeedOrder(inventory.Order{CustomerName: "Ada", Status: inventory.OrderActive, Items: []inventory.LineItem{{ProductID: p.ID, Quantity: 1}}})
	require.NoError(t, h.client.Refresh(ctx))

	err := h.client.Products.Delete(ctx, p.ID, false)
	require.Error(t, err)
	assert.True(t, inventory.NeedsForce(err))
	_, ok := h.client.Products.Get(p.ID)
	assert.True(t, ok, "rejected delete is rolled back")

	require.NoError(t, h.client.Products.Delete(ctx, p.ID, true))
	_, ok = h.client.Products.Get(p.ID)
	assert.False(t, ok)
	_, ok = h.api.Product(p.ID)
	assert.False(t, ok)
}

func TestQueueSurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	open := func() *sqlite.Store {
		store, err := sqlite.New(&sqlite.Config{DataSourceName: "file:" + path, EnableWAL: true, Logger: logging.Discard()})
		require.NoError(t, err)
		return store
	}

	api := fakeapi.New(fakeapi.WithLogger(logging.Discard()))
	server := httptest.NewServer(api)
	defer server.Close()
	ctx := context.Background()

	first := open()
	h := startClient(t, api, server, false, synckit.WithPersister(first))
	_, err := h.client.Products.Create(ctx, inventory.ProductForm{Name: "Bolt", Price: "1", Quantity: "1", Unit: "pcs"})
	require.NoError(t, err)
	require.NoError(t, h.client.Close())
	require.NoError(t, first.Close())
	assert.Empty(t, api.Products())

	second := open()
	defer second.Close()
	collector := metrics.NewPrometheusCollector(metrics.DefaultConfig())
	h = startClient(t, api, server, true, synckit.WithPersister(second), synckit.WithMetrics(collector))

	assert.Zero(t, h.client.PendingCount())
	require.Len(t, api.Products(), 1)
	items := h.client.Products.State().Items
	require.Len(t, items, 1)
	assert.Equal(t, api.Products()[0].ID, items[0].ID)

	rec := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `inventory_sync_operations_total{domain="products",outcome="replayed",type="create"} 1`)
	assert.Contains(t, rec.Body.String(), `inventory_sync_queue_depth{domain="products"} 0`)
}

func TestDrainCoalescesUnderLoad(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()
	h.api.SetDelay(10 * time.Millisecond)

	for i := 0; i < 5; i++ {
		_, err := h.client.Products.Create(ctx, inventory.ProductForm{Name: "Item", Price: "1", Quantity: "1", Unit: "pcs"})
		require.NoError(t, err)
	}

	h.monitor.Set(true)
	_, err := h.client.Kick(ctx)
	require.NoError(t, err)
	h.client.Wait()

	assert.Zero(t, h.client.PendingCount())
	assert.Len(t, h.api.Products(), 5)
	assert.Len(t, h.client.Products.State().Items, 5)
}
