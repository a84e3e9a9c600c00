package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c0deZ3R0/go-inventory-sync/config"
	"github.com/c0deZ3R0/go-inventory-sync/connectivity"
	"github.com/c0deZ3R0/go-inventory-sync/internal/fakeapi"
	"github.com/c0deZ3R0/go-inventory-sync/inventory"
	"github.com/c0deZ3R0/go-inventory-sync/logging"
	"github.com/c0deZ3R0/go-inventory-sync/synckit"
	"github.com/c0deZ3R0/go-inventory-sync/transport/httptransport"
)

func TestRun_FakeAPI(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("INVENTORY_STORAGE_DRIVER", "memory")

	script := strings.Join([]string{
		"create Nut 0.10 5 pcs",
		"products",
		"orders",
		"create Bad abc 5 pcs",
		"quit",
	}, "\n")
	var out bytes.Buffer

	require.NoError(t, run(context.Background(), []string{"-fake"}, strings.NewReader(script), &out))

	text := out.String()
	assert.Contains(t, text, "created 4 Nut")
	assert.Contains(t, text, "Hex bolt M8")
	assert.Contains(t, text, "Acme Corp")
	assert.Contains(t, text, "error: ")
}

func TestRun_BadFlag(t *testing.T) {
	var out bytes.Buffer
	err := run(context.Background(), []string{"-nope"}, strings.NewReader(""), &out)
	assert.Error(t, err)
}

func TestRun_WithHealthProbe(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("INVENTORY_PROBE_INTERVAL", "20ms")

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"-fake"}, strings.NewReader("offline\npending\nquit\n"), &out))
	assert.Contains(t, out.String(), "products: 0 pending, 0 unrecoverable")
}

func TestOpenPersister_Memory(t *testing.T) {
	p, err := openPersister(context.Background(), config.StorageConfig{Driver: config.DriverMemory}, logging.Discard())
	require.NoError(t, err)
	assert.IsType(t, &synckit.MemoryPersister{}, p)
}

func TestOpenPersister_SQLite(t *testing.T) {
	dsn := "file:" + t.TempDir() + "/state.db"
	p, err := openPersister(context.Background(), config.StorageConfig{Driver: config.DriverSQLite, DSN: dsn}, logging.Discard())
	require.NoError(t, err)
	require.NoError(t, p.Close())
}

func TestShell_OfflineRoundTrip(t *testing.T) {
	api := fakeapi.New(fakeapi.WithLogger(logging.Discard()))
	order := api.SeedOrder(inventory.Order{CustomerName: "Ada", Status: inventory.OrderActive})
	ts := httptest.NewServer(api)
	defer ts.Close()

	transport := httptransport.NewClient(ts.URL, httptransport.WithLogger(logging.Discard()))
	monitor := connectivity.NewMonitor(true, connectivity.WithLogger(logging.Discard()))
	defer monitor.Close()
	source := connectivity.NewEventSource(4)
	defer source.Close()
	require.NoError(t, monitor.Start(context.Background(), source))

	client := inventory.NewClient(transport, transport, monitor, synckit.WithLogger(logging.Discard()))
	defer client.Close()
	ctx := context.Background()
	require.NoError(t, client.Start(ctx))
	require.NoError(t, client.Refresh(ctx))

	var out bytes.Buffer
	sh := &shell{client: client, setOnline: func(online bool) {
		if online {
			source.Online()
		} else {
			source.Offline()
		}
	}, out: &out}

	require.NoError(t, sh.exec(ctx, []string{"offline"}))
	require.Eventually(t, func() bool { return !client.IsOnline() }, time.Second, 5*time.Millisecond)

	require.NoError(t, sh.exec(ctx, []string{"create", "Nut", "0.10", "5", "pcs"}))
	require.NoError(t, sh.exec(ctx, []string{"tag", "rush", "1"}))
	assert.Equal(t, 2, client.PendingCount())
	assert.Contains(t, sh.prompt(), "2 pending")

	require.NoError(t, sh.exec(ctx, []string{"online"}))
	require.Eventually(t, func() bool { return client.IsOnline() }, time.Second, 5*time.Millisecond)
	client.Wait()
	require.Eventually(t, func() bool { return client.PendingCount() == 0 }, time.Second, 5*time.Millisecond)

	got, _ := api.Order(order.ID)
	assert.Equal(t, []string{"rush"}, got.Tags)
	assert.Len(t, api.Products(), 1)

	assert.Error(t, sh.exec(ctx, []string{"qty", "x", "1"}))
	assert.Error(t, sh.exec(ctx, []string{"frobnicate"}))
}
