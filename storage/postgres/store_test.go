package postgres

import (
	"context"
	"database/sql"
	"os"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c0deZ3R0/go-inventory-sync/errors"
	"github.com/c0deZ3R0/go-inventory-sync/logging"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	mock.ExpectPing()
	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS "sync_state"`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	store, err := NewWithDB(db, &Config{Logger: logging.Discard()})
	require.NoError(t, err)
	return store, mock
}

func TestStore_Save(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "sync_state" (key, value, updated_at) VALUES ($1, $2, NOW())`)).
		WithArgs("stores/orders", []byte(`{"items":[]}`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Save(context.Background(), "stores/orders", []byte(`{"items":[]}`)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Load(t *testing.T) {
	store, mock := newMockStore(t)
	query := regexp.QuoteMeta(`SELECT value FROM "sync_state" WHERE key = $1`)

	mock.ExpectQuery(query).WithArgs("stores/orders").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow([]byte(`{"items":[1]}`)))
	mock.ExpectQuery(query).WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	got, err := store.Load(context.Background(), "stores/orders")
	require.NoError(t, err)
	assert.Equal(t, `{"items":[1]}`, string(got))

	_, err = store.Load(context.Background(), "missing")
	assert.ErrorIs(t, err, errors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ClassifiesDriverErrors(t *testing.T) {
	store, mock := newMockStore(t)
	insert := regexp.QuoteMeta(`INSERT INTO "sync_state"`)

	mock.ExpectExec(insert).WillReturnError(&pq.Error{Code: "08006", Message: "connection failure"})
	mock.ExpectExec(insert).WillReturnError(&pq.Error{Code: "22001", Message: "value too long"})

	err := store.Save(context.Background(), "k", []byte("v"))
	assert.True(t, errors.Is(err, errors.KindTransient))
	assert.True(t, errors.IsRetryable(err))

	err = store.Save(context.Background(), "k", []byte("v"))
	assert.True(t, errors.Is(err, errors.KindInternal))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Closed(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectClose()

	require.NoError(t, store.Close())
	require.NoError(t, store.Close())

	_, err := store.Load(context.Background(), "k")
	assert.True(t, errors.Is(err, errors.KindClosed))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNew_RequiresConnectionString(t *testing.T) {
	_, err := New(&Config{})
	assert.True(t, errors.Is(err, errors.KindInvalid))
}

// TestStore_Integration runs against a real server when
// POSTGRES_TEST_CONNECTION is set.
func TestStore_Integration(t *testing.T) {
	connStr := os.Getenv("POSTGRES_TEST_CONNECTION")
	if connStr == "" {
		t.Skip("POSTGRES_TEST_CONNECTION not set")
	}
	store, err := New(&Config{ConnectionString: connStr, TableName: "sync_state_test", Logger: logging.Discard()})
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "stores/products", []byte("one")))
	require.NoError(t, store.Save(ctx, "stores/products", []byte("two")))
	got, err := store.Load(ctx, "stores/products")
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), got)
}
