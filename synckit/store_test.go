package synckit

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c0deZ3R0/go-inventory-sync/errors"
	"github.com/c0deZ3R0/go-inventory-sync/logging"
)

func TestTempIDSequence_Unique(t *testing.T) {
	seq := NewTempIDSequence()

	var mu sync.Mutex
	seen := make(map[ID]bool)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				id := seq.Next()
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 800)
	for id := range seen {
		assert.True(t, IsTemp(id))
	}
}

func TestTempIDSequence_Observe(t *testing.T) {
	seq := NewTempIDSequence()
	seq.Observe(-5)
	assert.Equal(t, ID(-6), seq.Next())

	seq.Observe(-2)
	seq.Observe(42)
	assert.Equal(t, ID(-7), seq.Next())
}

func TestStore_QueueOperations(t *testing.T) {
	store := NewStore[widget]("widgets", WithLogger(logging.Discard()))
	for i := 0; i < 4; i++ {
		store.Enqueue(PendingOperation{ID: fmt.Sprint("op-", i), Type: OpUpdate})
	}

	op, ok := store.Dequeue(1)
	require.True(t, ok)
	assert.Equal(t, "op-1", op.ID)

	_, ok = store.Dequeue(10)
	assert.False(t, ok)

	assert.True(t, store.Remove("op-3"))
	assert.False(t, store.Remove("op-3"))

	var ids []string
	for _, op := range store.Pending() {
		ids = append(ids, op.ID)
	}
	assert.Equal(t, []string{"op-0", "op-2"}, ids)
	assert.Equal(t, 2, store.PendingCount())
}

func TestStore_SnapshotIsACopy(t *testing.T) {
	store := NewStore[widget]("widgets", WithLogger(logging.Discard()))
	store.Enqueue(PendingOperation{ID: "a", Type: OpDelete, Targets: []ID{1}})
	store.insertTemp(widget{Name: "x"})

	st := store.Snapshot()
	st.Items[0].Name = "mutated"
	st.PendingOperations[0].Targets[0] = 99

	assert.Equal(t, "x", store.Items()[0].Name)
	assert.Equal(t, ID(1), store.Pending()[0].Target())
}

func TestStore_RehydrateContinuesTempSequence(t *testing.T) {
	persister := NewMemoryPersister()
	ctx := context.Background()

	first := NewStore[widget]("widgets", WithLogger(logging.Discard()), WithPersister(persister))
	eng := NewEngine(first, widgetDomain(newFakeRemote()), WithLogger(logging.Discard()))
	a, err := eng.Execute(ctx, Mutation[widget]{Type: OpCreate, Item: widget{Name: "a"}})
	require.NoError(t, err)
	b, err := eng.Execute(ctx, Mutation[widget]{Type: OpCreate, Item: widget{Name: "b"}})
	require.NoError(t, err)
	assert.Greater(t, persister.Saves(), 0)

	second := NewStore[widget]("widgets", WithLogger(logging.Discard()), WithPersister(persister))
	require.NoError(t, second.Rehydrate(ctx))
	assert.Equal(t, []widget{a, b}, second.Items())
	require.Equal(t, 2, second.PendingCount())
	assert.Equal(t, a.ID, *second.Pending()[0].TempID)

	c, _ := second.insertTemp(widget{Name: "c"})
	assert.Less(t, c.ID, b.ID, "new temp ids never collide with restored ones")
}

func TestStore_RehydrateWithoutSnapshot(t *testing.T) {
	store := NewStore[widget]("widgets", WithLogger(logging.Discard()), WithPersister(NewMemoryPersister()))
	require.NoError(t, store.Rehydrate(context.Background()))
	assert.Empty(t, store.Items())
}

func TestStore_RehydrateCorruptSnapshot(t *testing.T) {
	persister := NewMemoryPersister()
	require.NoError(t, persister.Save(context.Background(), "stores/widgets", []byte("{not json")))

	store := NewStore[widget]("widgets", WithLogger(logging.Discard()), WithPersister(persister))
	err := store.Rehydrate(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.KindInternal, errors.KindOf(err))
}

func TestStore_PersistFailureKeepsLocalState(t *testing.T) {
	persister := NewMemoryPersister()
	require.NoError(t, persister.Close())

	store := NewStore[widget]("widgets", WithLogger(logging.Discard()), WithPersister(persister))
	store.Enqueue(PendingOperation{ID: "a", Type: OpCreate})
	assert.Equal(t, 1, store.PendingCount())
}

func TestMemoryPersister_LoadMissing(t *testing.T) {
	_, err := NewMemoryPersister().Load(context.Background(), "nope")
	assert.ErrorIs(t, err, errors.ErrNotFound)
}
