package synckit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/c0deZ3R0/go-inventory-sync/logging"
)

type widget struct {
	ID   ID       `json:"id"`
	Name string   `json:"name"`
	Tags []string `json:"tags,omitempty"`
}

func (w widget) Key() ID              { return w.ID }
func (w widget) WithKey(id ID) widget { w.ID = id; return w }

func rename(name string) func(widget) widget {
	return func(w widget) widget {
		w.Name = name
		return w
	}
}

func addTag(tag string) func(widget) widget {
	return func(w widget) widget {
		w.Tags = append(append([]string(nil), w.Tags...), tag)
		return w
	}
}

// fakeRemote records every call it receives and hands out server IDs
// starting at 100.
type fakeRemote struct {
	mu      sync.Mutex
	nextID  ID
	calls   []PendingOperation
	listing []widget
	failIf  func(op PendingOperation) error
	// block, when set, holds every call until it is closed.
	block   chan struct{}
	entered chan struct{}
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{nextID: 99}
}

func (r *fakeRemote) call(t OpType) Call[widget] {
	return func(ctx context.Context, op PendingOperation) (*widget, error) {
		if r.entered != nil {
			r.entered <- struct{}{}
		}
		if r.block != nil {
			<-r.block
		}

		r.mu.Lock()
		defer r.mu.Unlock()
		r.calls = append(r.calls, op)
		if r.failIf != nil {
			if err := r.failIf(op); err != nil {
				return nil, err
			}
		}
		if t != OpCreate {
			return nil, nil
		}
		var w widget
		if err := json.Unmarshal(op.Data, &w); err != nil {
			return nil, err
		}
		r.nextID++
		w.ID = r.nextID
		return &w, nil
	}
}

func (r *fakeRemote) list(ctx context.Context) ([]widget, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]widget(nil), r.listing...), nil
}

func (r *fakeRemote) recorded() []PendingOperation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]PendingOperation(nil), r.calls...)
}

func widgetDomain(r *fakeRemote) Domain[widget] {
	byID := func(op PendingOperation) string { return fmt.Sprintf("/widgets/%d", op.Target()) }
	return Domain[widget]{
		Name: "widgets",
		Routes: map[OpType]Route[widget]{
			OpCreate: {Method: http.MethodPost, Path: func(PendingOperation) string { return "/widgets" }, Call: r.call(OpCreate)},
			OpUpdate: {Method: http.MethodPatch, Path: byID, Call: r.call(OpUpdate)},
			OpDelete: {Method: http.MethodDelete, Path: byID, Call: r.call(OpDelete)},
			OpAddTag: {Method: http.MethodPost, Path: func(PendingOperation) string { return "/widgets/tags" }, Call: r.call(OpAddTag)},
		},
		List: r.list,
	}
}

func newTestEngine(t *testing.T, online bool, opts ...Option) (*Engine[widget], *fakeRemote) {
	t.Helper()
	remote := newFakeRemote()
	opts = append([]Option{WithLogger(logging.Discard()), WithInitialOnline(online)}, opts...)
	store := NewStore[widget]("widgets", opts...)
	eng := NewEngine(store, widgetDomain(remote), opts...)
	t.Cleanup(func() { eng.Close() })
	return eng, remote
}

// seed loads items into the store through a refresh.
func seed(t *testing.T, eng *Engine[widget], remote *fakeRemote, items ...widget) {
	t.Helper()
	online := eng.Store().SetOnline(true)
	remote.mu.Lock()
	remote.listing = items
	remote.mu.Unlock()
	if err := eng.Refresh(context.Background()); err != nil {
		t.Fatalf("seed refresh: %v", err)
	}
	eng.Store().SetOnline(online)
}
