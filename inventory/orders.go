package inventory

import (
	"context"

	"github.com/c0deZ3R0/go-inventory-sync/synckit"
)

// Orders is the orders domain.
type Orders struct {
	engine *synckit.Engine[Order]
}

// NewOrders builds the orders domain on top of api.
func NewOrders(api OrderAPI, opts ...synckit.Option) *Orders {
	store := synckit.NewStore[Order](OrdersDomain, opts...)
	return &Orders{engine: synckit.NewEngine(store, OrderRoutes(api), opts...)}
}

// Engine exposes the underlying sync engine.
func (o *Orders) Engine() *synckit.Engine[Order] { return o.engine }

// Store exposes the underlying store.
func (o *Orders) Store() *synckit.Store[Order] { return o.engine.Store() }

// State returns a copy of the current state.
func (o *Orders) State() synckit.State[Order] { return o.engine.Store().Snapshot() }

// Get returns an order by ID.
func (o *Orders) Get(id int64) (Order, bool) { return o.engine.Store().Get(id) }

// Refresh reloads orders from the server, keeping queued local changes.
func (o *Orders) Refresh(ctx context.Context) error { return o.engine.Refresh(ctx) }

// ClearError dismisses the error shown for the orders store.
func (o *Orders) ClearError() { o.engine.Store().ClearError() }

// Update applies patch to the order with id.
func (o *Orders) Update(ctx context.Context, id int64, patch OrderPatch) (Order, error) {
	if err := patch.Validate(); err != nil {
		o.engine.Store().SetError(err)
		return Order{}, err
	}
	return o.engine.Execute(ctx, synckit.Mutation[Order]{
		Type:    synckit.OpUpdate,
		Targets: []int64{id},
		Apply:   patch.Apply,
		Data:    patch,
	})
}

// Delete removes the order with id.
func (o *Orders) Delete(ctx context.Context, id int64) error {
	_, err := o.engine.Execute(ctx, synckit.Mutation[Order]{
		Type:    synckit.OpDelete,
		Targets: []int64{id},
	})
	return err
}

// AddTags appends tags to every order in orderIDs as a single operation.
func (o *Orders) AddTags(ctx context.Context, tags []string, orderIDs []int64) error {
	tags = normalizeTags(tags)
	if len(tags) == 0 || len(orderIDs) == 0 {
		err := invalid("at least one tag and one order are required")
		o.engine.Store().SetError(err)
		return err
	}
	_, err := o.engine.Execute(ctx, synckit.Mutation[Order]{
		Type:    synckit.OpAddTag,
		Targets: append([]int64(nil), orderIDs...),
		Apply:   withTags(tags),
		Data:    tagsPayload{Tags: tags},
	})
	return err
}

// RemoveTag removes the first occurrence of tag from the order.
func (o *Orders) RemoveTag(ctx context.Context, orderID int64, tag string) error {
	_, err := o.engine.Execute(ctx, synckit.Mutation[Order]{
		Type:    synckit.OpRemoveTag,
		Targets: []int64{orderID},
		Apply:   withoutTag(tag),
		Data:    tagPayload{Tag: tag},
	})
	return err
}
