package inventory

import (
	"context"

	"github.com/c0deZ3R0/go-inventory-sync/errors"
	"github.com/c0deZ3R0/go-inventory-sync/synckit"
)

// Products is the products domain: a store of Product plus the engine that
// keeps it in sync with the server.
type Products struct {
	engine *synckit.Engine[Product]
}

// NewProducts builds the products domain on top of api.
func NewProducts(api ProductAPI, opts ...synckit.Option) *Products {
	store := synckit.NewStore[Product](ProductsDomain, opts...)
	return &Products{engine: synckit.NewEngine(store, ProductRoutes(api), opts...)}
}

// Engine exposes the underlying sync engine.
func (p *Products) Engine() *synckit.Engine[Product] { return p.engine }

// Store exposes the underlying store.
func (p *Products) Store() *synckit.Store[Product] { return p.engine.Store() }

// State returns a copy of the current state.
func (p *Products) State() synckit.State[Product] { return p.engine.Store().Snapshot() }

// Get returns a product by ID.
func (p *Products) Get(id int64) (Product, bool) { return p.engine.Store().Get(id) }

// Create validates the form and adds the product. Offline the product gets
// a temporary ID until the queued create is replayed.
func (p *Products) Create(ctx context.Context, form ProductForm) (Product, error) {
	prod, err := form.Product()
	if err != nil {
		p.engine.Store().SetError(err)
		return Product{}, err
	}
	return p.engine.Execute(ctx, synckit.Mutation[Product]{
		Type: synckit.OpCreate,
		Item: prod,
	})
}

// Update applies patch to the product with id.
func (p *Products) Update(ctx context.Context, id int64, patch ProductPatch) (Product, error) {
	if err := patch.Validate(); err != nil {
		p.engine.Store().SetError(err)
		return Product{}, err
	}
	return p.engine.Execute(ctx, synckit.Mutation[Product]{
		Type:    synckit.OpUpdate,
		Targets: []int64{id},
		Apply:   patch.Apply,
		Data:    patch,
	})
}

// Delete removes the product with id. The server refuses to delete products
// that active orders still reference unless force is set; that refusal
// surfaces as errors.KindRejected so the caller can offer to force it.
func (p *Products) Delete(ctx context.Context, id int64, force bool) error {
	_, err := p.engine.Execute(ctx, synckit.Mutation[Product]{
		Type:    synckit.OpDelete,
		Targets: []int64{id},
		Data:    deletePayload{Force: force},
	})
	return err
}

// NeedsForce reports whether err is a rejection that a forced delete would
// get past.
func NeedsForce(err error) bool {
	return errors.Is(err, errors.KindRejected)
}

// Refresh reloads products from the server.
func (p *Products) Refresh(ctx context.Context) error { return p.engine.Refresh(ctx) }

// ClearError dismisses the surfaced error.
func (p *Products) ClearError() { p.engine.Store().ClearError() }
