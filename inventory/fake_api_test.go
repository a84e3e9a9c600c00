package inventory

import (
	"context"
	"fmt"
	"sync"

	"github.com/c0deZ3R0/go-inventory-sync/errors"
)

// fakeAPI implements ProductAPI and OrderAPI in memory and records every
// mutating call as "METHOD path".
type fakeAPI struct {
	mu       sync.Mutex
	nextID   int64
	products []Product
	orders   []Order
	calls    []string
	fail     error
	// referenced product IDs cannot be deleted without force.
	referenced map[int64]bool
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{nextID: 1000, referenced: make(map[int64]bool)}
}

func (f *fakeAPI) record(format string, args ...any) error {
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
	return f.fail
}

func (f *fakeAPI) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeAPI) setFail(err error) {
	f.mu.Lock()
	f.fail = err
	f.mu.Unlock()
}

func (f *fakeAPI) ListProducts(ctx context.Context) ([]Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Product(nil), f.products...), nil
}

func (f *fakeAPI) CreateProduct(ctx context.Context, p Product) (Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("POST /products"); err != nil {
		return Product{}, err
	}
	f.nextID++
	p.ID = f.nextID
	f.products = append(f.products, p)
	return p, nil
}

func (f *fakeAPI) UpdateProduct(ctx context.Context, id int64, patch ProductPatch) (Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("PATCH /products/%d", id); err != nil {
		return Product{}, err
	}
	for i, p := range f.products {
		if p.ID == id {
			f.products[i] = patch.Apply(p)
			return f.products[i], nil
		}
	}
	return Product{}, errors.E(errors.KindNotFound, "no such product")
}

func (f *fakeAPI) DeleteProduct(ctx context.Context, id int64, force bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("DELETE /products/%d force=%t", id, force); err != nil {
		return err
	}
	if f.referenced[id] && !force {
		return errors.NewRejectedError(errors.OpDelete, fmt.Errorf("product %d is referenced by active orders", id))
	}
	for i, p := range f.products {
		if p.ID == id {
			f.products = append(f.products[:i:i], f.products[i+1:]...)
			break
		}
	}
	return nil
}

func (f *fakeAPI) ListOrders(ctx context.Context) ([]Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Order(nil), f.orders...), nil
}

func (f *fakeAPI) UpdateOrder(ctx context.Context, id int64, patch OrderPatch) (Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("PATCH /orders/%d", id); err != nil {
		return Order{}, err
	}
	for i, o := range f.orders {
		if o.ID == id {
			f.orders[i] = patch.Apply(o)
			return f.orders[i], nil
		}
	}
	return Order{}, errors.E(errors.KindNotFound, "no such order")
}

func (f *fakeAPI) DeleteOrder(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.record("DELETE /orders/%d", id)
}

func (f *fakeAPI) AddTags(ctx context.Context, tags []string, orderIDs []int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.record("POST /orders/tags %v %v", tags, orderIDs)
}

func (f *fakeAPI) RemoveTag(ctx context.Context, orderID int64, tag string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.record("DELETE /orders/%d/tags/%s", orderID, tag)
}
