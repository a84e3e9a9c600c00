package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/c0deZ3R0/go-inventory-sync/errors"
	"github.com/c0deZ3R0/go-inventory-sync/synckit"
)

// Domain names. They double as the persistence keys of the stores.
const (
	ProductsDomain = "products"
	OrdersDomain   = "orders"
)

type deletePayload struct {
	Force bool `json:"force,omitempty"`
}

type tagsPayload struct {
	Tags []string `json:"tags"`
}

type tagPayload struct {
	Tag string `json:"tag"`
}

func decode(op synckit.PendingOperation, v any) error {
	if len(op.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(op.Data, v); err != nil {
		return errors.E(errors.Op(string(op.Type)), errors.Component("inventory"), errors.KindUnsupported,
			errors.ErrCodeUnsupportedOp, err, "decode queued payload")
	}
	return nil
}

// ProductRoutes binds the products store to api.
func ProductRoutes(api ProductAPI) synckit.Domain[Product] {
	byID := func(op synckit.PendingOperation) string {
		return fmt.Sprintf("/products/%d", op.Target())
	}
	return synckit.Domain[Product]{
		Name: ProductsDomain,
		Routes: map[synckit.OpType]synckit.Route[Product]{
			synckit.OpCreate: {
				Method: http.MethodPost,
				Path:   func(synckit.PendingOperation) string { return "/products" },
				Call: func(ctx context.Context, op synckit.PendingOperation) (*Product, error) {
					var p Product
					if err := decode(op, &p); err != nil {
						return nil, err
					}
					p.ID = 0
					created, err := api.CreateProduct(ctx, p)
					if err != nil {
						return nil, err
					}
					return &created, nil
				},
			},
			synckit.OpUpdate: {
				Method: http.MethodPatch,
				Path:   byID,
				Call: func(ctx context.Context, op synckit.PendingOperation) (*Product, error) {
					var patch ProductPatch
					if err := decode(op, &patch); err != nil {
						return nil, err
					}
					updated, err := api.UpdateProduct(ctx, op.Target(), patch)
					if err != nil {
						return nil, err
					}
					return &updated, nil
				},
			},
			synckit.OpDelete: {
				Method: http.MethodDelete,
				Path: func(op synckit.PendingOperation) string {
					var d deletePayload
					if decode(op, &d) == nil && d.Force {
						return byID(op) + "?force=true"
					}
					return byID(op)
				},
				Call: func(ctx context.Context, op synckit.PendingOperation) (*Product, error) {
					var d deletePayload
					if err := decode(op, &d); err != nil {
						return nil, err
					}
					return nil, api.DeleteProduct(ctx, op.Target(), d.Force)
				},
			},
		},
		List: api.ListProducts,
	}
}

// OrderRoutes binds the orders store to api. Orders are created elsewhere,
// so there is no create route.
func OrderRoutes(api OrderAPI) synckit.Domain[Order] {
	byID := func(op synckit.PendingOperation) string {
		return fmt.Sprintf("/orders/%d", op.Target())
	}
	return synckit.Domain[Order]{
		Name: OrdersDomain,
		Routes: map[synckit.OpType]synckit.Route[Order]{
			synckit.OpUpdate: {
				Method: http.MethodPatch,
				Path:   byID,
				Call: func(ctx context.Context, op synckit.PendingOperation) (*Order, error) {
					var patch OrderPatch
					if err := decode(op, &patch); err != nil {
						return nil, err
					}
					updated, err := api.UpdateOrder(ctx, op.Target(), patch)
					if err != nil {
						return nil, err
					}
					return &updated, nil
				},
			},
			synckit.OpDelete: {
				Method: http.MethodDelete,
				Path:   byID,
				Call: func(ctx context.Context, op synckit.PendingOperation) (*Order, error) {
					return nil, api.DeleteOrder(ctx, op.Target())
				},
			},
			synckit.OpAddTag: {
				Method: http.MethodPost,
				Path:   func(synckit.PendingOperation) string { return "/orders/tags" },
				Call: func(ctx context.Context, op synckit.PendingOperation) (*Order, error) {
					var p tagsPayload
					if err := decode(op, &p); err != nil {
						return nil, err
					}
					return nil, api.AddTags(ctx, p.Tags, op.Targets)
				},
			},
			synckit.OpRemoveTag: {
				Method: http.MethodDelete,
				Path: func(op synckit.PendingOperation) string {
					var p tagPayload
					_ = decode(op, &p)
					return fmt.Sprintf("/orders/%d/tags/%s", op.Target(), url.PathEscape(p.Tag))
				},
				Call: func(ctx context.Context, op synckit.PendingOperation) (*Order, error) {
					var p tagPayload
					if err := decode(op, &p); err != nil {
						return nil, err
					}
					return nil, api.RemoveTag(ctx, op.Target(), p.Tag)
				},
			},
		},
		List: api.ListOrders,
	}
}
