package httptransport

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/c0deZ3R0/go-inventory-sync/errors"
	"github.com/c0deZ3R0/go-inventory-sync/inventory"
)

var (
	_ inventory.ProductAPI = (*Client)(nil)
	_ inventory.OrderAPI   = (*Client)(nil)
)

// TagsRequest is the body of POST /orders/tags.
type TagsRequest struct {
	Tags     []string `json:"tags"`
	OrderIDs []int64  `json:"orderIds"`
}

func (c *Client) ListProducts(ctx context.Context) ([]inventory.Product, error) {
	var out []inventory.Product
	if err := c.do(ctx, errors.OpFetch, http.MethodGet, "/products", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateProduct(ctx context.Context, p inventory.Product) (inventory.Product, error) {
	var out inventory.Product
	err := c.do(ctx, errors.OpCreate, http.MethodPost, "/products", p, &out)
	return out, err
}

func (c *Client) UpdateProduct(ctx context.Context, id int64, patch inventory.ProductPatch) (inventory.Product, error) {
	var out inventory.Product
	err := c.do(ctx, errors.OpUpdate, http.MethodPatch, fmt.Sprintf("/products/%d", id), patch, &out)
	return out, err
}

func (c *Client) DeleteProduct(ctx context.Context, id int64, force bool) error {
	path := fmt.Sprintf("/products/%d", id)
	if force {
		path += "?force=true"
	}
	return c.do(ctx, errors.OpDelete, http.MethodDelete, path, nil, nil)
}

func (c *Client) ListOrders(ctx context.Context) ([]inventory.Order, error) {
	var out []inventory.Order
	if err := c.do(ctx, errors.OpFetch, http.MethodGet, "/orders", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) UpdateOrder(ctx context.Context, id int64, patch inventory.OrderPatch) (inventory.Order, error) {
	var out inventory.Order
	err := c.do(ctx, errors.OpUpdate, http.MethodPatch, fmt.Sprintf("/orders/%d", id), patch, &out)
	return out, err
}

func (c *Client) DeleteOrder(ctx context.Context, id int64) error {
	return c.do(ctx, errors.OpDelete, http.MethodDelete, fmt.Sprintf("/orders/%d", id), nil, nil)
}

func (c *Client) AddTags(ctx context.Context, tags []string, orderIDs []int64) error {
	return c.do(ctx, errors.OpAddTag, http.MethodPost, "/orders/tags", TagsRequest{Tags: tags, OrderIDs: orderIDs}, nil)
}

func (c *Client) RemoveTag(ctx context.Context, orderID int64, tag string) error {
	path := fmt.Sprintf("/orders/%d/tags/%s", orderID, url.PathEscape(tag))
	return c.do(ctx, errors.OpRemoveTag, http.MethodDelete, path, nil, nil)
}
