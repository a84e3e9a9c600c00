package inventory

import "context"

// ProductAPI is the remote side of the products domain.
type ProductAPI interface {
	ListProducts(ctx context.Context) ([]Product, error)
	CreateProduct(ctx context.Context, p Product) (Product, error)
	UpdateProduct(ctx context.Context, id int64, patch ProductPatch) (Product, error)
	// DeleteProduct deletes a product. Without force the server may refuse
	// with a rejection, for example when active orders reference it.
	DeleteProduct(ctx context.Context, id int64, force bool) error
}

// OrderAPI is the remote side of the orders domain.
type OrderAPI interface {
	ListOrders(ctx context.Context) ([]Order, error)
	UpdateOrder(ctx context.Context, id int64, patch OrderPatch) (Order, error)
	DeleteOrder(ctx context.Context, id int64) error
	AddTags(ctx context.Context, tags []string, orderIDs []int64) error
	RemoveTag(ctx context.Context, orderID int64, tag string) error
}
