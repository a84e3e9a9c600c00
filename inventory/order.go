package inventory

import "strings"

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderActive    OrderStatus = "ACTIVE"
	OrderCompleted OrderStatus = "COMPLETED"
	OrderCanceled  OrderStatus = "CANCELED"
)

// LineItem is one product on an order.
type LineItem struct {
	ProductID int64 `json:"productId"`
	Quantity  int64 `json:"quantity"`
}

// Order is a customer order. Tags are free-form labels; duplicates are
// allowed.
type Order struct {
	ID           int64       `json:"id"`
	CustomerName string      `json:"customerName"`
	Address      string      `json:"address"`
	Status       OrderStatus `json:"status"`
	Tags         []string    `json:"tags"`
	Items        []LineItem  `json:"items"`
}

func (o Order) Key() int64 { return o.ID }

func (o Order) WithKey(id int64) Order {
	o.ID = id
	return o
}

// OrderPatch is a partial order update. Nil fields are left alone.
type OrderPatch struct {
	CustomerName *string      `json:"customerName,omitempty" validate:"omitempty,min=1,max=200"`
	Address      *string      `json:"address,omitempty" validate:"omitempty,max=500"`
	Status       *OrderStatus `json:"status,omitempty" validate:"omitempty,oneof=ACTIVE COMPLETED CANCELED"`
}

// Validate checks the patch before it is applied.
func (p OrderPatch) Validate() error {
	return validateStruct(p)
}

// Apply returns o with the patch applied.
func (p OrderPatch) Apply(o Order) Order {
	if p.CustomerName != nil {
		o.CustomerName = *p.CustomerName
	}
	if p.Address != nil {
		o.Address = *p.Address
	}
	if p.Status != nil {
		o.Status = *p.Status
	}
	return o
}

// withTags appends tags to an order. The tag slice is copied so snapshots
// taken before the patch stay intact.
func withTags(tags []string) func(Order) Order {
	return func(o Order) Order {
		next := make([]string, 0, len(o.Tags)+len(tags))
		next = append(next, o.Tags...)
		o.Tags = append(next, tags...)
		return o
	}
}

// withoutTag removes the first occurrence of tag.
func withoutTag(tag string) func(Order) Order {
	return func(o Order) Order {
		for i, t := range o.Tags {
			if t == tag {
				next := make([]string, 0, len(o.Tags)-1)
				next = append(next, o.Tags[:i]...)
				o.Tags = append(next, o.Tags[i+1:]...)
				return o
			}
		}
		return o
	}
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
