package inventory

import (
	stderrors "errors"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/c0deZ3R0/go-inventory-sync/errors"
)

// ProductStatus is the lifecycle state of a product.
type ProductStatus string

const (
	ProductActive   ProductStatus = "ACTIVE"
	ProductInactive ProductStatus = "INACTIVE"
)

// Product is an inventory item.
type Product struct {
	ID               int64           `json:"id"`
	Name             string          `json:"name"`
	Price            decimal.Decimal `json:"price"`
	Quantity         int64           `json:"quantity"`
	Unit             string          `json:"unit"`
	MinOrderQuantity int64           `json:"minOrderQuantity"`
	Status           ProductStatus   `json:"status"`
}

func (p Product) Key() int64 { return p.ID }

func (p Product) WithKey(id int64) Product {
	p.ID = id
	return p
}

// ProductForm is what a user types into the product editor. Every field
// arrives as text and is validated before anything touches the store.
type ProductForm struct {
	Name             string `json:"name" validate:"required,max=120"`
	Price            string `json:"price" validate:"required,numeric"`
	Quantity         string `json:"quantity" validate:"required,number"`
	Unit             string `json:"unit" validate:"required,max=16"`
	MinOrderQuantity string `json:"minOrderQuantity" validate:"omitempty,number"`
	Status           string `json:"status" validate:"omitempty,oneof=ACTIVE INACTIVE"`
}

// Product validates the form and converts it.
func (f ProductForm) Product() (Product, error) {
	f.Name = strings.TrimSpace(f.Name)
	f.Price = strings.TrimSpace(f.Price)
	f.Quantity = strings.TrimSpace(f.Quantity)
	if err := validateStruct(f); err != nil {
		return Product{}, err
	}

	price, err := decimal.NewFromString(f.Price)
	if err != nil || price.IsNegative() {
		return Product{}, invalid("price must be a non-negative amount")
	}
	qty, err := strconv.ParseInt(f.Quantity, 10, 64)
	if err != nil {
		return Product{}, invalid("quantity must be a whole number")
	}
	minQty := int64(1)
	if f.MinOrderQuantity != "" {
		if minQty, err = strconv.ParseInt(f.MinOrderQuantity, 10, 64); err != nil || minQty < 1 {
			return Product{}, invalid("minimum order quantity must be at least 1")
		}
	}
	status := ProductActive
	if f.Status != "" {
		status = ProductStatus(f.Status)
	}

	return Product{
		Name:             f.Name,
		Price:            price.Round(2),
		Quantity:         qty,
		Unit:             f.Unit,
		MinOrderQuantity: minQty,
		Status:           status,
	}, nil
}

// ProductPatch is a partial product update. Nil fields are left alone.
type ProductPatch struct {
	Name             *string          `json:"name,omitempty" validate:"omitempty,min=1,max=120"`
	Price            *decimal.Decimal `json:"price,omitempty"`
	Quantity         *int64           `json:"quantity,omitempty" validate:"omitempty,gte=0"`
	Unit             *string          `json:"unit,omitempty" validate:"omitempty,min=1,max=16"`
	MinOrderQuantity *int64           `json:"minOrderQuantity,omitempty" validate:"omitempty,gte=1"`
	Status           *ProductStatus   `json:"status,omitempty" validate:"omitempty,oneof=ACTIVE INACTIVE"`
}

// Validate checks the patch before it is applied.
func (p ProductPatch) Validate() error {
	if err := validateStruct(p); err != nil {
		return err
	}
	if p.Price != nil && p.Price.IsNegative() {
		return invalid("price must be a non-negative amount")
	}
	return nil
}

// Apply returns prod with the patch applied.
func (p ProductPatch) Apply(prod Product) Product {
	if p.Name != nil {
		prod.Name = *p.Name
	}
	if p.Price != nil {
		prod.Price = *p.Price
	}
	if p.Quantity != nil {
		prod.Quantity = *p.Quantity
	}
	if p.Unit != nil {
		prod.Unit = *p.Unit
	}
	if p.MinOrderQuantity != nil {
		prod.MinOrderQuantity = *p.MinOrderQuantity
	}
	if p.Status != nil {
		prod.Status = *p.Status
	}
	return prod
}

func invalid(msg string) error {
	err := errors.NewValidationError(errors.OpValidate, stderrors.New(msg))
	err.Component = "inventory"
	return err
}
