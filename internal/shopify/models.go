package shopify

import "encoding/json"

// Order is the order/draft-order representation Shopify posts to webhooks.
// Monetary amounts arrive as strings; tax rates arrive as floats.
type Order struct {
	ID              int64          `json:"id"`
	Name            string         `json:"name"`
	Email           string         `json:"email"`
	Currency        string         `json:"currency"`
	Note            string         `json:"note"`
	TaxesIncluded   bool           `json:"taxes_included"`
	TotalDiscounts  string         `json:"total_discounts"`
	TaxLines        []TaxLine      `json:"tax_lines"`
	LineItems       []LineItem     `json:"line_items"`
	ShippingLines   []ShippingLine `json:"shipping_lines"`
	Customer        *Customer      `json:"customer"`
	ShippingAddress *Address       `json:"shipping_address"`
	BillingAddress  *Address       `json:"billing_address"`
	CreatedAt       string         `json:"created_at"`
}

type LineItem struct {
	ID            int64     `json:"id"`
	Title         string    `json:"title"`
	VariantTitle  string    `json:"variant_title"`
	Sku           string    `json:"sku"`
	Quantity      int       `json:"quantity"`
	Price         string    `json:"price"`
	TotalDiscount string    `json:"total_discount"`
	TaxLines      []TaxLine `json:"tax_lines"`
}

type ShippingLine struct {
	Title    string    `json:"title"`
	Price    string    `json:"price"`
	TaxLines []TaxLine `json:"tax_lines"`
}

type TaxLine struct {
	Title string  `json:"title"`
	Price string  `json:"price"`
	Rate  float64 `json:"rate"`
}

type Customer struct {
	ID             int64    `json:"id"`
	Email          string   `json:"email"`
	FirstName      string   `json:"first_name"`
	LastName       string   `json:"last_name"`
	Phone          string   `json:"phone"`
	DefaultAddress *Address `json:"default_address"`
}

type Address struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Company   string `json:"company"`
	Address1  string `json:"address1"`
	Address2  string `json:"address2"`
	City      string `json:"city"`
	Province  string `json:"province"`
	Zip       string `json:"zip"`
	Country   string `json:"country"`
	Phone     string `json:"phone"`
}

// Product is the subset of the Admin API product resource the quote flow reads.
type Product struct {
	ID       int64            `json:"id"`
	Title    string           `json:"title"`
	Handle   string           `json:"handle"`
	Variants []ProductVariant `json:"variants"`
}

type ProductVariant struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	Sku   string `json:"sku"`
	Price string `json:"price"`
}

type DiscountCode struct {
	ID    int64  `json:"id"`
	Code  string `json:"code"`
	Usage int    `json:"usage_count"`
}

// DraftOrderRequest is the payload for creating a draft order.
type DraftOrderRequest struct {
	LineItems                 []DraftOrderLineItem `json:"line_items"`
	Customer                  map[string]string    `json:"customer,omitempty"`
	ShippingAddress           *Address             `json:"shipping_address,omitempty"`
	BillingAddress            *Address             `json:"billing_address,omitempty"`
	Note                      string               `json:"note,omitempty"`
	Tags                      string               `json:"tags,omitempty"`
	AppliedDiscount           *AppliedDiscount     `json:"applied_discount,omitempty"`
	UseCustomerDefaultAddress bool                 `json:"use_customer_default_address"`
}

type DraftOrderLineItem struct {
	Title    string `json:"title"`
	Price    string `json:"price"`
	Quantity int    `json:"quantity"`
	Sku      string `json:"sku,omitempty"`
	Custom   bool   `json:"custom"`
}

type AppliedDiscount struct {
	Title     string `json:"title"`
	ValueType string `json:"value_type"`
	Value     string `json:"value"`
}

type DraftOrder struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// ParseOrder decodes a webhook body that carries the order either at the top
// level or nested under a draft_order key.
func ParseOrder(body []byte) (*Order, error) {
	var wrapped struct {
		DraftOrder *Order `json:"draft_order"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.DraftOrder != nil {
		return wrapped.DraftOrder, nil
	}

	var order Order
	if err := json.Unmarshal(body, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// ResolveEmail returns the order's email, falling back to the customer record.
func (o *Order) ResolveEmail() string {
	if o.Email != "" {
		return o.Email
	}
	if o.Customer != nil {
		return o.Customer.Email
	}
	return ""
}
