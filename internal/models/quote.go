package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type QuoteStatus string

const (
	QuoteStatusProcessing QuoteStatus = "processing"
	QuoteStatusCompleted  QuoteStatus = "completed"
	QuoteStatusPartial    QuoteStatus = "partial"
	QuoteStatusFailed     QuoteStatus = "failed"
	QuoteStatusSkipped    QuoteStatus = "skipped"
)

// Quote is the persisted record of one inbound order/draft-order/quote request
// and the outcome of its downstream dispatch.
type Quote struct {
	ID                  string          `json:"id" gorm:"primary_key"`
	Source              string          `json:"source" gorm:"not null"` // webhook_order, webhook_draft_order, quote_api
	ShopifyOrderID      *string         `json:"shopify_order_id"`
	ShopifyDraftOrderID *string         `json:"shopify_draft_order_id"`
	Cin7ID              *string         `json:"cin7_id"`
	Reference           string          `json:"reference"`
	CustomerName        string          `json:"customer_name"`
	CustomerEmail       string          `json:"customer_email"`
	LineItems           []QuoteLineItem `json:"line_items" gorm:"serializer:json"`
	Customer            *QuoteCustomer  `json:"customer" gorm:"serializer:json"`
	Notes               string          `json:"notes"`
	DiscountCode        string          `json:"discount_code"`
	Status              QuoteStatus     `json:"status" gorm:"default:processing"`
	Errors              []string        `json:"errors" gorm:"serializer:json"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

type QuoteLineItem struct {
	Code      string  `json:"code"`
	Name      string  `json:"name"`
	Qty       int     `json:"qty"`
	UnitPrice float64 `json:"unit_price"`
}

type QuoteCustomer struct {
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Email        string `json:"email"`
	BusinessName string `json:"business_name"`
	Phone        string `json:"phone"`
	AddressLine1 string `json:"address_line1"`
	AddressLine2 string `json:"address_line2"`
	City         string `json:"city"`
	State        string `json:"state"`
	PostalCode   string `json:"postal_code"`
	Country      string `json:"country"`
}

func (q *Quote) BeforeCreate(tx *gorm.DB) error {
	if q.ID == "" {
		q.ID = uuid.New().String()
	}
	return nil
}
