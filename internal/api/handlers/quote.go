package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"quoting/internal/cin7"
	"quoting/internal/config"
	"quoting/internal/dispatch"
	"quoting/internal/events"
	"quoting/internal/logger"
	"quoting/internal/mapper"
	"quoting/internal/models"
	"quoting/internal/shopify"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DraftOrderCreator is the Shopify surface the quote API uses. Satisfied by
// *shopify.Client; nil disables the Shopify side entirely.
type DraftOrderCreator interface {
	CreateDraftOrder(draft *shopify.DraftOrderRequest) (*shopify.DraftOrder, error)
	ValidateDiscountCode(code string) []shopify.DiscountCode
}

type QuoteHandler struct {
	db      *gorm.DB
	logger  *logger.Logger
	config  *config.Config
	mapper  *mapper.Mapper
	shopify DraftOrderCreator
	cin7    Cin7Dispatcher
	queue   *dispatch.Queue
	events  EventPublisher
}

func NewQuoteHandler(db *gorm.DB, logger *logger.Logger, cfg *config.Config, sh DraftOrderCreator, c7 Cin7Dispatcher, queue *dispatch.Queue, publisher EventPublisher) *QuoteHandler {
	return &QuoteHandler{
		db:     db,
		logger: logger,
		config: cfg,
		mapper: mapper.New(mapper.Options{
			DefaultCurrency: cfg.DefaultCurrency,
			FallbackTaxRate: cfg.DefaultTaxRate,
			BranchID:        cfg.BranchID,
		}),
		shopify: sh,
		cin7:    c7,
		queue:   queue,
		events:  publisher,
	}
}

type quoteRequest struct {
	ProductID     string          `json:"product_id"`
	ProductHandle string          `json:"product_handle"`
	ProductTitle  string          `json:"product_title" binding:"required"`
	LineItems     []quoteLineItem `json:"line_items" binding:"required,min=1,max=10,dive"`
	Customer      quoteCustomer   `json:"customer" binding:"required"`
	DiscountCode  string          `json:"discount_code"`
	Notes         string          `json:"notes"`
}

type quoteLineItem struct {
	Code      string  `json:"code" binding:"required"`
	Name      string  `json:"name" binding:"required"`
	Qty       int     `json:"qty" binding:"required,gt=0"`
	UnitPrice float64 `json:"unit_price"`
}

type quoteCustomer struct {
	FirstName    string `json:"first_name" binding:"required"`
	LastName     string `json:"last_name" binding:"required"`
	Email        string `json:"email" binding:"required,email"`
	BusinessName string `json:"business_name" binding:"required"`
	Phone        string `json:"phone"`
	AddressLine1 string `json:"address_line1" binding:"required"`
	AddressLine2 string `json:"address_line2"`
	City         string `json:"city" binding:"required"`
	State        string `json:"state" binding:"required"`
	PostalCode   string `json:"postal_code" binding:"required"`
	Country      string `json:"country"`
}

// Create accepts a structured quote request, creates a matching Shopify draft
// order (best-effort) and queues the Cin7 dispatch.
func (h *QuoteHandler) Create(c *gin.Context) {
	var req quoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Customer.Country == "" {
		req.Customer.Country = "Australia"
	}

	quote := &models.Quote{
		ID:            uuid.New().String(),
		Source:        "quote_api",
		Reference:     "WEB-" + time.Now().Format("20060102150405"),
		CustomerName:  joinName(req.Customer.FirstName, req.Customer.LastName),
		CustomerEmail: req.Customer.Email,
		Notes:         req.Notes,
		DiscountCode:  req.DiscountCode,
		Status:        models.QuoteStatusProcessing,
		Customer: &models.QuoteCustomer{
			FirstName:    req.Customer.FirstName,
			LastName:     req.Customer.LastName,
			Email:        req.Customer.Email,
			BusinessName: req.Customer.BusinessName,
			Phone:        req.Customer.Phone,
			AddressLine1: req.Customer.AddressLine1,
			AddressLine2: req.Customer.AddressLine2,
			City:         req.Customer.City,
			State:        req.Customer.State,
			PostalCode:   req.Customer.PostalCode,
			Country:      req.Customer.Country,
		},
	}
	for _, li := range req.LineItems {
		quote.LineItems = append(quote.LineItems, models.QuoteLineItem{
			Code:      li.Code,
			Name:      li.Name,
			Qty:       li.Qty,
			UnitPrice: li.UnitPrice,
		})
	}

	if h.shopify != nil {
		h.createDraftOrder(quote)
	}

	if err := h.db.Create(quote).Error; err != nil {
		h.logger.Error("Failed to save quote: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save quote"})
		return
	}
	h.publish(events.Event{Type: events.TypeQuoteCreated, QuoteID: quote.ID})

	doc := h.mapper.QuoteToOmniQuote(quote)
	payloadJSON, _ := json.Marshal(doc)
	outcome := h.queue.Enqueue(func() (*dispatch.Result, error) {
		return h.cin7.SendQuote(doc)
	})
	h.logger.Debug("Dispatch queued for quote %s (queue depth %d)", quote.ID, h.queue.Len())
	go settleDispatch(h.logger, h.events, h.config.Cin7Target, quote.ID, payloadJSON, outcome)

	c.JSON(http.StatusOK, gin.H{
		"quote_id":               quote.ID,
		"shopify_draft_order_id": quote.ShopifyDraftOrderID,
		"status":                 quote.Status,
		"created_at":             quote.CreatedAt,
		"customer_name":          quote.CustomerName,
		"total_items":            len(quote.LineItems),
		"message":                "Quote accepted and queued for dispatch",
	})
}

// createDraftOrder mirrors the quote into Shopify. Failure is recorded on the
// quote but never blocks the Cin7 side.
func (h *QuoteHandler) createDraftOrder(quote *models.Quote) {
	draftReq := h.mapper.QuoteToDraftOrder(quote)

	if quote.DiscountCode != "" {
		if codes := h.shopify.ValidateDiscountCode(quote.DiscountCode); len(codes) > 0 {
			draftReq.AppliedDiscount = &shopify.AppliedDiscount{
				Title:     quote.DiscountCode,
				ValueType: "percentage",
				Value:     "10.0",
			}
		}
	}

	draft, err := h.shopify.CreateDraftOrder(draftReq)
	if err != nil {
		h.logger.Error("Shopify draft order for quote %s failed: %v", quote.ID, err)
		quote.Errors = append(quote.Errors, "Shopify error: "+err.Error())
		return
	}

	id := jsonNumber(draft.ID)
	quote.ShopifyDraftOrderID = &id
	h.logger.Info("Created Shopify draft order %s for quote %s", id, quote.ID)
}

// List returns quotes newest first.
func (h *QuoteHandler) List(c *gin.Context) {
	var quotes []models.Quote
	if err := h.db.Order("created_at desc").Find(&quotes).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch quotes"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"quotes": quotes})
}

// Get returns a single quote by id.
func (h *QuoteHandler) Get(c *gin.Context) {
	var quote models.Quote
	if err := h.db.First(&quote, "id = ?", c.Param("id")).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "Quote not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch quote"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"quote": quote})
}

func (h *QuoteHandler) publish(event events.Event) {
	if h.events != nil {
		h.events.Publish(event)
	}
}

// settleDispatch records a dispatch outcome on the event stream once the
// queue resolves it. Shared by the webhook and quote flows.
func settleDispatch(log *logger.Logger, pub EventPublisher, target, quoteID string, payloadJSON []byte, outcome <-chan dispatch.Outcome) {
	out := <-outcome

	if !out.Succeeded() {
		log.Error("Dispatch for quote %s failed after %d attempts: %v; payload: %s",
			quoteID, out.Attempts, out.Err, payloadJSON)
		publishTo(pub, events.Event{
			Type:    events.TypeQuoteFailed,
			QuoteID: quoteID,
			Errors:  []string{outcomeError(out)},
		})
		return
	}

	if target != cin7.TargetCore {
		// A 2xx from Omni can still carry success=false per document.
		if parsed, err := cin7.ParseOmniResponse(out.Result.Body); err == nil && !parsed.Success {
			log.Error("Cin7 rejected quote %s: %v; payload: %s", quoteID, parsed.Errors, payloadJSON)
			publishTo(pub, events.Event{
				Type:    events.TypeQuoteFailed,
				QuoteID: quoteID,
				Errors:  parsed.Errors,
			})
			return
		}
	}

	cin7ID := cin7.DocumentID(target, out.Result)
	log.Info("Quote %s dispatched to Cin7 (id %s)", quoteID, cin7ID)
	publishTo(pub, events.Event{
		Type:    events.TypeQuoteDispatched,
		QuoteID: quoteID,
		Cin7ID:  cin7ID,
	})
}

func publishTo(pub EventPublisher, event events.Event) {
	if pub != nil {
		pub.Publish(event)
	}
}
