package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"quoting/internal/cin7"
	"quoting/internal/config"
	"quoting/internal/dispatch"
	"quoting/internal/events"
	"quoting/internal/logger"
	"quoting/internal/mapper"
	"quoting/internal/models"
	"quoting/internal/shopify"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Cin7Dispatcher is the single-attempt Cin7 surface the handlers dispatch
// through. Satisfied by *cin7.Client; tests substitute a stub.
type Cin7Dispatcher interface {
	SendQuote(quote *cin7.Quote) (*dispatch.Result, error)
	SendSalesOrder(order *cin7.SalesOrder, loadBOMs bool) (*dispatch.Result, error)
	SendSale(sale *cin7.Sale) (*dispatch.Result, error)
	LookupContactID(email string) (*dispatch.Result, error)
}

// EventPublisher decouples handlers from the Kafka writer.
type EventPublisher interface {
	Publish(event events.Event)
}

type WebhookHandler struct {
	db       *gorm.DB
	logger   *logger.Logger
	config   *config.Config
	verifier shopify.WebhookVerifier
	mapper   *mapper.Mapper
	cin7     Cin7Dispatcher
	queue    *dispatch.Queue
	events   EventPublisher
}

func NewWebhookHandler(db *gorm.DB, logger *logger.Logger, cfg *config.Config, c7 Cin7Dispatcher, queue *dispatch.Queue, publisher EventPublisher) *WebhookHandler {
	return &WebhookHandler{
		db:     db,
		logger: logger,
		config: cfg,
		verifier: shopify.WebhookVerifier{
			Secret:        cfg.ShopifyWebhookSecret,
			AllowedDomain: cfg.ShopifyShopDomain,
		},
		mapper: mapper.New(mapper.Options{
			DefaultCurrency: cfg.DefaultCurrency,
			FallbackTaxRate: cfg.DefaultTaxRate,
			BranchID:        cfg.BranchID,
		}),
		cin7:   c7,
		queue:  queue,
		events: publisher,
	}
}

// DraftOrder handles draft-order webhooks; the mapped target is a quote.
func (h *WebhookHandler) DraftOrder(c *gin.Context) {
	h.handle(c, "webhook_draft_order")
}

// Order handles order webhooks; the mapped target is a sales order (Omni) or
// sale (Core).
func (h *WebhookHandler) Order(c *gin.Context) {
	h.handle(c, "webhook_order")
}

// handle runs the webhook pipeline: verify, parse, persist, then hand off to
// the dispatch goroutine. The response is ack-first: 200 goes back once the
// record is saved, so Shopify's delivery deadline is always met. Dispatch
// outcomes surface through the event stream and the quotes table, not the
// webhook response.
func (h *WebhookHandler) handle(c *gin.Context, source string) {
	payload, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read payload"})
		return
	}

	signature := c.GetHeader(shopify.HeaderHMAC)
	if !h.verifier.VerifySignature(payload, signature) {
		h.logger.Warn("Rejected webhook with bad signature from %s", c.ClientIP())
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid webhook signature"})
		return
	}
	if !h.verifier.AllowShop(c.GetHeader(shopify.HeaderShopDomain)) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Shop domain not allowed"})
		return
	}

	order, err := shopify.ParseOrder(payload)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to parse payload"})
		return
	}

	email := order.ResolveEmail()
	if email == "" {
		// No resolvable customer: acknowledged and skipped, never retried by
		// Shopify. The skip is persisted so the drop stays auditable.
		h.logger.Warn("Order %s has no resolvable email, skipping dispatch", order.Name)
		quote := h.newQuoteRecord(order, source)
		quote.Status = models.QuoteStatusSkipped
		if err := h.db.Create(quote).Error; err != nil {
			h.logger.Error("Failed to save skipped quote: %v", err)
		}
		h.publish(events.Event{Type: events.TypeQuoteSkipped, QuoteID: quote.ID})
		c.JSON(http.StatusOK, gin.H{"status": "skipped", "reason": "no customer email"})
		return
	}

	quote := h.newQuoteRecord(order, source)
	if err := h.db.Create(quote).Error; err != nil {
		h.logger.Error("Failed to save quote: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save quote"})
		return
	}
	h.publish(events.Event{Type: events.TypeQuoteCreated, QuoteID: quote.ID})

	// The contact lookup and the dispatch both ride the rate-limited queue,
	// so neither may hold up the ack when the queue is saturated.
	go h.dispatch(order, email, source, quote.ID)

	c.JSON(http.StatusOK, gin.H{"status": "queued", "quote_id": quote.ID})
}

func (h *WebhookHandler) dispatch(order *shopify.Order, email, source, quoteID string) {
	task, payloadJSON := h.buildDispatch(order, email, source)
	outcome := h.queue.Enqueue(task)
	h.logger.Debug("Dispatch queued for quote %s (queue depth %d)", quoteID, h.queue.Len())
	settleDispatch(h.logger, h.events, h.config.Cin7Target, quoteID, payloadJSON, outcome)
}

// buildDispatch maps the order and returns the single-attempt dispatch task
// plus the marshalled payload for rejection diagnostics.
func (h *WebhookHandler) buildDispatch(order *shopify.Order, email, source string) (dispatch.Task, []byte) {
	if h.config.Cin7Target == cin7.TargetCore {
		sale := h.mapper.OrderToSale(order)
		payloadJSON, _ := json.Marshal(sale)
		return func() (*dispatch.Result, error) {
			return h.cin7.SendSale(sale)
		}, payloadJSON
	}

	var doc *cin7.Quote
	isOrder := source == "webhook_order"
	if isOrder {
		so := h.mapper.OrderToSalesOrder(order)
		doc = &so.Quote
	} else {
		doc = h.mapper.OrderToQuote(order)
	}

	// Best-effort contact enrichment; the lookup rides the same rate-limited
	// queue as every other Cin7 call. Failure never aborts the flow.
	if out := <-h.queue.Enqueue(func() (*dispatch.Result, error) {
		return h.cin7.LookupContactID(email)
	}); out.Succeeded() {
		doc.MemberID = cin7.ParseContactID(out.Result.Body)
	} else {
		h.logger.Warn("Contact lookup for %s failed: %v", email, out.Err)
	}

	payloadJSON, _ := json.Marshal(doc)
	if isOrder {
		order := &cin7.SalesOrder{Quote: *doc}
		return func() (*dispatch.Result, error) {
			return h.cin7.SendSalesOrder(order, false)
		}, payloadJSON
	}
	quoteDoc := doc
	return func() (*dispatch.Result, error) {
		return h.cin7.SendQuote(quoteDoc)
	}, payloadJSON
}

func (h *WebhookHandler) newQuoteRecord(order *shopify.Order, source string) *models.Quote {
	quote := &models.Quote{
		Source:        source,
		Reference:     order.Name,
		CustomerEmail: order.ResolveEmail(),
		Status:        models.QuoteStatusProcessing,
		Notes:         order.Note,
	}

	if order.ID != 0 {
		id := jsonNumber(order.ID)
		if source == "webhook_draft_order" {
			quote.ShopifyDraftOrderID = &id
		} else {
			quote.ShopifyOrderID = &id
		}
	}
	if order.Customer != nil {
		quote.CustomerName = joinName(order.Customer.FirstName, order.Customer.LastName)
	}
	for _, li := range order.LineItems {
		quote.LineItems = append(quote.LineItems, models.QuoteLineItem{
			Code: li.Sku,
			Name: li.Title,
			Qty:  li.Quantity,
		})
	}

	return quote
}

func (h *WebhookHandler) publish(event events.Event) {
	if h.events != nil {
		h.events.Publish(event)
	}
}

func outcomeError(out dispatch.Outcome) string {
	if out.Err != nil {
		return out.Err.Error()
	}
	return "dispatch failed"
}

func jsonNumber(id int64) string {
	return strconv.FormatInt(id, 10)
}

func joinName(first, last string) string {
	switch {
	case first == "":
		return last
	case last == "":
		return first
	default:
		return first + " " + last
	}
}
