package handlers

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"quoting/internal/cin7"
	"quoting/internal/config"
	"quoting/internal/database"
	"quoting/internal/dispatch"
	"quoting/internal/events"
	"quoting/internal/logger"
	"quoting/internal/models"
	"quoting/internal/shopify"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

const testSecret = "shpss_test_secret"

type stubCin7 struct {
	mu        sync.Mutex
	quotes    []*cin7.Quote
	orders    []*cin7.SalesOrder
	sales     []*cin7.Sale
	lookups   []string
	contactID int64
}

func omniOK() *dispatch.Result {
	return &dispatch.Result{StatusCode: 200, Body: []byte(`[{"index":0,"success":true,"id":555}]`)}
}

func (s *stubCin7) SendQuote(q *cin7.Quote) (*dispatch.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotes = append(s.quotes, q)
	return omniOK(), nil
}

func (s *stubCin7) SendSalesOrder(o *cin7.SalesOrder, loadBOMs bool) (*dispatch.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = append(s.orders, o)
	return omniOK(), nil
}

func (s *stubCin7) SendSale(sale *cin7.Sale) (*dispatch.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sales = append(s.sales, sale)
	return &dispatch.Result{StatusCode: 200, Body: []byte(`{"ID":"abc-1","Status":"DRAFT"}`)}, nil
}

func (s *stubCin7) LookupContactID(email string) (*dispatch.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups = append(s.lookups, email)
	return &dispatch.Result{StatusCode: 200, Body: []byte(fmt.Sprintf(`[{"id":%d,"email":%q}]`, s.contactID, email))}, nil
}

func (s *stubCin7) sendCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.quotes) + len(s.orders) + len(s.sales)
}

type stubPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *stubPublisher) Publish(event events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *stubPublisher) typesSeen() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type webhookRig struct {
	router    *gin.Engine
	cin7      *stubCin7
	publisher *stubPublisher
	db        *database.Database
	queue     *dispatch.Queue
}

func newWebhookRig(t *testing.T, target string) *webhookRig {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.New("sqlite://" + t.TempDir() + "/test.db")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	queue := dispatch.New(dispatch.Options{
		PerSecond: 1000,
		PerMinute: 100000,
		Logger:    logger.New("error"),
	})
	queue.Start()
	t.Cleanup(queue.Stop)

	cfg := &config.Config{
		ShopifyWebhookSecret: testSecret,
		ShopifyShopDomain:    "example.myshopify.com",
		Cin7Target:           target,
		DefaultCurrency:      "AUD",
		DefaultTaxRate:       0.10,
	}

	stub := &stubCin7{contactID: 777}
	publisher := &stubPublisher{}
	handler := NewWebhookHandler(db.DB, logger.New("error"), cfg, stub, queue, publisher)

	router := gin.New()
	router.POST("/webhooks/draft-orders", handler.DraftOrder)
	router.POST("/webhooks/orders", handler.Order)

	return &webhookRig{router: router, cin7: stub, publisher: publisher, db: db, queue: queue}
}

func sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func (rig *webhookRig) post(path string, body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(shopify.HeaderShopDomain, "example.myshopify.com")
	if signature != "" {
		req.Header.Set(shopify.HeaderHMAC, signature)
	}
	w := httptest.NewRecorder()
	rig.router.ServeHTTP(w, req)
	return w
}

func draftOrderBody() []byte {
	return []byte(`{"draft_order":{
		"id": 42001,
		"name": "#D101",
		"email": "buyer@example.com",
		"currency": "AUD",
		"taxes_included": true,
		"line_items": [
			{"sku":"LASER-1","title":"Laser cutter","quantity":1,"price":"110.00",
			 "tax_lines":[{"rate":0.10,"title":"GST"}]}
		],
		"shipping_address": {"first_name":"Ada","last_name":"Lovelace","address1":"1 Babbage Way","city":"London"}
	}}`)
}

func TestDraftOrderWebhookMapsAndDispatches(t *testing.T) {
	rig := newWebhookRig(t, cin7.TargetOmni)
	body := draftOrderBody()

	w := rig.post("/webhooks/draft-orders", body, sign(body))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "queued")

	require.Eventually(t, func() bool {
		rig.cin7.mu.Lock()
		defer rig.cin7.mu.Unlock()
		return len(rig.cin7.quotes) == 1
	}, 2*time.Second, 10*time.Millisecond)

	rig.cin7.mu.Lock()
	sent := rig.cin7.quotes[0]
	rig.cin7.mu.Unlock()

	require.Equal(t, "New", sent.Stage)
	require.Equal(t, "#D101", sent.Reference)
	require.Equal(t, "Excl", sent.TaxStatus)
	require.Equal(t, 100.00, sent.LineItems[0].UnitPrice)
	require.Equal(t, 10.0, sent.LineItems[0].TaxRate)
	require.Equal(t, int64(777), sent.MemberID)
	require.Equal(t, []string{"buyer@example.com"}, rig.cin7.lookups)

	require.Eventually(t, func() bool {
		types := rig.publisher.typesSeen()
		for _, typ := range types {
			if typ == events.TypeQuoteDispatched {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	var quote models.Quote
	require.NoError(t, rig.db.DB.First(&quote).Error)
	require.Equal(t, "webhook_draft_order", quote.Source)
	require.Equal(t, "buyer@example.com", quote.CustomerEmail)
}

func TestOrderWebhookDispatchesSalesOrder(t *testing.T) {
	rig := newWebhookRig(t, cin7.TargetOmni)
	body := []byte(`{"id": 9001, "name":"#1001", "email":"buyer@example.com",
		"line_items":[{"sku":"A","title":"A","quantity":1,"price":"10.00"}]}`)

	w := rig.post("/webhooks/orders", body, sign(body))
	require.Equal(t, http.StatusOK, w.Code)

	require.Eventually(t, func() bool {
		rig.cin7.mu.Lock()
		defer rig.cin7.mu.Unlock()
		return len(rig.cin7.orders) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestOrderWebhookCoreTargetDispatchesSale(t *testing.T) {
	rig := newWebhookRig(t, cin7.TargetCore)
	body := []byte(`{"id": 9002, "name":"#1002", "email":"buyer@example.com",
		"line_items":[{"sku":"A","title":"A","quantity":1,"price":"10.00"}]}`)

	w := rig.post("/webhooks/orders", body, sign(body))
	require.Equal(t, http.StatusOK, w.Code)

	require.Eventually(t, func() bool {
		rig.cin7.mu.Lock()
		defer rig.cin7.mu.Unlock()
		return len(rig.cin7.sales) == 1
	}, 2*time.Second, 10*time.Millisecond)

	// Core has no contact lookup step.
	rig.cin7.mu.Lock()
	defer rig.cin7.mu.Unlock()
	require.Empty(t, rig.cin7.lookups)
}

func TestAckIsNotDelayedByQueueBacklog(t *testing.T) {
	rig := newWebhookRig(t, cin7.TargetOmni)

	// Park the dispatch worker on a task that will not finish until released;
	// everything behind it, including the contact lookup, has to wait.
	release := make(chan struct{})
	releaseOnce := sync.OnceFunc(func() { close(release) })
	t.Cleanup(releaseOnce)
	rig.queue.Enqueue(func() (*dispatch.Result, error) {
		<-release
		return &dispatch.Result{StatusCode: 200, Body: []byte(`[{"success":true}]`)}, nil
	})

	body := draftOrderBody()
	done := make(chan *httptest.ResponseRecorder, 1)
	go func() { done <- rig.post("/webhooks/draft-orders", body, sign(body)) }()

	select {
	case w := <-done:
		require.Equal(t, http.StatusOK, w.Code)
		require.Contains(t, w.Body.String(), "queued")
	case <-time.After(2 * time.Second):
		t.Fatal("webhook ack blocked behind the dispatch queue")
	}

	releaseOnce()
	require.Eventually(t, func() bool {
		rig.cin7.mu.Lock()
		defer rig.cin7.mu.Unlock()
		return len(rig.cin7.quotes) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestMissingEmailSkipsDispatch(t *testing.T) {
	rig := newWebhookRig(t, cin7.TargetOmni)
	body := []byte(`{"id": 9003, "name":"#1003",
		"line_items":[{"sku":"A","title":"A","quantity":1,"price":"10.00"}]}`)

	w := rig.post("/webhooks/orders", body, sign(body))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "skipped")

	time.Sleep(100 * time.Millisecond)
	require.Zero(t, rig.cin7.sendCount())

	var quote models.Quote
	require.NoError(t, rig.db.DB.First(&quote).Error)
	require.Equal(t, models.QuoteStatusSkipped, quote.Status)
}

func TestBadSignatureRejected(t *testing.T) {
	rig := newWebhookRig(t, cin7.TargetOmni)
	body := draftOrderBody()

	w := rig.post("/webhooks/draft-orders", body, sign([]byte("other")))
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = rig.post("/webhooks/draft-orders", body, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)

	time.Sleep(50 * time.Millisecond)
	require.Zero(t, rig.cin7.sendCount())

	var count int64
	rig.db.DB.Model(&models.Quote{}).Count(&count)
	require.Zero(t, count)
}

func TestDisallowedShopDomainRejected(t *testing.T) {
	rig := newWebhookRig(t, cin7.TargetOmni)
	body := draftOrderBody()

	req := httptest.NewRequest(http.MethodPost, "/webhooks/draft-orders", bytes.NewReader(body))
	req.Header.Set(shopify.HeaderHMAC, sign(body))
	req.Header.Set(shopify.HeaderShopDomain, "evil.myshopify.com")
	w := httptest.NewRecorder()
	rig.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMalformedBodyRejected(t *testing.T) {
	rig := newWebhookRig(t, cin7.TargetOmni)
	body := []byte(`{"line_items": not json`)

	w := rig.post("/webhooks/orders", body, sign(body))
	require.Equal(t, http.StatusBadRequest, w.Code)
}
