// Package mapper converts Shopify order representations into Cin7 documents.
// Mapping is pure: no I/O, deterministic output for a given input and options.
package mapper

import (
	"fmt"
	"math"
	"strconv"

	"quoting/internal/cin7"
	"quoting/internal/models"
	"quoting/internal/shopify"
)

type Options struct {
	DefaultCurrency string
	FallbackTaxRate float64 // e.g. 0.10 for 10% GST
	BranchID        int
}

type Mapper struct {
	opts Options
}

func New(opts Options) *Mapper {
	return &Mapper{opts: opts}
}

// OrderToQuote maps a draft order to a Cin7 Omni quote at stage New.
func (m *Mapper) OrderToQuote(o *shopify.Order) *cin7.Quote {
	q := m.buildOmniDocument(o)
	q.Stage = "New"
	return q
}

// OrderToSalesOrder maps a confirmed order to a Cin7 Omni sales order.
func (m *Mapper) OrderToSalesOrder(o *shopify.Order) *cin7.SalesOrder {
	q := m.buildOmniDocument(o)
	q.Stage = "New"
	return &cin7.SalesOrder{Quote: *q}
}

// OrderToSale maps an order to a Cin7 Core sale document.
func (m *Mapper) OrderToSale(o *shopify.Order) *cin7.Sale {
	orderRate := m.orderRate(o)
	addr := resolveAddress(o)
	first, last := resolveName(o, addr)

	sale := &cin7.Sale{
		Customer:          customerLabel(first, last, addr),
		Contact:           joinName(first, last),
		Phone:             resolvePhone(o, addr),
		Email:             o.ResolveEmail(),
		CustomerReference: reference(o),
		TaxInclusive:      false,
		Note:              o.Note,
	}

	if addr != nil {
		sale.ShippingAddress = &cin7.SaleAddr{
			Line1:    addr.Address1,
			Line2:    addr.Address2,
			City:     addr.City,
			State:    addr.Province,
			Postcode: addr.Zip,
			Country:  addr.Country,
		}
	}
	if o.BillingAddress != nil {
		sale.BillingAddress = &cin7.SaleAddr{
			Line1:    o.BillingAddress.Address1,
			Line2:    o.BillingAddress.Address2,
			City:     o.BillingAddress.City,
			State:    o.BillingAddress.Province,
			Postcode: o.BillingAddress.Zip,
			Country:  o.BillingAddress.Country,
		}
	}

	for _, li := range o.LineItems {
		rate := lineRate(li, orderRate)
		unit := m.exclusive(o, parseAmount(li.Price), rate)
		qty := float64(li.Quantity)
		sale.Lines = append(sale.Lines, cin7.SaleLine{
			SKU:      li.Sku,
			Name:     li.Title,
			Quantity: qty,
			Price:    unit,
			Discount: m.exclusive(o, parseAmount(li.TotalDiscount), rate),
			Tax:      lineTax(li, unit, rate, qty),
		})
	}

	return sale
}

// QuoteToOmniQuote maps a stored quote-API request to a Cin7 Omni quote.
// Prices on the quote API are already tax-exclusive.
func (m *Mapper) QuoteToOmniQuote(q *models.Quote) *cin7.Quote {
	doc := &cin7.Quote{
		Stage:        "New",
		Reference:    q.Reference,
		BranchID:     m.opts.BranchID,
		CurrencyCode: m.opts.DefaultCurrency,
		TaxStatus:    "Excl",
		TaxRate:      round2(m.opts.FallbackTaxRate * 100),
	}

	if c := q.Customer; c != nil {
		doc.FirstName = c.FirstName
		doc.LastName = c.LastName
		doc.Company = c.BusinessName
		doc.Email = c.Email
		doc.Phone = c.Phone
		doc.DeliveryFirstName = c.FirstName
		doc.DeliveryLastName = c.LastName
		doc.DeliveryCompany = c.BusinessName
		doc.DeliveryAddress1 = c.AddressLine1
		doc.DeliveryAddress2 = c.AddressLine2
		doc.DeliveryCity = c.City
		doc.DeliveryState = c.State
		doc.DeliveryPostalCode = c.PostalCode
		doc.DeliveryCountry = c.Country
	}
	if q.Notes != "" {
		doc.InternalComments = "Customer notes: " + q.Notes
	}

	for _, li := range q.LineItems {
		doc.LineItems = append(doc.LineItems, cin7.LineItem{
			Code:      li.Code,
			Name:      li.Name,
			Qty:       float64(li.Qty),
			UnitPrice: round2(li.UnitPrice),
		})
	}

	return doc
}

// QuoteToDraftOrder builds the Shopify draft-order request mirroring a
// quote-API request.
func (m *Mapper) QuoteToDraftOrder(q *models.Quote) *shopify.DraftOrderRequest {
	req := &shopify.DraftOrderRequest{
		Note: fmt.Sprintf("Quote %s. Customer notes: %s", q.Reference, orDefault(q.Notes, "None")),
		Tags: "quote",
	}

	for _, li := range q.LineItems {
		req.LineItems = append(req.LineItems, shopify.DraftOrderLineItem{
			Title:    li.Name,
			Price:    strconv.FormatFloat(li.UnitPrice, 'f', 2, 64),
			Quantity: li.Qty,
			Sku:      li.Code,
			Custom:   true,
		})
	}

	if c := q.Customer; c != nil {
		req.Customer = map[string]string{
			"first_name": c.FirstName,
			"last_name":  c.LastName,
			"email":      c.Email,
			"phone":      c.Phone,
		}
		addr := &shopify.Address{
			FirstName: c.FirstName,
			LastName:  c.LastName,
			Company:   c.BusinessName,
			Address1:  c.AddressLine1,
			Address2:  c.AddressLine2,
			City:      c.City,
			Province:  c.State,
			Zip:       c.PostalCode,
			Country:   c.Country,
		}
		req.ShippingAddress = addr
		req.BillingAddress = addr
	}

	return req
}

func (m *Mapper) buildOmniDocument(o *shopify.Order) *cin7.Quote {
	orderRate := m.orderRate(o)
	addr := resolveAddress(o)
	first, last := resolveName(o, addr)

	doc := &cin7.Quote{
		Reference:        reference(o),
		BranchID:         m.opts.BranchID,
		CurrencyCode:     orDefault(o.Currency, m.opts.DefaultCurrency),
		TaxStatus:        "Excl",
		TaxRate:          round2(orderRate * 100),
		InternalComments: o.Note,
		FirstName:        first,
		LastName:         last,
		Email:            o.ResolveEmail(),
		Phone:            resolvePhone(o, addr),
	}

	if addr != nil {
		doc.Company = addr.Company
		doc.DeliveryFirstName = addr.FirstName
		doc.DeliveryLastName = addr.LastName
		doc.DeliveryCompany = addr.Company
		doc.DeliveryAddress1 = addr.Address1
		doc.DeliveryAddress2 = addr.Address2
		doc.DeliveryCity = addr.City
		doc.DeliveryState = addr.Province
		doc.DeliveryPostalCode = addr.Zip
		doc.DeliveryCountry = addr.Country
	}
	if b := o.BillingAddress; b != nil {
		doc.BillingFirstName = b.FirstName
		doc.BillingLastName = b.LastName
		doc.BillingCompany = b.Company
		doc.BillingAddress1 = b.Address1
		doc.BillingAddress2 = b.Address2
		doc.BillingCity = b.City
		doc.BillingState = b.Province
		doc.BillingPostalCode = b.Zip
		doc.BillingCountry = b.Country
	}

	for _, li := range o.LineItems {
		rate := lineRate(li, orderRate)
		doc.LineItems = append(doc.LineItems, cin7.LineItem{
			Code:      li.Sku,
			Name:      li.Title,
			Option1:   li.VariantTitle,
			Qty:       float64(li.Quantity),
			UnitPrice: m.exclusive(o, parseAmount(li.Price), rate),
			Discount:  m.exclusive(o, parseAmount(li.TotalDiscount), rate),
			TaxRate:   round2(rate * 100),
		})
	}

	if discount := parseAmount(o.TotalDiscounts); discount > 0 {
		doc.DiscountTotal = m.exclusive(o, discount, orderRate)
	}

	var freight float64
	for _, sl := range o.ShippingLines {
		rate := shippingRate(sl, orderRate)
		freight += m.exclusive(o, parseAmount(sl.Price), rate)
		if doc.FreightDescription == "" {
			doc.FreightDescription = sl.Title
		}
	}
	if freight > 0 {
		doc.FreightTotal = round2(freight)
	}

	return doc
}

// orderRate resolves the order-level default tax rate: order tax lines, then
// the first line item carrying tax lines, then shipping-line tax lines, then
// the configured fallback. Individual amounts still prefer their own
// line-level rate over this default; accounting depends on that precedence.
func (m *Mapper) orderRate(o *shopify.Order) float64 {
	for _, tl := range o.TaxLines {
		if tl.Rate > 0 {
			return tl.Rate
		}
	}
	for _, li := range o.LineItems {
		for _, tl := range li.TaxLines {
			if tl.Rate > 0 {
				return tl.Rate
			}
		}
	}
	for _, sl := range o.ShippingLines {
		for _, tl := range sl.TaxLines {
			if tl.Rate > 0 {
				return tl.Rate
			}
		}
	}
	return m.opts.FallbackTaxRate
}

// exclusive strips included tax from an amount. Exclusive sources pass through
// with 2dp rounding only.
func (m *Mapper) exclusive(o *shopify.Order, amount, rate float64) float64 {
	if !o.TaxesIncluded || rate <= 0 {
		return round2(amount)
	}
	return round2(amount / (1 + rate))
}

func lineRate(li shopify.LineItem, orderRate float64) float64 {
	for _, tl := range li.TaxLines {
		if tl.Rate > 0 {
			return tl.Rate
		}
	}
	return orderRate
}

// lineTax: explicit tax-line amounts win; otherwise the tax is derived from
// the exclusive unit price and the resolved rate. Covers both inclusive and
// exclusive source orders.
func lineTax(li shopify.LineItem, unit, rate, qty float64) float64 {
	var total float64
	for _, tl := range li.TaxLines {
		total += parseAmount(tl.Price)
	}
	if total > 0 {
		return round2(total)
	}
	return round2(unit * rate * qty)
}

func shippingRate(sl shopify.ShippingLine, orderRate float64) float64 {
	for _, tl := range sl.TaxLines {
		if tl.Rate > 0 {
			return tl.Rate
		}
	}
	return orderRate
}

// resolveAddress: shipping address, else billing, else customer default.
func resolveAddress(o *shopify.Order) *shopify.Address {
	if o.ShippingAddress != nil {
		return o.ShippingAddress
	}
	if o.BillingAddress != nil {
		return o.BillingAddress
	}
	if o.Customer != nil {
		return o.Customer.DefaultAddress
	}
	return nil
}

func resolveName(o *shopify.Order, addr *shopify.Address) (string, string) {
	if addr != nil && (addr.FirstName != "" || addr.LastName != "") {
		return addr.FirstName, addr.LastName
	}
	if o.Customer != nil {
		return o.Customer.FirstName, o.Customer.LastName
	}
	return "", ""
}

func resolvePhone(o *shopify.Order, addr *shopify.Address) string {
	if addr != nil && addr.Phone != "" {
		return addr.Phone
	}
	if o.Customer != nil {
		return o.Customer.Phone
	}
	return ""
}

func customerLabel(first, last string, addr *shopify.Address) string {
	if addr != nil && addr.Company != "" {
		return addr.Company
	}
	return joinName(first, last)
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

func reference(o *shopify.Order) string {
	if o.Name != "" {
		return o.Name
	}
	return fmt.Sprintf("WEB-%d", o.ID)
}

// parseAmount coerces Shopify's string money fields; absent or malformed
// values become 0.
func parseAmount(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
