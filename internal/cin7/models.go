package cin7

import "encoding/json"

// Quote is a Cin7 Omni quote document. The Omni API wants monetary fields
// tax-adjusted to match TaxStatus; empty fields are pruned on marshal.
type Quote struct {
	Stage               string     `json:"stage,omitempty"`
	Reference           string     `json:"reference,omitempty"`
	MemberID            int64      `json:"memberId,omitempty"`
	FirstName           string     `json:"firstName,omitempty"`
	LastName            string     `json:"lastName,omitempty"`
	Company             string     `json:"company,omitempty"`
	Email               string     `json:"email,omitempty"`
	Phone               string     `json:"phone,omitempty"`
	DeliveryFirstName   string     `json:"deliveryFirstName,omitempty"`
	DeliveryLastName    string     `json:"deliveryLastName,omitempty"`
	DeliveryCompany     string     `json:"deliveryCompany,omitempty"`
	DeliveryAddress1    string     `json:"deliveryAddress1,omitempty"`
	DeliveryAddress2    string     `json:"deliveryAddress2,omitempty"`
	DeliveryCity        string     `json:"deliveryCity,omitempty"`
	DeliveryState       string     `json:"deliveryState,omitempty"`
	DeliveryPostalCode  string     `json:"deliveryPostalCode,omitempty"`
	DeliveryCountry     string     `json:"deliveryCountry,omitempty"`
	BillingFirstName    string     `json:"billingFirstName,omitempty"`
	BillingLastName     string     `json:"billingLastName,omitempty"`
	BillingCompany      string     `json:"billingCompany,omitempty"`
	BillingAddress1     string     `json:"billingAddress1,omitempty"`
	BillingAddress2     string     `json:"billingAddress2,omitempty"`
	BillingCity         string     `json:"billingCity,omitempty"`
	BillingState        string     `json:"billingState,omitempty"`
	BillingPostalCode   string     `json:"billingPostalCode,omitempty"`
	BillingCountry      string     `json:"billingCountry,omitempty"`
	BranchID            int        `json:"branchId,omitempty"`
	CurrencyCode        string     `json:"currencyCode,omitempty"`
	TaxStatus           string     `json:"taxStatus,omitempty"` // "Incl" or "Excl"
	TaxRate             float64    `json:"taxRate,omitempty"`
	DiscountTotal       float64    `json:"discountTotal,omitempty"`
	DiscountDescription string     `json:"discountDescription,omitempty"`
	FreightTotal        float64    `json:"freightTotal,omitempty"`
	FreightDescription  string     `json:"freightDescription,omitempty"`
	InternalComments    string     `json:"internalComments,omitempty"`
	LineItems           []LineItem `json:"lineItems,omitempty"`
}

// SalesOrder shares the Omni quote schema plus order stage semantics; a
// distinct type keeps the two flows from drifting into each other.
type SalesOrder struct {
	Quote
}

type LineItem struct {
	Code      string  `json:"code,omitempty"`
	Name      string  `json:"name,omitempty"`
	Option1   string  `json:"option1,omitempty"`
	Qty       float64 `json:"qty"`
	UnitPrice float64 `json:"unitPrice"`
	Discount  float64 `json:"discount,omitempty"`
	TaxRate   float64 `json:"taxRate,omitempty"`
}

// Sale is a Cin7 Core (DEAR) sale document.
type Sale struct {
	Customer          string     `json:"Customer,omitempty"`
	Contact           string     `json:"Contact,omitempty"`
	Phone             string     `json:"Phone,omitempty"`
	Email             string     `json:"Email,omitempty"`
	CustomerReference string     `json:"CustomerReference,omitempty"`
	TaxRule           string     `json:"TaxRule,omitempty"`
	TaxInclusive      bool       `json:"TaxInclusive"`
	Location          string     `json:"Location,omitempty"`
	Note              string     `json:"Note,omitempty"`
	ShippingAddress   *SaleAddr  `json:"ShippingAddress,omitempty"`
	BillingAddress    *SaleAddr  `json:"BillingAddress,omitempty"`
	Lines             []SaleLine `json:"Lines,omitempty"`
}

type SaleAddr struct {
	Line1    string `json:"Line1,omitempty"`
	Line2    string `json:"Line2,omitempty"`
	City     string `json:"City,omitempty"`
	State    string `json:"State,omitempty"`
	Postcode string `json:"Postcode,omitempty"`
	Country  string `json:"Country,omitempty"`
}

type SaleLine struct {
	SKU      string  `json:"SKU,omitempty"`
	Name     string  `json:"Name,omitempty"`
	Quantity float64 `json:"Quantity"`
	Price    float64 `json:"Price"`
	Discount float64 `json:"Discount,omitempty"`
	Tax      float64 `json:"Tax,omitempty"`
}

// OmniResult is one element of the array the Omni API returns per document.
type OmniResult struct {
	Index   int      `json:"index"`
	Success bool     `json:"success"`
	ID      int64    `json:"id"`
	Code    string   `json:"code"`
	Errors  []string `json:"errors"`
}

// ParseOmniResponse decodes the one-element result array Omni returns.
func ParseOmniResponse(body []byte) (*OmniResult, error) {
	var results []OmniResult
	if err := json.Unmarshal(body, &results); err != nil {
		var single OmniResult
		if err2 := json.Unmarshal(body, &single); err2 != nil {
			return nil, err
		}
		return &single, nil
	}
	if len(results) == 0 {
		return nil, errEmptyResponse
	}
	return &results[0], nil
}

// CoreResult is the Core API's sale creation response.
type CoreResult struct {
	ID     string `json:"ID"`
	Status string `json:"Status"`
}

func ParseCoreResponse(body []byte) (*CoreResult, error) {
	var result CoreResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

type Contact struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}
