package shopify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"quoting/internal/logger"
)

type Client struct {
	storeURL    string
	accessToken string
	apiVersion  string
	httpClient  *http.Client
	logger      *logger.Logger
}

func NewClient(storeURL, accessToken, apiVersion string, logger *logger.Logger) *Client {
	return &Client{
		storeURL:    storeURL,
		accessToken: accessToken,
		apiVersion:  apiVersion,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// GetProduct fetches a single product by ID
func (c *Client) GetProduct(productID string) (*Product, error) {
	url := fmt.Sprintf("%s/admin/api/%s/products/%s.json", c.storeURL, c.apiVersion, productID)

	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("X-Shopify-Access-Token", c.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API request failed: %d - %s", resp.StatusCode, string(body))
	}

	var productResp struct {
		Product Product `json:"product"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&productResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &productResp.Product, nil
}

// ValidateDiscountCode looks a discount code up. Best-effort: any failure
// returns an empty list rather than an error.
func (c *Client) ValidateDiscountCode(code string) []DiscountCode {
	url := fmt.Sprintf("%s/admin/api/%s/discount_codes.json", c.storeURL, c.apiVersion)

	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return nil
	}

	req.Header.Set("X-Shopify-Access-Token", c.accessToken)
	req.Header.Set("Content-Type", "application/json")

	q := req.URL.Query()
	q.Set("code", code)
	req.URL.RawQuery = q.Encode()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Failed to validate discount code %s: %v", code, err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("Discount code lookup returned %d for %s", resp.StatusCode, code)
		return nil
	}

	var codesResp struct {
		DiscountCodes []DiscountCode `json:"discount_codes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&codesResp); err != nil {
		return nil
	}

	return codesResp.DiscountCodes
}

// CreateDraftOrder creates a draft order in Shopify
func (c *Client) CreateDraftOrder(draft *DraftOrderRequest) (*DraftOrder, error) {
	url := fmt.Sprintf("%s/admin/api/%s/draft_orders.json", c.storeURL, c.apiVersion)

	payload := struct {
		DraftOrder *DraftOrderRequest `json:"draft_order"`
	}{
		DraftOrder: draft,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal draft order: %w", err)
	}

	req, err := http.NewRequest("POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("X-Shopify-Access-Token", c.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API request failed: %d - %s", resp.StatusCode, string(body))
	}

	var draftResp struct {
		DraftOrder DraftOrder `json:"draft_order"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&draftResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &draftResp.DraftOrder, nil
}
