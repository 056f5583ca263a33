package cin7

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"quoting/internal/dispatch"
	"quoting/internal/logger"
)

var errEmptyResponse = errors.New("cin7 returned an empty result array")

const (
	TargetOmni = "omni"
	TargetCore = "core"
)

// Client issues single dispatch attempts against Cin7. Rate limiting and
// retries belong to the dispatch queue, not here: every method performs
// exactly one HTTP round trip.
type Client struct {
	target         string
	baseURL        string
	username       string
	apiKey         string
	accountID      string
	applicationKey string
	dryRun         bool
	httpClient     *http.Client
	logger         *logger.Logger
}

type ClientConfig struct {
	Target         string
	BaseURL        string
	Username       string
	APIKey         string
	AccountID      string
	ApplicationKey string
	DryRun         bool
}

func NewClient(cfg ClientConfig, logger *logger.Logger) *Client {
	return &Client{
		target:         cfg.Target,
		baseURL:        cfg.BaseURL,
		username:       cfg.Username,
		apiKey:         cfg.APIKey,
		accountID:      cfg.AccountID,
		applicationKey: cfg.ApplicationKey,
		dryRun:         cfg.DryRun,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// SendQuote posts one quote document to the Omni Quotes endpoint. The API
// expects a one-element array.
func (c *Client) SendQuote(quote *Quote) (*dispatch.Result, error) {
	return c.postOmni("/v1/Quotes?loadboms=false", []*Quote{quote})
}

// SendSalesOrder posts one sales order to the Omni SalesOrders endpoint.
func (c *Client) SendSalesOrder(order *SalesOrder, loadBOMs bool) (*dispatch.Result, error) {
	path := fmt.Sprintf("/v1/SalesOrders?loadboms=%t", loadBOMs)
	return c.postOmni(path, []*SalesOrder{order})
}

// SendSale posts one sale document to the Core Sale endpoint.
func (c *Client) SendSale(sale *Sale) (*dispatch.Result, error) {
	jsonData, err := json.Marshal(sale)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal sale: %w", err)
	}

	if c.dryRun {
		c.logger.Info("Dry run: POST %s/Sale %s", c.baseURL, string(jsonData))
		return dryRunResult(`{"ID":"dry-run","Status":"DRAFT"}`), nil
	}

	req, err := http.NewRequest("POST", c.baseURL+"/Sale", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("api-auth-accountid", c.accountID)
	req.Header.Set("api-auth-applicationkey", c.applicationKey)
	req.Header.Set("Content-Type", "application/json")

	return c.do(req)
}

// LookupContactID resolves a Cin7 Omni contact id by email. Returns 0 when no
// contact matches.
func (c *Client) LookupContactID(email string) (*dispatch.Result, error) {
	if c.dryRun {
		return dryRunResult(`[]`), nil
	}

	where := url.QueryEscape("email='" + email + "'")
	u := c.baseURL + "/v1/Contacts?fields=id,email&where=" + where

	req, err := http.NewRequest("GET", u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(c.username, c.apiKey)
	req.Header.Set("Accept", "application/json")

	return c.do(req)
}

// ParseContactID extracts the first contact id from a Contacts response.
func ParseContactID(body []byte) int64 {
	var contacts []Contact
	if err := json.Unmarshal(body, &contacts); err != nil || len(contacts) == 0 {
		return 0
	}
	return contacts[0].ID
}

func (c *Client) postOmni(path string, payload interface{}) (*dispatch.Result, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	if c.dryRun {
		c.logger.Info("Dry run: POST %s%s %s", c.baseURL, path, string(jsonData))
		return dryRunResult(`[{"index":0,"success":true,"id":0}]`), nil
	}

	req, err := http.NewRequest("POST", c.baseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(c.username, c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	return c.do(req)
}

func (c *Client) do(req *http.Request) (*dispatch.Result, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return &dispatch.Result{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

func dryRunResult(body string) *dispatch.Result {
	return &dispatch.Result{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       []byte(body),
	}
}

// DocumentID pulls a displayable downstream id out of a successful dispatch
// result for either target.
func DocumentID(target string, res *dispatch.Result) string {
	if res == nil {
		return ""
	}
	switch target {
	case TargetCore:
		if parsed, err := ParseCoreResponse(res.Body); err == nil {
			return parsed.ID
		}
	default:
		if parsed, err := ParseOmniResponse(res.Body); err == nil && parsed.Success {
			return strconv.FormatInt(parsed.ID, 10)
		}
	}
	return ""
}
