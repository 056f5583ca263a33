package cin7

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"quoting/internal/logger"

	"github.com/stretchr/testify/require"
)

func newOmniTestClient(baseURL string) *Client {
	return NewClient(ClientConfig{
		Target:   TargetOmni,
		BaseURL:  baseURL,
		Username: "apiuser",
		APIKey:   "apikey",
	}, logger.New("error"))
}

func TestSendQuoteUsesBasicAuthAndArrayBody(t *testing.T) {
	var gotPath, gotQuery string
	var gotBody []Quote
	var gotUser, gotPass string

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotUser, gotPass, _ = r.BasicAuth()
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"index":0,"success":true,"id":555}]`))
	}))
	defer ts.Close()

	c := newOmniTestClient(ts.URL)
	res, err := c.SendQuote(&Quote{Reference: "WEB-1", FirstName: "Ada"})

	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, "/v1/Quotes", gotPath)
	require.Equal(t, "loadboms=false", gotQuery)
	require.Equal(t, "apiuser", gotUser)
	require.Equal(t, "apikey", gotPass)
	require.Len(t, gotBody, 1)
	require.Equal(t, "WEB-1", gotBody[0].Reference)

	parsed, err := ParseOmniResponse(res.Body)
	require.NoError(t, err)
	require.True(t, parsed.Success)
	require.Equal(t, int64(555), parsed.ID)
	require.Equal(t, "555", DocumentID(TargetOmni, res))
}

func TestSendSalesOrderPath(t *testing.T) {
	var gotPath, gotQuery string

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`[{"index":0,"success":true,"id":1}]`))
	}))
	defer ts.Close()

	c := newOmniTestClient(ts.URL)
	_, err := c.SendSalesOrder(&SalesOrder{}, true)

	require.NoError(t, err)
	require.Equal(t, "/v1/SalesOrders", gotPath)
	require.Equal(t, "loadboms=true", gotQuery)
}

func TestSendSaleUsesCoreHeaders(t *testing.T) {
	var gotAccount, gotKey string
	var gotBody Sale

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAccount = r.Header.Get("api-auth-accountid")
		gotKey = r.Header.Get("api-auth-applicationkey")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write([]byte(`{"ID":"abc-123","Status":"DRAFT"}`))
	}))
	defer ts.Close()

	c := NewClient(ClientConfig{
		Target:         TargetCore,
		BaseURL:        ts.URL,
		AccountID:      "acct",
		ApplicationKey: "appkey",
	}, logger.New("error"))

	res, err := c.SendSale(&Sale{Customer: "Analytical Engines"})
	require.NoError(t, err)
	require.Equal(t, "acct", gotAccount)
	require.Equal(t, "appkey", gotKey)
	require.Equal(t, "Analytical Engines", gotBody.Customer)
	require.Equal(t, "abc-123", DocumentID(TargetCore, res))
}

func TestLookupContactID(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/Contacts", r.URL.Path)
		require.Contains(t, r.URL.RawQuery, "where=")
		w.Write([]byte(`[{"id":777,"email":"buyer@example.com"}]`))
	}))
	defer ts.Close()

	c := newOmniTestClient(ts.URL)
	res, err := c.LookupContactID("buyer@example.com")
	require.NoError(t, err)
	require.Equal(t, int64(777), ParseContactID(res.Body))
}

func TestParseContactIDEmpty(t *testing.T) {
	require.Equal(t, int64(0), ParseContactID([]byte(`[]`)))
	require.Equal(t, int64(0), ParseContactID([]byte(`not json`)))
}

func TestParseOmniResponse(t *testing.T) {
	t.Run("array", func(t *testing.T) {
		parsed, err := ParseOmniResponse([]byte(`[{"index":0,"success":false,"errors":["Member not found"]}]`))
		require.NoError(t, err)
		require.False(t, parsed.Success)
		require.Equal(t, []string{"Member not found"}, parsed.Errors)
	})

	t.Run("bare object", func(t *testing.T) {
		parsed, err := ParseOmniResponse([]byte(`{"success":true,"id":9}`))
		require.NoError(t, err)
		require.True(t, parsed.Success)
	})

	t.Run("empty array", func(t *testing.T) {
		_, err := ParseOmniResponse([]byte(`[]`))
		require.Error(t, err)
	})
}

func TestDryRunSkipsNetwork(t *testing.T) {
	c := NewClient(ClientConfig{
		Target:  TargetOmni,
		BaseURL: "http://cin7.invalid",
		DryRun:  true,
	}, logger.New("error"))

	res, err := c.SendQuote(&Quote{Reference: "WEB-1"})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)

	parsed, err := ParseOmniResponse(res.Body)
	require.NoError(t, err)
	require.True(t, parsed.Success)
}
