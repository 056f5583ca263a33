package shopify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

const (
	HeaderHMAC       = "X-Shopify-Hmac-Sha256"
	HeaderShopDomain = "X-Shopify-Shop-Domain"
)

// WebhookVerifier authenticates inbound webhook bodies against the app's
// shared secret. An empty AllowedDomain disables the shop allow-list.
type WebhookVerifier struct {
	Secret        string
	AllowedDomain string
}

// VerifySignature checks the base64 HMAC-SHA256 of the raw body. It fails
// closed: a missing signature is a mismatch. The comparison is constant-time.
func (v WebhookVerifier) VerifySignature(body []byte, signature string) bool {
	if signature == "" || v.Secret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(v.Secret))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// AllowShop checks the shop-domain allow-list.
func (v WebhookVerifier) AllowShop(domain string) bool {
	if v.AllowedDomain == "" {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(domain), v.AllowedDomain)
}
