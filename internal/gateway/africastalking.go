package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
)

const (
	sandboxBaseURL = "https://payments.sandbox.africastalking.com"
	liveBaseURL    = "https://payments.africastalking.com"
	checkoutPath   = "/version1/payment/mobile/checkout/request"

	defaultTimeout = 30 * time.Second
)

// Config holds Africa's Talking credentials.
type Config struct {
	Username    string
	APIKey      string
	ProductName string
	BaseURL     string // optional override
	Timeout     time.Duration
}

// AfricasTalkingClient initiates STK pushes through Africa's Talking
// mobile checkout.
type AfricasTalkingClient struct {
	cfg        Config
	endpoint   string
	httpClient *http.Client
}

// NewAfricasTalkingClient creates a client. The "sandbox" username selects
// the sandbox environment.
func NewAfricasTalkingClient(cfg Config) *AfricasTalkingClient {
	base := cfg.BaseURL
	if base == "" {
		base = liveBaseURL
		if strings.EqualFold(cfg.Username, "sandbox") {
			base = sandboxBaseURL
		}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	return &AfricasTalkingClient{
		cfg:      cfg,
		endpoint: strings.TrimRight(base, "/") + checkoutPath,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: newrelic.NewRoundTripper(http.DefaultTransport),
		},
	}
}

// checkoutResponse covers the field names seen across provider versions.
type checkoutResponse struct {
	Status              string `json:"status"`
	Description         string `json:"description"`
	TransactionID       string `json:"transactionId"`
	ProviderReferenceID string `json:"providerReferenceId"`
	CheckoutRequestID   string `json:"checkoutRequestId"`
	RequestID           string `json:"requestId"`
	ErrorMessage        string `json:"errorMessage"`
	Error               string `json:"error"`
}

// InitiateCharge posts a mobile checkout request.
func (c *AfricasTalkingClient) InitiateCharge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	metadata, err := json.Marshal(map[string]string{"reference": req.Reference})
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("username", c.cfg.Username)
	form.Set("productName", c.cfg.ProductName)
	form.Set("phoneNumber", "+"+strings.TrimPrefix(req.Phone, "+"))
	form.Set("currencyCode", "KES")
	form.Set("amount", req.Amount.Round(0).String())
	form.Set("metadata", string(metadata))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("apiKey", c.cfg.APIKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("checkout request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read checkout response: %w", err)
	}

	var parsed checkoutResponse
	if len(body) > 0 {
		// Error pages are not always JSON; the status code still decides.
		_ = json.Unmarshal(body, &parsed)
	}

	result := &ChargeResult{
		Success:     true,
		ProviderRef: firstNonEmpty(parsed.TransactionID, parsed.ProviderReferenceID),
		SessionID:   firstNonEmpty(parsed.CheckoutRequestID, parsed.RequestID),
		Status:      parsed.Status,
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || strings.Contains(strings.ToLower(parsed.Status), "fail") {
		result.Success = false
		result.Error = firstNonEmpty(parsed.ErrorMessage, parsed.Error, parsed.Description,
			fmt.Sprintf("checkout returned HTTP %d", resp.StatusCode))
	}

	return result, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
