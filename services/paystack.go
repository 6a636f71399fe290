package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// ErrGatewayUnavailable marks transient transport failures against the
// payment processor. Verify calls may be retried with backoff; initialize
// must not be blindly retried (the stored reference is reused instead).
var ErrGatewayUnavailable = errors.New("payment gateway unavailable")

// Gateway-reported charge states.
const (
	GatewayStatusSuccess   = "success"
	GatewayStatusFailed    = "failed"
	GatewayStatusAbandoned = "abandoned"
	GatewayStatusPending   = "pending"
)

type InitializeRequest struct {
	Reference string
	Email     string
	Amount    int64 // smallest currency unit
	Currency  string
	Metadata  map[string]interface{}
}

type InitializeResult struct {
	Reference        string
	AuthorizationURL string
	AccessCode       string
}

// VerificationResult is what the processor reports for a reference. Amount
// and Currency are compared against the booking's frozen total before any
// confirmation happens; the raw payload is kept for the payment record.
type VerificationResult struct {
	Status   string
	Amount   int64
	Currency string
	PaidAt   string
	Raw      json.RawMessage
}

// PaymentGateway is the outbound boundary to the payment processor.
type PaymentGateway interface {
	InitializeTransaction(ctx context.Context, req InitializeRequest) (*InitializeResult, error)
	VerifyTransaction(ctx context.Context, reference string) (*VerificationResult, error)
}

// PaystackClient talks to the Paystack REST API.
type PaystackClient struct {
	BaseURL    string
	SecretKey  string
	HTTPClient *http.Client
}

func NewPaystackClient() *PaystackClient {
	baseURL := os.Getenv("PAYSTACK_BASE_URL")
	if baseURL == "" {
		baseURL = "https://api.paystack.co"
	}
	return &PaystackClient{
		BaseURL:    baseURL,
		SecretKey:  os.Getenv("PAYSTACK_SECRET_KEY"),
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type paystackInitializeBody struct {
	Email     string                 `json:"email"`
	Amount    int64                  `json:"amount"`
	Currency  string                 `json:"currency"`
	Reference string                 `json:"reference"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

type paystackInitializeResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	} `json:"data"`
}

type paystackVerifyResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Status   string `json:"status"`
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
		PaidAt   string `json:"paid_at"`
	} `json:"data"`
}

func (c *PaystackClient) InitializeTransaction(ctx context.Context, req InitializeRequest) (*InitializeResult, error) {
	body := paystackInitializeBody{
		Email:     req.Email,
		Amount:    req.Amount,
		Currency:  req.Currency,
		Reference: req.Reference,
		Metadata:  req.Metadata,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/transaction/initialize", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.SecretKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: initialize returned %d", ErrGatewayUnavailable, resp.StatusCode)
	}

	var parsed paystackInitializeResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	if !parsed.Status {
		return nil, fmt.Errorf("gateway rejected initialize: %s", parsed.Message)
	}

	return &InitializeResult{
		Reference:        parsed.Data.Reference,
		AuthorizationURL: parsed.Data.AuthorizationURL,
		AccessCode:       parsed.Data.AccessCode,
	}, nil
}

func (c *PaystackClient) VerifyTransaction(ctx context.Context, reference string) (*VerificationResult, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/transaction/verify/"+reference, nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.SecretKey)

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: verify returned %d", ErrGatewayUnavailable, resp.StatusCode)
	}

	var buf bytes.Buffer
	var parsed paystackVerifyResponse
	if err := json.NewDecoder(io.TeeReader(resp.Body, &buf)).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	if !parsed.Status {
		return nil, fmt.Errorf("gateway rejected verify: %s", parsed.Message)
	}

	return &VerificationResult{
		Status:   parsed.Data.Status,
		Amount:   parsed.Data.Amount,
		Currency: parsed.Data.Currency,
		PaidAt:   parsed.Data.PaidAt,
		Raw:      json.RawMessage(buf.Bytes()),
	}, nil
}
