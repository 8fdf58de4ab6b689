package payment

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"
)

// TinkoffOptions holds terminal credentials for the payment API.
type TinkoffOptions struct {
	TerminalKey     string
	Password        string
	BaseURL         string
	NotificationURL string
	Timeout         time.Duration
}

// Tinkoff implements payment initialization and webhook verification against
// the Tinkoff acquiring API.
type Tinkoff struct {
	terminalKey     string
	password        string
	baseURL         string
	notificationURL string
	client          *http.Client
}

// NewTinkoff constructs the client with defaults for zeroed options.
func NewTinkoff(opts TinkoffOptions) *Tinkoff {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://securepay.tinkoff.ru/v2"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Tinkoff{
		terminalKey:     opts.TerminalKey,
		password:        opts.Password,
		baseURL:         opts.BaseURL,
		notificationURL: opts.NotificationURL,
		client:          &http.Client{Timeout: opts.Timeout},
	}
}

// InitResult is the provider response to a payment initialization.
type InitResult struct {
	PaymentID  string
	PaymentURL string
}

type initResponse struct {
	Success    bool            `json:"Success"`
	ErrorCode  string          `json:"ErrorCode"`
	Message    string          `json:"Message"`
	PaymentID  json.RawMessage `json:"PaymentId"`
	PaymentURL string          `json:"PaymentURL"`
}

// InitPayment registers a payment with the provider. Amount is in major
// currency units; the wire format wants kopeks.
func (t *Tinkoff) InitPayment(ctx context.Context, orderID, description string, amountKopeks int64) (InitResult, error) {
	fields := map[string]string{
		"TerminalKey": t.terminalKey,
		"Amount":      fmt.Sprintf("%d", amountKopeks),
		"OrderId":     orderID,
		"Description": description,
	}
	if t.notificationURL != "" {
		fields["NotificationURL"] = t.notificationURL
	}

	payload := map[string]any{
		"TerminalKey": t.terminalKey,
		"Amount":      amountKopeks,
		"OrderId":     orderID,
		"Description": description,
		"Token":       SignToken(fields, t.password),
	}
	if t.notificationURL != "" {
		payload["NotificationURL"] = t.notificationURL
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return InitResult{}, fmt.Errorf("tinkoff init: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/Init", bytes.NewReader(body))
	if err != nil {
		return InitResult{}, fmt.Errorf("tinkoff init: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return InitResult{}, fmt.Errorf("tinkoff init: %w", err)
	}
	defer resp.Body.Close()

	var decoded initResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return InitResult{}, fmt.Errorf("tinkoff init: decode response: %w", err)
	}
	if !decoded.Success {
		return InitResult{}, fmt.Errorf("tinkoff init: provider error %s: %s", decoded.ErrorCode, decoded.Message)
	}

	// PaymentId arrives as a string or a number depending on API version.
	paymentID := strings.Trim(string(decoded.PaymentID), `"`)
	if paymentID == "" || paymentID == "null" {
		return InitResult{}, fmt.Errorf("tinkoff init: empty payment id")
	}
	return InitResult{PaymentID: paymentID, PaymentURL: decoded.PaymentURL}, nil
}

// SignToken computes the request signature: the terminal password joins the
// field map, Token and Signature are excluded, values are concatenated in
// alphabetical key order and hashed with SHA-256.
func SignToken(fields map[string]string, password string) string {
	merged := make(map[string]string, len(fields)+1)
	for k, v := range fields {
		if k == "Token" || k == "Signature" {
			continue
		}
		merged[k] = v
	}
	merged["Password"] = password

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(merged[k])
	}

	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}

// VerifyWebhook checks the notification signature. Providers differ on hex
// case, so the comparison is case-insensitive.
func (t *Tinkoff) VerifyWebhook(fields map[string]string, token string) bool {
	if token == "" {
		return false
	}
	expected := SignToken(fields, t.password)
	return strings.EqualFold(expected, token)
}
