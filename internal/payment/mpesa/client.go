// Package mpesa is a Daraja API client covering the pieces the payment
// flow needs: OAuth tokens, STK push and status queries.
package mpesa

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"kayo/internal/platform/config"
	dErrors "kayo/pkg/domain-errors"
)

const (
	sandboxBaseURL    = "https://sandbox.safaricom.co.ke"
	productionBaseURL = "https://api.safaricom.co.ke"

	tokenCacheKey = "mpesa:access_token"
	// Daraja tokens last 3599s; refresh a minute early.
	tokenCacheSlack = time.Minute

	timestampLayout = "20060102150405"
)

type Client struct {
	cfg        config.MPesa
	baseURL    string
	httpClient *http.Client
	redis      *redis.Client
	logger     *slog.Logger

	// in-process fallback cache when redis is not configured
	mu          sync.Mutex
	cachedToken string
	tokenExpiry time.Time
}

func New(cfg config.MPesa, redisClient *redis.Client, logger *slog.Logger) *Client {
	baseURL := sandboxBaseURL
	if cfg.Environment == "production" {
		baseURL = productionBaseURL
	}
	return &Client{
		cfg:        cfg,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		redis:      redisClient,
		logger:     logger,
	}
}

// Configured reports whether credentials are present. The payment flow
// degrades to manual recording when they are not.
func (c *Client) Configured() bool {
	return c.cfg.ConsumerKey != "" && c.cfg.ConsumerSecret != ""
}

// NormalizePhone converts a Kenyan phone number to the 2547XXXXXXXX
// form Daraja expects.
func NormalizePhone(raw string) (string, error) {
	phone := strings.NewReplacer(" ", "", "-", "", "+", "").Replace(strings.TrimSpace(raw))
	switch {
	case strings.HasPrefix(phone, "254"):
	case strings.HasPrefix(phone, "0"):
		phone = "254" + phone[1:]
	case strings.HasPrefix(phone, "7") || strings.HasPrefix(phone, "1"):
		phone = "254" + phone
	default:
		return "", dErrors.Newf(dErrors.CodeValidation, "unrecognized phone number %q", raw)
	}
	if len(phone) != 12 {
		return "", dErrors.Newf(dErrors.CodeValidation, "invalid phone number %q", raw)
	}
	return phone, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

// Token returns a cached OAuth access token, fetching a fresh one when
// the cache is cold or expired.
func (c *Client) Token(ctx context.Context) (string, error) {
	if c.redis != nil {
		token, err := c.redis.Get(ctx, tokenCacheKey).Result()
		if err == nil && token != "" {
			return token, nil
		}
	} else {
		c.mu.Lock()
		if c.cachedToken != "" && time.Now().Before(c.tokenExpiry) {
			token := c.cachedToken
			c.mu.Unlock()
			return token, nil
		}
		c.mu.Unlock()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/oauth/v1/generate?grant_type=client_credentials", nil)
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.SetBasicAuth(c.cfg.ConsumerKey, c.cfg.ConsumerSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeUnavailable, "mpesa token request")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", dErrors.Newf(dErrors.CodeUnavailable, "mpesa token request failed: %d %s", resp.StatusCode, body)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", dErrors.New(dErrors.CodeUnavailable, "mpesa token response missing access_token")
	}

	ttl := 55 * time.Minute
	if secs, err := time.ParseDuration(tr.ExpiresIn + "s"); err == nil && secs > tokenCacheSlack {
		ttl = secs - tokenCacheSlack
	}
	if c.redis != nil {
		if err := c.redis.Set(ctx, tokenCacheKey, tr.AccessToken, ttl).Err(); err != nil {
			c.logger.WarnContext(ctx, "failed to cache mpesa token", slog.String("error", err.Error()))
		}
	} else {
		c.mu.Lock()
		c.cachedToken = tr.AccessToken
		c.tokenExpiry = time.Now().Add(ttl)
		c.mu.Unlock()
	}
	return tr.AccessToken, nil
}

// password builds the base64(shortcode+passkey+timestamp) STK password.
func (c *Client) password(ts time.Time) (password, timestamp string) {
	timestamp = ts.Format(timestampLayout)
	password = base64.StdEncoding.EncodeToString([]byte(c.cfg.Shortcode + c.cfg.Passkey + timestamp))
	return password, timestamp
}

// STKPushRequest describes one push to a customer's phone. Amount is in
// whole shillings as Daraja requires.
type STKPushRequest struct {
	Phone            string
	Amount           int64
	AccountReference string
	Description      string
}

// STKPushResponse is the synchronous acknowledgment of a push.
type STKPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

func (c *Client) STKPush(ctx context.Context, req STKPushRequest) (STKPushResponse, error) {
	token, err := c.Token(ctx)
	if err != nil {
		return STKPushResponse{}, err
	}
	password, timestamp := c.password(time.Now())

	payload := map[string]any{
		"BusinessShortCode": c.cfg.Shortcode,
		"Password":          password,
		"Timestamp":         timestamp,
		"TransactionType":   "CustomerPayBillOnline",
		"Amount":            req.Amount,
		"PartyA":            req.Phone,
		"PartyB":            c.cfg.Shortcode,
		"PhoneNumber":       req.Phone,
		"CallBackURL":       c.cfg.CallbackURL,
		"AccountReference":  req.AccountReference,
		"TransactionDesc":   req.Description,
	}

	var resp STKPushResponse
	if err := c.post(ctx, token, "/mpesa/stkpush/v1/processrequest", payload, &resp); err != nil {
		return STKPushResponse{}, err
	}
	if resp.ResponseCode != "0" {
		return STKPushResponse{}, dErrors.Newf(dErrors.CodeUnavailable, "stk push rejected: %s", resp.ResponseDescription)
	}
	return resp, nil
}

// StatusResponse is the result of an STK push status query.
type StatusResponse struct {
	ResponseCode      string `json:"ResponseCode"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
	ResultCode        string `json:"ResultCode"`
	ResultDesc        string `json:"ResultDesc"`
}

// Succeeded reports whether the queried transaction went through.
func (r StatusResponse) Succeeded() bool { return r.ResultCode == "0" }

// Pending reports whether the transaction is still being processed.
// Daraja error 500.001.1001 means "still under processing".
func (r StatusResponse) Pending() bool { return r.ResultCode == "" || r.ResultCode == "500.001.1001" }

func (c *Client) QueryStatus(ctx context.Context, checkoutRequestID string) (StatusResponse, error) {
	token, err := c.Token(ctx)
	if err != nil {
		return StatusResponse{}, err
	}
	password, timestamp := c.password(time.Now())

	payload := map[string]any{
		"BusinessShortCode": c.cfg.Shortcode,
		"Password":          password,
		"Timestamp":         timestamp,
		"CheckoutRequestID": checkoutRequestID,
	}

	var resp StatusResponse
	if err := c.post(ctx, token, "/mpesa/stkpushquery/v1/query", payload, &resp); err != nil {
		return StatusResponse{}, err
	}
	return resp, nil
}

func (c *Client) post(ctx context.Context, token, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal mpesa request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build mpesa request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "mpesa request")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return dErrors.Newf(dErrors.CodeUnavailable, "mpesa request failed: %d %s", resp.StatusCode, raw)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Callback is the envelope Daraja posts to the callback URL.
type Callback struct {
	Body struct {
		STKCallback struct {
			MerchantRequestID string `json:"MerchantRequestID"`
			CheckoutRequestID string `json:"CheckoutRequestID"`
			ResultCode        int    `json:"ResultCode"`
			ResultDesc        string `json:"ResultDesc"`
			CallbackMetadata  struct {
				Item []struct {
					Name  string `json:"Name"`
					Value any    `json:"Value"`
				} `json:"Item"`
			} `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

// Receipt pulls the MpesaReceiptNumber out of the callback metadata.
func (c Callback) Receipt() string {
	for _, item := range c.Body.STKCallback.CallbackMetadata.Item {
		if item.Name == "MpesaReceiptNumber" {
			if s, ok := item.Value.(string); ok {
				return s
			}
		}
	}
	return ""
}

// AmountCents pulls the paid amount out of the callback metadata,
// converted from shillings to cents. Zero when absent.
func (c Callback) AmountCents() int64 {
	for _, item := range c.Body.STKCallback.CallbackMetadata.Item {
		if item.Name == "Amount" {
			switch v := item.Value.(type) {
			case float64:
				return int64(v * 100)
			case json.Number:
				if f, err := v.Float64(); err == nil {
					return int64(f * 100)
				}
			}
		}
	}
	return 0
}
