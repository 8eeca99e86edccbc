package comms

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"kayo/internal/platform/config"
	dErrors "kayo/pkg/domain-errors"
)

// SMSClient talks to an Africa's Talking style messaging gateway. The
// gateway answers a form-encoded POST and signals acceptance with 201.
type SMSClient struct {
	cfg        config.SMS
	httpClient *http.Client
	logger     *slog.Logger
}

func NewSMSClient(cfg config.SMS, logger *slog.Logger) *SMSClient {
	return &SMSClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// Configured reports whether an API key is present. Delivery degrades to
// logged failures when it is not.
func (c *SMSClient) Configured() bool {
	return c.cfg.APIKey != ""
}

// FormatPhone normalizes a Kenyan phone number to +254 form. Numbers it
// cannot recognize pass through unchanged and the gateway rejects them.
func FormatPhone(raw string) string {
	phone := strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(raw))
	switch {
	case strings.HasPrefix(phone, "+"):
		return phone
	case strings.HasPrefix(phone, "254"):
		return "+" + phone
	case strings.HasPrefix(phone, "0") && len(phone) == 10:
		return "+254" + phone[1:]
	case strings.HasPrefix(phone, "7") || strings.HasPrefix(phone, "1"):
		return "+254" + phone
	}
	return phone
}

func (c *SMSClient) SendSMS(ctx context.Context, phone, message string) error {
	if !c.Configured() {
		return dErrors.New(dErrors.CodeUnavailable, "sms gateway is not configured")
	}

	form := url.Values{}
	form.Set("username", c.cfg.Username)
	form.Set("to", FormatPhone(phone))
	form.Set("message", message)
	if c.cfg.SenderID != "" {
		form.Set("from", c.cfg.SenderID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "build sms request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("apiKey", c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "sms gateway request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		c.logger.WarnContext(ctx, "sms gateway rejected message",
			"status", resp.StatusCode, "body", string(body))
		return dErrors.Newf(dErrors.CodeUnavailable, "sms gateway returned status %d", resp.StatusCode)
	}
	return nil
}
