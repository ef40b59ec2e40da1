// Package sms delivers cold SMS messages through the message gateway or,
// when no gateway is configured, through GHL conversations.
package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"crescoflow/platform/config"
	"crescoflow/platform/logger"
	"crescoflow/platform/metrics"
	"crescoflow/platform/phone"
)

const gatewayTimeout = 30 * time.Second

type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     *logger.Logger
	now     func() time.Time
}

type sendRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	Message     string `json:"message"`
	Timestamp   string `json:"timestamp"`
}

type sendResponse struct {
	MessageID string `json:"messageId"`
}

// NewClient returns nil when no gateway URL is configured.
func NewClient(cfg config.SMSGatewayConfig, log *logger.Logger) *Client {
	if !cfg.IsSMSGatewayEnabled() {
		return nil
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.GetSMSGatewayURL(), "/"),
		token:   cfg.GetSMSGatewayToken(),
		http:    &http.Client{Timeout: gatewayTimeout},
		log:     log.WithComponent("sms"),
		now:     time.Now,
	}
}

// SendMessage posts one message to the gateway and returns its message id.
func (c *Client) SendMessage(ctx context.Context, phoneNumber, message string) (string, error) {
	normalized := phone.NormalizeE164(phoneNumber)
	if len(normalized) < 5 {
		return "", errors.New("invalid phone number")
	}
	if strings.TrimSpace(message) == "" {
		return "", errors.New("empty message")
	}

	body, err := json.Marshal(sendRequest{
		PhoneNumber: normalized,
		Message:     message,
		Timestamp:   c.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return "", fmt.Errorf("marshal sms payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/send-sms", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.RecordIntegrationError("sms_gateway")
		return "", fmt.Errorf("sms gateway request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		metrics.RecordIntegrationError("sms_gateway")
		return "", fmt.Errorf("sms gateway returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var out sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil && err != io.EOF {
		return "", fmt.Errorf("decode sms gateway response: %w", err)
	}

	c.log.Info("sms sent via gateway", "phone", normalized, "messageId", out.MessageID)
	return out.MessageID, nil
}
