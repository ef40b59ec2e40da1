// Package instantly uploads cold email leads to Instantly campaigns and
// polls Instantly for replies.
package instantly

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"crescoflow/internal/leads/domain"
	"crescoflow/platform/config"
	"crescoflow/platform/logger"
	"crescoflow/platform/metrics"

	"golang.org/x/time/rate"
)

// LeadState is what Instantly reports for one email address.
type LeadState string

const (
	StateUnknown LeadState = ""
	StateSent    LeadState = "sent"
	StateReplied LeadState = "replied"
)

type Client struct {
	baseURL    string
	apiKey     string
	campaignID string
	http       *http.Client
	limiter    *rate.Limiter
	log        *logger.Logger
}

// NewClient returns nil when Instantly is not configured.
func NewClient(cfg config.InstantlyConfig, log *logger.Logger) *Client {
	if !cfg.IsInstantlyEnabled() {
		return nil
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.GetInstantlyBaseURL(), "/"),
		apiKey:     cfg.GetInstantlyAPIKey(),
		campaignID: cfg.GetInstantlyCampaignID(),
		http:       &http.Client{Timeout: 15 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(200*time.Millisecond), 5),
		log:        log.WithComponent("instantly"),
	}
}

// DefaultCampaign is the configured campaign id.
func (c *Client) DefaultCampaign() string {
	return c.campaignID
}

type uploadLead struct {
	Email           string            `json:"email"`
	FirstName       string            `json:"first_name"`
	CompanyName     string            `json:"company_name"`
	Website         string            `json:"website,omitempty"`
	CustomVariables map[string]string `json:"custom_variables,omitempty"`
}

type uploadRequest struct {
	Leads        []uploadLead `json:"leads"`
	CampaignID   string       `json:"campaign_id"`
	SkipIfExists bool         `json:"skip_if_exists"`
}

// UploadLeads adds leads with a usable email to campaignID and returns how
// many were sent. Instantly skips addresses it already knows.
func (c *Client) UploadLeads(ctx context.Context, campaignID string, leads []domain.Lead) (int, error) {
	if campaignID == "" {
		campaignID = c.campaignID
	}
	if campaignID == "" {
		return 0, errors.New("instantly campaign id is required")
	}

	payload := uploadRequest{CampaignID: campaignID, SkipIfExists: true}
	for _, l := range leads {
		if u, ok := toUpload(l); ok {
			payload.Leads = append(payload.Leads, u)
		}
	}
	if len(payload.Leads) == 0 {
		return 0, nil
	}

	if err := c.do(ctx, http.MethodPost, c.baseURL+"/api/v1/lead/add", payload, nil); err != nil {
		c.fail("upload leads", err)
		return 0, err
	}
	c.log.Info("instantly leads uploaded", "campaign", campaignID, "count", len(payload.Leads))
	return len(payload.Leads), nil
}

func toUpload(l domain.Lead) (uploadLead, bool) {
	email := l.PrimaryEmail()
	if !strings.Contains(email, "@") {
		return uploadLead{}, false
	}
	first := l.FirstName()
	if first == "" {
		first = "Contact"
	}
	u := uploadLead{
		Email:       email,
		FirstName:   first,
		CompanyName: l.CompanyName,
		Website:     l.Website,
	}
	if d := domain.WebsiteDomain(l.Website); d != "" {
		u.CustomVariables = map[string]string{"domain": d}
	}
	return u, true
}

// LeadStatus reports whether email has replied. A lead Instantly does not
// know yields StateUnknown without error.
func (c *Client) LeadStatus(ctx context.Context, email string) (LeadState, error) {
	endpoint := c.baseURL + "/api/v1/lead/get?email=" + url.QueryEscape(email)
	var resp struct {
		ReplyCount int `json:"reply_count"`
	}
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		if isNotFound(err) {
			return StateUnknown, nil
		}
		c.fail("lead status", err)
		return StateUnknown, err
	}
	if resp.ReplyCount > 0 {
		return StateReplied, nil
	}
	return StateSent, nil
}

// Ping validates the API key.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, c.baseURL+"/api/v1/account/list", nil, nil)
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("instantly returned %d: %s", e.code, e.body)
}

func isNotFound(err error) bool {
	var se *statusError
	return errors.As(err, &se) && se.code == http.StatusNotFound
}

func (c *Client) fail(op string, err error) {
	c.log.ExternalCallFailed("instantly", op, err)
	metrics.RecordIntegrationError("instantly")
}

func (c *Client) do(ctx context.Context, method, endpoint string, in, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal instantly payload: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("instantly request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(data))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return fmt.Errorf("decode instantly response: %w", err)
	}
	return nil
}
