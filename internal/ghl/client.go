// Package ghl talks to the GoHighLevel (LeadConnector) contacts and
// conversations API.
package ghl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"crescoflow/internal/leads/domain"
	"crescoflow/platform/config"
	"crescoflow/platform/logger"
	"crescoflow/platform/metrics"

	"golang.org/x/time/rate"
)

const (
	apiVersion = "2021-07-28"
	syncedTag  = "ENTERPRISE-CLOUD-SYNCED"
	fetchLimit = 100
)

type Client struct {
	baseURL    string
	apiKey     string
	locationID string
	http       *http.Client
	limiter    *rate.Limiter
	log        *logger.Logger
}

// NewClient returns nil when GHL is not configured.
func NewClient(cfg config.GHLConfig, log *logger.Logger) *Client {
	if !cfg.IsGHLEnabled() {
		return nil
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.GetGHLBaseURL(), "/"),
		apiKey:     cfg.GetGHLAPIKey(),
		locationID: cfg.GetGHLLocationID(),
		http:       &http.Client{Timeout: 15 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(100*time.Millisecond), 10),
		log:        log.WithComponent("ghl"),
	}
}

type CustomField struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// ContactBody is the create/update payload of a contact.
type ContactBody struct {
	FirstName    string        `json:"firstName"`
	LastName     string        `json:"lastName"`
	CompanyName  string        `json:"companyName"`
	Email        string        `json:"email,omitempty"`
	Phone        string        `json:"phone,omitempty"`
	Website      string        `json:"website,omitempty"`
	Address1     string        `json:"address1,omitempty"`
	City         string        `json:"city,omitempty"`
	Tags         []string      `json:"tags"`
	CustomFields []CustomField `json:"customFields"`
	LocationID   string        `json:"locationId,omitempty"`
}

type contactResponse struct {
	Contact struct {
		ID string `json:"id"`
	} `json:"contact"`
}

// Push creates or updates the contact of lead and returns its contact id.
// The lead is never modified; false means nothing was synced.
func (c *Client) Push(ctx context.Context, lead domain.Lead, tags []string) (string, bool) {
	if c == nil {
		return "", false
	}
	update := lead.GHLContactID != ""
	body := BuildContact(lead, tags)

	method, url := http.MethodPost, c.baseURL+"/contacts/"
	if update {
		method, url = http.MethodPut, c.baseURL+"/contacts/"+lead.GHLContactID
	} else {
		body.LocationID = c.locationID
	}

	var resp contactResponse
	if err := c.do(ctx, method, url, body, &resp); err != nil {
		c.fail("push contact", err)
		return "", false
	}

	id := resp.Contact.ID
	if id == "" {
		id = lead.GHLContactID
	}
	c.log.Info("ghl contact synced", "lead", lead.ID, "contact", id, "update", update)
	return id, id != ""
}

// BuildTags merges extra tags with the score, stage and sync marker tags,
// keeping first occurrences.
func BuildTags(lead domain.Lead, extra []string) []string {
	all := append(append([]string(nil), extra...),
		"BLIEC_Score_"+strconv.Itoa(lead.ConfidenceScore),
		"Status_"+string(lead.PipelineTag),
		syncedTag,
	)
	seen := make(map[string]struct{}, len(all))
	out := make([]string, 0, len(all))
	for _, t := range all {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// BuildContact maps a lead onto the contact payload.
func BuildContact(lead domain.Lead, extraTags []string) ContactBody {
	first, last := lead.CEO.FirstName, lead.CEO.LastName
	if first == "" && last == "" {
		first, last, _ = strings.Cut(strings.TrimSpace(lead.CEOName), " ")
	}
	if first == "" {
		first = "Beslisser"
	}
	if last == "" {
		last = "Maker"
	}

	email := lead.PrimaryEmail()
	phone := lead.PrimaryPhone()

	reviewScore, reviewCount := "0", "0"
	if lead.GoogleReviews != nil {
		reviewScore = strconv.FormatFloat(lead.GoogleReviews.Score, 'f', -1, 64)
		reviewCount = strconv.Itoa(lead.GoogleReviews.Count)
	}
	history, err := json.Marshal(lead.Interactions)
	if err != nil || lead.Interactions == nil {
		history = []byte("[]")
	}

	return ContactBody{
		FirstName:   first,
		LastName:    strings.TrimSpace(last),
		CompanyName: lead.CompanyName,
		Email:       email,
		Phone:       phone,
		Website:     lead.Website,
		Address1:    lead.Address,
		City:        lead.City,
		Tags:        BuildTags(lead, extraTags),
		CustomFields: []CustomField{
			{Key: "bliec_website_score", Value: strconv.Itoa(lead.WebsiteScore)},
			{Key: "pijnpunten", Value: strings.Join(lead.PainPoints, " | ")},
			{Key: "socials_fb", Value: lead.Socials.Facebook},
			{Key: "socials_ig", Value: lead.Socials.Instagram},
			{Key: "socials_li", Value: lead.Socials.LinkedIn},
			{Key: "google_review_score", Value: reviewScore},
			{Key: "google_review_count", Value: reviewCount},
			{Key: "history_log", Value: string(history)},
		},
	}
}

type remoteContact struct {
	ID           string `json:"id"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	CompanyName  string `json:"companyName"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Website      string `json:"website"`
	Address1     string `json:"address1"`
	City         string `json:"city"`
	DateAdded    string `json:"dateAdded"`
	CustomFields []struct {
		ID    string `json:"id"`
		Key   string `json:"key"`
		Value any    `json:"value"`
	} `json:"customFields"`
}

func (rc remoteContact) field(key string) string {
	for _, f := range rc.CustomFields {
		if f.ID == key || f.Key == key {
			if f.Value == nil {
				return ""
			}
			return strings.TrimSpace(fmt.Sprint(f.Value))
		}
	}
	return ""
}

// FetchContacts lists the location's contacts as leads with source "ghl".
func (c *Client) FetchContacts(ctx context.Context) ([]domain.Lead, error) {
	url := fmt.Sprintf("%s/contacts/?locationId=%s&limit=%d", c.baseURL, c.locationID, fetchLimit)
	var resp struct {
		Contacts []remoteContact `json:"contacts"`
	}
	if err := c.do(ctx, http.MethodGet, url, nil, &resp); err != nil {
		c.fail("fetch contacts", err)
		return nil, err
	}

	leads := make([]domain.Lead, 0, len(resp.Contacts))
	for _, rc := range resp.Contacts {
		leads = append(leads, toLead(rc))
	}
	return leads, nil
}

func toLead(rc remoteContact) domain.Lead {
	company := rc.CompanyName
	if company == "" {
		company = "Bedrijfsnaam Onbekend"
	}
	sector := rc.field("sector")
	if sector == "" {
		sector = "GHL Geïmporteerd"
	}

	l := domain.Lead{
		CompanyName:    company,
		Sector:         sector,
		City:           rc.City,
		Address:        rc.Address1,
		Website:        rc.Website,
		CEO:            domain.Person{FirstName: rc.FirstName, LastName: rc.LastName, Email: rc.Email, Phone: rc.Phone, LinkedIn: rc.field("socials_li")},
		CompanyContact: domain.Contact{Email: rc.Email, Phone: rc.Phone},
		Socials: domain.Socials{
			Facebook:  rc.field("socials_fb"),
			Instagram: rc.field("socials_ig"),
			LinkedIn:  rc.field("socials_li"),
		},
		WebsiteScore: 5,
		SEOScore:     5,
		PipelineTag:  domain.StageCold,
		GHLSynced:    true,
		GHLContactID: rc.ID,
		Source:       "ghl",
		Analysis:     domain.Analysis{OfferReason: "GHL Enterprise Sync", DiscoveryPath: "GoHighLevel Cloud", SEOStatus: "Synced"},
	}
	if s := rc.field("google_review_score"); s != "" {
		score, _ := strconv.ParseFloat(s, 64)
		count, _ := strconv.Atoi(rc.field("google_review_count"))
		l.GoogleReviews = &domain.Reviews{Score: score, Count: count}
	}
	if p := rc.field("pijnpunten"); p != "" {
		l.PainPoints = strings.Split(p, " | ")
	}
	if h := rc.field("history_log"); h != "" {
		_ = json.Unmarshal([]byte(h), &l.Interactions)
	}
	if t, err := time.Parse(time.RFC3339, rc.DateAdded); err == nil {
		l.ScrapedAt = t
	}
	return l
}

// SendSMS sends message to contactID through the conversations API.
func (c *Client) SendSMS(ctx context.Context, contactID, message string) error {
	body := map[string]string{"contactId": contactID, "type": "SMS", "message": message}
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/conversations/messages", body, nil); err != nil {
		c.fail("send sms", err)
		return err
	}
	return nil
}

func (c *Client) fail(op string, err error) {
	c.log.ExternalCallFailed("ghl", op, err)
	metrics.RecordIntegrationError("ghl")
}

func (c *Client) do(ctx context.Context, method, url string, in, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal ghl payload: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Version", apiVersion)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ghl request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("ghl returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return fmt.Errorf("decode ghl response: %w", err)
	}
	return nil
}
