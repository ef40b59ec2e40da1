// Package domain holds the canonical lead model and its pipeline vocabulary.
package domain

import (
	"strings"
	"time"
)

// Lead is a prospective business contact tracked through the sales pipeline.
type Lead struct {
	ID          string `json:"id"`
	CompanyName string `json:"companyName"`
	Sector      string `json:"sector"`
	City        string `json:"city"`
	Address     string `json:"address,omitempty"`
	Website     string `json:"website"`

	CEOName        string   `json:"ceoName"`
	CEO            Person   `json:"ceo"`
	CompanyContact Contact  `json:"companyContact"`
	Socials        Socials  `json:"socials"`
	GoogleReviews  *Reviews `json:"googleReviews,omitempty"`

	ConfidenceScore int      `json:"confidenceScore"`
	WebsiteScore    int      `json:"websiteScore"`
	SEOScore        int      `json:"seoScore"`
	PainPoints      []string `json:"painPoints,omitempty"`
	Analysis        Analysis `json:"analysis"`

	PipelineTag     Stage      `json:"pipelineTag"`
	OutboundChannel Channel    `json:"outboundChannel"`
	ScheduledDate   *time.Time `json:"scheduledDate,omitempty"`

	Interactions        []Interaction `json:"interactions"`
	LastInteractionDate *time.Time    `json:"lastInteractionDate,omitempty"`

	GHLSynced    bool   `json:"ghlSynced"`
	GHLContactID string `json:"ghlContactId,omitempty"`

	ScrapedAt     time.Time  `json:"scrapedAt"`
	EmailSentAt   *time.Time `json:"emailSentAt,omitempty"`
	ReplyReceived bool       `json:"replyReceived,omitempty"`
	ReplyDate     *time.Time `json:"replyDate,omitempty"`
	Source        string     `json:"source,omitempty"`
	Archived      bool       `json:"archived,omitempty"`
}

// Person is the decision maker of a company.
type Person struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	LinkedIn  string `json:"linkedin,omitempty"`
}

// FullName joins first and last name.
func (p Person) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// Contact is a generic company mailbox and phone line.
type Contact struct {
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type Socials struct {
	Facebook  string `json:"facebook,omitempty"`
	Instagram string `json:"instagram,omitempty"`
	LinkedIn  string `json:"linkedin,omitempty"`
}

type Reviews struct {
	Score float64 `json:"score"`
	Count int     `json:"count"`
}

// Analysis is the free-text part of an enrichment audit.
type Analysis struct {
	OfferReason   string `json:"offerReason,omitempty"`
	DiscoveryPath string `json:"discoveryPath,omitempty"`
	SEOStatus     string `json:"seoStatus,omitempty"`
}

// Interaction is one touchpoint with a lead. Interactions are append-only.
type Interaction struct {
	ID        string          `json:"id"`
	Type      InteractionType `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Outcome   string          `json:"outcome"`
}

// LastInteraction returns the most recently appended interaction.
func (l Lead) LastInteraction() (Interaction, bool) {
	if len(l.Interactions) == 0 {
		return Interaction{}, false
	}
	return l.Interactions[len(l.Interactions)-1], true
}

// DecisionMakerName prefers the structured CEO name over the flat field.
func (l Lead) DecisionMakerName() string {
	if name := l.CEO.FullName(); name != "" {
		return name
	}
	return strings.TrimSpace(l.CEOName)
}

// FirstName returns the decision maker's first name, if any.
func (l Lead) FirstName() string {
	if l.CEO.FirstName != "" {
		return l.CEO.FirstName
	}
	first, _, _ := strings.Cut(strings.TrimSpace(l.CEOName), " ")
	return first
}

// PrimaryEmail returns the decision maker's email, falling back to the company mailbox.
func (l Lead) PrimaryEmail() string {
	if l.CEO.Email != "" {
		return l.CEO.Email
	}
	return l.CompanyContact.Email
}

// PhoneNumbers returns the distinct phone numbers of a lead, decision maker
// first. Numbers of five characters or fewer are ignored.
func (l Lead) PhoneNumbers() []string {
	out := make([]string, 0, 2)
	seen := make(map[string]struct{}, 2)
	for _, p := range []string{l.CEO.Phone, l.CompanyContact.Phone} {
		p = strings.TrimSpace(p)
		if len(p) <= 5 {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

// PrimaryPhone returns the first usable phone number, or "".
func (l Lead) PrimaryPhone() string {
	if phones := l.PhoneNumbers(); len(phones) > 0 {
		return phones[0]
	}
	return ""
}

// Clone returns a deep copy so callers can mutate without aliasing store state.
func (l Lead) Clone() Lead {
	c := l
	if l.GoogleReviews != nil {
		r := *l.GoogleReviews
		c.GoogleReviews = &r
	}
	c.PainPoints = append([]string(nil), l.PainPoints...)
	c.Interactions = append([]Interaction(nil), l.Interactions...)
	c.ScheduledDate = cloneTime(l.ScheduledDate)
	c.LastInteractionDate = cloneTime(l.LastInteractionDate)
	c.EmailSentAt = cloneTime(l.EmailSentAt)
	c.ReplyDate = cloneTime(l.ReplyDate)
	return c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
