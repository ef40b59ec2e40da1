package domain

import (
	"net/url"
	"strings"
	"time"

	"crescoflow/platform/apperr"
	"crescoflow/platform/phone"

	"github.com/google/uuid"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

const (
	maxConfidence = 100
	maxSiteScore  = 10
)

// CompanyKey is the comparison key for company names: Unicode-normalized,
// case-folded and whitespace-collapsed. Two leads with the same key are the
// same company for dedupe purposes.
func CompanyKey(name string) string {
	folded := cases.Fold().String(norm.NFKC.String(name))
	return strings.Join(strings.Fields(folded), " ")
}

// Normalize maps any source variant of a lead onto the canonical shape.
// It is applied once, where leads enter the system.
func Normalize(l Lead, now time.Time) Lead {
	out := l.Clone()

	out.ID = strings.TrimSpace(out.ID)
	if out.ID == "" {
		out.ID = uuid.NewString()
	}
	out.CompanyName = strings.Join(strings.Fields(out.CompanyName), " ")
	out.Sector = strings.TrimSpace(out.Sector)
	out.City = strings.TrimSpace(out.City)
	out.Address = strings.TrimSpace(out.Address)
	out.Website = CanonicalWebsite(out.Website)

	out.CEO.FirstName = strings.TrimSpace(out.CEO.FirstName)
	out.CEO.LastName = strings.TrimSpace(out.CEO.LastName)
	out.CEOName = strings.TrimSpace(out.CEOName)
	switch {
	case out.CEO.FirstName == "" && out.CEO.LastName == "" && out.CEOName != "":
		first, last, _ := strings.Cut(out.CEOName, " ")
		out.CEO.FirstName = first
		out.CEO.LastName = strings.TrimSpace(last)
	case out.CEOName == "":
		out.CEOName = out.CEO.FullName()
	}

	out.CEO.Email = normalizeEmail(out.CEO.Email)
	out.CompanyContact.Email = normalizeEmail(out.CompanyContact.Email)
	out.CEO.Phone = phone.NormalizeE164(out.CEO.Phone)
	out.CompanyContact.Phone = phone.NormalizeE164(out.CompanyContact.Phone)

	out.ConfidenceScore = clamp(out.ConfidenceScore, 0, maxConfidence)
	out.WebsiteScore = clamp(out.WebsiteScore, 0, maxSiteScore)
	out.SEOScore = clamp(out.SEOScore, 0, maxSiteScore)

	if !IsKnownStage(string(out.PipelineTag)) {
		out.PipelineTag = StageCold
	}
	if !IsKnownChannel(string(out.OutboundChannel)) {
		out.OutboundChannel = ChannelColdEmail
	}
	if out.ScrapedAt.IsZero() {
		out.ScrapedAt = now
	}
	if out.Interactions == nil {
		out.Interactions = []Interaction{}
	}
	for i := range out.Interactions {
		if out.Interactions[i].ID == "" {
			out.Interactions[i].ID = uuid.NewString()
		}
		if !IsKnownInteractionType(string(out.Interactions[i].Type)) {
			out.Interactions[i].Type = InteractionSystem
		}
	}
	return out
}

// Validate rejects leads that lack the identity fields required for storage.
func Validate(l Lead) error {
	if strings.TrimSpace(l.CompanyName) == "" {
		return apperr.Validation("companyName is required")
	}
	return nil
}

// CanonicalWebsite returns an https URL for a bare host, or "" when the
// input is not a usable web address.
func CanonicalWebsite(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" || !strings.Contains(u.Hostname(), ".") {
		return ""
	}
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	return strings.TrimSuffix(u.String(), "/")
}

// WebsiteDomain returns the registrable domain of a website (e.g.
// "shop.acme.co.uk" → "acme.co.uk"), or "" when there is none.
func WebsiteDomain(website string) string {
	canonical := CanonicalWebsite(website)
	if canonical == "" {
		return ""
	}
	u, err := url.Parse(canonical)
	if err != nil {
		return ""
	}
	domain, err := publicsuffix.EffectiveTLDPlusOne(strings.TrimPrefix(u.Hostname(), "www."))
	if err != nil {
		return ""
	}
	return domain
}

// CompletenessScore estimates data quality from which contact fields are
// filled. It is used as the confidence score of enriched leads.
func CompletenessScore(l Lead) int {
	score := 20
	if l.DecisionMakerName() != "" {
		score += 20
	}
	if l.CEO.Email != "" {
		score += 20
	}
	if l.CEO.Phone != "" {
		score += 20
	}
	if l.CompanyContact.Email != "" || l.CompanyContact.Phone != "" {
		score += 10
	}
	if l.Website != "" {
		score += 10
	}
	return clamp(score, 0, maxConfidence)
}

func normalizeEmail(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	if !strings.Contains(email, "@") {
		return ""
	}
	return email
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
