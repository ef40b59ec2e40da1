package outbound

import (
	"sort"
	"strings"

	"crescoflow/internal/leads/domain"
	"crescoflow/platform/phone"
)

// Placeholders supported by Personalize.
const (
	PlaceholderCompanyName = "{{company_name}}"
	PlaceholderCEOName     = "{{ceo_name}}"
	PlaceholderCEOFullName = "{{ceo_full_name}}"
	PlaceholderSector      = "{{sector}}"
	PlaceholderCity        = "{{city}}"
	PlaceholderWebsite     = "{{website}}"
)

// Personalize fills lead fields into template. A field the lead does not
// have becomes the empty string; unknown placeholders are left as-is.
func Personalize(template string, lead domain.Lead) string {
	r := strings.NewReplacer(
		PlaceholderCompanyName, lead.CompanyName,
		PlaceholderCEOName, lead.FirstName(),
		PlaceholderCEOFullName, lead.DecisionMakerName(),
		PlaceholderSector, lead.Sector,
		PlaceholderCity, lead.City,
		PlaceholderWebsite, lead.Website,
	)
	return r.Replace(template)
}

// MinSMSConfidence is the confidence a lead needs before it gets a cold SMS.
const MinSMSConfidence = 40

// SMSEligible: a phone number, still cold, and confidence of at least 40.
func SMSEligible(l domain.Lead) bool {
	return !l.Archived && l.PipelineTag == domain.StageCold &&
		l.ConfidenceScore >= MinSMSConfidence && l.PrimaryPhone() != ""
}

// EmailEligible: a usable email address and still cold.
func EmailEligible(l domain.Lead) bool {
	return !l.Archived && l.PipelineTag == domain.StageCold && strings.Contains(l.PrimaryEmail(), "@")
}

// CallEligible: a phone number and still cold.
func CallEligible(l domain.Lead) bool {
	return !l.Archived && l.PipelineTag == domain.StageCold && l.PrimaryPhone() != ""
}

// EligibilityFor returns the preset for a queue channel. Channels without a
// queue accept nothing.
func EligibilityFor(channel domain.Channel) Eligibility {
	switch channel {
	case domain.ChannelColdSMS:
		return SMSEligible
	case domain.ChannelColdEmail:
		return EmailEligible
	case domain.ChannelColdCall:
		return CallEligible
	default:
		return func(domain.Lead) bool { return false }
	}
}

// Recipient is the address an item for lead is delivered to on channel.
func Recipient(channel domain.Channel, lead domain.Lead) string {
	switch channel {
	case domain.ChannelColdEmail:
		return lead.PrimaryEmail()
	case domain.ChannelColdSMS, domain.ChannelColdCall:
		return phone.NormalizeE164(lead.PrimaryPhone())
	default:
		return ""
	}
}

// PrioritizeByConfidence returns a copy of leads sorted by confidence,
// highest first. Ties keep their input order.
func PrioritizeByConfidence(leads []domain.Lead) []domain.Lead {
	out := append([]domain.Lead(nil), leads...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ConfidenceScore > out[j].ConfidenceScore
	})
	return out
}
