// Package service discovers companies with map-grounded search and
// enriches them with web research, both in two phases: a grounded prompt
// that returns prose, then a schema-bound extraction into JSON.
package service

import (
	"context"
	"strings"

	"crescoflow/internal/leadenrichment/client"
	"crescoflow/internal/leads/domain"
	"crescoflow/platform/logger"

	"google.golang.org/genai"
)

const (
	researchThinkingBudget = 8192
	defaultSiteScore       = 5
	defaultOfferReason     = "Strategisch voordeel gedetecteerd."
	discoveryPath          = "Google Maps discovery"
	researchPath           = "Deep web research"
	auditedStatus          = "Audit verified"
	sourceGemini           = "gemini"
)

// Service implements the discovery and enrichment collaborators of the
// prospecting loop.
type Service struct {
	client    *client.Client
	extractor client.Extractor
	log       *logger.Logger
}

// New uses the client itself for extraction when extractor is nil.
func New(c *client.Client, extractor client.Extractor, log *logger.Logger) *Service {
	if extractor == nil {
		extractor = c
	}
	return &Service{client: c, extractor: extractor, log: log.WithComponent("leadenrichment")}
}

// Discover returns partial leads for companies in sector around location.
func (s *Service) Discover(ctx context.Context, sector, location string) ([]domain.Lead, error) {
	text, err := s.client.Generate(ctx, s.client.Models().Discovery, discoveryPrompt(sector, location), &genai.GenerateContentConfig{
		Tools: []*genai.Tool{{GoogleMaps: &genai.GoogleMaps{}}},
	})
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	raw, err := s.extractor.Extract(ctx, discoveryParsePrompt(text), discoverySchema)
	if err != nil {
		return nil, err
	}
	var companies []discoveredCompany
	if err := decodeJSON(raw, '[', ']', &companies); err != nil {
		return nil, err
	}

	leads := make([]domain.Lead, 0, len(companies))
	for _, c := range companies {
		name := strings.TrimSpace(c.CompanyName)
		if name == "" {
			continue
		}
		lead := domain.Lead{
			CompanyName: name,
			Sector:      sector,
			City:        c.City,
			Address:     c.Address,
			Website:     c.Website,
			Source:      sourceGemini,
			Analysis:    domain.Analysis{DiscoveryPath: discoveryPath},
		}
		if c.GoogleReviews != nil && (c.GoogleReviews.Score > 0 || c.GoogleReviews.Count > 0) {
			lead.GoogleReviews = &domain.Reviews{Score: float64(c.GoogleReviews.Score), Count: int(c.GoogleReviews.Count)}
		}
		leads = append(leads, lead)
	}

	s.log.Info("discovery finished", "sector", sector, "location", location, "found", len(leads))
	return leads, nil
}

// Enrich researches one company. It never fails: on any error the partial
// lead is returned with pipeline defaults applied.
func (s *Service) Enrich(ctx context.Context, partial domain.Lead) domain.Lead {
	data, err := s.research(ctx, partial)
	if err != nil {
		s.log.ExternalCallFailed("gemini", "enrich "+partial.CompanyName, err)
		return withDefaults(partial)
	}
	return withDefaults(merge(partial, data))
}

func (s *Service) research(ctx context.Context, lead domain.Lead) (extractedLead, error) {
	text, err := s.client.Generate(ctx, s.client.Models().Research, researchPrompt(lead.CompanyName, lead.City, lead.Website), &genai.GenerateContentConfig{
		Tools:          []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
		ThinkingConfig: &genai.ThinkingConfig{ThinkingBudget: genai.Ptr[int32](researchThinkingBudget)},
	})
	if err != nil {
		return extractedLead{}, err
	}

	raw, err := s.extractor.Extract(ctx, extractionPrompt(text), enrichmentSchema)
	if err != nil {
		return extractedLead{}, err
	}
	var data extractedLead
	if err := decodeJSON(raw, '{', '}', &data); err != nil {
		return extractedLead{}, err
	}
	return data, nil
}

// merge overlays research onto the partial lead. Found values win; empty
// ones keep what the lead already had.
func merge(lead domain.Lead, data extractedLead) domain.Lead {
	out := lead.Clone()

	out.Website = firstNonEmpty(data.Website, lead.Website)
	if name := strings.TrimSpace(data.CEO.FirstName + " " + data.CEO.LastName); name != "" {
		out.CEOName = name
		out.CEO.FirstName = strings.TrimSpace(data.CEO.FirstName)
		out.CEO.LastName = strings.TrimSpace(data.CEO.LastName)
	}
	out.CEO.Email = firstNonEmpty(data.CEO.Email, lead.CEO.Email)
	out.CEO.Phone = firstNonEmpty(data.CEO.Phone, lead.CEO.Phone)
	out.CEO.LinkedIn = firstNonEmpty(data.CEO.LinkedIn, lead.CEO.LinkedIn)
	out.CompanyContact.Email = firstNonEmpty(data.CompanyContact.Email, lead.CompanyContact.Email)
	out.CompanyContact.Phone = firstNonEmpty(data.CompanyContact.Phone, lead.CompanyContact.Phone)
	out.Socials.Facebook = firstNonEmpty(data.Socials.Facebook, lead.Socials.Facebook)
	out.Socials.Instagram = firstNonEmpty(data.Socials.Instagram, lead.Socials.Instagram)
	out.Socials.LinkedIn = firstNonEmpty(data.Socials.LinkedIn, lead.Socials.LinkedIn)

	if score := int(data.WebsiteScore); score > 0 {
		out.WebsiteScore = score
		out.SEOScore = score
	}
	if len(data.PainPoints) > 0 {
		out.PainPoints = append([]string(nil), data.PainPoints...)
	}
	out.Analysis.OfferReason = firstNonEmpty(data.OfferReason, lead.Analysis.OfferReason, defaultOfferReason)
	out.Analysis.DiscoveryPath = researchPath
	out.Analysis.SEOStatus = auditedStatus
	return out
}

func withDefaults(l domain.Lead) domain.Lead {
	if l.WebsiteScore == 0 {
		l.WebsiteScore = defaultSiteScore
	}
	if l.SEOScore == 0 {
		l.SEOScore = defaultSiteScore
	}
	if l.PipelineTag == "" {
		l.PipelineTag = domain.StageCold
	}
	if l.OutboundChannel == "" {
		l.OutboundChannel = domain.ChannelColdEmail
	}
	if l.Source == "" {
		l.Source = sourceGemini
	}
	l.ConfidenceScore = domain.CompletenessScore(l)
	return l
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
