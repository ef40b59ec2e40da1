// Package leadenrichment provides the composition root for lead discovery
// and enrichment.
package leadenrichment

import (
	"context"

	"crescoflow/internal/leadenrichment/client"
	"crescoflow/internal/leadenrichment/service"
	"crescoflow/platform/ai/moonshot"
	"crescoflow/platform/config"
	"crescoflow/platform/logger"
)

type Config interface {
	config.GeminiConfig
	config.MoonshotConfig
}

// Module wires the Gemini client, the extraction fallback chain and the
// service.
type Module struct {
	service *service.Service
}

// NewModule returns nil when Gemini is not configured; discovery and
// enrichment then stay unavailable.
func NewModule(ctx context.Context, cfg Config, log *logger.Logger) (*Module, error) {
	if !cfg.IsGeminiEnabled() {
		return nil, nil
	}

	cli, err := client.NewGemini(ctx, cfg.GetGeminiAPIKey(), client.Models{
		Discovery:  cfg.GetGeminiDiscoveryModel(),
		Research:   cfg.GetGeminiResearchModel(),
		Extraction: cfg.GetGeminiExtractionModel(),
	}, log)
	if err != nil {
		return nil, err
	}

	var fallback client.Extractor
	if kimi := moonshot.FromConfig(cfg); kimi != nil {
		fallback = client.NewLLMExtractor(kimi)
	}
	extractor := client.NewFallbackExtractor(log, cli, fallback)

	return &Module{service: service.New(cli, extractor, log)}, nil
}

// Service returns the discovery and enrichment service.
func (m *Module) Service() *service.Service {
	return m.service
}
