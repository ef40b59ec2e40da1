package client

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"crescoflow/platform/logger"

	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

// Extractor turns free research text into JSON matching a schema.
type Extractor interface {
	Extract(ctx context.Context, prompt string, schema *genai.Schema) (string, error)
}

// Extract uses the Gemini extraction model in JSON mode.
func (c *Client) Extract(ctx context.Context, prompt string, schema *genai.Schema) (string, error) {
	return c.Generate(ctx, c.models.Extraction, prompt, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
		Temperature:      genai.Ptr[float32](0),
	})
}

// LLMExtractor runs extraction on any model.LLM, such as Moonshot. The
// schema is not enforced by those models, so the prompt carries it.
type LLMExtractor struct {
	llm model.LLM
}

func NewLLMExtractor(llm model.LLM) *LLMExtractor {
	return &LLMExtractor{llm: llm}
}

func (e *LLMExtractor) Extract(ctx context.Context, prompt string, schema *genai.Schema) (string, error) {
	req := &model.LLMRequest{
		Model: e.llm.Name(),
		Contents: []*genai.Content{
			genai.NewContentFromText(prompt+"\n\nAnswer with JSON only, matching this schema:\n"+describeSchema(schema, ""), genai.RoleUser),
		},
		Config: &genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
			Temperature:      genai.Ptr[float32](0),
		},
	}

	var out strings.Builder
	for resp, err := range e.llm.GenerateContent(ctx, req, false) {
		if err != nil {
			return "", fmt.Errorf("%s extract: %w", e.llm.Name(), err)
		}
		if resp == nil || resp.Content == nil {
			continue
		}
		for _, part := range resp.Content.Parts {
			if part != nil {
				out.WriteString(part.Text)
			}
		}
	}
	text := stripFence(out.String())
	if text == "" {
		return "", errors.New(e.llm.Name() + " extract: empty response")
	}
	return text, nil
}

// FallbackExtractor tries each extractor in turn.
type FallbackExtractor struct {
	chain []Extractor
	log   *logger.Logger
}

// NewFallbackExtractor skips nil entries.
func NewFallbackExtractor(log *logger.Logger, chain ...Extractor) *FallbackExtractor {
	f := &FallbackExtractor{log: log}
	for _, e := range chain {
		if e != nil {
			f.chain = append(f.chain, e)
		}
	}
	return f
}

func (f *FallbackExtractor) Extract(ctx context.Context, prompt string, schema *genai.Schema) (string, error) {
	if len(f.chain) == 0 {
		return "", errors.New("no extraction model configured")
	}
	var errs []error
	for i, e := range f.chain {
		out, err := e.Extract(ctx, prompt, schema)
		if err == nil {
			return out, nil
		}
		if i < len(f.chain)-1 {
			f.log.Warn("extraction failed, trying fallback", "error", err)
		}
		errs = append(errs, err)
	}
	return "", errors.Join(errs...)
}

func describeSchema(s *genai.Schema, indent string) string {
	if s == nil {
		return indent + "any"
	}
	switch s.Type {
	case genai.TypeArray:
		return indent + "array of:\n" + describeSchema(s.Items, indent+"  ")
	case genai.TypeObject:
		var b strings.Builder
		b.WriteString(indent + "object {\n")
		for _, name := range slices.Sorted(maps.Keys(s.Properties)) {
			prop := s.Properties[name]
			b.WriteString(indent + "  " + name + ": " + strings.TrimSpace(describeSchema(prop, indent+"  ")) + "\n")
		}
		b.WriteString(indent + "}")
		return b.String()
	default:
		return indent + strings.ToLower(string(s.Type))
	}
}

// stripFence removes a markdown code fence some models wrap JSON in.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
