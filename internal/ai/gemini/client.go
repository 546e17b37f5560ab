package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nytrohq/interview-screener/internal/ai"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

const (
	defaultModel   = "gemini-2.5-pro"
	defaultTimeout = 30 * time.Second

	jsonMIMEType = "application/json"
)

// Gateway implements ai.Gateway on top of the Google GenAI client.
type Gateway struct {
	client    *genai.Client
	modelName string
	timeout   time.Duration
	logger    *zap.Logger
}

// New creates a Gateway configured for the Gemini API backend.
func New(ctx context.Context, apiKey, model string, timeout time.Duration, logger *zap.Logger) (*Gateway, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}

	if timeout <= 0 {
		timeout = defaultTimeout
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Gateway{
		client:    client,
		modelName: model,
		timeout:   timeout,
		logger:    logger,
	}, nil
}

// GenerateText sends the request to Gemini and returns the textual response.
func (g *Gateway) GenerateText(ctx context.Context, req *ai.Request) (string, error) {
	return g.generate(ctx, req, nil)
}

// GenerateJSON sends the request in JSON mode. The schema, when provided,
// is embedded into the instruction; payload validation is the caller's concern.
func (g *Gateway) GenerateJSON(ctx context.Context, req *ai.Request, schema []byte) (string, error) {
	cfg := &genai.GenerateContentConfig{ResponseMIMEType: jsonMIMEType}

	if len(schema) > 0 {
		req = &ai.Request{
			SystemPrompt: req.SystemPrompt,
			History:      req.History,
			Instruction: fmt.Sprintf("%s\n\nRespond with a single JSON document matching this JSON Schema:\n%s",
				req.Instruction, schema),
		}
	}

	return g.generate(ctx, req, cfg)
}

func (g *Gateway) generate(ctx context.Context, req *ai.Request, config *genai.GenerateContentConfig) (string, error) {
	if g == nil || g.client == nil {
		return "", errors.New("gemini gateway is not initialized")
	}

	if req == nil || strings.TrimSpace(req.Instruction) == "" {
		return "", errors.New("instruction must not be empty")
	}

	if config == nil {
		config = &genai.GenerateContentConfig{}
	}

	if sys := strings.TrimSpace(req.SystemPrompt); sys != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: sys}},
		}
	}

	contents := buildContents(req)

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	g.logger.Debug("gemini generate content request",
		zap.String("model", g.modelName),
		zap.Int("history_turns", len(req.History)),
	)

	resp, err := g.client.Models.GenerateContent(ctx, g.modelName, contents, config)
	if err != nil {
		return "", ai.WrapErr(fmt.Errorf("generate content: %w", err))
	}

	output := collectText(resp)
	if output == "" {
		return "", ai.WrapErr(errors.New("gemini api returned empty response"))
	}

	return output, nil
}

func buildContents(req *ai.Request) []*genai.Content {
	contents := make([]*genai.Content, 0, len(req.History)+1)
	for _, turn := range req.History {
		role := genai.RoleModel
		if turn.Role == "candidate" {
			role = genai.RoleUser
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: turn.Content}},
		})
	}

	contents = append(contents, &genai.Content{
		Role:  genai.RoleUser,
		Parts: []*genai.Part{{Text: req.Instruction}},
	})

	return contents
}

func collectText(resp *genai.GenerateContentResponse) string {
	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}

	return strings.TrimSpace(builder.String())
}

// Model returns the configured model name.
func (g *Gateway) Model() string {
	if g == nil {
		return ""
	}
	return g.modelName
}
