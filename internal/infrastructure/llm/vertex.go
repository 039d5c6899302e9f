package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"

	"NewsDesk/internal/config"
	"NewsDesk/internal/ports"
)

// VertexClient implements ports.Provider with a Gemini model on Vertex AI.
type VertexClient struct {
	model      *genai.GenerativeModel
	baseClient *genai.Client
}

var _ ports.Provider = (*VertexClient)(nil)

// NewVertexClient creates the Gemini model configured for low-temperature editing.
func NewVertexClient(ctx context.Context, cfg config.VertexConfig, systemPrompt string) (*VertexClient, error) {
	if cfg.ProjectID == "" || cfg.Location == "" {
		return nil, fmt.Errorf("NewVertexClient: projectID and location cannot be empty")
	}

	baseClient, err := genai.NewClient(ctx, cfg.ProjectID, cfg.Location)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	model := baseClient.GenerativeModel(cfg.Model)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(safePrompt(systemPrompt))},
	}
	model.GenerationConfig = genai.GenerationConfig{
		Temperature: genai.Ptr[float32](0.2),
	}

	return &VertexClient{model: model, baseClient: baseClient}, nil
}

// Name identifies the provider in the usage ledger.
func (c *VertexClient) Name() string {
	return "vertex"
}

// Generate sends prompt as a single text part and concatenates the text parts of the first candidate.
func (c *VertexClient) Generate(ctx context.Context, prompt string) (ports.Completion, error) {
	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return ports.Completion{}, fmt.Errorf("gemini generate: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ports.Completion{}, errors.New("gemini returned no candidates")
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			text.WriteString(string(txt))
		}
	}

	completion := ports.Completion{Text: strings.TrimSpace(text.String())}
	if resp.UsageMetadata != nil {
		completion.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		completion.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return withEstimatedUsage(completion, prompt), nil
}

// Close releases the underlying client.
func (c *VertexClient) Close() error {
	if c.baseClient != nil {
		return c.baseClient.Close()
	}
	return nil
}
