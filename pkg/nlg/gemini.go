package nlg

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/genai"

	"careroute/pkg/metrics"
	"careroute/pkg/models"
)

// GeminiClient implements Client on the Gemini API.
type GeminiClient struct {
	client    *genai.Client
	modelName string
	timeout   time.Duration
	logger    *logrus.Logger
	metrics   *metrics.Metrics
}

func NewGeminiClient(ctx context.Context, apiKey, modelName string, timeout time.Duration, logger *logrus.Logger, metrics *metrics.Metrics) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &GeminiClient{
		client:    client,
		modelName: modelName,
		timeout:   timeout,
		logger:    logger,
		metrics:   metrics,
	}, nil
}

// Analyze asks the model for a JSON analysis. Transport failures and malformed
// output both come back as *ClassificationError.
func (g *GeminiClient) Analyze(ctx context.Context, message string, history []string) (models.Analysis, error) {
	temp := float32(0.1)
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(analysisInstruction, genai.RoleUser),
		Temperature:       &temp,
		ResponseMIMEType:  "application/json",
		MaxOutputTokens:   int32(1024),
	}

	text, err := g.generate(ctx, "analyze", AnalysisPrompt(message, history), cfg)
	if err != nil {
		return models.Analysis{}, &ClassificationError{Reason: "backend unavailable", Err: err}
	}

	analysis, err := ParseAnalysis(text)
	if err != nil {
		g.logger.WithError(err).WithField("model", g.modelName).Warn("Discarding malformed analysis")
		return models.Analysis{}, err
	}
	return analysis, nil
}

func (g *GeminiClient) Generate(ctx context.Context, prompt Prompt) (string, error) {
	temp := float32(0.7)
	topP := float32(0.9)
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(prompt.System, genai.RoleUser),
		Temperature:       &temp,
		TopP:              &topP,
		MaxOutputTokens:   int32(2048),
	}

	return g.generate(ctx, "generate", prompt.Message, cfg)
}

func (g *GeminiClient) generate(ctx context.Context, op, userText string, cfg *genai.GenerateContentConfig) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	status := "success"
	defer func() {
		g.metrics.NLGCallDuration.WithLabelValues(op, status).Observe(time.Since(start).Seconds())
	}()

	contents := []*genai.Content{genai.NewContentFromText(userText, genai.RoleUser)}
	res, err := g.client.Models.GenerateContent(ctx, g.modelName, contents, cfg)
	if err != nil {
		status = "error"
		return "", fmt.Errorf("gemini %s: %w", op, err)
	}

	text := res.Text()
	if text == "" {
		status = "empty"
		return "", fmt.Errorf("gemini %s returned empty text", op)
	}
	return text, nil
}
