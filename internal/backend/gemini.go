package backend

import (
	"context"
	"fmt"
	"strings"

	"github.com/mind-engage/hireflow/internal/exam"
	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.5-flash"

// GeminiGenerator generates questions in-process with the Gemini API, for
// deployments without the HTTP generation service.
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

func NewGeminiGenerator(ctx context.Context, apiKey, model string) (*GeminiGenerator, error) {
	cfg := &genai.ClientConfig{Backend: genai.BackendGeminiAPI}
	if apiKey != "" {
		cfg.APIKey = apiKey
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	if model == "" {
		model = defaultGeminiModel
	}
	return &GeminiGenerator{client: client, model: model}, nil
}

func (g *GeminiGenerator) Generate(ctx context.Context, cv, offre string) ([]exam.Question, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(generationPrompt(cv, offre)), nil)
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}
	qs, err := DecodeQuestions([]byte(cleanModelOutput(resp.Text())))
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}
	return qs, nil
}

func generationPrompt(cv, offre string) string {
	var b strings.Builder
	b.WriteString("Génère un test de personnalité de 10 questions pour évaluer l'adéquation d'un candidat à un poste.\n")
	b.WriteString("Réponds uniquement avec un tableau JSON de la forme ")
	b.WriteString(`[{"question": "...", "trait": "...", "options": [{"text": "...", "score": 1}]}]`)
	b.WriteString(", quatre options par question, scores entre 1 et 5.\n")
	if offre != "" {
		b.WriteString("\nOffre:\n" + offre + "\n")
	}
	if cv != "" {
		b.WriteString("\nCandidat:\n" + cv + "\n")
	}
	return b.String()
}

func cleanModelOutput(text string) string {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```JSON")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	return strings.TrimSpace(cleaned)
}
