package scanning

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// transcribePrompt asks the model for a faithful plain-text transcription.
// Field extraction happens locally with ExtractFields, so the prompt
// deliberately avoids asking for structured output.
const transcribePrompt = `Transcribe all text visible in this invoice or receipt image.
Preserve the reading order and line breaks as closely as possible.
Return only the transcribed text, with no commentary and no markdown.`

// Gemini implements the Scanner interface using Google Gemini vision models.
type Gemini struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGemini creates a new Gemini Scanner instance
func NewGemini(apiKey string, modelName string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = "gemini-2.5-pro"
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &Gemini{
		client: client,
		model:  client.GenerativeModel(modelName),
	}, nil
}

// ScanPage transcribes one page image and returns the raw text.
func (g *Gemini) ScanPage(image []byte, contentType string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), scanTimeout)
	defer cancel()

	// genai.ImageData expects just the format suffix (e.g. "png"), not the
	// full MIME type.
	format := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(contentType)), "image/")
	if format == "" || strings.Contains(format, "/") {
		format = "png"
	}

	parts := []genai.Part{
		genai.ImageData(format, image),
		genai.Text(transcribePrompt),
	}

	resp, err := g.model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("generating content: %w", err)
	}

	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", nil
	}

	var out strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			out.WriteString(string(text))
		}
	}

	return strings.TrimSpace(out.String()), nil
}

// Close closes the Gemini client
func (g *Gemini) Close() error {
	return g.client.Close()
}
