package scanning

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// OCRSpace implements the Scanner interface using the ocr.space REST API.
type OCRSpace struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewOCRSpace creates a new OCRSpace Scanner instance. The free tier of the
// API works with engine 2, which handles table-heavy invoice layouts better
// than the default engine.
func NewOCRSpace(baseURL, apiKey string) (*OCRSpace, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("ocr.space api key is required")
	}
	if baseURL == "" {
		baseURL = "https://api.ocr.space"
	}

	return &OCRSpace{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: scanTimeout},
	}, nil
}

type ocrSpaceResult struct {
	ParsedText string `json:"ParsedText"`
}

// ocrSpaceResponse is the subset of the parse/image response we care about.
// ErrorMessage can be a string or an array of strings depending on the
// failure, so it is kept raw.
type ocrSpaceResponse struct {
	ParsedResults         []ocrSpaceResult `json:"ParsedResults"`
	IsErroredOnProcessing bool             `json:"IsErroredOnProcessing"`
	ErrorMessage          json.RawMessage  `json:"ErrorMessage"`
}

// ScanPage sends one page image to ocr.space and returns the parsed text.
// Multiple parsed results (the API splits some documents) are joined with
// newlines.
func (o *OCRSpace) ScanPage(image []byte, contentType string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), scanTimeout)
	defer cancel()

	mimeType := strings.ToLower(strings.TrimSpace(contentType))
	if mimeType == "" {
		mimeType = "image/png"
	}

	form := url.Values{}
	form.Set("apikey", o.apiKey)
	form.Set("isTable", "true")
	form.Set("scale", "true")
	form.Set("OCREngine", "2")
	form.Set("base64Image", fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(image)))

	endpoint := fmt.Sprintf("%s/parse/image", o.baseURL)
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling ocr.space API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("ocr.space API error (status %d): %s", resp.StatusCode, string(body))
	}

	var parsed ocrSpaceResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	if parsed.IsErroredOnProcessing {
		return "", fmt.Errorf("ocr.space processing error: %s", string(parsed.ErrorMessage))
	}

	texts := make([]string, 0, len(parsed.ParsedResults))
	for _, result := range parsed.ParsedResults {
		if result.ParsedText != "" {
			texts = append(texts, result.ParsedText)
		}
	}

	return strings.TrimSpace(strings.Join(texts, "\n")), nil
}

// Close closes the OCRSpace client (no-op for HTTP client)
func (o *OCRSpace) Close() error {
	return nil
}
