package engine

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"net/http"
	"strings"

	"github.com/guillermolam/alberguecarcalejo-sub000/internal/domain"
	imgproc "github.com/guillermolam/alberguecarcalejo-sub000/internal/image"
	"github.com/guillermolam/alberguecarcalejo-sub000/internal/logger"
)

// OllamaEngine transcribes images with a vision model served by Ollama.
type OllamaEngine struct {
	baseURL string
	model   string
	client  *http.Client
}

type OllamaRequest struct {
	Model  string   `json:"model"`
	Prompt string   `json:"prompt"`
	Images []string `json:"images"`
	Stream bool     `json:"stream"`
}

type OllamaResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

type transcription struct {
	Text string `json:"text"`
}

const (
	defaultBaseURL = "http://localhost:11434"
	defaultModel   = "llama3.2-vision"

	// vision models give no calibrated score, so confidence is reported as unknown
	ollamaConfidence = 0.0
)

const transcribePrompt = `
You are an OCR engine reading a Spanish identity document (DNI, NIE card or passport).

Your job:

1. Transcribe every line of printed text exactly as it appears, top to bottom.
2. Keep line breaks. Keep machine readable zone lines (with '<' fillers) intact.
3. Do not translate, correct or interpret anything.
4. Return **only** a JSON object with this exact schema:

{
  "text": "<all transcribed lines separated by \n>"
}

* Do not add any other text, explanations, or formatting.
* If nothing is readable, return an empty string for text.
`

func NewOllamaEngine(baseURL, model string) *OllamaEngine {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if model == "" {
		model = defaultModel
	}

	return &OllamaEngine{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{},
	}
}

func (o *OllamaEngine) Name() string {
	return "ollama"
}

func (o *OllamaEngine) ExtractText(ctx context.Context, img *image.Gray) (string, error) {
	text, _, err := o.ExtractTextWithConfidence(ctx, img)
	return text, err
}

func (o *OllamaEngine) ExtractTextWithConfidence(ctx context.Context, img *image.Gray) (string, float64, error) {
	imageData, err := imgproc.EncodePNG(img)
	if err != nil {
		return "", 0, domain.OCREngineError("preparing image", err)
	}

	request := OllamaRequest{
		Model:  o.model,
		Prompt: transcribePrompt,
		Images: []string{base64.StdEncoding.EncodeToString(imageData)},
		Stream: false,
	}

	jsonData, err := json.Marshal(request)
	if err != nil {
		return "", 0, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/generate", bytes.NewReader(jsonData))
	if err != nil {
		return "", 0, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", 0, domain.OCREngineError("engine unavailable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", 0, domain.OCREngineError(fmt.Sprintf("ollama request failed with status: %d", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, fmt.Errorf("failed to read response: %w", err)
	}

	var ollamaResp OllamaResponse
	if err := json.Unmarshal(body, &ollamaResp); err != nil {
		return "", 0, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return parseTranscription(ollamaResp.Response)
}

func (o *OllamaEngine) Close() error {
	o.client.CloseIdleConnections()
	return nil
}

// parseTranscription reads the model answer. Answers without a JSON object are
// taken as plain text.
func parseTranscription(answer string) (string, float64, error) {
	raw, err := extractJSON(answer)
	if err != nil {
		logger.DebugLog("[ollama]: no JSON in answer, using raw text: %v", err)
		text := strings.TrimSpace(answer)
		if text == "" {
			return "", 0, nil
		}
		return text, ollamaConfidence, nil
	}

	var t transcription
	if err := json.Unmarshal(raw, &t); err != nil {
		return "", 0, fmt.Errorf("failed to decode transcription: %w", err)
	}
	text := strings.TrimSpace(t.Text)
	if text == "" {
		return "", 0, nil
	}
	return text, ollamaConfidence, nil
}

// extractJSON returns the first brace-balanced JSON object in input. Braces inside
// JSON strings are skipped.
func extractJSON(input string) (json.RawMessage, error) {
	start := strings.IndexByte(input, '{')
	if start == -1 {
		return nil, fmt.Errorf("no JSON found in text")
	}

	// Track brace depth to find the matching closing brace
	braceCount := 0
	end := -1
	inString, escaped := false, false

matchingBrace:
	for i := start; i < len(input); i++ {
		c := input[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			braceCount++
		case '}':
			braceCount--
			if braceCount == 0 {
				end = i + 1
				break matchingBrace
			}
		}
	}

	if end == -1 {
		return nil, fmt.Errorf("no matching closing brace found")
	}

	jsonStr := input[start:end]

	// Validate that it's actually valid JSON
	if !json.Valid([]byte(jsonStr)) {
		return nil, fmt.Errorf("extracted text is not valid JSON")
	}

	return json.RawMessage(jsonStr), nil
}
