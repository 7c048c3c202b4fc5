package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/carlmjohnson/versioninfo"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"

	"github.com/ihub-edu/hallpass/pkg/robusthttp"
)

const DefaultGeminiModel = "gemini-1.5-flash"

var geminiAPIDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name: "hallpass_gemini_api_duration_sec",
	Help: "Duration of Gemini generateContent requests",
})

var geminiAPICount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "hallpass_gemini_api_requests",
	Help: "Number of Gemini generateContent requests, by HTTP status code",
}, []string{"status_code"})

// GeminiClient calls the Gemini generateContent REST API. The client-side
// limiter keeps a chat burst from tripping the vendor's quota; requests over
// the limit wait rather than fail.
type GeminiClient struct {
	Client  *http.Client
	Host    string
	APIKey  string
	Model   string
	Limiter *rate.Limiter
}

var _ Completer = (*GeminiClient)(nil)

func NewGeminiClient(host, apiKey, model string, rps int) *GeminiClient {
	if host == "" {
		host = "https://generativelanguage.googleapis.com"
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	if rps <= 0 {
		rps = 2
	}
	return &GeminiClient{
		Client:  robusthttp.NewClient(),
		Host:    host,
		APIKey:  apiKey,
		Model:   model,
		Limiter: rate.NewLimiter(rate.Limit(rps), rps),
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
	Role  string       `json:"role,omitempty"`
}

type geminiSafetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopP            float64 `json:"topP"`
	TopK            int     `json:"topK"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
	SafetySettings   []geminiSafetySetting  `json:"safetySettings"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason"`
}

type geminiResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
}

// thresholds tuned for an educational audience
func defaultSafetySettings() []geminiSafetySetting {
	categories := []string{
		"HARM_CATEGORY_HARASSMENT",
		"HARM_CATEGORY_HATE_SPEECH",
		"HARM_CATEGORY_SEXUALLY_EXPLICIT",
		"HARM_CATEGORY_DANGEROUS_CONTENT",
	}
	out := make([]geminiSafetySetting, len(categories))
	for i, cat := range categories {
		out[i] = geminiSafetySetting{Category: cat, Threshold: "BLOCK_MEDIUM_AND_ABOVE"}
	}
	return out
}

// Complete sends the prompt and returns the first candidate's text.
// ErrSafetyBlocked when the backend's own filters refused the prompt.
func (c *GeminiClient) Complete(ctx context.Context, prompt string) (string, error) {
	if err := c.Limiter.Wait(ctx); err != nil {
		return "", err
	}

	reqBody := geminiRequest{
		Contents: []geminiContent{
			{Parts: []geminiPart{{Text: prompt}}},
		},
		GenerationConfig: geminiGenerationConfig{
			Temperature:     0.7,
			TopP:            0.8,
			TopK:            40,
			MaxOutputTokens: 1024,
		},
		SafetySettings: defaultSafetySettings(),
	}
	raw, err := json.Marshal(&reqBody)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.Host, c.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(raw))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "hallpass/"+versioninfo.Short())
	req.Header.Set("x-goog-api-key", c.APIKey)

	start := time.Now()
	defer func() {
		geminiAPIDuration.Observe(time.Since(start).Seconds())
	}()

	res, err := c.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}
	defer res.Body.Close()

	geminiAPICount.WithLabelValues(fmt.Sprint(res.StatusCode)).Inc()
	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gemini request failed statusCode=%d", res.StatusCode)
	}

	respBytes, err := io.ReadAll(res.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read gemini response body: %w", err)
	}

	var respObj geminiResponse
	if err := json.Unmarshal(respBytes, &respObj); err != nil {
		return "", fmt.Errorf("failed to parse gemini response JSON: %w", err)
	}
	if len(respObj.Candidates) == 0 {
		return "", ErrSafetyBlocked
	}
	cand := respObj.Candidates[0]
	switch cand.FinishReason {
	case "SAFETY", "BLOCKED":
		return "", ErrSafetyBlocked
	}
	if len(cand.Content.Parts) == 0 {
		return "", fmt.Errorf("gemini response has no content parts")
	}
	return cand.Content.Parts[0].Text, nil
}
