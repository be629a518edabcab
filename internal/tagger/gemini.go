package tagger

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"time"

	polyerrors "github.com/polyforge/polyforge/internal/errors"
	"github.com/polyforge/polyforge/internal/logger"
)

// ImagePart is one inline image attached to a generateContent call.
type ImagePart struct {
	MimeType string
	Data     []byte
}

// Client calls a Gemini-compatible generateContent REST endpoint.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewClient builds a Client. baseURL defaults to the public Gemini API if
// empty; model defaults to "gemini-1.5-flash".
func NewClient(apiKey, baseURL, model string) *Client {
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if model == "" {
		model = "gemini-1.5-flash"
	}
	return &Client{
		apiKey:     apiKey,
		baseURL:    baseURL,
		model:      model,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

type generateContentRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Generate sends the images followed by the prompt text and returns the
// model's raw text response.
func (c *Client) Generate(ctx context.Context, prompt string, images []ImagePart) (string, error) {
	if c.apiKey == "" {
		return "", polyerrors.NewAuth(fmt.Errorf("tagger: no AI API key configured"))
	}

	parts := make([]part, 0, len(images)+1)
	for _, img := range images {
		parts = append(parts, part{InlineData: &inlineData{
			MimeType: img.MimeType,
			Data:     base64.StdEncoding.EncodeToString(img.Data),
		}})
	}
	parts = append(parts, part{Text: prompt})

	reqBody, err := json.Marshal(generateContentRequest{Contents: []content{{Parts: parts}}})
	if err != nil {
		return "", fmt.Errorf("tagger: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("tagger: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", polyerrors.NewTransient(fmt.Errorf("tagger: gemini request failed: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", polyerrors.NewTransient(fmt.Errorf("tagger: read gemini response: %w", err))
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := retryAfterFromHeader(resp.Header.Get("Retry-After"))
		if retryAfter == 0 {
			retryAfter = extractRetryAfter(string(body))
		}
		if retryAfter == 0 {
			retryAfter = 60
		}
		return "", polyerrors.NewRateLimit(retryAfter, fmt.Errorf("tagger: gemini rate limited: %s", string(body)))
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", polyerrors.NewAuth(fmt.Errorf("tagger: gemini auth error %d: %s", resp.StatusCode, string(body)))
	}
	if resp.StatusCode >= 500 {
		return "", polyerrors.NewTransient(fmt.Errorf("tagger: gemini server error %d: %s", resp.StatusCode, string(body)))
	}
	if resp.StatusCode != http.StatusOK {
		logger.Warn(ctx, "gemini_api_error", "status", resp.StatusCode, "body", string(body))
		return "", polyerrors.NewTransient(fmt.Errorf("tagger: gemini http error %d: %s", resp.StatusCode, string(body)))
	}

	var parsed generateContentResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("tagger: unmarshal gemini response: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("tagger: gemini returned no candidates")
	}

	var text string
	for _, p := range parsed.Candidates[0].Content.Parts {
		text += p.Text
	}
	return text, nil
}

func retryAfterFromHeader(h string) int {
	if h == "" {
		return 0
	}
	n, err := strconv.Atoi(h)
	if err != nil {
		return 0
	}
	return n
}

var retryAfterPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)retry.{0,10}?(\d+)\s*(?:second|sec|s\b)`),
	regexp.MustCompile(`(?i)wait.{0,10}?(\d+)\s*(?:second|sec|s\b)`),
}

// extractRetryAfter pulls a retry-after hint out of an error body when the
// API didn't set a Retry-After header.
func extractRetryAfter(body string) int {
	for _, re := range retryAfterPatterns {
		if m := re.FindStringSubmatch(body); len(m) == 2 {
			if n, err := strconv.Atoi(m[1]); err == nil {
				return n
			}
		}
	}
	return 0
}
