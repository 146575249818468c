// Package genai is the single funnel for every generative-AI interaction:
// prompt composition, response-schema enforcement, the process-wide
// in-flight cap, and the retry envelope around transient provider failures.
package genai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// ProviderError is a non-2xx answer from the model provider.
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("genai provider returned %d: %s", e.StatusCode, e.Message)
}

// Retryable reports whether the failure is worth another attempt: rate
// limiting, temporary unavailability, or anything the provider flags as
// resource exhaustion.
func (e *ProviderError) Retryable() bool {
	if e.StatusCode == http.StatusTooManyRequests || e.StatusCode == http.StatusServiceUnavailable {
		return true
	}
	upper := strings.ToUpper(e.Message)
	return strings.Contains(upper, "RESOURCE_EXHAUSTED") || strings.Contains(upper, "RATE LIMIT")
}

// IsRetryable classifies any error from a model call. Transport timeouts and
// connection resets retry; everything else (including malformed responses)
// is terminal.
func IsRetryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable()
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// Client talks to the Gemini generateContent REST endpoint.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a provider client. The HTTP timeout is a backstop; the
// effective per-call deadline comes from the caller's context.
func NewClient(apiKey, baseURL string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GOOGLE_API_KEY is required")
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}, nil
}

// Part is one piece of model input: either text or inline bytes.
type Part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *InlineData `json:"inline_data,omitempty"`
}

// InlineData carries a base64 blob with its MIME type.
type InlineData struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

// TextPart builds a text input part.
func TextPart(text string) Part { return Part{Text: text} }

// BytesPart builds an inline-data part from raw bytes.
func BytesPart(data []byte, mimeType string) Part {
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return Part{InlineData: &InlineData{
		MIMEType: mimeType,
		Data:     base64.StdEncoding.EncodeToString(data),
	}}
}

// GenerationConfig constrains the response format.
type GenerationConfig struct {
	ResponseMIMEType string                 `json:"response_mime_type,omitempty"`
	ResponseSchema   map[string]interface{} `json:"response_schema,omitempty"`
}

type generateRequest struct {
	Contents []struct {
		Role  string `json:"role"`
		Parts []Part `json:"parts"`
	} `json:"contents"`
	GenerationConfig *GenerationConfig `json:"generationConfig,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// GenerateContent issues one model call and returns the raw response text.
func (c *Client) GenerateContent(ctx context.Context, model string, parts []Part, cfg *GenerationConfig) (string, error) {
	req := generateRequest{GenerationConfig: cfg}
	req.Contents = append(req.Contents, struct {
		Role  string `json:"role"`
		Parts []Part `json:"parts"`
	}{Role: "user", Parts: parts})

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal generate request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, model, c.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build generate request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return "", fmt.Errorf("read provider response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		message := string(raw)
		var decoded generateResponse
		if json.Unmarshal(raw, &decoded) == nil && decoded.Error != nil {
			message = decoded.Error.Message
			if decoded.Error.Status != "" {
				message = decoded.Error.Status + ": " + message
			}
		}
		return "", &ProviderError{StatusCode: resp.StatusCode, Message: message}
	}

	var decoded generateResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("decode provider response: %w", err)
	}
	if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty response from model")
	}
	return decoded.Candidates[0].Content.Parts[0].Text, nil
}

// DecodeJSONObject parses the model text as a JSON object, tolerating text
// around the braces the way models occasionally wrap their answers.
func DecodeJSONObject(text string) (map[string]interface{}, error) {
	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(text), &payload); err == nil {
		return payload, nil
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return nil, fmt.Errorf("model response is not a JSON object")
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &payload); err != nil {
		return nil, fmt.Errorf("decode model response: %w", err)
	}
	return payload, nil
}
