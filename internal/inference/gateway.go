package inference

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/antoniostano/elysia/internal/prompt"
	"github.com/antoniostano/elysia/internal/reliability"
)

// Degraded sentinel texts. The TTS skip-list rejects the "Error_"-prefixed
// marker; the conversational fallbacks are user-safe and speakable.
const (
	MissingKeySentinel     = "Error_API_KEY_MISSING"
	FallbackUnreachable    = "I'm having a bit of trouble reaching my memory banks."
	FallbackConnectionLost = "Connection lost."

	defaultCaption = "I see you."
)

var (
	ErrMissingAPIKey = errors.New("inference api key is missing")
	// ErrModelLoading marks a provider cold-start: transient, distinct from
	// a hard failure.
	ErrModelLoading = errors.New("model is loading")
	ErrUnavailable  = errors.New("inference provider unavailable")
)

// Config controls gateway construction. All fields are read-only after New.
type Config struct {
	APIKey  string
	BaseURL string

	// ChatModels is an ordered candidate list; generation tries each in
	// sequence until one succeeds or all are exhausted.
	ChatModels  []string
	VisionModel string
	STTModel    string

	MaxTokens   int
	Temperature float64

	GenerateTimeout time.Duration

	Persona string
}

// Gateway wraps outbound calls to the remote inference providers. It holds
// only configuration after construction and is safe for concurrent use.
type Gateway struct {
	cfg    Config
	client *http.Client
}

func New(cfg Config) *Gateway {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://router.huggingface.co"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 500
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = 0.7
	}
	if cfg.GenerateTimeout <= 0 {
		cfg.GenerateTimeout = 60 * time.Second
	}
	return &Gateway{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.GenerateTimeout},
	}
}

// IsDegraded reports whether text is gateway sentinel content produced by a
// degraded generation rather than a real model response.
func IsDegraded(text string) bool {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "Error_") || strings.HasPrefix(text, "API_") {
		return true
	}
	return text == FallbackUnreachable || text == FallbackConnectionLost
}

type chatPayload struct {
	Model       string           `json:"model"`
	Messages    []prompt.Message `json:"messages"`
	MaxTokens   int              `json:"max_tokens"`
	Temperature float64          `json:"temperature"`
}

type chatResult struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// ChatCompletion generates a response for the ordered message list. It is
// non-throwing by contract: callers always receive a text result. A missing
// credential short-circuits to the skip-listed sentinel; exhaustion of all
// candidate models yields a user-safe fallback string.
func (g *Gateway) ChatCompletion(ctx context.Context, messages []prompt.Message) string {
	if strings.TrimSpace(g.cfg.APIKey) == "" {
		return MissingKeySentinel
	}

	if !prompt.HasSystemMessage(messages) {
		persona := g.cfg.Persona
		framed := make([]prompt.Message, 0, len(messages)+1)
		framed = append(framed, prompt.Message{Role: prompt.RoleSystem, Content: persona})
		framed = append(framed, messages...)
		messages = framed
	}

	ctx, cancel := context.WithTimeout(ctx, g.cfg.GenerateTimeout)
	defer cancel()

	sawHTTPFailure := false
	for _, model := range g.cfg.ChatModels {
		text, err := g.chatOnce(ctx, model, messages)
		if err == nil {
			return text
		}
		if errors.Is(err, context.Canceled) {
			break
		}
		if !errors.Is(err, errTransport) {
			sawHTTPFailure = true
		}
		log.Printf("inference: model %s failed: %v", model, err)
	}

	if sawHTTPFailure {
		return FallbackUnreachable
	}
	return FallbackConnectionLost
}

var errTransport = errors.New("transport error")

func (g *Gateway) chatOnce(ctx context.Context, model string, messages []prompt.Message) (string, error) {
	payload := chatPayload{
		Model:       model,
		Messages:    messages,
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: g.cfg.Temperature,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal chat payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create chat request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", errTransport, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: read chat response: %w", errTransport, err)
	}

	switch reliability.ClassifyResponse(res.StatusCode, raw) {
	case reliability.StatusOK:
	case reliability.StatusLoading:
		return "", fmt.Errorf("%w: %s", ErrModelLoading, model)
	default:
		return "", fmt.Errorf("%w: status %d: %s", ErrUnavailable, res.StatusCode, truncate(raw, 256))
	}

	var parsed chatResult
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("parse chat response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("%w: empty choices", ErrUnavailable)
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

// QueryJSON posts a JSON payload to a task model and returns the raw result.
// Callers own the degrade policy; the error distinguishes loading from hard
// failure.
func (g *Gateway) QueryJSON(ctx context.Context, model string, payload any) (json.RawMessage, error) {
	if strings.TrimSpace(g.cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal query payload: %w", err)
	}
	return g.post(ctx, g.modelURL(model), "application/json", body)
}

// QueryBytes posts a raw binary payload (audio, image) to a task model.
func (g *Gateway) QueryBytes(ctx context.Context, model string, data []byte, contentType string) (json.RawMessage, error) {
	if strings.TrimSpace(g.cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	return g.post(ctx, g.modelURL(model), contentType, data)
}

func (g *Gateway) modelURL(model string) string {
	return g.cfg.BaseURL + "/hf-inference/models/" + model
}

const (
	queryAttempts     = 3
	queryBackoffBase  = 200 * time.Millisecond
	queryBackoffLimit = time.Second
)

// post submits one task-model request. Cold-start responses are retried
// with capped backoff; every other failure returns immediately so callers
// can apply their degrade policy.
func (g *Gateway) post(ctx context.Context, url, contentType string, body []byte) (json.RawMessage, error) {
	for attempt := 0; ; attempt++ {
		raw, err := g.postOnce(ctx, url, contentType, body)
		if !errors.Is(err, ErrModelLoading) || attempt == queryAttempts-1 {
			return raw, err
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
		case <-time.After(reliability.ExponentialBackoff(attempt, queryBackoffBase, queryBackoffLimit)):
		}
	}
}

func (g *Gateway) postOnce(ctx context.Context, url, contentType string, body []byte) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create query request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)
	req.Header.Set("Content-Type", contentType)

	res, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read query response: %v", ErrUnavailable, err)
	}

	switch reliability.ClassifyResponse(res.StatusCode, raw) {
	case reliability.StatusOK:
		return json.RawMessage(raw), nil
	case reliability.StatusLoading:
		return nil, ErrModelLoading
	default:
		return nil, fmt.Errorf("%w: status %d: %s", ErrUnavailable, res.StatusCode, truncate(raw, 256))
	}
}

type transcriptResult struct {
	Text string `json:"text"`
}

// Transcribe converts audio bytes to text. Any provider failure, including
// cold-start and timeout, degrades to the empty string.
func (g *Gateway) Transcribe(ctx context.Context, audio []byte, contentType string) string {
	if contentType == "" {
		contentType = "audio/wav"
	}
	ctx, cancel := context.WithTimeout(ctx, g.cfg.GenerateTimeout)
	defer cancel()

	raw, err := g.QueryBytes(ctx, g.cfg.STTModel, audio, contentType)
	if err != nil {
		log.Printf("inference: transcription failed: %v", err)
		return ""
	}
	var parsed transcriptResult
	if err := json.Unmarshal(raw, &parsed); err != nil {
		log.Printf("inference: transcription parse failed: %v", err)
		return ""
	}
	return strings.TrimSpace(parsed.Text)
}

// Caption describes the given image in one sentence. Failures degrade to a
// generic description so the turn can proceed.
func (g *Gateway) Caption(ctx context.Context, image []byte) string {
	payload := map[string]any{
		"inputs": map[string]any{
			"image": base64.StdEncoding.EncodeToString(image),
			"text":  "Describe the user's environment, clothing, and mood in one concise sentence.",
		},
	}

	ctx, cancel := context.WithTimeout(ctx, g.cfg.GenerateTimeout)
	defer cancel()

	raw, err := g.QueryJSON(ctx, g.cfg.VisionModel, payload)
	if err != nil {
		log.Printf("inference: caption failed: %v", err)
		return defaultCaption
	}

	if text := extractGeneratedText(raw); text != "" {
		return text
	}
	return defaultCaption
}

// extractGeneratedText handles both list- and object-shaped task responses.
func extractGeneratedText(raw json.RawMessage) string {
	var list []map[string]any
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		if s, ok := list[0]["generated_text"].(string); ok {
			return strings.TrimSpace(s)
		}
		return ""
	}
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err == nil {
		if s, ok := obj["generated_text"].(string); ok {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func truncate(b []byte, n int) string {
	s := strings.TrimSpace(string(b))
	if len(s) > n {
		return s[:n]
	}
	return s
}
