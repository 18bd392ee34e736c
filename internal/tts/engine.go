package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Three distinguishable non-success outcomes, per the synthesis contract.
var (
	// ErrSentinelText means the text matched the error-sentinel skip-list;
	// no synthesis was attempted.
	ErrSentinelText = errors.New("sentinel text, synthesis skipped")
	// ErrUnavailable means the synthesis provider failed.
	ErrUnavailable = errors.New("synthesis service unavailable")
	// ErrNotFound means the audio resource never materialized.
	ErrNotFound = errors.New("audio resource not found")
)

// skipMarkers reject internal error strings before they reach the voice
// synthesizer.
var skipMarkers = []string{"Error_", "API_"}

// Config controls engine construction.
type Config struct {
	APIKey    string
	BaseURL   string
	VoiceID   string
	ModelID   string
	OutputDir string
}

// Engine converts response text into freshly created, uniquely named audio
// files. It never caches or reuses outputs; resource lifetime management is
// left to external housekeeping.
type Engine struct {
	cfg    Config
	client *http.Client
}

func New(cfg Config) *Engine {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.elevenlabs.io"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if strings.TrimSpace(cfg.ModelID) == "" {
		cfg.ModelID = "eleven_multilingual_v2"
	}
	if strings.TrimSpace(cfg.OutputDir) == "" {
		cfg.OutputDir = os.TempDir()
	}
	return &Engine{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// ShouldSkip reports whether text matches the error-sentinel skip-list.
func ShouldSkip(text string) bool {
	for _, marker := range skipMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

// Synthesize returns the path of a new mp3 for the given text, or one of
// ErrSentinelText, ErrUnavailable, ErrNotFound.
func (e *Engine) Synthesize(ctx context.Context, text string) (string, error) {
	if ShouldSkip(text) {
		return "", ErrSentinelText
	}
	if strings.TrimSpace(e.cfg.APIKey) == "" {
		return "", ErrUnavailable
	}

	payload, err := json.Marshal(map[string]any{
		"text":     text,
		"model_id": e.cfg.ModelID,
	})
	if err != nil {
		return "", fmt.Errorf("%w: marshal payload: %v", ErrUnavailable, err)
	}

	endpoint := e.cfg.BaseURL + "/v1/text-to-speech/" + url.PathEscape(e.cfg.VoiceID) + "?output_format=mp3_44100_128"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%w: create request: %v", ErrUnavailable, err)
	}
	req.Header.Set("xi-api-key", e.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return "", fmt.Errorf("%w: status %d: %s", ErrUnavailable, res.StatusCode, strings.TrimSpace(string(body)))
	}

	audio, err := io.ReadAll(io.LimitReader(res.Body, 32<<20))
	if err != nil {
		return "", fmt.Errorf("%w: read audio: %v", ErrUnavailable, err)
	}
	if len(audio) == 0 {
		return "", ErrNotFound
	}

	path := filepath.Join(e.cfg.OutputDir, "elysia_"+uuid.NewString()+".mp3")
	if err := os.WriteFile(path, audio, 0o644); err != nil {
		return "", fmt.Errorf("%w: write audio: %v", ErrNotFound, err)
	}
	return path, nil
}
