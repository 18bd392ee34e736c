package tts

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
)

func TestSynthesizeSkipsSentinelText(t *testing.T) {
	called := false
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
	}))
	defer ts.Close()

	e := New(Config{APIKey: "k", BaseURL: ts.URL, VoiceID: "v", OutputDir: t.TempDir()})
	_, err := e.Synthesize(context.Background(), "Error_404")
	if !errors.Is(err, ErrSentinelText) {
		t.Fatalf("error = %v, want ErrSentinelText", err)
	}
	if called {
		t.Fatalf("synthesis should not be attempted for sentinel text")
	}
}

func TestSynthesizeMissingKeyIsUnavailable(t *testing.T) {
	e := New(Config{VoiceID: "v", OutputDir: t.TempDir()})
	_, err := e.Synthesize(context.Background(), "hello there")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("error = %v, want ErrUnavailable", err)
	}
}

func TestSynthesizeProviderFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	e := New(Config{APIKey: "k", BaseURL: ts.URL, VoiceID: "v", OutputDir: t.TempDir()})
	_, err := e.Synthesize(context.Background(), "hello there")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("error = %v, want ErrUnavailable", err)
	}
	if errors.Is(err, ErrSentinelText) || errors.Is(err, ErrNotFound) {
		t.Fatalf("outcomes must be distinguishable, got %v", err)
	}
}

func TestSynthesizeEmptyAudioIsNotFound(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	e := New(Config{APIKey: "k", BaseURL: ts.URL, VoiceID: "v", OutputDir: t.TempDir()})
	_, err := e.Synthesize(context.Background(), "hello there")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestSynthesizeWritesFreshFile(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("xi-api-key"); got != "k" {
			t.Errorf("api key header = %q, want %q", got, "k")
		}
		w.Write([]byte("mp3-bytes"))
	}))
	defer ts.Close()

	dir := t.TempDir()
	e := New(Config{APIKey: "k", BaseURL: ts.URL, VoiceID: "v", OutputDir: dir})

	first, err := e.Synthesize(context.Background(), "hello there")
	if err != nil {
		t.Fatalf("Synthesize error = %v", err)
	}
	second, err := e.Synthesize(context.Background(), "hello there")
	if err != nil {
		t.Fatalf("Synthesize error = %v", err)
	}
	if first == second {
		t.Fatalf("outputs must be uniquely named, both = %q", first)
	}
	if !strings.HasPrefix(first, dir) || !strings.HasSuffix(first, ".mp3") {
		t.Fatalf("unexpected output path %q", first)
	}
	data, err := os.ReadFile(first)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(data) != "mp3-bytes" {
		t.Fatalf("output content = %q", data)
	}
}

func TestShouldSkip(t *testing.T) {
	for _, text := range []string{"Error_404", "API_KEY invalid", "prefix Error_X suffix"} {
		if !ShouldSkip(text) {
			t.Fatalf("ShouldSkip(%q) = false, want true", text)
		}
	}
	if ShouldSkip("A perfectly normal sentence.") {
		t.Fatalf("normal text should not be skipped")
	}
}
