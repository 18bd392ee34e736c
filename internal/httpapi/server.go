package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/antoniostano/elysia/internal/config"
	"github.com/antoniostano/elysia/internal/observability"
	"github.com/antoniostano/elysia/internal/pipeline"
	"github.com/antoniostano/elysia/internal/prompt"
	"github.com/antoniostano/elysia/internal/session"
	"github.com/antoniostano/elysia/internal/tts"
)

// TurnRunner drives one turn through the pipeline.
type TurnRunner interface {
	Run(ctx context.Context, turn pipeline.Turn) (pipeline.Result, error)
}

// Captioner describes an image in one sentence.
type Captioner interface {
	Caption(ctx context.Context, image []byte) string
}

// FaceAnalyzer scores face emotions in an image.
type FaceAnalyzer interface {
	AnalyzeFace(ctx context.Context, image []byte) (map[string]float64, error)
}

// Synthesizer converts text into an audio resource path.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (string, error)
}

type Server struct {
	cfg      config.Config
	registry *session.Registry
	runner   TurnRunner
	caption  Captioner
	face     FaceAnalyzer
	synth    Synthesizer
	metrics  *observability.Metrics
	upgrader websocket.Upgrader
}

func New(cfg config.Config, registry *session.Registry, runner TurnRunner, caption Captioner, face FaceAnalyzer, synth Synthesizer, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:      cfg,
		registry: registry,
		runner:   runner,
		caption:  caption,
		face:     face,
		synth:    synth,
		metrics:  metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				if cfg.OriginAllowed(origin) {
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.corsMiddleware)

	r.Get("/", s.handleRoot)
	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Route("/api", func(api chi.Router) {
		api.Post("/chat", s.handleChat)
		api.Post("/chat/voice", s.handleVoiceChat)
		api.Post("/chat/vision-chat", s.handleVisionChat)
		api.Get("/chat/tts", s.handleTTS)
		api.Post("/vision/analyze", s.handleVisionAnalyze)
		api.Post("/emotion/analyze-face", s.handleFaceAnalyze)
		api.Get("/emotion/state", s.handleEmotionState)
	})

	r.Get("/ws/chat", s.handleChatWS)

	return r
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.cfg.OriginAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"message": "Elysia AI Companion API is running",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":             "ok",
		"active_connections": s.registry.Count(),
	})
}

type chatRequest struct {
	Message string           `json:"message"`
	Context []contextMessage `json:"context"`
}

type contextMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	turn := pipeline.Turn{
		Modality: pipeline.ModalityText,
		Text:     req.Message,
		History:  toPromptMessages(req.Context),
	}
	res, err := s.runner.Run(r.Context(), turn)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"response": res.Text})
}

func (s *Server) handleVoiceChat(w http.ResponseWriter, r *http.Request) {
	audio, contentType, err := readUpload(r, "audio")
	if err != nil {
		respondError(w, http.StatusBadRequest, "audio upload is required")
		return
	}

	turn := pipeline.Turn{
		Modality:         pipeline.ModalityAudio,
		Audio:            audio,
		AudioContentType: contentType,
	}
	res, err := s.runner.Run(r.Context(), turn)
	if err != nil {
		var stageErr *pipeline.StageError
		if errors.As(err, &stageErr) && stageErr.Stage == pipeline.StageTranscribing {
			respondError(w, http.StatusBadRequest, "Could not transcribe audio")
			return
		}
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"user_text": res.Transcript,
		"response":  res.Text,
	})
}

func (s *Server) handleVisionChat(w http.ResponseWriter, r *http.Request) {
	image, _, err := readUpload(r, "image")
	if err != nil {
		respondError(w, http.StatusBadRequest, "image upload is required")
		return
	}
	message := strings.TrimSpace(r.FormValue("message"))
	if message == "" {
		message = "What do you see?"
	}

	turn := pipeline.Turn{
		Modality: pipeline.ModalityVision,
		Text:     message,
		Image:    image,
	}
	res, err := s.runner.Run(r.Context(), turn)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"response":           res.Text,
		"visual_description": res.Caption,
		"emotion":            string(res.Emotion),
		"tts_url":            "/api/chat/tts?text=" + url.QueryEscape(res.Text),
	})
}

// handleTTS serves synthesized speech. All non-success outcomes map to
// deliberately non-fatal statuses so the client UI never hangs on audio.
func (s *Server) handleTTS(w http.ResponseWriter, r *http.Request) {
	text := r.URL.Query().Get("text")
	if strings.TrimSpace(text) == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	path, err := s.synth.Synthesize(r.Context(), text)
	switch {
	case errors.Is(err, tts.ErrSentinelText):
		log.Printf("httpapi: skipping tts for sentinel text: %q", text)
		w.WriteHeader(http.StatusNoContent)
		return
	case errors.Is(err, tts.ErrNotFound):
		respondError(w, http.StatusNotFound, "audio resource not found")
		return
	case err != nil:
		log.Printf("httpapi: tts unavailable: %v", err)
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if _, statErr := os.Stat(path); statErr != nil {
		respondError(w, http.StatusNotFound, "audio resource not found")
		return
	}
	w.Header().Set("Content-Type", "audio/mpeg")
	http.ServeFile(w, r, path)
}

func (s *Server) handleVisionAnalyze(w http.ResponseWriter, r *http.Request) {
	image, _, err := readUpload(r, "image")
	if err != nil {
		respondError(w, http.StatusBadRequest, "image upload is required")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"analysis": s.caption.Caption(r.Context(), image),
	})
}

func (s *Server) handleFaceAnalyze(w http.ResponseWriter, r *http.Request) {
	image, _, err := readUpload(r, "image")
	if err != nil {
		respondError(w, http.StatusBadRequest, "image upload is required")
		return
	}
	scores, err := s.face.AnalyzeFace(r.Context(), image)
	if err != nil {
		log.Printf("httpapi: face analysis failed: %v", err)
		scores = nil
	}
	respondJSON(w, http.StatusOK, map[string]any{"emotions": scores})
}

func (s *Server) handleEmotionState(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"state": "neutral"})
}

func toPromptMessages(in []contextMessage) []prompt.Message {
	out := make([]prompt.Message, 0, len(in))
	for _, m := range in {
		out = append(out, prompt.Message{Role: m.Role, Content: m.Content})
	}
	return out
}

func readUpload(r *http.Request, field string) ([]byte, string, error) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return nil, "", err
	}
	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, "", err
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, 32<<20))
	if err != nil {
		return nil, "", err
	}
	if len(data) == 0 {
		return nil, "", errors.New("empty upload")
	}
	return data, header.Header.Get("Content-Type"), nil
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("httpapi: encode response failed: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, detail string) {
	respondJSON(w, status, map[string]string{"detail": detail})
}

var errEmptyBody = errors.New("empty request body")

func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	return nil
}
