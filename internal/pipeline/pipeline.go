package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/antoniostano/elysia/internal/emotion"
	"github.com/antoniostano/elysia/internal/inference"
	"github.com/antoniostano/elysia/internal/memory"
	"github.com/antoniostano/elysia/internal/observability"
	"github.com/antoniostano/elysia/internal/prompt"
)

// Stage names the steps a turn moves through.
type Stage string

const (
	StageReceived           Stage = "received"
	StageTranscribing       Stage = "transcribing"
	StageContextBuilding    Stage = "context_building"
	StageGenerating         Stage = "generating"
	StageEmotionClassifying Stage = "emotion_classifying"
	StageSynthesizing       Stage = "synthesizing"
	StageDelivered          Stage = "delivered"
)

// Modality is the kind of input a turn carries.
type Modality string

const (
	ModalityText   Modality = "text"
	ModalityAudio  Modality = "audio"
	ModalityVision Modality = "vision"
)

// StageError is a turn failure that cannot be degraded away. It is the only
// error kind Run returns; everything else resolves to a (possibly degraded)
// Result.
type StageError struct {
	Stage   Stage
	Message string
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %s", e.Stage, e.Message)
}

// ErrEmptyTranscript terminates an audio turn whose transcription came back
// empty.
var ErrEmptyTranscript = &StageError{Stage: StageTranscribing, Message: "Could not transcribe audio"}

// Turn is one user-submitted request moving through the pipeline.
type Turn struct {
	ID       string
	Modality Modality

	Text             string
	Audio            []byte
	AudioContentType string
	Image            []byte

	// WantAudio enables the synthesis stage; the duplex session leaves it
	// off and clients pull audio separately.
	WantAudio bool

	History []prompt.Message
}

// Result is the successful (possibly degraded) outcome of a turn.
type Result struct {
	TurnID     string
	Transcript string
	Caption    string
	Text       string
	Emotion    emotion.Label
	AudioRef   string
	Degraded   bool
}

// Generator is the inference gateway surface the pipeline drives.
type Generator interface {
	ChatCompletion(ctx context.Context, messages []prompt.Message) string
	Transcribe(ctx context.Context, audio []byte, contentType string) string
	Caption(ctx context.Context, image []byte) string
}

// TextClassifier infers the emotion label of generated text.
type TextClassifier interface {
	Classify(ctx context.Context, text string) emotion.Label
}

// Synthesizer converts response text into an audio resource handle.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (string, error)
}

// Config controls pipeline construction.
type Config struct {
	Persona            string
	MemoryQueryK       int
	MemoryQueryTimeout time.Duration
	MemorySaveTimeout  time.Duration
}

// Pipeline runs the per-turn stage sequence. Safe for concurrent use; all
// per-turn state lives in the Turn and Result values.
type Pipeline struct {
	gateway    Generator
	classifier TextClassifier
	synth      Synthesizer
	store      memory.Store
	metrics    *observability.Metrics
	cfg        Config
}

func New(gateway Generator, classifier TextClassifier, synth Synthesizer, store memory.Store, metrics *observability.Metrics, cfg Config) *Pipeline {
	if cfg.MemoryQueryK <= 0 {
		cfg.MemoryQueryK = 3
	}
	if cfg.MemoryQueryTimeout <= 0 {
		cfg.MemoryQueryTimeout = 350 * time.Millisecond
	}
	if cfg.MemorySaveTimeout <= 0 {
		cfg.MemorySaveTimeout = 2 * time.Second
	}
	return &Pipeline{
		gateway:    gateway,
		classifier: classifier,
		synth:      synth,
		store:      store,
		metrics:    metrics,
		cfg:        cfg,
	}
}

// Run drives one turn through its stages. Stage failures degrade into the
// Result wherever the contract allows; only non-degradable failures (an
// empty transcript) surface as an error.
func (p *Pipeline) Run(ctx context.Context, turn Turn) (Result, error) {
	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}
	started := time.Now()
	res := Result{TurnID: turn.ID, Emotion: emotion.Neutral}

	input := turn.Text

	if turn.Modality == ModalityAudio {
		res.Transcript = p.gateway.Transcribe(ctx, turn.Audio, turn.AudioContentType)
		if res.Transcript == "" {
			p.countOutcome("rejected_empty_input")
			return Result{}, ErrEmptyTranscript
		}
		input = res.Transcript
	}

	memories := p.retrieveMemories(ctx, input)
	if turn.Modality == ModalityVision {
		res.Caption = p.gateway.Caption(ctx, turn.Image)
		memories = append(memories, "Right now you can see: "+res.Caption)
	}

	messages := prompt.Assemble(p.cfg.Persona, memories, turn.History, input)

	res.Text = p.gateway.ChatCompletion(ctx, messages)
	res.Degraded = inference.IsDegraded(res.Text)
	if res.Degraded {
		p.countProviderError("chat", StageGenerating)
	}

	res.Emotion = p.classifier.Classify(ctx, res.Text)

	if turn.WantAudio && p.synth != nil {
		ref, err := p.synth.Synthesize(ctx, res.Text)
		if err != nil {
			// Audio is optional on every surface that asks for it; the
			// turn continues without it.
			log.Printf("pipeline: synthesis degraded for turn %s: %v", turn.ID, err)
			p.countProviderError("tts", StageSynthesizing)
		} else {
			res.AudioRef = ref
		}
	}

	if !res.Degraded {
		p.writeBackMemory(input, res.Text)
	}

	if p.metrics != nil {
		p.metrics.ObserveTurnLatency(time.Since(started))
	}
	if res.Degraded {
		p.countOutcome("degraded")
	} else {
		p.countOutcome("success")
	}
	return res, nil
}

// retrieveMemories is best-effort with a short budget; failure or timeout
// means the prompt simply carries no memories.
func (p *Pipeline) retrieveMemories(ctx context.Context, input string) []string {
	if p.store == nil {
		return nil
	}
	qctx, cancel := context.WithTimeout(ctx, p.cfg.MemoryQueryTimeout)
	defer cancel()

	memories, err := p.store.Query(qctx, input, p.cfg.MemoryQueryK)
	if err != nil {
		log.Printf("pipeline: memory query failed: %v", err)
		return nil
	}
	return memories
}

// writeBackMemory persists the exchange fire-and-forget; failures are logged
// and never surfaced to the client.
func (p *Pipeline) writeBackMemory(input, response string) {
	if p.store == nil {
		return
	}
	entry := "User: " + input + "\nElysia: " + response
	timeout := p.cfg.MemorySaveTimeout
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := p.store.Add(ctx, entry); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("pipeline: memory write-back failed: %v", err)
		}
	}()
}

func (p *Pipeline) countOutcome(outcome string) {
	if p.metrics != nil {
		p.metrics.TurnOutcomes.WithLabelValues(outcome).Inc()
	}
}

func (p *Pipeline) countProviderError(provider string, stage Stage) {
	if p.metrics != nil {
		p.metrics.ProviderErrors.WithLabelValues(provider, string(stage)).Inc()
	}
}
