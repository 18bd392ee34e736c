package emotion

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"
)

// Label is one of the fixed emotion values the presentation layer maps to
// animation parameters.
type Label string

const (
	Happy     Label = "happy"
	Sad       Label = "sad"
	Angry     Label = "angry"
	Surprised Label = "surprised"
	Neutral   Label = "neutral"
	Loving    Label = "loving"
	Curious   Label = "curious"
)

// Labels lists every valid label, in the order sent to the zero-shot
// classifier.
func Labels() []Label {
	return []Label{Happy, Sad, Angry, Surprised, Neutral, Loving, Curious}
}

// ParseLabel maps arbitrary text to a valid label. Unknown or empty input
// resolves to Neutral, never to an empty value.
func ParseLabel(s string) Label {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, l := range Labels() {
		if string(l) == s {
			return l
		}
	}
	return Neutral
}

// Querier is the gateway surface the classifier needs.
type Querier interface {
	QueryJSON(ctx context.Context, model string, payload any) (json.RawMessage, error)
	QueryBytes(ctx context.Context, model string, data []byte, contentType string) (json.RawMessage, error)
}

// Classifier infers emotion from text or face images via remote models.
type Classifier struct {
	gateway   Querier
	textModel string
	faceModel string
	timeout   time.Duration
}

func NewClassifier(gateway Querier, textModel, faceModel string, timeout time.Duration) *Classifier {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Classifier{
		gateway:   gateway,
		textModel: textModel,
		faceModel: faceModel,
		timeout:   timeout,
	}
}

type zeroShotResult struct {
	Labels []string  `json:"labels"`
	Scores []float64 `json:"scores"`
}

// Classify returns the dominant emotion of the given text. Provider failure
// of any kind yields exactly Neutral; the result is always a member of the
// fixed label set.
func (c *Classifier) Classify(ctx context.Context, text string) Label {
	if strings.TrimSpace(text) == "" {
		return Neutral
	}

	candidates := make([]string, 0, len(Labels()))
	for _, l := range Labels() {
		candidates = append(candidates, string(l))
	}
	payload := map[string]any{
		"inputs":     text,
		"parameters": map[string]any{"candidate_labels": candidates},
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := c.gateway.QueryJSON(ctx, c.textModel, payload)
	if err != nil {
		log.Printf("emotion: text classification failed: %v", err)
		return Neutral
	}

	var parsed zeroShotResult
	if err := json.Unmarshal(raw, &parsed); err != nil || len(parsed.Labels) == 0 || len(parsed.Scores) == 0 {
		return Neutral
	}
	return ParseLabel(parsed.Labels[0])
}

type faceScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// AnalyzeFace returns per-emotion scores for the first detected face, or nil
// when no face could be analyzed.
func (c *Classifier) AnalyzeFace(ctx context.Context, image []byte) (map[string]float64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := c.gateway.QueryBytes(ctx, c.faceModel, image, "image/jpeg")
	if err != nil {
		return nil, err
	}

	var scores []faceScore
	if err := json.Unmarshal(raw, &scores); err != nil || len(scores) == 0 {
		return nil, nil
	}

	out := make(map[string]float64, len(scores))
	for _, s := range scores {
		label := strings.ToLower(strings.TrimSpace(s.Label))
		if label != "" {
			out[label] = s.Score
		}
	}
	return out, nil
}
