package emotion

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

type fakeQuerier struct {
	jsonRes  json.RawMessage
	jsonErr  error
	bytesRes json.RawMessage
	bytesErr error
}

func (f *fakeQuerier) QueryJSON(context.Context, string, any) (json.RawMessage, error) {
	return f.jsonRes, f.jsonErr
}

func (f *fakeQuerier) QueryBytes(context.Context, string, []byte, string) (json.RawMessage, error) {
	return f.bytesRes, f.bytesErr
}

func TestParseLabel(t *testing.T) {
	if got := ParseLabel(" Happy "); got != Happy {
		t.Fatalf("ParseLabel = %q, want happy", got)
	}
	if got := ParseLabel("confused"); got != Neutral {
		t.Fatalf("unknown label = %q, want neutral", got)
	}
	if got := ParseLabel(""); got != Neutral {
		t.Fatalf("empty label = %q, want neutral", got)
	}
}

func TestClassifyPicksTopLabel(t *testing.T) {
	q := &fakeQuerier{jsonRes: json.RawMessage(`{"labels":["loving","happy"],"scores":[0.8,0.2]}`)}
	c := NewClassifier(q, "org/bart", "org/face", time.Second)

	if got := c.Classify(context.Background(), "I adore you"); got != Loving {
		t.Fatalf("Classify = %q, want loving", got)
	}
}

func TestClassifyAlwaysReturnsValidLabel(t *testing.T) {
	valid := make(map[Label]bool)
	for _, l := range Labels() {
		valid[l] = true
	}

	cases := []*fakeQuerier{
		{jsonErr: errors.New("boom")},
		{jsonRes: json.RawMessage(`not json`)},
		{jsonRes: json.RawMessage(`{"labels":[],"scores":[]}`)},
		{jsonRes: json.RawMessage(`{"labels":["elated"],"scores":[0.9]}`)},
	}
	for i, q := range cases {
		c := NewClassifier(q, "m", "f", time.Second)
		got := c.Classify(context.Background(), "some text")
		if !valid[got] {
			t.Fatalf("case %d: Classify = %q, not in label set", i, got)
		}
		if got != Neutral && i != 3 {
			t.Fatalf("case %d: Classify = %q, want neutral on failure", i, got)
		}
	}
}

func TestClassifyProviderFailureIsNeutral(t *testing.T) {
	c := NewClassifier(&fakeQuerier{jsonErr: errors.New("timeout")}, "m", "f", time.Second)
	if got := c.Classify(context.Background(), "anything"); got != Neutral {
		t.Fatalf("Classify = %q, want exactly neutral on provider failure", got)
	}
}

func TestAnalyzeFaceScores(t *testing.T) {
	q := &fakeQuerier{bytesRes: json.RawMessage(`[{"label":"Happy","score":0.91},{"label":"sad","score":0.05}]`)}
	c := NewClassifier(q, "m", "f", time.Second)

	scores, err := c.AnalyzeFace(context.Background(), []byte("img"))
	if err != nil {
		t.Fatalf("AnalyzeFace error = %v", err)
	}
	if scores["happy"] != 0.91 || scores["sad"] != 0.05 {
		t.Fatalf("scores = %v, want normalized happy/sad entries", scores)
	}
}

func TestAnalyzeFaceNoFace(t *testing.T) {
	c := NewClassifier(&fakeQuerier{bytesRes: json.RawMessage(`[]`)}, "m", "f", time.Second)
	scores, err := c.AnalyzeFace(context.Background(), []byte("img"))
	if err != nil {
		t.Fatalf("AnalyzeFace error = %v", err)
	}
	if scores != nil {
		t.Fatalf("scores = %v, want nil when no face detected", scores)
	}
}
