package model

import "time"

// Source module names used by workspace precedence and response templates.
const (
	SourceValueLearning = "value_learning"
	SourceEmotion       = "emotion"
	SourceEpisodic      = "episodic"
	SourceSemantic      = "semantic"
	SourceWorking       = "working_memory"
	SourcePrediction    = "prediction"
)

// Thought is a candidate for the conscious spotlight, proposed by one module
// during a turn and discarded unless it wins the competition.
type Thought struct {
	Source     string    `json:"source"`
	Content    string    `json:"content"`
	Salience   float64   `json:"salience"`
	Confidence float64   `json:"confidence"`
	EmotionTag string    `json:"emotion_tag,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func NewThought(source, content string, salience, confidence float64, emotionTag string) *Thought {
	return &Thought{
		Source:     source,
		Content:    content,
		Salience:   clamp01(salience),
		Confidence: clamp01(confidence),
		EmotionTag: emotionTag,
		CreatedAt:  time.Now().UTC(),
	}
}

func (t *Thought) Priority() float64 {
	return t.Salience * t.Confidence
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
