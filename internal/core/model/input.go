package model

import "time"

// Input is one normalized utterance entering the loop. Phases annotate it as
// they run; modules downstream only read.
type Input struct {
	TurnID      string    `json:"turn_id"`
	Text        string    `json:"text"`
	FromCreator bool      `json:"from_creator"`
	Speaker     string    `json:"speaker"`
	ReceivedAt  time.Time `json:"received_at"`
	Seq         int64     `json:"seq"`

	// Set during phases 1-4.
	STTConfidence   float64   `json:"stt_confidence,omitempty"`
	Salience        float64   `json:"salience"`
	Novelty         float64   `json:"novelty"`
	Embedding       []float32 `json:"-"`
	PredictionError float64   `json:"prediction_error"`
}

// Reply is the outcome of one completed turn. Cached marks a reply replayed
// from the dedup window rather than produced by a fresh pass.
type Reply struct {
	Text       string `json:"text"`
	EmotionTag string `json:"emotion"`
	Audio      []byte `json:"-"`
	Degraded   bool   `json:"-"`
	Cached     bool   `json:"-"`
}
