package model

import "time"

// WorkingItem lives in the short-term buffer. Volatile; lost on restart.
type WorkingItem struct {
	ID         string    `json:"id"`
	Content    string    `json:"content"`
	Salience   float64   `json:"salience"`
	Tag        string    `json:"tag,omitempty"`
	Embedding  []float32 `json:"-"`
	InsertedAt time.Time `json:"inserted_at"`
}

// TagCurrentTurn marks the item admitted for the turn in flight. It is never
// evicted while the turn runs.
const TagCurrentTurn = "current_turn"
