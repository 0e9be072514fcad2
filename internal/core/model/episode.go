package model

import "time"

// Episode is one lived event. Append-only; archival is logical.
type Episode struct {
	UUID             string             `json:"uuid"`
	OccurredAt       time.Time          `json:"occurred_at"`
	Seq              int64              `json:"seq"`
	Content          string             `json:"content"`
	Summary          string             `json:"summary"`
	Participants     []string           `json:"participants"`
	ContextType      string             `json:"context_type"`
	Emotions         map[string]float64 `json:"emotions"`
	Importance       float64            `json:"importance"`
	SignificanceTags []string           `json:"significance_tags"`
	LearnedConcepts  []string           `json:"learned_concepts"`
	Embedding        []float32          `json:"-"`
	AccessCount      int64              `json:"access_count"`
	LastAccessed     time.Time          `json:"last_accessed"`
	Archived         bool               `json:"archived"`
}

func (e *Episode) HasTag(tag string) bool {
	for _, t := range e.SignificanceTags {
		if t == tag {
			return true
		}
	}
	return false
}

func (e *Episode) Involves(name string) bool {
	for _, p := range e.Participants {
		if p == name {
			return true
		}
	}
	return false
}

// RecalledEpisode pairs an episode with its recall score.
type RecalledEpisode struct {
	Episode    *Episode
	Similarity float64
	Score      float64
}
