package model

import "time"

// Concept is a learned semantic item: a fact, value, skill or relationship.
type Concept struct {
	UUID              string    `json:"uuid"`
	Name              string    `json:"name"`
	Type              string    `json:"type"`
	Definition        string    `json:"definition"`
	LearnedFrom       string    `json:"learned_from"`
	Confidence        float64   `json:"confidence"`
	IsCreatorTeaching bool      `json:"is_creator_teaching"`
	CreatorExactWords string    `json:"creator_exact_words,omitempty"`
	Embedding         []float32 `json:"-"`
	Importance        float64   `json:"importance"`
	RelatedIDs        []string  `json:"related_ids,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

const (
	ConceptTypeValue        = "value"
	ConceptTypeFact         = "fact"
	ConceptTypeSkill        = "skill"
	ConceptTypeRelationship = "relationship"
	ConceptTypeCorrection   = "correction"
	ConceptTypeDirective    = "directive"
)

// MatchedConcept pairs a concept with its query similarity.
type MatchedConcept struct {
	Concept    *Concept
	Similarity float64
	Score      float64
}
