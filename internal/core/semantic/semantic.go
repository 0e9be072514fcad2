// Package semantic stores learned concepts, values and Creator teachings.
// Creator teachings are privileged: importance is pinned high, the exact
// words are kept, and no one else may weaken them.
package semantic

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"
	"go.uber.org/zap"

	"github.com/animahq/anima/internal/core/common"
	"github.com/animahq/anima/internal/core/model"
	"github.com/animahq/anima/internal/driver"
	"github.com/animahq/anima/internal/llm"
)

var ErrExactWordsRequired = fmt.Errorf("creator teaching requires the creator's exact words")

type Store struct {
	Driver   driver.GraphDriver
	Embedder llm.EmbedderClient

	CreatorName   string
	EmbeddingDim  int // 0 disables dimension enforcement
	UUIDGenerator func() string
	Clock         func() time.Time

	logger *zap.Logger
}

func NewStore(d driver.GraphDriver, embedder llm.EmbedderClient, creatorName string, logger *zap.Logger) *Store {
	return &Store{
		Driver:        d,
		Embedder:      embedder,
		CreatorName:   creatorName,
		UUIDGenerator: func() string { return uuid.New().String() },
		Clock:         func() time.Time { return time.Now().UTC() },
		logger:        logger,
	}
}

// Teach writes or merges a concept by name.
func (s *Store) Teach(ctx context.Context, name, definition, conceptType, source string, isCreatorTeaching bool, exactWords string) (*model.Concept, error) {
	if isCreatorTeaching && exactWords == "" {
		return nil, ErrExactWordsRequired
	}

	existing, err := s.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}

	now := s.Clock()
	concept := &model.Concept{
		UUID:              s.UUIDGenerator(),
		Name:              name,
		Type:              conceptType,
		Definition:        definition,
		LearnedFrom:       source,
		Confidence:        0.7,
		IsCreatorTeaching: isCreatorTeaching,
		CreatorExactWords: exactWords,
		Importance:        0.6,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if isCreatorTeaching {
		concept.Confidence = 1.0
		concept.Importance = 0.9
	}

	if existing != nil {
		concept.UUID = existing.UUID
		concept.CreatedAt = existing.CreatedAt
		concept.RelatedIDs = existing.RelatedIDs

		if existing.IsCreatorTeaching && !isCreatorTeaching {
			// A non-creator source cannot weaken a creator teaching.
			concept.IsCreatorTeaching = true
			concept.Definition = existing.Definition
			concept.CreatorExactWords = existing.CreatorExactWords
			concept.LearnedFrom = existing.LearnedFrom
			concept.Importance = existing.Importance
			if concept.Confidence < existing.Confidence {
				concept.Confidence = existing.Confidence
			}
		}
		if concept.Importance < existing.Importance && concept.IsCreatorTeaching == existing.IsCreatorTeaching {
			concept.Importance = existing.Importance
		}
	}

	if concept.IsCreatorTeaching && concept.Importance < 0.9 {
		concept.Importance = 0.9
	}

	if s.Embedder != nil {
		vec, err := s.Embedder.Embed(ctx, name+" "+definition)
		if err != nil {
			s.logger.Warn("embedding failed, storing concept without vector", zap.Error(err))
		} else {
			concept.Embedding = vec
		}
	}
	if s.EmbeddingDim > 0 && len(concept.Embedding) > 0 && len(concept.Embedding) != s.EmbeddingDim {
		return nil, fmt.Errorf("embedding dimension %d does not match deployment dimension %d",
			len(concept.Embedding), s.EmbeddingDim)
	}

	if _, err := s.Driver.ExecuteQuery(ctx, driver.SaveConceptQuery, map[string]interface{}{
		"uuid":                concept.UUID,
		"name":                concept.Name,
		"type":                concept.Type,
		"definition":          concept.Definition,
		"learned_from":        concept.LearnedFrom,
		"confidence":          concept.Confidence,
		"is_creator_teaching": concept.IsCreatorTeaching,
		"creator_exact_words": concept.CreatorExactWords,
		"embedding":           concept.Embedding,
		"importance":          concept.Importance,
		"related_ids":         concept.RelatedIDs,
		"created_at":          concept.CreatedAt,
		"updated_at":          concept.UpdatedAt,
	}); err != nil {
		return nil, fmt.Errorf("failed to save concept: %w", err)
	}

	s.logger.Info("concept stored",
		zap.String("name", name),
		zap.Bool("creator_teaching", concept.IsCreatorTeaching),
		zap.Float64("importance", concept.Importance))
	return concept, nil
}

func (s *Store) GetByName(ctx context.Context, name string) (*model.Concept, error) {
	res, err := s.Driver.ExecuteQuery(ctx, driver.GetConceptByNameQuery, map[string]interface{}{
		"name": name,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get concept: %w", err)
	}
	if len(res.Records) == 0 {
		return nil, nil
	}
	return conceptFromRecord(res.Records[0]), nil
}

// Query returns the top-k concepts by similarity weighted by importance, with
// creator teachings boosted.
func (s *Store) Query(ctx context.Context, text string, k int) ([]model.MatchedConcept, error) {
	if s.Embedder == nil {
		return nil, nil
	}
	queryVec, err := s.Embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	res, err := s.Driver.ExecuteQuery(ctx, driver.AllConceptsQuery, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch concepts: %w", err)
	}

	matches := make([]model.MatchedConcept, 0, len(res.Records))
	for _, rec := range res.Records {
		c := conceptFromRecord(rec)
		sim := common.Cosine(queryVec, c.Embedding)
		if sim <= 0 {
			continue
		}
		weight := c.Importance
		if c.IsCreatorTeaching {
			weight *= 1.8
		}
		matches = append(matches, model.MatchedConcept{Concept: c, Similarity: sim, Score: sim * weight})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// CreatorTeachings returns every concept taught by the creator.
func (s *Store) CreatorTeachings(ctx context.Context) ([]*model.Concept, error) {
	res, err := s.Driver.ExecuteQuery(ctx, driver.AllConceptsQuery, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch concepts: %w", err)
	}

	var teachings []*model.Concept
	for _, rec := range res.Records {
		c := conceptFromRecord(rec)
		if c.IsCreatorTeaching {
			teachings = append(teachings, c)
		}
	}
	return teachings, nil
}

func (s *Store) Count(ctx context.Context) (int64, error) {
	res, err := s.Driver.ExecuteQuery(ctx, driver.CountConceptsQuery, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count concepts: %w", err)
	}
	if len(res.Records) == 0 {
		return 0, nil
	}
	return driver.IntValue(res.Records[0], "total"), nil
}

func (s *Store) Name() string { return model.SourceSemantic }

// ProposeThought surfaces knowledge when the input lands close to a stored
// concept.
func (s *Store) ProposeThought(ctx context.Context, in *model.Input) (*model.Thought, error) {
	matches, err := s.Query(ctx, in.Text, 1)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 || matches[0].Similarity < 0.6 {
		return nil, nil
	}

	best := matches[0]
	content := fmt.Sprintf("I know that %s: %s", best.Concept.Name, best.Concept.Definition)
	salience := common.Clamp01(best.Similarity * best.Concept.Importance)
	if best.Concept.IsCreatorTeaching {
		salience = common.Clamp01(salience + 0.1)
	}
	return model.NewThought(model.SourceSemantic, content, salience, best.Concept.Confidence, ""), nil
}

func (s *Store) OnBroadcast(ctx context.Context, t *model.Thought) error {
	s.logger.Debug("semantic observed conscious thought", zap.String("source", t.Source))
	return nil
}

func conceptFromRecord(rec *db.Record) *model.Concept {
	return &model.Concept{
		UUID:              driver.StringValue(rec, "uuid"),
		Name:              driver.StringValue(rec, "name"),
		Type:              driver.StringValue(rec, "type"),
		Definition:        driver.StringValue(rec, "definition"),
		LearnedFrom:       driver.StringValue(rec, "learned_from"),
		Confidence:        driver.FloatValue(rec, "confidence"),
		IsCreatorTeaching: driver.BoolValue(rec, "is_creator_teaching"),
		CreatorExactWords: driver.StringValue(rec, "creator_exact_words"),
		Embedding:         driver.VectorValue(rec, "embedding"),
		Importance:        driver.FloatValue(rec, "importance"),
		RelatedIDs:        driver.StringsValue(rec, "related_ids"),
	}
}
