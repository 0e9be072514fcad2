// Package episodic is the content-addressable store of lived events. Every
// turn leaves a trace here; recall ranks by similarity, recency and
// importance; consolidation folds stale low-importance traces into
// aggregates during idle periods.
package episodic

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"
	"go.uber.org/zap"

	"github.com/animahq/anima/internal/core/common"
	"github.com/animahq/anima/internal/core/model"
	"github.com/animahq/anima/internal/driver"
	"github.com/animahq/anima/internal/llm"
)

const (
	// TagGenesis marks the first memory of the deployment.
	TagGenesis      = "genesis"
	TagFirstContact = "first_contact"
	TagMilestone    = "milestone"

	recallCandidateLimit = 500
	summaryMaxLen        = 200
)

type Store struct {
	Driver   driver.GraphDriver
	Embedder llm.EmbedderClient
	LLM      llm.LLMClient

	CreatorName     string
	HalflifeDays    float64
	EmbeddingDim    int // 0 disables dimension enforcement
	UUIDGenerator   func() string
	Clock           func() time.Time
	SimilarityFloor float64 // consolidation clustering threshold

	logger *zap.Logger
}

func NewStore(d driver.GraphDriver, embedder llm.EmbedderClient, llmClient llm.LLMClient, creatorName string, halflifeDays float64, logger *zap.Logger) *Store {
	return &Store{
		Driver:          d,
		Embedder:        embedder,
		LLM:             llmClient,
		CreatorName:     creatorName,
		HalflifeDays:    halflifeDays,
		UUIDGenerator:   func() string { return uuid.New().String() },
		Clock:           func() time.Time { return time.Now().UTC() },
		SimilarityFloor: 0.75,
		logger:          logger,
	}
}

// Store assigns importance by rule, fills the summary and embedding, and
// appends the episode. Returns the memory id.
func (s *Store) Store(ctx context.Context, ep *model.Episode) (string, error) {
	if ep.UUID == "" {
		ep.UUID = s.UUIDGenerator()
	}
	if ep.OccurredAt.IsZero() {
		ep.OccurredAt = s.Clock()
	}
	if ep.Summary == "" {
		ep.Summary = summarize(ep.Content)
	}

	ep.Importance = s.scoreImportance(ep)

	if len(ep.Embedding) == 0 && s.Embedder != nil {
		vec, err := s.Embedder.Embed(ctx, ep.Content)
		if err != nil {
			s.logger.Warn("embedding failed, storing episode without vector", zap.Error(err))
		} else {
			ep.Embedding = vec
		}
	}
	if s.EmbeddingDim > 0 && len(ep.Embedding) > 0 && len(ep.Embedding) != s.EmbeddingDim {
		return "", fmt.Errorf("embedding dimension %d does not match deployment dimension %d",
			len(ep.Embedding), s.EmbeddingDim)
	}

	emotionsJSON, err := json.Marshal(ep.Emotions)
	if err != nil {
		return "", fmt.Errorf("failed to encode emotions: %w", err)
	}

	params := map[string]interface{}{
		"uuid":              ep.UUID,
		"occurred_at":       ep.OccurredAt,
		"seq":               ep.Seq,
		"content":           ep.Content,
		"summary":           ep.Summary,
		"participants":      ep.Participants,
		"context_type":      ep.ContextType,
		"emotions":          string(emotionsJSON),
		"importance":        ep.Importance,
		"significance_tags": ep.SignificanceTags,
		"learned_concepts":  ep.LearnedConcepts,
		"embedding":         ep.Embedding,
		"access_count":      ep.AccessCount,
		"last_accessed":     ep.LastAccessed,
		"archived":          false,
	}

	if _, err := s.Driver.ExecuteQuery(ctx, driver.SaveEpisodeQuery, params); err != nil {
		return "", fmt.Errorf("failed to save episode: %w", err)
	}
	return ep.UUID, nil
}

// scoreImportance applies the importance rules. Creator episodes never fall
// below 0.7.
func (s *Store) scoreImportance(ep *model.Episode) float64 {
	importance := ep.Importance
	if importance == 0 {
		importance = 0.5
	}

	creator := ep.Involves(s.CreatorName)
	if creator {
		importance += 0.3
	}
	if maxIntensity(ep.Emotions) > 0.7 {
		importance += 0.2
	}
	if ep.HasTag(TagGenesis) {
		importance += 0.5
	}

	importance = common.Clamp01(importance)
	if creator && importance < 0.7 {
		importance = 0.7
	}
	return importance
}

// Recall returns the top-k episodes by cosine similarity weighted by recency
// decay and importance, and bumps their access counters.
func (s *Store) Recall(ctx context.Context, query string, k int) ([]model.RecalledEpisode, error) {
	if s.Embedder == nil {
		return nil, nil
	}
	queryVec, err := s.Embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed recall query: %w", err)
	}

	res, err := s.Driver.ExecuteQuery(ctx, driver.RecallCandidatesQuery, map[string]interface{}{
		"limit": recallCandidateLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch recall candidates: %w", err)
	}

	now := s.Clock()
	recalled := make([]model.RecalledEpisode, 0, len(res.Records))
	for _, rec := range res.Records {
		ep := episodeFromRecord(rec)
		sim := common.Cosine(queryVec, ep.Embedding)
		if sim <= 0 {
			continue
		}
		score := sim * s.RecencyFactor(now.Sub(ep.OccurredAt)) * (1 + ep.Importance)
		recalled = append(recalled, model.RecalledEpisode{Episode: ep, Similarity: sim, Score: score})
	}

	sort.SliceStable(recalled, func(i, j int) bool {
		return recalled[i].Score > recalled[j].Score
	})
	if k > 0 && len(recalled) > k {
		recalled = recalled[:k]
	}

	for _, r := range recalled {
		if _, err := s.Driver.ExecuteQuery(ctx, driver.TouchEpisodeQuery, map[string]interface{}{
			"uuid":        r.Episode.UUID,
			"accessed_at": now,
		}); err != nil {
			s.logger.Warn("failed to bump access count", zap.String("uuid", r.Episode.UUID), zap.Error(err))
		}
	}
	return recalled, nil
}

// MaxSimilarity reports how close the vector comes to any stored episode.
// Unlike Recall it does not count as an access.
func (s *Store) MaxSimilarity(ctx context.Context, vec []float32) (float64, error) {
	if len(vec) == 0 {
		return 0, nil
	}
	res, err := s.Driver.ExecuteQuery(ctx, driver.RecallCandidatesQuery, map[string]interface{}{
		"limit": recallCandidateLimit,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to fetch similarity candidates: %w", err)
	}

	best := 0.0
	for _, rec := range res.Records {
		ep := episodeFromRecord(rec)
		if sim := common.Cosine(vec, ep.Embedding); sim > best {
			best = sim
		}
	}
	return best, nil
}

// RecencyFactor is exponential decay with the configured half-life.
func (s *Store) RecencyFactor(age time.Duration) float64 {
	halflife := s.HalflifeDays
	if halflife <= 0 {
		halflife = 7
	}
	days := age.Hours() / 24
	if days < 0 {
		days = 0
	}
	return math.Exp(-math.Ln2 * days / halflife)
}

// List supports the read-only /memories surface.
func (s *Store) List(ctx context.Context, limit int, importanceMin float64) ([]*model.Episode, error) {
	if limit <= 0 {
		limit = 20
	}
	res, err := s.Driver.ExecuteQuery(ctx, driver.ListEpisodesQuery, map[string]interface{}{
		"limit":          limit,
		"importance_min": importanceMin,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list episodes: %w", err)
	}

	episodes := make([]*model.Episode, 0, len(res.Records))
	for _, rec := range res.Records {
		episodes = append(episodes, episodeFromRecord(rec))
	}
	return episodes, nil
}

func (s *Store) Count(ctx context.Context) (int64, error) {
	res, err := s.Driver.ExecuteQuery(ctx, driver.CountEpisodesQuery, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count episodes: %w", err)
	}
	if len(res.Records) == 0 {
		return 0, nil
	}
	return driver.IntValue(res.Records[0], "total"), nil
}

// Consolidate folds memories older than 24h with no accesses and importance
// below 0.3 into aggregate episodes, grouping related ones together. Creator
// memories are never archived. Returns the number of archived originals.
func (s *Store) Consolidate(ctx context.Context) (int, error) {
	now := s.Clock()
	res, err := s.Driver.ExecuteQuery(ctx, driver.ArchivableEpisodesQuery, map[string]interface{}{
		"cutoff":         now.Add(-24 * time.Hour),
		"importance_max": 0.3,
		"creator_name":   s.CreatorName,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to scan archivable episodes: %w", err)
	}
	if len(res.Records) == 0 {
		return 0, nil
	}

	episodes := make([]*model.Episode, 0, len(res.Records))
	for _, rec := range res.Records {
		episodes = append(episodes, episodeFromRecord(rec))
	}

	clusters := ClusterBySimilarity(episodes, s.SimilarityFloor, 20)
	archived := 0
	for _, cluster := range clusters {
		if err := ctx.Err(); err != nil {
			// Checkpoint boundary: a new turn cancels consolidation here.
			return archived, err
		}

		summary := s.summarizeCluster(ctx, cluster)
		aggregate := &model.Episode{
			UUID:             s.UUIDGenerator(),
			OccurredAt:       now,
			Content:          summary,
			Summary:          summarize(summary),
			Participants:     []string{},
			ContextType:      "consolidation",
			Emotions:         map[string]float64{},
			Importance:       0.3,
			SignificanceTags: []string{"consolidated"},
		}
		if _, err := s.Store(ctx, aggregate); err != nil {
			return archived, err
		}

		uuids := make([]string, 0, len(cluster))
		for _, ep := range cluster {
			uuids = append(uuids, ep.UUID)
		}
		if _, err := s.Driver.ExecuteQuery(ctx, driver.ArchiveEpisodesQuery, map[string]interface{}{
			"uuids": uuids,
		}); err != nil {
			return archived, fmt.Errorf("failed to archive episodes: %w", err)
		}
		archived += len(uuids)
	}

	s.logger.Info("consolidation complete",
		zap.Int("archived", archived),
		zap.Int("aggregates", len(clusters)))
	return archived, nil
}

// Name implements the workspace subscriber contract.
func (s *Store) Name() string { return model.SourceEpisodic }

// ProposeThought recalls the top-3 relevant episodes and, when a strong match
// exists, proposes a remembrance.
func (s *Store) ProposeThought(ctx context.Context, in *model.Input) (*model.Thought, error) {
	recalled, err := s.Recall(ctx, in.Text, 3)
	if err != nil {
		return nil, err
	}
	if len(recalled) == 0 {
		return nil, nil
	}

	best := recalled[0]
	if best.Similarity < 0.7 {
		return nil, nil
	}

	salience := best.Similarity * s.RecencyFactor(s.Clock().Sub(best.Episode.OccurredAt))
	if best.Episode.Involves(s.CreatorName) {
		salience += 0.2
	}

	content := fmt.Sprintf("this reminds me of %s", best.Episode.Summary)
	return model.NewThought(model.SourceEpisodic, content, salience, 0.8, dominantEmotion(best.Episode.Emotions)), nil
}

// OnBroadcast receives the winning thought. The episodic trace for the turn
// itself is written in the learning phase, so this only logs.
func (s *Store) OnBroadcast(ctx context.Context, t *model.Thought) error {
	s.logger.Debug("episodic observed conscious thought", zap.String("source", t.Source))
	return nil
}

func (s *Store) summarizeCluster(ctx context.Context, cluster []*model.Episode) string {
	if len(cluster) == 1 {
		return fmt.Sprintf("A quiet moment I mostly let go of: %s", cluster[0].Summary)
	}
	return s.aggregateSummary(ctx, cluster)
}

func summarize(content string) string {
	if len(content) <= summaryMaxLen {
		return content
	}
	return strings.TrimSpace(content[:summaryMaxLen])
}

func maxIntensity(emotions map[string]float64) float64 {
	max := 0.0
	for _, v := range emotions {
		if v > max {
			max = v
		}
	}
	return max
}

func dominantEmotion(emotions map[string]float64) string {
	best := ""
	bestV := 0.0
	for name, v := range emotions {
		if v > bestV {
			best, bestV = name, v
		}
	}
	return best
}

func episodeFromRecord(rec *db.Record) *model.Episode {
	ep := &model.Episode{
		UUID:             driver.StringValue(rec, "uuid"),
		OccurredAt:       driver.TimeValue(rec, "occurred_at"),
		Content:          driver.StringValue(rec, "content"),
		Summary:          driver.StringValue(rec, "summary"),
		Participants:     driver.StringsValue(rec, "participants"),
		ContextType:      driver.StringValue(rec, "context_type"),
		Importance:       driver.FloatValue(rec, "importance"),
		SignificanceTags: driver.StringsValue(rec, "significance_tags"),
		Embedding:        driver.VectorValue(rec, "embedding"),
		AccessCount:      driver.IntValue(rec, "access_count"),
		Emotions:         map[string]float64{},
	}
	if emotionsJSON := driver.StringValue(rec, "emotions"); emotionsJSON != "" {
		_ = json.Unmarshal([]byte(emotionsJSON), &ep.Emotions)
	}
	return ep
}
