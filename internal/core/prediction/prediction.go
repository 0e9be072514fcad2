// Package prediction maintains the world model: for each coarse situation it
// tracks a running centroid of next-utterance embeddings and how spread out
// they are. Misses become surprise.
package prediction

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/animahq/anima/internal/core/common"
	"github.com/animahq/anima/internal/core/model"
)

type entry struct {
	centroid []float64
	variance float64
	count    int64
}

type Engine struct {
	LearningRate   float64
	ErrorThreshold float64

	logger *zap.Logger

	mu         sync.Mutex
	situations map[string]*entry
	lastError  float64
}

func NewEngine(learningRate, errorThreshold float64, logger *zap.Logger) *Engine {
	if learningRate <= 0 || learningRate > 1 {
		learningRate = 0.1
	}
	if errorThreshold <= 0 {
		errorThreshold = 0.4
	}
	return &Engine{
		LearningRate:   learningRate,
		ErrorThreshold: errorThreshold,
		logger:         logger,
		situations:     map[string]*entry{},
	}
}

// Predict returns the expected next-utterance embedding for the context and
// the confidence in it. Unknown situations predict nothing with zero
// confidence.
func (e *Engine) Predict(contextText string) ([]float32, float64) {
	key := common.SituationKey(contextText)

	e.mu.Lock()
	defer e.mu.Unlock()

	ent, ok := e.situations[key]
	if !ok || ent.count == 0 {
		return nil, 0
	}

	expected := make([]float32, len(ent.centroid))
	for i, v := range ent.centroid {
		expected[i] = float32(v)
	}
	confidence := 1 - common.Clamp01(ent.variance)
	return expected, confidence
}

// Update folds the observed embedding into the situation's distribution with
// the configured learning rate.
func (e *Engine) Update(contextText string, actual []float32) {
	if len(actual) == 0 {
		return
	}
	key := common.SituationKey(contextText)

	e.mu.Lock()
	defer e.mu.Unlock()

	ent, ok := e.situations[key]
	if !ok {
		centroid := make([]float64, len(actual))
		for i, v := range actual {
			centroid[i] = float64(v)
		}
		e.situations[key] = &entry{centroid: centroid, variance: 0, count: 1}
		return
	}

	if len(ent.centroid) != len(actual) {
		// Embedding dimension changed underneath us; start over for this key.
		centroid := make([]float64, len(actual))
		for i, v := range actual {
			centroid[i] = float64(v)
		}
		ent.centroid = centroid
		ent.variance = 0
		ent.count = 1
		return
	}

	expected := make([]float32, len(ent.centroid))
	for i, v := range ent.centroid {
		expected[i] = float32(v)
	}
	dist := Error(expected, actual)

	lr := e.LearningRate
	for i := range ent.centroid {
		ent.centroid[i] += lr * (float64(actual[i]) - ent.centroid[i])
	}
	ent.variance += lr * (dist*dist - ent.variance)
	ent.count++
}

// RecordError stores the turn's measured prediction error for the proposal
// phase.
func (e *Engine) RecordError(err float64) {
	e.mu.Lock()
	e.lastError = common.Clamp01(err)
	e.mu.Unlock()
}

func (e *Engine) LastError() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastError
}

// KnownSituations reports the size of the world model.
func (e *Engine) KnownSituations() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.situations)
}

// Error is the semantic distance between expectation and observation,
// clamped to [0,1].
func Error(expected, actual []float32) float64 {
	if len(expected) == 0 || len(actual) == 0 {
		return 0
	}
	return common.Clamp01(1 - common.Cosine(expected, actual))
}

func (e *Engine) Name() string { return model.SourcePrediction }

// ProposeThought emits a surprise thought when the turn's prediction error
// crossed the threshold.
func (e *Engine) ProposeThought(ctx context.Context, in *model.Input) (*model.Thought, error) {
	errV := e.LastError()
	if errV <= e.ErrorThreshold {
		return nil, nil
	}

	// High confidence: a measured miss is a fact, not a guess. Surprise has
	// to be able to out-compete a warmed-up emotional state.
	content := "I did not expect that at all"
	return model.NewThought(model.SourcePrediction, content, errV, 0.95, "surprise"), nil
}

func (e *Engine) OnBroadcast(ctx context.Context, t *model.Thought) error {
	return nil
}
