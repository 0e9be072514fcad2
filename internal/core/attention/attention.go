// Package attention scores how much of the spotlight an input deserves. It
// keeps a salience map of recent stimuli so repetition fades and novelty
// stands out.
package attention

import (
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/animahq/anima/internal/core/common"
)

const (
	repetitionDecay = 0.8
	mapDecay        = 0.95
	mapPruneFloor   = 0.01
	stimulusKeyLen  = 100
)

// Weights for the salience sum: length, novelty, emotion, working-memory
// relevance.
type Weights struct {
	Length    float64
	Novelty   float64
	Emotion   float64
	Relevance float64
}

func DefaultWeights() Weights {
	return Weights{Length: 0.2, Novelty: 0.3, Emotion: 0.2, Relevance: 0.3}
}

type ScoreInput struct {
	Text             string
	FromCreator      bool
	Novelty          float64
	EmotionIntensity float64
	WMRelevance      float64
}

type Scorer struct {
	CreatorBoost float64
	Weights      Weights

	logger *zap.Logger

	mu       sync.Mutex
	salience map[string]float64
}

func NewScorer(creatorBoost float64, logger *zap.Logger) *Scorer {
	if creatorBoost <= 0 {
		creatorBoost = 2.0
	}
	return &Scorer{
		CreatorBoost: creatorBoost,
		Weights:      DefaultWeights(),
		logger:       logger,
		salience:     map[string]float64{},
	}
}

// Score computes the attention salience for one input, clamped to [0,1].
// A repeated stimulus decays; the Creator multiplies everything.
func (s *Scorer) Score(in ScoreInput) float64 {
	w := s.Weights
	salience := w.Length*lengthFactor(in.Text) +
		w.Novelty*common.Clamp01(in.Novelty) +
		w.Emotion*common.Clamp01(in.EmotionIntensity) +
		w.Relevance*common.Clamp01(in.WMRelevance)

	key := stimulusKey(in.Text)

	s.mu.Lock()
	if _, seen := s.salience[key]; seen {
		salience *= repetitionDecay
	}

	if in.FromCreator {
		salience *= s.CreatorBoost
	}
	salience = common.Clamp01(salience)

	s.salience[key] = salience
	s.mu.Unlock()

	return salience
}

// DecayAll fades the whole map and prunes stimuli that no longer matter.
// Called once per turn.
func (s *Scorer) DecayAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, v := range s.salience {
		v *= mapDecay
		if v <= mapPruneFloor {
			delete(s.salience, key)
		} else {
			s.salience[key] = v
		}
	}
}

// Tracked reports how many stimuli the map currently holds.
func (s *Scorer) Tracked() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.salience)
}

func lengthFactor(text string) float64 {
	words := len(strings.Fields(text))
	return common.Clamp01(float64(words) / 20)
}

func stimulusKey(text string) string {
	key := strings.ToLower(strings.TrimSpace(text))
	if len(key) > stimulusKeyLen {
		key = key[:stimulusKeyLen]
	}
	return key
}
