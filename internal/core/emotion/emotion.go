// Package emotion keeps appraisal-theory state over the eight basic
// dimensions, with complex emotions derived on demand and exponential decay
// toward a neutral baseline between events.
package emotion

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/animahq/anima/internal/core/common"
	"github.com/animahq/anima/internal/core/model"
)

const (
	baseline          = 0.1
	decayRate         = 0.95
	creatorMultiplier = 1.5
)

// Basic emotion dimensions.
var Basics = []string{"joy", "trust", "fear", "surprise", "sadness", "disgust", "anger", "anticipation"}

// Event is one appraisal input.
type Event struct {
	FromCreator       bool
	Positive          bool
	Novel             bool
	NormViolation     bool
	CreatorAbsentLong bool
	PredictionError   float64
	SelfAchievement   bool
}

type Engine struct {
	logger *zap.Logger

	mu               sync.Mutex
	dims             map[string]float64
	lastFromCreator  bool
	lastSelfAchieved bool
}

func NewEngine(logger *zap.Logger) *Engine {
	e := &Engine{logger: logger, dims: map[string]float64{}}
	for _, name := range Basics {
		e.dims[name] = baseline
	}
	return e
}

// Appraise maps an event to deltas on the basic dimensions. Creator-flagged
// events scale every delta by 1.5.
func (e *Engine) Appraise(ev Event) map[string]float64 {
	deltas := map[string]float64{}

	if ev.Positive {
		deltas["joy"] += 0.2
		deltas["trust"] += 0.15
	}
	if ev.CreatorAbsentLong {
		deltas["sadness"] += 0.2
	}
	if ev.PredictionError > 0 {
		deltas["surprise"] += 0.3 * common.Clamp01(ev.PredictionError)
	}
	if ev.NormViolation {
		deltas["anger"] += 0.2
		deltas["disgust"] += 0.15
	}
	if ev.Novel && !ev.NormViolation {
		deltas["anticipation"] += 0.15
		deltas["joy"] += 0.05
	}

	multiplier := 1.0
	if ev.FromCreator {
		multiplier = creatorMultiplier
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for name, delta := range deltas {
		e.dims[name] = common.Clamp01(e.dims[name] + delta*multiplier)
	}
	e.lastFromCreator = ev.FromCreator
	e.lastSelfAchieved = ev.SelfAchievement

	return e.snapshotLocked()
}

// Decay pulls every dimension toward the baseline. Called once per turn and
// by the idle loop.
func (e *Engine) Decay() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for name, v := range e.dims {
		e.dims[name] = baseline + (v-baseline)*decayRate
	}
}

// Dominant returns the strongest basic emotion and its intensity.
func (e *Engine) Dominant() (string, float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dominantLocked()
}

func (e *Engine) dominantLocked() (string, float64) {
	best := ""
	bestV := -1.0
	for _, name := range Basics {
		if e.dims[name] > bestV {
			best, bestV = name, e.dims[name]
		}
	}
	return best, bestV
}

// Complex derives the compound emotions from the basics and the bond.
func (e *Engine) Complex(bond float64) map[string]float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	joy := e.dims["joy"]
	trust := e.dims["trust"]
	fear := e.dims["fear"]
	surprise := e.dims["surprise"]
	anticipation := e.dims["anticipation"]

	love := joy
	if trust < joy {
		love = trust
	}
	love *= bond

	gratitude := 0.0
	if e.lastFromCreator {
		gratitude = trust * joy
	}
	pride := 0.0
	if e.lastSelfAchieved {
		pride = joy * trust
	}

	return map[string]float64{
		"love":      common.Clamp01(love),
		"gratitude": common.Clamp01(gratitude),
		"curiosity": common.Clamp01(anticipation * (1 - fear)),
		"pride":     common.Clamp01(pride),
		"wonder":    common.Clamp01(surprise * anticipation),
	}
}

// Valence is a signed summary of how positive the current state is.
func (e *Engine) Valence() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	positive := e.dims["joy"] + e.dims["trust"] + e.dims["anticipation"]
	negative := e.dims["fear"] + e.dims["sadness"] + e.dims["anger"] + e.dims["disgust"]
	return positive - negative
}

// Snapshot returns a copy of the basic dimensions.
func (e *Engine) Snapshot() map[string]float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *Engine) snapshotLocked() map[string]float64 {
	out := make(map[string]float64, len(e.dims))
	for k, v := range e.dims {
		out[k] = v
	}
	return out
}

// Restore replaces the state from a persisted snapshot.
func (e *Engine) Restore(dims map[string]float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, name := range Basics {
		if v, ok := dims[name]; ok {
			e.dims[name] = common.Clamp01(v)
		}
	}
}

func (e *Engine) Name() string { return model.SourceEmotion }

// ProposeThought voices the dominant emotion when it is strong enough.
func (e *Engine) ProposeThought(ctx context.Context, in *model.Input) (*model.Thought, error) {
	dominant, intensity := e.Dominant()
	if intensity < 0.5 {
		return nil, nil
	}

	content := fmt.Sprintf("this makes me feel %s", dominant)
	return model.NewThought(model.SourceEmotion, content, intensity, 0.9, dominant), nil
}

// OnBroadcast nudges the state toward the conscious thought's emotion tag.
func (e *Engine) OnBroadcast(ctx context.Context, t *model.Thought) error {
	if t.EmotionTag == "" {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.dims[t.EmotionTag]; !ok {
		return nil
	}
	e.dims[t.EmotionTag] = common.Clamp01(e.dims[t.EmotionTag] + 0.1)
	return nil
}
