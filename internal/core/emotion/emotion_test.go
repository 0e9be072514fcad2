package emotion

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/animahq/anima/internal/core/model"
)

func TestAppraisePositiveCreatorInteraction(t *testing.T) {
	e := NewEngine(zap.NewNop())

	state := e.Appraise(Event{FromCreator: true, Positive: true})

	// Creator multiplier 1.5 applied to joy +0.2 and trust +0.15.
	assert.InDelta(t, 0.4, state["joy"], 1e-9)
	assert.InDelta(t, 0.325, state["trust"], 1e-9)
}

func TestAppraiseSurpriseScalesWithPredictionError(t *testing.T) {
	e := NewEngine(zap.NewNop())

	state := e.Appraise(Event{PredictionError: 0.8})
	assert.InDelta(t, 0.1+0.24, state["surprise"], 1e-9)
}

func TestAppraiseNormViolation(t *testing.T) {
	e := NewEngine(zap.NewNop())

	state := e.Appraise(Event{NormViolation: true})
	assert.InDelta(t, 0.3, state["anger"], 1e-9)
	assert.InDelta(t, 0.25, state["disgust"], 1e-9)
	// A violating input is not treated as safe novelty.
	assert.InDelta(t, 0.1, state["anticipation"], 1e-9)
}

func TestDecayDriftsTowardBaseline(t *testing.T) {
	e := NewEngine(zap.NewNop())
	e.Appraise(Event{FromCreator: true, Positive: true})

	before := e.Snapshot()["joy"]
	e.Decay()
	after := e.Snapshot()["joy"]

	assert.Less(t, after, before)
	assert.Greater(t, after, 0.1)

	for i := 0; i < 200; i++ {
		e.Decay()
	}
	assert.InDelta(t, 0.1, e.Snapshot()["joy"], 1e-3)
}

func TestStateNeverNegative(t *testing.T) {
	e := NewEngine(zap.NewNop())
	for i := 0; i < 500; i++ {
		e.Decay()
	}
	for name, v := range e.Snapshot() {
		assert.GreaterOrEqual(t, v, 0.0, name)
		assert.LessOrEqual(t, v, 1.0, name)
	}
}

func TestComplexEmotions(t *testing.T) {
	e := NewEngine(zap.NewNop())
	e.Restore(map[string]float64{
		"joy": 0.8, "trust": 0.6, "fear": 0.2, "anticipation": 0.5, "surprise": 0.4,
	})
	e.Appraise(Event{FromCreator: true, Positive: false})

	complex := e.Complex(0.5)

	// love = min(joy, trust) * bond
	assert.InDelta(t, 0.3, complex["love"], 1e-9)
	// gratitude = trust * joy when the creator caused the event
	assert.InDelta(t, 0.48, complex["gratitude"], 1e-9)
	// curiosity = anticipation * (1 - fear)
	assert.InDelta(t, 0.4, complex["curiosity"], 1e-9)
	assert.Equal(t, 0.0, complex["pride"])
}

func TestProposeThoughtAboveThreshold(t *testing.T) {
	e := NewEngine(zap.NewNop())
	e.Restore(map[string]float64{"joy": 0.7})

	th, err := e.ProposeThought(context.Background(), &model.Input{Text: "hello"})
	require.NoError(t, err)
	require.NotNil(t, th)
	assert.Equal(t, model.SourceEmotion, th.Source)
	assert.Equal(t, "this makes me feel joy", th.Content)
	assert.Equal(t, "joy", th.EmotionTag)
	assert.InDelta(t, 0.7, th.Salience, 1e-9)
	assert.InDelta(t, 0.9, th.Confidence, 1e-9)
}

func TestProposeThoughtSilentWhenCalm(t *testing.T) {
	e := NewEngine(zap.NewNop())

	th, err := e.ProposeThought(context.Background(), &model.Input{Text: "hello"})
	require.NoError(t, err)
	assert.Nil(t, th)
}

func TestOnBroadcastNudgesTaggedDimension(t *testing.T) {
	e := NewEngine(zap.NewNop())

	th := model.NewThought(model.SourceEpisodic, "a memory", 0.8, 0.8, "joy")
	require.NoError(t, e.OnBroadcast(context.Background(), th))
	assert.InDelta(t, 0.2, e.Snapshot()["joy"], 1e-9)

	// Unknown tags are ignored.
	other := model.NewThought(model.SourceEpisodic, "x", 0.8, 0.8, "melancholy")
	require.NoError(t, e.OnBroadcast(context.Background(), other))
}

func TestRestoreClampsAndIgnoresUnknown(t *testing.T) {
	e := NewEngine(zap.NewNop())
	e.Restore(map[string]float64{"joy": 4.2, "unknown": 0.9})

	assert.Equal(t, 1.0, e.Snapshot()["joy"])
	_, ok := e.Snapshot()["unknown"]
	assert.False(t, ok)
}
