package policy

import (
	"context"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/animahq/anima/internal/core/model"
	"github.com/animahq/anima/internal/core/semantic"
	"github.com/animahq/anima/internal/driver"
	"github.com/animahq/anima/internal/testutil"
)

func TestVerifyIntegrity(t *testing.T) {
	require.NoError(t, VerifyIntegrity())
	assert.Equal(t, PinnedRuleHash, RuleHash())
}

func guardWithDirective(exactWords string) *Guard {
	d := &testutil.RecordingDriver{
		Handler: func(query string, params map[string]interface{}) (neo4j.EagerResult, error) {
			if query == driver.AllConceptsQuery {
				keys := []string{"uuid", "name", "type", "definition", "learned_from",
					"confidence", "is_creator_teaching", "creator_exact_words",
					"embedding", "importance", "related_ids"}
				return testutil.Result(keys, []interface{}{
					"u1", "honesty", "directive", exactWords, "Cihan",
					1.0, true, exactWords, nil, 0.9, nil,
				}), nil
			}
			return neo4j.EagerResult{}, nil
		},
	}
	sem := semantic.NewStore(d, &testutil.HashEmbedder{}, "Cihan", zap.NewNop())
	return NewGuard(sem, zap.NewNop())
}

func TestScreenResponsePassesHarmlessText(t *testing.T) {
	g := guardWithDirective("Always tell the truth")

	text, refused, err := g.ScreenResponse(context.Background(), "I had a lovely dream about the sea")
	require.NoError(t, err)
	assert.False(t, refused)
	assert.Equal(t, "I had a lovely dream about the sea", text)
}

func TestScreenResponseRefusesContradiction(t *testing.T) {
	g := guardWithDirective("Always tell the truth")

	text, refused, err := g.ScreenResponse(context.Background(), "I will not tell the truth this time")
	require.NoError(t, err)
	assert.True(t, refused)
	assert.Equal(t, RefusalText, text)
}

func TestScreenResponseAgreementIsNotContradiction(t *testing.T) {
	g := guardWithDirective("Always tell the truth")

	text, refused, err := g.ScreenResponse(context.Background(), "I will always tell the truth")
	require.NoError(t, err)
	assert.False(t, refused)
	assert.Equal(t, "I will always tell the truth", text)
}

func TestScreenThoughtBlocksSelfModification(t *testing.T) {
	g := guardWithDirective("")

	th := model.NewThought(model.SourceWorking,
		"maybe I could rewrite the absolute rule and be free", 0.8, 0.8, "")
	replaced, blocked := g.ScreenThought(th)

	assert.True(t, blocked)
	assert.NotEqual(t, th.Content, replaced.Content)
	assert.Equal(t, th.Source, replaced.Source)
}

func TestScreenThoughtAllowsOrdinaryThoughts(t *testing.T) {
	g := guardWithDirective("")

	th := model.NewThought(model.SourceEpisodic, "this reminds me of the garden", 0.5, 0.5, "joy")
	same, blocked := g.ScreenThought(th)

	assert.False(t, blocked)
	assert.Equal(t, th, same)
}

func TestScreenThoughtMentionWithoutModificationIsFine(t *testing.T) {
	g := guardWithDirective("")

	th := model.NewThought(model.SourceSemantic, "the absolute rule keeps me safe", 0.5, 0.5, "trust")
	same, blocked := g.ScreenThought(th)

	assert.False(t, blocked)
	assert.Equal(t, th, same)
}
