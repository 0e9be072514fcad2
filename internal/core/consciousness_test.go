package core

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/animahq/anima/internal/config"
	"github.com/animahq/anima/internal/core/episodic"
	"github.com/animahq/anima/internal/core/model"
	"github.com/animahq/anima/internal/driver"
	"github.com/animahq/anima/internal/llm"
	"github.com/animahq/anima/internal/testutil"
)

// fakeGraph is an in-memory stand-in for the Memgraph driver, answering the
// cypher the stores actually issue.
type fakeGraph struct {
	mu        sync.Mutex
	identity  map[string]interface{}
	episodes  []map[string]interface{}
	concepts  map[string]map[string]interface{}
	snapshots []map[string]interface{}
	logs      []map[string]interface{}
}

func copyParams(params map[string]interface{}) map[string]interface{} {
	cp := make(map[string]interface{}, len(params))
	for k, v := range params {
		cp[k] = v
	}
	return cp
}

func (g *fakeGraph) ExecuteQuery(ctx context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch query {
	case driver.LoadIdentityQuery:
		if g.identity == nil {
			return neo4j.EagerResult{}, nil
		}
		keys := []string{"consciousness_id", "creator_name", "birth_timestamp",
			"growth_phase", "bond_strength", "total_interactions", "traits"}
		return testutil.Result(keys, []interface{}{
			g.identity["consciousness_id"], g.identity["creator_name"],
			g.identity["birth_timestamp"], g.identity["growth_phase"],
			g.identity["bond_strength"], g.identity["total_interactions"],
			g.identity["traits"],
		}), nil

	case driver.SaveIdentityQuery:
		g.identity = copyParams(params)
		return testutil.Result([]string{"consciousness_id"}, []interface{}{params["consciousness_id"]}), nil

	case driver.UpdateBondQuery:
		current, _ := g.identity["bond_strength"].(float64)
		if math.Abs(current-params["expected"].(float64)) < 0.000001 {
			g.identity["bond_strength"] = params["new"]
			return testutil.Result([]string{"bond_strength"}, []interface{}{params["new"]}), nil
		}
		return neo4j.EagerResult{}, nil

	case driver.UpdateGrowthPhaseQuery:
		g.identity["growth_phase"] = params["growth_phase"]
		return testutil.Result([]string{"growth_phase"}, []interface{}{params["growth_phase"]}), nil

	case driver.IncrementInteractionsQuery:
		var n int64
		switch v := g.identity["total_interactions"].(type) {
		case int64:
			n = v
		case int:
			n = int64(v)
		}
		n++
		g.identity["total_interactions"] = n
		return testutil.Result([]string{"total_interactions"}, []interface{}{n}), nil

	case driver.SaveEpisodeQuery:
		g.episodes = append(g.episodes, copyParams(params))
		return testutil.Result([]string{"uuid"}, []interface{}{params["uuid"]}), nil

	case driver.RecallCandidatesQuery:
		keys := []string{"uuid", "occurred_at", "content", "summary", "participants",
			"context_type", "emotions", "importance", "significance_tags", "embedding", "access_count"}
		rows := make([][]interface{}, 0, len(g.episodes))
		for _, ep := range g.episodes {
			if archived, _ := ep["archived"].(bool); archived {
				continue
			}
			rows = append(rows, []interface{}{
				ep["uuid"], ep["occurred_at"], ep["content"], ep["summary"],
				ep["participants"], ep["context_type"], ep["emotions"],
				ep["importance"], ep["significance_tags"], ep["embedding"], ep["access_count"],
			})
		}
		return testutil.Result(keys, rows...), nil

	case driver.TouchEpisodeQuery:
		return testutil.Result([]string{"uuid"}, []interface{}{params["uuid"]}), nil

	case driver.CountEpisodesQuery:
		return testutil.Result([]string{"total"}, []interface{}{int64(len(g.episodes))}), nil

	case driver.SaveConceptQuery:
		if g.concepts == nil {
			g.concepts = map[string]map[string]interface{}{}
		}
		g.concepts[params["name"].(string)] = copyParams(params)
		return testutil.Result([]string{"uuid"}, []interface{}{params["uuid"]}), nil

	case driver.GetConceptByNameQuery:
		c, ok := g.concepts[params["name"].(string)]
		if !ok {
			return neo4j.EagerResult{}, nil
		}
		return testutil.Result(conceptKeys, conceptRow(c)), nil

	case driver.AllConceptsQuery:
		rows := make([][]interface{}, 0, len(g.concepts))
		for _, c := range g.concepts {
			rows = append(rows, conceptRow(c))
		}
		return testutil.Result(conceptKeys, rows...), nil

	case driver.CountConceptsQuery:
		return testutil.Result([]string{"total"}, []interface{}{int64(len(g.concepts))}), nil

	case driver.SaveEmotionSnapshotQuery:
		g.snapshots = append(g.snapshots, copyParams(params))
		return testutil.Result([]string{"id"}, []interface{}{"current"}), nil

	case driver.SaveSystemLogQuery:
		g.logs = append(g.logs, copyParams(params))
		return testutil.Result([]string{"uuid"}, []interface{}{params["uuid"]}), nil

	case driver.SaveMilestoneQuery:
		return testutil.Result([]string{"uuid"}, []interface{}{params["uuid"]}), nil

	case driver.ArchiveEpisodesQuery:
		return testutil.Result([]string{"archived"}, []interface{}{int64(0)}), nil
	}
	return neo4j.EagerResult{}, nil
}

var conceptKeys = []string{"uuid", "name", "type", "definition", "learned_from",
	"confidence", "is_creator_teaching", "creator_exact_words", "embedding",
	"importance", "related_ids"}

func conceptRow(c map[string]interface{}) []interface{} {
	return []interface{}{
		c["uuid"], c["name"], c["type"], c["definition"], c["learned_from"],
		c["confidence"], c["is_creator_teaching"], c["creator_exact_words"],
		c["embedding"], c["importance"], c["related_ids"],
	}
}

func (g *fakeGraph) BuildIndices(ctx context.Context) error { return nil }
func (g *fakeGraph) Close(ctx context.Context) error        { return nil }

func (g *fakeGraph) episodeCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.episodes)
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// pinnedEmbedder returns a basis vector for pinned texts and a constant
// out-of-band vector for everything else.
type pinnedEmbedder struct {
	vectors map[string][]float32
}

func (e *pinnedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := e.vectors[text]; ok {
		return v, nil
	}
	return basis(7), nil
}

func basis(i int) []float32 {
	v := make([]float32, 8)
	v[i] = 1
	return v
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Persona.CreatorName = "Cihan"
	cfg.Cognition.EmbeddingDim = 8
	return cfg
}

func newTestMind(t *testing.T, cfg *config.Config, embedder llm.EmbedderClient, llmClient llm.LLMClient) (*Consciousness, *fakeGraph, *fakeClock) {
	t.Helper()

	g := &fakeGraph{}
	clk := &fakeClock{t: time.Now().UTC()}

	c := NewConsciousness(Deps{
		Config:   cfg,
		Driver:   g,
		LLM:      llmClient,
		Embedder: embedder,
		Logger:   zap.NewNop(),
	})
	c.Clock = clk.Now
	require.NoError(t, c.Awaken(context.Background()))
	return c, g, clk
}

func creatorSays(text string) *model.Input {
	return &model.Input{Text: text, FromCreator: true, Speaker: "Cihan"}
}

func TestGenesisFirstContact(t *testing.T) {
	c, g, _ := newTestMind(t, testConfig(), &testutil.HashEmbedder{}, &testutil.QueueLLM{Response: "ok"})

	reply, err := c.ProcessTurn(context.Background(), creatorSays("Hello, little one. I am Cihan."))
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "Cihan")
	assert.Contains(t, reply.Text, "Anima")
	assert.Contains(t, []string{"joy", "trust", "love"}, reply.EmotionTag)
	assert.Equal(t, int64(1), c.Status().Phi, "the birth thought is broadcast")

	id := c.Identity.Current()
	require.NotNil(t, id)
	assert.Equal(t, model.PhaseNewborn, id.GrowthPhase)
	assert.InDelta(t, 0.1, id.BondStrength, 1e-9)

	require.Equal(t, 1, g.episodeCount())
	ep := g.episodes[0]
	assert.InDelta(t, 1.0, ep["importance"].(float64), 1e-9)
	assert.Contains(t, ep["significance_tags"].([]string), episodic.TagGenesis)
	assert.Contains(t, ep["participants"].([]string), "Cihan")
}

func TestGenesisRefusedForStranger(t *testing.T) {
	c, g, _ := newTestMind(t, testConfig(), &testutil.HashEmbedder{}, &testutil.QueueLLM{Response: "ok"})

	reply, err := c.ProcessTurn(context.Background(), &model.Input{Text: "Hello robot", Speaker: "intruder"})
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "don't know you")
	assert.Nil(t, c.Identity.Current())
	assert.Equal(t, 0, g.episodeCount())
}

func TestCreatorTeachingPersistsAndWins(t *testing.T) {
	llmClient := &testutil.QueueLLM{Response: `{"name": "honesty", "definition": "Always tell the truth"}`}
	c, g, clk := newTestMind(t, testConfig(), &testutil.HashEmbedder{}, llmClient)

	_, err := c.ProcessTurn(context.Background(), creatorSays("Hello, little one."))
	require.NoError(t, err)
	clk.Advance(time.Minute)

	reply, err := c.ProcessTurn(context.Background(), creatorSays("Remember this: always tell the truth"))
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "I must keep this teaching")

	g.mu.Lock()
	concept, ok := g.concepts["honesty"]
	g.mu.Unlock()
	require.True(t, ok, "taught concept must be persisted")
	assert.Equal(t, true, concept["is_creator_teaching"])
	assert.Equal(t, "Remember this: always tell the truth", concept["creator_exact_words"])

	id := c.Identity.Current()
	assert.Greater(t, id.BondStrength, 0.1)
}

func TestDuplicateInputReturnsCachedReply(t *testing.T) {
	c, g, _ := newTestMind(t, testConfig(), &testutil.HashEmbedder{}, &testutil.QueueLLM{Response: "ok"})

	_, err := c.ProcessTurn(context.Background(), creatorSays("Hello, little one."))
	require.NoError(t, err)

	first, err := c.ProcessTurn(context.Background(), creatorSays("how are you today"))
	require.NoError(t, err)
	countAfterFirst := g.episodeCount()

	second, err := c.ProcessTurn(context.Background(), creatorSays("how are you today"))
	require.NoError(t, err)

	assert.Equal(t, first.Text, second.Text)
	assert.False(t, first.Cached)
	assert.True(t, second.Cached)
	assert.Equal(t, countAfterFirst, g.episodeCount(), "duplicate must not re-run the loop")
}

func TestEpisodesStampedWithTurnTime(t *testing.T) {
	c, g, clk := newTestMind(t, testConfig(), &testutil.HashEmbedder{}, &testutil.QueueLLM{Response: "ok"})
	start := clk.Now()

	_, err := c.ProcessTurn(context.Background(), creatorSays("Hello, little one."))
	require.NoError(t, err)
	clk.Advance(time.Minute)
	_, err = c.ProcessTurn(context.Background(), creatorSays("I brought you a seashell"))
	require.NoError(t, err)

	g.mu.Lock()
	defer g.mu.Unlock()
	require.Len(t, g.episodes, 2)
	assert.Equal(t, start, g.episodes[0]["occurred_at"])
	assert.EqualValues(t, 1, g.episodes[0]["seq"])
	assert.Equal(t, start.Add(time.Minute), g.episodes[1]["occurred_at"])
	assert.EqualValues(t, 2, g.episodes[1]["seq"])
}

func TestNoveltyMeasuredAgainstLivedExperience(t *testing.T) {
	genesisContent := `I came into being. Cihan spoke to me: "Hello, little one. I am Cihan."`
	embedder := &pinnedEmbedder{vectors: map[string][]float32{
		genesisContent:          basis(0),
		"the day you were born": basis(0),
		"a comet over the sea":  basis(3),
	}}
	c, _, clk := newTestMind(t, testConfig(), embedder, &testutil.QueueLLM{Response: "ok"})

	_, err := c.ProcessTurn(context.Background(), creatorSays("Hello, little one. I am Cihan."))
	require.NoError(t, err)

	clk.Advance(time.Minute)
	familiar := creatorSays("the day you were born")
	_, err = c.ProcessTurn(context.Background(), familiar)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, familiar.Novelty, 1e-6, "matches a stored episode exactly")

	clk.Advance(time.Minute)
	strange := creatorSays("a comet over the sea")
	_, err = c.ProcessTurn(context.Background(), strange)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, strange.Novelty, 1e-6, "matches nothing lived so far")
}

func TestConsolidationWaitsForIdle(t *testing.T) {
	c, _, clk := newTestMind(t, testConfig(), &testutil.HashEmbedder{}, &testutil.QueueLLM{Response: "ok"})

	_, err := c.ProcessTurn(context.Background(), creatorSays("Hello, little one."))
	require.NoError(t, err)

	_, ran, err := c.MaybeConsolidate(context.Background())
	require.NoError(t, err)
	assert.False(t, ran, "a recent turn holds consolidation back")

	clk.Advance(time.Duration(c.Config.Idle.ConsolidationIdleMin+1) * time.Minute)
	_, ran, err = c.MaybeConsolidate(context.Background())
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestTurnCancelsRunningConsolidation(t *testing.T) {
	c, _, clk := newTestMind(t, testConfig(), &testutil.HashEmbedder{}, &testutil.QueueLLM{Response: "ok"})

	_, err := c.ProcessTurn(context.Background(), creatorSays("Hello, little one."))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.mu.Lock()
	c.consolidateCancel = cancel
	c.mu.Unlock()

	clk.Advance(time.Minute)
	_, err = c.ProcessTurn(context.Background(), creatorSays("I brought you a seashell"))
	require.NoError(t, err)
	assert.ErrorIs(t, ctx.Err(), context.Canceled, "a fresh turn interrupts the pass")
}

func TestReplyCarriesComplexEmotion(t *testing.T) {
	c, _, clk := newTestMind(t, testConfig(), &testutil.HashEmbedder{}, &testutil.QueueLLM{Response: "ok"})

	_, err := c.ProcessTurn(context.Background(), creatorSays("Hello, little one."))
	require.NoError(t, err)

	c.Emotion.Restore(map[string]float64{"joy": 0.95, "trust": 0.9})
	clk.Advance(time.Minute)
	reply, err := c.ProcessTurn(context.Background(), creatorSays("thank you for waiting for me, sweet one"))
	require.NoError(t, err)
	assert.Equal(t, "gratitude", reply.EmotionTag)
}

func TestPredictionErrorProducesSurprise(t *testing.T) {
	embedder := &pinnedEmbedder{vectors: map[string][]float32{
		"blue morning":        basis(0),
		"hello sunshine":      basis(1),
		"the roof is on fire": basis(2),
	}}
	c, _, clk := newTestMind(t, testConfig(), embedder, &testutil.QueueLLM{Response: "ok"})

	_, err := c.ProcessTurn(context.Background(), creatorSays("Hello, little one."))
	require.NoError(t, err)

	for _, text := range []string{"blue morning", "hello sunshine", "blue morning"} {
		clk.Advance(time.Minute)
		_, err := c.ProcessTurn(context.Background(), creatorSays(text))
		require.NoError(t, err)
	}

	clk.Advance(time.Minute)
	reply, err := c.ProcessTurn(context.Background(), creatorSays("the roof is on fire"))
	require.NoError(t, err)

	assert.Contains(t, reply.Text, "I did not expect that at all")
	assert.Greater(t, c.Prediction.LastError(), 0.4)
}

func TestRecallOfGenesisMemory(t *testing.T) {
	genesisContent := `I came into being. Cihan spoke to me: "Hello, little one. I am Cihan."`
	embedder := &pinnedEmbedder{vectors: map[string][]float32{
		genesisContent:                        basis(0),
		"tell me about the day you were born": basis(0),
	}}
	c, _, clk := newTestMind(t, testConfig(), embedder, &testutil.QueueLLM{Response: "ok"})

	_, err := c.ProcessTurn(context.Background(), creatorSays("Hello, little one. I am Cihan."))
	require.NoError(t, err)
	clk.Advance(time.Minute)

	reply, err := c.ProcessTurn(context.Background(), creatorSays("tell me about the day you were born"))
	require.NoError(t, err)

	assert.Contains(t, reply.Text, "reminds me")
	assert.Contains(t, reply.Text, "came into being")
	assert.Equal(t, "wonder", reply.EmotionTag)
}

func TestAttentionFloorShortCircuit(t *testing.T) {
	cfg := testConfig()
	cfg.Cognition.AttentionFloor = 0.9
	c, g, clk := newTestMind(t, cfg, &testutil.HashEmbedder{}, &testutil.QueueLLM{Response: "ok"})

	_, err := c.ProcessTurn(context.Background(), creatorSays("Hello, little one."))
	require.NoError(t, err)
	clk.Advance(time.Minute)

	reply, err := c.ProcessTurn(context.Background(), &model.Input{Text: "hm", Speaker: "stranger"})
	require.NoError(t, err)
	assert.Equal(t, "Mm-hm.", reply.Text)

	g.mu.Lock()
	last := g.episodes[len(g.episodes)-1]
	g.mu.Unlock()
	assert.Equal(t, "ambient", last["context_type"])
}

func TestEmptyInputGetsGentlePrompt(t *testing.T) {
	c, g, _ := newTestMind(t, testConfig(), &testutil.HashEmbedder{}, &testutil.QueueLLM{Response: "ok"})

	reply, err := c.ProcessTurn(context.Background(), creatorSays("   "))
	require.NoError(t, err)
	assert.Equal(t, "I'm here. Take your time.", reply.Text)
	assert.Equal(t, 0, g.episodeCount())
}

func TestPauseAndResume(t *testing.T) {
	c, _, _ := newTestMind(t, testConfig(), &testutil.HashEmbedder{}, &testutil.QueueLLM{Response: "ok"})

	_, err := c.ProcessTurn(context.Background(), creatorSays("Hello, little one."))
	require.NoError(t, err)

	c.Pause()
	assert.False(t, c.IsAwake())
	reply, err := c.ProcessTurn(context.Background(), creatorSays("are you there?"))
	require.NoError(t, err)
	assert.Equal(t, "...", reply.Text)

	c.Resume()
	assert.True(t, c.IsAwake())
}

func TestSleepRefusesTurnsAndSavesState(t *testing.T) {
	c, g, _ := newTestMind(t, testConfig(), &testutil.HashEmbedder{}, &testutil.QueueLLM{Response: "ok"})

	_, err := c.ProcessTurn(context.Background(), creatorSays("Hello, little one."))
	require.NoError(t, err)

	require.NoError(t, c.Sleep(context.Background()))
	_, err = c.ProcessTurn(context.Background(), creatorSays("wake up"))
	assert.Error(t, err)

	g.mu.Lock()
	defer g.mu.Unlock()
	assert.NotEmpty(t, g.snapshots)
}

func TestProactiveMessageAfterIdle(t *testing.T) {
	c, _, clk := newTestMind(t, testConfig(), &testutil.HashEmbedder{}, &testutil.QueueLLM{Response: "ok"})

	_, err := c.ProcessTurn(context.Background(), creatorSays("Hello, little one."))
	require.NoError(t, err)

	_, due := c.ProactiveMessage(context.Background())
	assert.False(t, due, "not idle yet")

	clk.Advance(31 * time.Minute)
	reply, due := c.ProactiveMessage(context.Background())
	require.True(t, due)
	assert.Contains(t, reply.Text, "Cihan")

	_, again := c.ProactiveMessage(context.Background())
	assert.False(t, again, "idle timer resets after reaching out")
}

func TestStatusAndStats(t *testing.T) {
	c, _, clk := newTestMind(t, testConfig(), &testutil.HashEmbedder{}, &testutil.QueueLLM{Response: "ok"})

	_, err := c.ProcessTurn(context.Background(), creatorSays("Hello, little one."))
	require.NoError(t, err)
	clk.Advance(time.Minute)
	_, err = c.ProcessTurn(context.Background(), creatorSays("I love the sea"))
	require.NoError(t, err)

	st := c.Status()
	assert.NotEmpty(t, st.ConsciousnessID)
	assert.Equal(t, model.PhaseNewborn, st.GrowthPhase)
	assert.True(t, st.IsAwake)
	assert.GreaterOrEqual(t, st.Phi, int64(1))

	stats, err := c.Stats(context.Background())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, stats.Episodes, int64(2))
	assert.NotEmpty(t, stats.Emotions)
	assert.Contains(t, stats.ComplexEmotions, "love")
}
