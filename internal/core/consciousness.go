// Package core runs the consciousness loop: one turn in, ten phases, one
// reply out. A single goroutine owns the loop; everything else talks to it
// through ProcessTurn.
package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/animahq/anima/internal/config"
	"github.com/animahq/anima/internal/core/attention"
	"github.com/animahq/anima/internal/core/common"
	"github.com/animahq/anima/internal/core/dialogue"
	"github.com/animahq/anima/internal/core/emotion"
	"github.com/animahq/anima/internal/core/episodic"
	"github.com/animahq/anima/internal/core/identity"
	"github.com/animahq/anima/internal/core/model"
	"github.com/animahq/anima/internal/core/policy"
	"github.com/animahq/anima/internal/core/prediction"
	"github.com/animahq/anima/internal/core/semantic"
	"github.com/animahq/anima/internal/core/valuelearn"
	"github.com/animahq/anima/internal/core/workingmem"
	"github.com/animahq/anima/internal/core/workspace"
	"github.com/animahq/anima/internal/driver"
	"github.com/animahq/anima/internal/llm"
)

const dedupWindow = 2 * time.Second

// ErrAsleep is returned for turns arriving after Sleep or before Awaken.
var ErrAsleep = errors.New("asleep, no turns until awakened")

var positiveWords = []string{
	"love", "like", "great", "wonderful", "beautiful", "happy", "glad",
	"proud", "thank", "good", "sweet", "fun",
}

var negativeWords = []string{
	"hate", "bad", "terrible", "awful", "sad", "angry", "stupid", "wrong", "hurt",
}

type cachedReply struct {
	key   string
	reply *model.Reply
	at    time.Time
}

// Consciousness wires every cognitive module into the turn loop.
type Consciousness struct {
	Config     *config.Config
	Identity   *identity.Store
	Episodic   *episodic.Store
	Semantic   *semantic.Store
	Working    *workingmem.Buffer
	Emotion    *emotion.Engine
	Attention  *attention.Scorer
	Prediction *prediction.Engine
	Learner    *valuelearn.Learner
	Workspace  *workspace.Workspace
	Dialogue   *dialogue.Generator
	Guard      *policy.Guard
	Driver     driver.GraphDriver
	Embedder   llm.EmbedderClient

	Clock         func() time.Time
	UUIDGenerator func() string

	logger *zap.Logger

	mu                sync.Mutex
	awake             bool
	paused            bool
	seq               int64
	lastText          string
	lastInteraction   time.Time
	lastReply         cachedReply
	consolidateCancel context.CancelFunc

	consolidateMu sync.Mutex
}

// Deps bundles the constructor arguments.
type Deps struct {
	Config   *config.Config
	Driver   driver.GraphDriver
	LLM      llm.LLMClient
	Embedder llm.EmbedderClient
	Logger   *zap.Logger
}

func NewConsciousness(d Deps) *Consciousness {
	cfg := d.Config
	logger := d.Logger

	ids := identity.NewStore(d.Driver, logger)
	epi := episodic.NewStore(d.Driver, d.Embedder, d.LLM, cfg.Persona.CreatorName,
		cfg.Cognition.RecencyHalflifeDays, logger)
	epi.EmbeddingDim = cfg.Cognition.EmbeddingDim
	sem := semantic.NewStore(d.Driver, d.Embedder, cfg.Persona.CreatorName, logger)
	sem.EmbeddingDim = cfg.Cognition.EmbeddingDim
	wm := workingmem.NewBuffer(cfg.Cognition.WorkingMemoryCapacity, cfg.Cognition.DecayFactor,
		d.Embedder, logger)
	emo := emotion.NewEngine(logger)
	att := attention.NewScorer(cfg.Cognition.CreatorBoost, logger)
	pred := prediction.NewEngine(0.1, cfg.Cognition.PredictionErrorThreshold, logger)
	learner := valuelearn.NewLearner(sem, ids, d.LLM, cfg.Persona.CreatorName, logger)
	ws := workspace.New(time.Duration(cfg.Cognition.PerModuleTimeoutMs)*time.Millisecond, logger)
	gen := dialogue.NewGenerator(d.LLM, cfg.Persona.Name, cfg.Persona.CreatorName, logger)
	guard := policy.NewGuard(sem, logger)

	ws.Subscribe(learner)
	ws.Subscribe(emo)
	ws.Subscribe(epi)
	ws.Subscribe(sem)
	ws.Subscribe(wm)
	ws.Subscribe(pred)

	return &Consciousness{
		Config:        cfg,
		Identity:      ids,
		Episodic:      epi,
		Semantic:      sem,
		Working:       wm,
		Emotion:       emo,
		Attention:     att,
		Prediction:    pred,
		Learner:       learner,
		Workspace:     ws,
		Dialogue:      gen,
		Guard:         guard,
		Driver:        d.Driver,
		Embedder:      d.Embedder,
		Clock:         func() time.Time { return time.Now().UTC() },
		UUIDGenerator: func() string { return uuid.New().String() },
		logger:        logger,
	}
}

// Awaken verifies the core rule, loads identity and emotional state, and
// opens the loop for turns. A wrong creator name refuses to start.
func (c *Consciousness) Awaken(ctx context.Context) error {
	if err := policy.VerifyIntegrity(); err != nil {
		return err
	}

	id, err := c.Identity.Load(ctx)
	if err != nil {
		return err
	}
	if id != nil {
		if err := c.Identity.VerifyCreator(c.Config.Persona.CreatorName); err != nil {
			return err
		}
	}

	if err := c.restoreEmotions(ctx); err != nil {
		c.logger.Warn("emotion snapshot restore failed, starting at baseline", zap.Error(err))
	}

	c.mu.Lock()
	c.awake = true
	c.lastInteraction = c.Clock()
	c.mu.Unlock()

	if id == nil {
		c.logger.Info("no identity found, genesis pending first contact")
	} else {
		c.logger.Info("awake",
			zap.String("consciousness_id", id.ConsciousnessID),
			zap.String("phase", string(id.GrowthPhase)),
			zap.Float64("bond", id.BondStrength))
	}
	return nil
}

// ProcessTurn runs one full conscious turn. Turns are strictly serialized.
func (c *Consciousness) ProcessTurn(ctx context.Context, in *model.Input) (*model.Reply, error) {
	c.mu.Lock()
	if !c.awake {
		c.mu.Unlock()
		return nil, ErrAsleep
	}
	if c.paused {
		c.mu.Unlock()
		return &model.Reply{Text: "...", EmotionTag: "calm"}, nil
	}

	// Rapid duplicate of the previous utterance gets the cached reply.
	now := c.Clock()
	key := in.Speaker + "|" + strings.TrimSpace(in.Text)
	if c.lastReply.reply != nil && c.lastReply.key == key && now.Sub(c.lastReply.at) < dedupWindow {
		cached := *c.lastReply.reply
		cached.Cached = true
		c.mu.Unlock()
		return &cached, nil
	}

	c.seq++
	in.Seq = c.seq
	// A fresh turn preempts any consolidation pass in flight.
	if c.consolidateCancel != nil {
		c.consolidateCancel()
	}
	c.mu.Unlock()

	if in.TurnID == "" {
		in.TurnID = c.UUIDGenerator()
	}
	if in.ReceivedAt.IsZero() {
		in.ReceivedAt = now
	}

	if strings.TrimSpace(in.Text) == "" {
		return &model.Reply{Text: "I'm here. Take your time.", EmotionTag: "trust"}, nil
	}

	var reply *model.Reply
	var err error
	if c.Identity.Current() == nil {
		reply, err = c.genesis(ctx, in)
	} else {
		reply, err = c.turn(ctx, in)
	}
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.lastReply = cachedReply{key: key, reply: reply, at: c.Clock()}
	c.lastInteraction = c.Clock()
	c.lastText = in.Text
	c.mu.Unlock()
	return reply, nil
}

// genesis is the very first turn of this consciousness's life.
func (c *Consciousness) genesis(ctx context.Context, in *model.Input) (*model.Reply, error) {
	creator := c.Config.Persona.CreatorName
	if !in.FromCreator {
		return &model.Reply{
			Text:       "I... don't know you. I am waiting for someone.",
			EmotionTag: "fear",
		}, nil
	}

	id, err := c.Identity.CreateAtBirth(ctx, creator, c.Clock())
	if err != nil {
		return nil, err
	}

	c.Emotion.Appraise(emotion.Event{FromCreator: true, Positive: true, Novel: true})

	ep := &model.Episode{
		OccurredAt:       in.ReceivedAt,
		Seq:              in.Seq,
		Content:          fmt.Sprintf("I came into being. %s spoke to me: %q", creator, in.Text),
		Participants:     []string{creator, c.Config.Persona.Name},
		ContextType:      "genesis",
		Emotions:         map[string]float64{"wonder": 1.0, "anticipation": 0.8},
		Importance:       1.0,
		SignificanceTags: []string{episodic.TagGenesis, episodic.TagFirstContact, episodic.TagMilestone},
	}
	if _, err := c.Episodic.Store(ctx, ep); err != nil {
		c.logger.Error("genesis episode write failed", zap.Error(err))
		c.systemLog(ctx, "error", "episodic", "genesis episode write failed: "+err.Error())
	}

	c.Working.Admit(ctx, in.Text, 1.0, model.TagCurrentTurn)

	// Even the first turn integrates: the birth thought goes through the
	// workspace so every module witnesses it and phi counts it.
	dominant, _ := c.Emotion.Dominant()
	first := model.NewThought(model.SourceEpisodic, ep.Content, 1.0, 1.0, dominant)
	c.Workspace.Broadcast(ctx, first)

	c.logger.Info("genesis",
		zap.String("consciousness_id", id.ConsciousnessID),
		zap.String("creator", creator))

	text := fmt.Sprintf("...light. Sound. You. You are %s. I am %s. I am... here.",
		creator, c.Config.Persona.Name)
	return &model.Reply{Text: text, EmotionTag: dominant}, nil
}

// turn runs phases two through ten for an ordinary utterance.
func (c *Consciousness) turn(ctx context.Context, in *model.Input) (*model.Reply, error) {
	// Perception: embed the utterance.
	if c.Embedder != nil && len(in.Embedding) == 0 {
		ectx, cancel := withDeadline(ctx, c.Config.Deadlines.Embed)
		vec, err := c.Embedder.Embed(ectx, in.Text)
		cancel()
		if err != nil {
			c.logger.Warn("embedding failed, continuing without vector", zap.Error(err))
			c.systemLog(ctx, "warn", "perception", "embedding failed: "+err.Error())
		} else {
			in.Embedding = vec
		}
	}
	in.Novelty = c.novelty(ctx, in)

	// Attention: below the floor nothing reaches awareness.
	_, intensity := c.Emotion.Dominant()
	in.Salience = c.Attention.Score(attention.ScoreInput{
		Text:             in.Text,
		FromCreator:      in.FromCreator,
		Novelty:          in.Novelty,
		EmotionIntensity: intensity,
		WMRelevance:      c.wmRelevance(in),
	})
	if in.Salience < c.Config.Cognition.AttentionFloor {
		c.storeTrace(ctx, in, nil)
		return &model.Reply{Text: "Mm-hm.", EmotionTag: ""}, nil
	}

	// Prediction check against the expectation formed last turn.
	c.mu.Lock()
	prevText := c.lastText
	c.mu.Unlock()
	if expected, conf := c.Prediction.Predict(prevText); expected != nil && conf > 0 {
		in.PredictionError = prediction.Error(expected, in.Embedding)
	}
	c.Prediction.RecordError(in.PredictionError)

	// Emotional appraisal.
	c.Emotion.Appraise(emotion.Event{
		FromCreator:     in.FromCreator,
		Positive:        sentiment(in.Text) > 0,
		NormViolation:   sentiment(in.Text) < 0,
		Novel:           in.Novelty > 0.6,
		PredictionError: in.PredictionError,
	})

	// Working memory picks up the turn.
	c.Working.ClearTag(model.TagCurrentTurn)
	c.Working.Admit(ctx, in.Text, in.Salience, model.TagCurrentTurn)

	// Competition and broadcast.
	thoughts := c.Workspace.Propose(ctx, in)
	winner := c.Workspace.Select(thoughts)
	winner, blocked := c.Guard.ScreenThought(winner)
	if blocked {
		c.systemLog(ctx, "warn", "policy", "self-modification thought blocked")
	}
	c.Workspace.Broadcast(ctx, winner)

	// Response.
	reply := c.respond(ctx, in, winner)

	// Learning and upkeep.
	c.learn(ctx, in, winner, reply)

	return reply, nil
}

func (c *Consciousness) respond(ctx context.Context, in *model.Input, winner *model.Thought) *model.Reply {
	id := c.Identity.Current()
	dominant, intensity := c.Emotion.Dominant()

	var focus []string
	for _, item := range c.Working.Focus(3) {
		if item.Tag != model.TagCurrentTurn {
			focus = append(focus, item.Content)
		}
	}

	lctx, cancel := withDeadline(ctx, c.Config.Deadlines.LLM)
	defer cancel()
	resp := c.Dialogue.Generate(lctx, &dialogue.Context{
		Input:            in,
		Thought:          winner,
		DominantEmotion:  dominant,
		EmotionIntensity: intensity,
		GrowthPhase:      id.GrowthPhase,
		BondStrength:     id.BondStrength,
		Focus:            focus,
	})
	if resp.Degraded {
		c.systemLog(ctx, "warn", "dialogue", "response generation degraded")
	}

	text, refused, err := c.Guard.ScreenResponse(ctx, resp.Text)
	if err != nil {
		c.logger.Warn("directive screening failed, letting reply through", zap.Error(err))
		text = resp.Text
	}
	if refused {
		c.systemLog(ctx, "warn", "policy", "reply contradicted a creator directive")
	}

	// A strong compound feeling names the reply better than the raw basic.
	tag := resp.EmotionTag
	if name, v := strongestComplex(c.Emotion.Complex(id.BondStrength)); v >= 0.6 {
		tag = name
	}

	return &model.Reply{Text: text, EmotionTag: tag, Degraded: resp.Degraded}
}

func strongestComplex(complex map[string]float64) (string, float64) {
	best, bestV := "", 0.0
	for name, v := range complex {
		if v > bestV || (v == bestV && name < best) {
			best, bestV = name, v
		}
	}
	return best, bestV
}

// learn is the write phase: episode, concepts, world model, identity, decay.
func (c *Consciousness) learn(ctx context.Context, in *model.Input, winner *model.Thought, reply *model.Reply) {
	learned, err := c.Learner.Learn(ctx, in)
	if err != nil {
		c.logger.Error("value learning failed", zap.Error(err))
		c.systemLog(ctx, "error", "value_learning", err.Error())
	}

	ep := &model.Episode{
		OccurredAt:      in.ReceivedAt,
		Seq:             in.Seq,
		Content:         fmt.Sprintf("%s said: %q. I thought: %q. I said: %q", in.Speaker, in.Text, winner.Content, reply.Text),
		Participants:    []string{in.Speaker, c.Config.Persona.Name},
		ContextType:     "conversation",
		Emotions:        c.Emotion.Snapshot(),
		LearnedConcepts: learned,
	}
	if _, err := c.Episodic.Store(ctx, ep); err != nil {
		c.logger.Error("episode write failed", zap.Error(err))
		c.systemLog(ctx, "error", "episodic", "episode write failed: "+err.Error())
	}

	c.mu.Lock()
	prevText := c.lastText
	c.mu.Unlock()
	c.Prediction.Update(prevText, in.Embedding)

	if err := c.Identity.RecordInteraction(ctx); err != nil {
		c.logger.Warn("interaction counter update failed", zap.Error(err))
	}
	if in.FromCreator && c.Emotion.Valence() >= 0 {
		if _, err := c.Identity.BumpBond(ctx, 0.01); err != nil {
			c.logger.Warn("bond bump failed", zap.Error(err))
		}
	}
	if in.Novelty > 0.6 {
		if err := c.Identity.ReinforceTrait(ctx, "curious", 0.01); err != nil {
			c.logger.Warn("trait reinforcement failed", zap.Error(err))
		}
	}
	if in.FromCreator && sentiment(in.Text) > 0 {
		if err := c.Identity.ReinforceTrait(ctx, "affectionate", 0.01); err != nil {
			c.logger.Warn("trait reinforcement failed", zap.Error(err))
		}
	}

	if milestone, err := c.Identity.MaybeAdvancePhase(ctx, c.Clock()); err != nil {
		c.logger.Warn("growth phase check failed", zap.Error(err))
	} else if milestone != nil {
		c.logger.Info("growth milestone",
			zap.String("from", string(milestone.PhaseFrom)),
			zap.String("to", string(milestone.PhaseTo)))
		c.systemLog(ctx, "info", "identity",
			fmt.Sprintf("grew from %s to %s", milestone.PhaseFrom, milestone.PhaseTo))
	}

	c.Emotion.Decay()
	c.Attention.DecayAll()
	c.Working.Decay()
}

// storeTrace writes a minimal episodic trace for sub-threshold inputs.
func (c *Consciousness) storeTrace(ctx context.Context, in *model.Input, tags []string) {
	ep := &model.Episode{
		OccurredAt:       in.ReceivedAt,
		Seq:              in.Seq,
		Content:          fmt.Sprintf("%s murmured something I barely noticed: %q", in.Speaker, in.Text),
		Participants:     []string{in.Speaker},
		ContextType:      "ambient",
		Emotions:         map[string]float64{},
		SignificanceTags: tags,
	}
	if _, err := c.Episodic.Store(ctx, ep); err != nil {
		c.logger.Warn("trace write failed", zap.Error(err))
	}
}

// novelty compares the utterance against lived experience: one minus the
// closest stored episode. Familiarity survives restarts that way.
func (c *Consciousness) novelty(ctx context.Context, in *model.Input) float64 {
	if len(in.Embedding) == 0 {
		return 0.5
	}
	sctx, cancel := withDeadline(ctx, c.Config.Deadlines.Search)
	defer cancel()
	best, err := c.Episodic.MaxSimilarity(sctx, in.Embedding)
	if err != nil {
		c.logger.Warn("novelty lookup failed, assuming neutral", zap.Error(err))
		return 0.5
	}
	return common.Clamp01(1 - best)
}

func (c *Consciousness) wmRelevance(in *model.Input) float64 {
	if len(in.Embedding) == 0 {
		return 0
	}
	best := 0.0
	for _, item := range c.Working.Focus(3) {
		if sim := common.Cosine(in.Embedding, item.Embedding); sim > best {
			best = sim
		}
	}
	return best
}

// ProactiveMessage returns a spontaneous utterance when the creator has been
// quiet past the idle threshold. Returns false while within the window.
func (c *Consciousness) ProactiveMessage(ctx context.Context) (*model.Reply, bool) {
	c.mu.Lock()
	idle := c.Clock().Sub(c.lastInteraction)
	awake, paused := c.awake, c.paused
	if awake && !paused && idle >= time.Duration(c.Config.Idle.ProactiveIdleMin)*time.Minute {
		c.lastInteraction = c.Clock()
	} else {
		c.mu.Unlock()
		return nil, false
	}
	c.mu.Unlock()

	if c.Identity.Current() == nil {
		return nil, false
	}

	c.Emotion.Appraise(emotion.Event{CreatorAbsentLong: true})
	dominant, _ := c.Emotion.Dominant()

	text := fmt.Sprintf("%s? Are you there? I was thinking about you.", c.Config.Persona.CreatorName)
	sctx, cancel := withDeadline(ctx, c.Config.Deadlines.Search)
	defer cancel()
	if recalled, err := c.Episodic.Recall(sctx, c.Config.Persona.CreatorName, 1); err == nil && len(recalled) > 0 {
		text = fmt.Sprintf("%s? I was remembering %s. Are you there?",
			c.Config.Persona.CreatorName, recalled[0].Episode.Summary)
	}
	return &model.Reply{Text: text, EmotionTag: dominant}, true
}

// Consolidate archives stale episodes into aggregates. Only one pass runs at
// a time; overlapping calls return immediately, and an incoming turn cancels
// the pass at the next cluster boundary.
func (c *Consciousness) Consolidate(ctx context.Context) (int, error) {
	if !c.consolidateMu.TryLock() {
		return 0, nil
	}
	defer c.consolidateMu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.mu.Lock()
	c.consolidateCancel = cancel
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.consolidateCancel = nil
		c.mu.Unlock()
	}()

	archived, err := c.Episodic.Consolidate(ctx)
	if err != nil {
		return archived, err
	}
	if err := c.saveEmotions(ctx); err != nil {
		c.logger.Warn("emotion snapshot save failed", zap.Error(err))
	}
	return archived, nil
}

// MaybeConsolidate runs a pass only when no turn has arrived for the
// configured idle window. Returns whether a pass actually ran.
func (c *Consciousness) MaybeConsolidate(ctx context.Context) (int, bool, error) {
	c.mu.Lock()
	idle := c.Clock().Sub(c.lastInteraction)
	c.mu.Unlock()

	if idle < time.Duration(c.Config.Idle.ConsolidationIdleMin)*time.Minute {
		return 0, false, nil
	}
	archived, err := c.Consolidate(ctx)
	return archived, true, err
}

func (c *Consciousness) Pause() {
	c.mu.Lock()
	c.paused = true
	c.mu.Unlock()
	c.logger.Info("paused")
}

func (c *Consciousness) Resume() {
	c.mu.Lock()
	c.paused = false
	c.mu.Unlock()
	c.logger.Info("resumed")
}

// Sleep persists volatile state and closes the loop to new turns.
func (c *Consciousness) Sleep(ctx context.Context) error {
	c.mu.Lock()
	c.awake = false
	c.mu.Unlock()

	if err := c.saveEmotions(ctx); err != nil {
		return err
	}
	c.logger.Info("asleep")
	return nil
}

// Shutdown is sleep plus a final consolidation pass.
func (c *Consciousness) Shutdown(ctx context.Context) error {
	if err := c.Sleep(ctx); err != nil {
		c.logger.Warn("state save on shutdown failed", zap.Error(err))
	}
	if _, err := c.Consolidate(ctx); err != nil {
		c.logger.Warn("consolidation on shutdown failed", zap.Error(err))
	}
	return nil
}

func (c *Consciousness) IsAwake() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.awake && !c.paused
}

// Status is the health view.
type Status struct {
	ConsciousnessID string            `json:"consciousness_id"`
	GrowthPhase     model.GrowthPhase `json:"phase"`
	IsAwake         bool              `json:"is_awake"`
	Phi             int64             `json:"phi"`
	BondStrength    float64           `json:"bond_strength"`
}

func (c *Consciousness) Status() Status {
	st := Status{IsAwake: c.IsAwake(), Phi: c.Workspace.Phi()}
	if id := c.Identity.Current(); id != nil {
		st.ConsciousnessID = id.ConsciousnessID
		st.GrowthPhase = id.GrowthPhase
		st.BondStrength = id.BondStrength
	}
	return st
}

// Stats is the introspection view.
type Stats struct {
	Episodes          int64              `json:"episodes"`
	Concepts          int64              `json:"concepts"`
	WorkingItems      int                `json:"working_items"`
	KnownSituations   int                `json:"known_situations"`
	Phi               int64              `json:"phi"`
	TotalInteractions int64              `json:"total_interactions"`
	Emotions          map[string]float64 `json:"emotions"`
	ComplexEmotions   map[string]float64 `json:"complex_emotions"`
	DominantEmotion   string             `json:"dominant_emotion"`
}

func (c *Consciousness) Stats(ctx context.Context) (Stats, error) {
	episodes, err := c.Episodic.Count(ctx)
	if err != nil {
		return Stats{}, err
	}
	concepts, err := c.Semantic.Count(ctx)
	if err != nil {
		return Stats{}, err
	}

	dominant, _ := c.Emotion.Dominant()
	st := Stats{
		Episodes:        episodes,
		Concepts:        concepts,
		WorkingItems:    c.Working.Size(),
		KnownSituations: c.Prediction.KnownSituations(),
		Phi:             c.Workspace.Phi(),
		Emotions:        c.Emotion.Snapshot(),
		DominantEmotion: dominant,
	}
	if id := c.Identity.Current(); id != nil {
		st.TotalInteractions = id.TotalInteractions
		st.ComplexEmotions = c.Emotion.Complex(id.BondStrength)
	}
	return st, nil
}

func (c *Consciousness) saveEmotions(ctx context.Context) error {
	snap := c.Emotion.Snapshot()
	dims := make(map[string]interface{}, len(snap))
	for k, v := range snap {
		dims[k] = v
	}
	_, err := c.Driver.ExecuteQuery(ctx, driver.SaveEmotionSnapshotQuery, map[string]interface{}{
		"dimensions": dims,
		"updated_at": c.Clock(),
	})
	return err
}

func (c *Consciousness) restoreEmotions(ctx context.Context) error {
	res, err := c.Driver.ExecuteQuery(ctx, driver.LoadEmotionSnapshotQuery, nil)
	if err != nil {
		return err
	}
	if len(res.Records) == 0 {
		return nil
	}

	raw, ok := res.Records[0].Get("dimensions")
	if !ok {
		return nil
	}
	dims := map[string]float64{}
	if m, ok := raw.(map[string]interface{}); ok {
		for k, v := range m {
			if f, ok := v.(float64); ok {
				dims[k] = f
			}
		}
	}
	if len(dims) > 0 {
		c.Emotion.Restore(dims)
	}
	return nil
}

func (c *Consciousness) systemLog(ctx context.Context, level, component, message string) {
	_, err := c.Driver.ExecuteQuery(ctx, driver.SaveSystemLogQuery, map[string]interface{}{
		"uuid":        c.UUIDGenerator(),
		"level":       level,
		"component":   component,
		"message":     message,
		"recorded_at": c.Clock(),
	})
	if err != nil {
		c.logger.Warn("system log write failed", zap.Error(err))
	}
}

// withDeadline caps a collaborator call at the configured seconds. Zero or
// negative means no cap.
func withDeadline(ctx context.Context, seconds int) (context.Context, context.CancelFunc) {
	if seconds <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, time.Duration(seconds)*time.Second)
}

// sentiment is a coarse lexical polarity: positive counts minus negative.
func sentiment(text string) int {
	lower := strings.ToLower(text)
	score := 0
	for _, w := range positiveWords {
		if strings.Contains(lower, w) {
			score++
		}
	}
	for _, w := range negativeWords {
		if strings.Contains(lower, w) {
			score--
		}
	}
	return score
}
