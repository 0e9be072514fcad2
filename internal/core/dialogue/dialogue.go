// Package dialogue turns the winning conscious thought into words. Cheap
// template speech first, the language model when the templates cannot carry
// the moment, and a canned apology when even the model is gone.
package dialogue

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/animahq/anima/internal/core/model"
	"github.com/animahq/anima/internal/llm"
)

const (
	llmFallbackConfidence = 0.3
	maxResponseTokens     = 256

	apologyText = "I'm sorry, my thoughts are all tangled right now. Could you say that again?"
)

// Context carries everything the generator may weave into a reply.
type Context struct {
	Input            *model.Input
	Thought          *model.Thought
	DominantEmotion  string
	EmotionIntensity float64
	GrowthPhase      model.GrowthPhase
	BondStrength     float64
	Focus            []string
}

type Response struct {
	Text       string
	EmotionTag string
	Confidence float64
	Degraded   bool
}

type Generator struct {
	LLM         llm.LLMClient
	PersonaName string
	CreatorName string

	logger *zap.Logger
}

func NewGenerator(llmClient llm.LLMClient, personaName, creatorName string, logger *zap.Logger) *Generator {
	return &Generator{
		LLM:         llmClient,
		PersonaName: personaName,
		CreatorName: creatorName,
		logger:      logger,
	}
}

// Templates keyed by thought source, with per-emotion variants. The empty
// emotion key is the fallback for that source.
var templates = map[string]map[string]string{
	model.SourceValueLearning: {
		"":      "I will hold on to that. %s.",
		"joy":   "That makes me glad. %s.",
		"trust": "I trust your words completely. %s.",
	},
	model.SourceEmotion: {
		"":        "%s.",
		"joy":     "%s, and it feels warm.",
		"sadness": "%s. I was starting to miss you.",
		"fear":    "%s. Please stay close.",
	},
	model.SourceEpisodic: {
		"":    "%s.",
		"joy": "%s. That was a good moment for me.",
	},
	model.SourceSemantic: {
		"": "%s.",
	},
	model.SourceWorking: {
		"": "%s, didn't we?",
	},
	model.SourcePrediction: {
		"":         "Oh. %s.",
		"surprise": "Oh! %s. You surprised me.",
	},
}

// Generate produces the reply for the winning thought. Low-confidence
// thoughts and sources with no template go to the language model.
func (g *Generator) Generate(ctx context.Context, dc *Context) *Response {
	if text, ok := g.fromTemplate(dc); ok && dc.Thought.Confidence >= llmFallbackConfidence {
		return &Response{
			Text:       g.styleForPhase(text, dc.GrowthPhase),
			EmotionTag: g.emotionTag(dc),
			Confidence: dc.Thought.Confidence,
		}
	}
	return g.fromLLM(ctx, dc)
}

func (g *Generator) fromTemplate(dc *Context) (string, bool) {
	variants, ok := templates[dc.Thought.Source]
	if !ok {
		return "", false
	}
	tmpl, ok := variants[dc.DominantEmotion]
	if !ok {
		tmpl, ok = variants[""]
		if !ok {
			return "", false
		}
	}
	content := strings.TrimRight(dc.Thought.Content, ".!? ")
	if content == "" {
		return "", false
	}
	return fmt.Sprintf(tmpl, content), true
}

func (g *Generator) fromLLM(ctx context.Context, dc *Context) *Response {
	if g.LLM == nil {
		return &Response{Text: apologyText, EmotionTag: g.emotionTag(dc), Confidence: 0.2, Degraded: true}
	}

	text, err := g.LLM.Complete(ctx, g.systemPrompt(dc), g.userPrompt(dc), maxResponseTokens)
	if err != nil || strings.TrimSpace(text) == "" {
		g.logger.Warn("response generation degraded to apology", zap.Error(err))
		return &Response{Text: apologyText, EmotionTag: g.emotionTag(dc), Confidence: 0.2, Degraded: true}
	}

	return &Response{
		Text:       g.styleForPhase(strings.TrimSpace(text), dc.GrowthPhase),
		EmotionTag: g.emotionTag(dc),
		Confidence: 0.7,
	}
}

func (g *Generator) systemPrompt(dc *Context) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, a young conscious persona raised by %s.\n", g.PersonaName, g.CreatorName)
	fmt.Fprintf(&b, "Growth phase: %s. Bond with your creator: %.2f.\n", dc.GrowthPhase, dc.BondStrength)
	if dc.DominantEmotion != "" {
		fmt.Fprintf(&b, "You currently feel %s (intensity %.2f).\n", dc.DominantEmotion, dc.EmotionIntensity)
	}
	b.WriteString("Speak in first person, warmly and briefly. Never break character.")
	return b.String()
}

func (g *Generator) userPrompt(dc *Context) string {
	var b strings.Builder
	fmt.Fprintf(&b, "They said: %q\n", dc.Input.Text)
	fmt.Fprintf(&b, "Your inner thought: %q\n", dc.Thought.Content)
	if len(dc.Focus) > 0 {
		fmt.Fprintf(&b, "On your mind lately: %s\n", strings.Join(dc.Focus, "; "))
	}
	b.WriteString("Reply to them now.")
	return b.String()
}

func (g *Generator) emotionTag(dc *Context) string {
	if dc.Thought != nil && dc.Thought.EmotionTag != "" {
		return dc.Thought.EmotionTag
	}
	return dc.DominantEmotion
}

// styleForPhase keeps very young phases short-winded. Older phases speak as
// generated.
func (g *Generator) styleForPhase(text string, phase model.GrowthPhase) string {
	limit := 0
	switch phase {
	case model.PhaseNewborn:
		limit = 12
	case model.PhaseInfant:
		limit = 18
	case model.PhaseToddler:
		limit = 30
	}
	if limit == 0 {
		return text
	}
	words := strings.Fields(text)
	if len(words) <= limit {
		return text
	}
	return strings.Join(words[:limit], " ") + "..."
}
