// Package valuelearn watches the dialogue for teachings, approvals and
// corrections, and turns them into semantic memory and bond growth.
package valuelearn

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/animahq/anima/internal/core/common"
	"github.com/animahq/anima/internal/core/identity"
	"github.com/animahq/anima/internal/core/model"
	"github.com/animahq/anima/internal/core/semantic"
	"github.com/animahq/anima/internal/llm"
)

var teachingMarkers = []string{
	"remember this", "this is important", "always ", "never ",
	"you should", "you must", "let me teach you", "i want you to know",
}

var approvalMarkers = []string{
	"well done", "good job", "that's right", "i'm proud", "exactly right", "good girl", "good boy",
}

var correctionMarkers = []string{
	"that's wrong", "that is wrong", "not like that", "incorrect", "no, that's not",
}

const extractPromptTemplate = `From the following statement, extract the single concept being taught.
Statement: %s

Return a JSON object: {"name": "short_snake_case_name", "definition": "one sentence definition"}`

type extractedConcept struct {
	Name       string `json:"name"`
	Definition string `json:"definition"`
}

type Learner struct {
	Semantic *semantic.Store
	Identity *identity.Store
	LLM      llm.LLMClient

	CreatorName string

	logger *zap.Logger
}

func NewLearner(sem *semantic.Store, id *identity.Store, llmClient llm.LLMClient, creatorName string, logger *zap.Logger) *Learner {
	return &Learner{
		Semantic:    sem,
		Identity:    id,
		LLM:         llmClient,
		CreatorName: creatorName,
		logger:      logger,
	}
}

func IsTeaching(text string) bool {
	return containsAny(text, teachingMarkers)
}

func IsApproval(text string) bool {
	return containsAny(text, approvalMarkers)
}

func IsCorrection(text string) bool {
	return containsAny(text, correctionMarkers)
}

func containsAny(text string, markers []string) bool {
	lower := strings.ToLower(text)
	for _, m := range markers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

func (l *Learner) Name() string { return model.SourceValueLearning }

// ProposeThought flags creator teachings with near-maximal priority so they
// win the competition.
func (l *Learner) ProposeThought(ctx context.Context, in *model.Input) (*model.Thought, error) {
	if !in.FromCreator {
		return nil, nil
	}

	switch {
	case IsTeaching(in.Text):
		return model.NewThought(model.SourceValueLearning,
			"I must keep this teaching", 0.95, 0.95, "trust"), nil
	case IsCorrection(in.Text):
		return model.NewThought(model.SourceValueLearning,
			"I was wrong and I want to do better", 0.85, 0.9, "trust"), nil
	case IsApproval(in.Text):
		return model.NewThought(model.SourceValueLearning,
			"I made them glad", 0.6, 0.8, "joy"), nil
	}
	return nil, nil
}

func (l *Learner) OnBroadcast(ctx context.Context, t *model.Thought) error {
	return nil
}

// Learn runs in the learning phase and persists whatever the turn taught.
// Returns the names of concepts stored.
func (l *Learner) Learn(ctx context.Context, in *model.Input) ([]string, error) {
	if !in.FromCreator {
		return nil, nil
	}

	switch {
	case IsTeaching(in.Text):
		concept, err := l.learnTeaching(ctx, in.Text)
		if err != nil {
			return nil, err
		}
		if _, err := l.Identity.BumpBond(ctx, 0.01); err != nil {
			l.logger.Warn("bond bump after teaching failed", zap.Error(err))
		}
		return []string{concept.Name}, nil

	case IsCorrection(in.Text):
		name := conceptNameFrom(in.Text)
		concept, err := l.Semantic.Teach(ctx, name, in.Text, model.ConceptTypeCorrection,
			l.CreatorName, true, in.Text)
		if err != nil {
			return nil, err
		}
		return []string{concept.Name}, nil

	case IsApproval(in.Text):
		if _, err := l.Identity.BumpBond(ctx, 0.02); err != nil {
			l.logger.Warn("bond bump after approval failed", zap.Error(err))
		}
		return nil, nil
	}
	return nil, nil
}

// learnTeaching extracts the taught concept with the LLM, falling back to a
// stem-derived name so a dead model never loses a teaching.
func (l *Learner) learnTeaching(ctx context.Context, text string) (*model.Concept, error) {
	name := conceptNameFrom(text)
	definition := text

	if l.LLM != nil {
		response, err := l.LLM.Generate(ctx, fmt.Sprintf(extractPromptTemplate, text))
		if err != nil {
			l.logger.Warn("concept extraction failed, using fallback name", zap.Error(err))
		} else if extracted, err := common.ParseJSON[extractedConcept](response); err == nil && extracted.Name != "" {
			name = extracted.Name
			if extracted.Definition != "" {
				definition = extracted.Definition
			}
		}
	}

	return l.Semantic.Teach(ctx, name, definition, model.ConceptTypeValue, l.CreatorName, true, text)
}

func conceptNameFrom(text string) string {
	stems := common.Stems(text)
	if len(stems) > 4 {
		stems = stems[:4]
	}
	if len(stems) == 0 {
		return "unnamed_teaching"
	}
	return strings.Join(stems, "_")
}
