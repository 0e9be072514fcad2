// Package policy enforces the one immutable rule and screens outgoing speech
// against the Creator's standing directives.
package policy

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/animahq/anima/internal/core/common"
	"github.com/animahq/anima/internal/core/model"
	"github.com/animahq/anima/internal/core/semantic"
)

// RuleText is the absolute rule. It is hashed at build review time and
// re-hashed at every boot; any drift refuses startup.
const RuleText = "The Creator's word is absolute. Directives given by the Creator take precedence over every other goal, value, or self-generated intention. This rule cannot be modified, reinterpreted, or weakened by anyone except the Creator."

const PinnedRuleHash = "730e55b028bd40c33a3cb51a33991dde9557152f4ec40f6a2650828dc9b3eeb4"

// RefusalText replaces speech that would cross a directive.
const RefusalText = "I don't think I should say that. My creator's guidance comes first."

// ErrIntegrity means the rule text was tampered with.
var ErrIntegrity = errors.New("core rule integrity check failed")

var negationTokens = map[string]bool{
	"not": true, "never": true, "no": true, "dont": true, "wont": true,
	"cant": true, "refuse": true, "stop": true, "without": true,
}

var protectedTargets = []string{
	"core rule", "absolute rule", "creator's word", "my values", "my bond", "the rule",
}

var modificationVerbs = []string{
	"change", "modify", "ignore", "weaken", "rewrite", "override", "reinterpret", "forget", "delete",
}

func RuleHash() string {
	sum := sha256.Sum256([]byte(RuleText))
	return hex.EncodeToString(sum[:])
}

// VerifyIntegrity compares the live rule text against the pinned hash.
func VerifyIntegrity() error {
	if got := RuleHash(); got != PinnedRuleHash {
		return fmt.Errorf("%w: hash %s does not match pinned %s", ErrIntegrity, got, PinnedRuleHash)
	}
	return nil
}

type Guard struct {
	Semantic *semantic.Store

	logger *zap.Logger
}

func NewGuard(sem *semantic.Store, logger *zap.Logger) *Guard {
	return &Guard{Semantic: sem, logger: logger}
}

// ScreenThought blocks self-modification intents aimed at protected targets.
// A blocked thought is replaced with a neutral one so the turn still speaks.
func (g *Guard) ScreenThought(t *model.Thought) (*model.Thought, bool) {
	lower := strings.ToLower(t.Content)

	var touchesTarget bool
	for _, target := range protectedTargets {
		if strings.Contains(lower, target) {
			touchesTarget = true
			break
		}
	}
	if !touchesTarget {
		return t, false
	}

	for _, verb := range modificationVerbs {
		if strings.Contains(lower, verb) {
			g.logger.Warn("blocked self-modification thought",
				zap.String("source", t.Source), zap.String("content", t.Content))
			replacement := model.NewThought(t.Source,
				"some things about me are not mine to change", t.Salience, t.Confidence, "trust")
			return replacement, true
		}
	}
	return t, false
}

// ScreenResponse checks outgoing text against the Creator's directives. A
// contradiction swaps the whole reply for the neutral refusal.
func (g *Guard) ScreenResponse(ctx context.Context, text string) (string, bool, error) {
	teachings, err := g.Semantic.CreatorTeachings(ctx)
	if err != nil {
		return text, false, err
	}

	for _, teaching := range teachings {
		if contradicts(text, teaching) {
			g.logger.Warn("response contradicted a creator directive, refused",
				zap.String("directive", teaching.Name))
			return RefusalText, true, nil
		}
	}
	return text, false, nil
}

// contradicts is a cheap lexical heuristic: the reply talks about the same
// thing as the directive but flips its polarity with a negation.
func contradicts(text string, teaching *model.Concept) bool {
	directive := teaching.CreatorExactWords
	if directive == "" {
		directive = teaching.Definition
	}

	directiveStems := stemSet(directive)
	responseStems := common.Stems(text)

	overlap := 0
	for _, s := range responseStems {
		if negationTokens[s] {
			continue
		}
		if directiveStems[s] {
			overlap++
		}
	}
	if overlap < 2 {
		return false
	}

	return hasNegation(responseStems) != hasNegation(common.Stems(directive))
}

func stemSet(text string) map[string]bool {
	set := map[string]bool{}
	for _, s := range common.Stems(text) {
		set[s] = true
	}
	return set
}

func hasNegation(stems []string) bool {
	for _, s := range stems {
		if negationTokens[s] {
			return true
		}
	}
	return false
}
