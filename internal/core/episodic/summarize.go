package episodic

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/animahq/anima/internal/core/common"
	"github.com/animahq/anima/internal/core/model"
)

const summaryChunkSize = 20

type aggregateSummaryResult struct {
	Summary string `json:"summary"`
}

const aggregatePromptTemplate = `These are faint memories being folded together into one.
Write a single first-person sentence or two that preserves what they have in common.

Memories:
%s

Return a JSON object: {"summary": "..."}`

// aggregateSummary condenses a cluster of episodes into one first-person
// summary. Large clusters are reduced in chunks. The LLM is optional; on any
// failure the summaries are simply joined, because consolidation must not
// depend on a healthy model.
func (s *Store) aggregateSummary(ctx context.Context, cluster []*model.Episode) string {
	summaries := make([]string, 0, len(cluster))
	for _, ep := range cluster {
		if ep.Summary != "" {
			summaries = append(summaries, ep.Summary)
		}
	}
	if len(summaries) == 0 {
		return "Faded moments, folded together."
	}
	return s.reduceSummaries(ctx, summaries)
}

func (s *Store) reduceSummaries(ctx context.Context, summaries []string) string {
	if len(summaries) <= summaryChunkSize {
		return s.llmSummary(ctx, summaries)
	}

	var intermediate []string
	for i := 0; i < len(summaries); i += summaryChunkSize {
		end := i + summaryChunkSize
		if end > len(summaries) {
			end = len(summaries)
		}
		intermediate = append(intermediate, s.llmSummary(ctx, summaries[i:end]))
	}
	return s.reduceSummaries(ctx, intermediate)
}

func (s *Store) llmSummary(ctx context.Context, summaries []string) string {
	joined := joinSummaries(summaries)
	if s.LLM == nil {
		return joined
	}

	var list strings.Builder
	for _, sum := range summaries {
		fmt.Fprintf(&list, "- %s\n", sum)
	}

	response, err := s.LLM.Generate(ctx, fmt.Sprintf(aggregatePromptTemplate, list.String()))
	if err != nil {
		s.logger.Warn("aggregate summary generation failed, joining raw summaries", zap.Error(err))
		return joined
	}

	result, err := common.ParseJSON[aggregateSummaryResult](response)
	if err != nil || result.Summary == "" {
		return joined
	}
	return result.Summary
}

func joinSummaries(summaries []string) string {
	return summarize("Echoes of ordinary moments: " + strings.Join(summaries, "; "))
}
