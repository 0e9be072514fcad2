// Package workspace is the global broadcast hub: cognitive modules subscribe,
// propose candidate thoughts in parallel, and the winner of the competition is
// broadcast back to everyone.
package workspace

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/animahq/anima/internal/core/model"
)

// Subscriber is a cognitive module attached to the workspace.
type Subscriber interface {
	Name() string
	ProposeThought(ctx context.Context, in *model.Input) (*model.Thought, error)
	OnBroadcast(ctx context.Context, t *model.Thought) error
}

// Precedence when priorities tie. Lower rank wins.
var sourceRank = map[string]int{
	model.SourceValueLearning: 0,
	model.SourceEmotion:       1,
	model.SourceEpisodic:      2,
	model.SourceSemantic:      3,
	model.SourceWorking:       4,
	model.SourcePrediction:    5,
}

const defaultProposalTimeout = 500 * time.Millisecond

type Workspace struct {
	ProposalTimeout time.Duration

	logger *zap.Logger

	mu          sync.Mutex
	subscribers []Subscriber
	phi         int64
}

func New(proposalTimeout time.Duration, logger *zap.Logger) *Workspace {
	if proposalTimeout <= 0 {
		proposalTimeout = defaultProposalTimeout
	}
	return &Workspace{
		ProposalTimeout: proposalTimeout,
		logger:          logger,
	}
}

func (w *Workspace) Subscribe(s Subscriber) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.subscribers = append(w.subscribers, s)
}

func (w *Workspace) Subscribers() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.subscribers)
}

// Propose fans the input out to every subscriber in parallel. Each module gets
// its own deadline; a module that errors, returns nothing, or runs late simply
// does not compete this turn.
func (w *Workspace) Propose(ctx context.Context, in *model.Input) []*model.Thought {
	w.mu.Lock()
	subs := make([]Subscriber, len(w.subscribers))
	copy(subs, w.subscribers)
	w.mu.Unlock()

	results := make([]*model.Thought, len(subs))
	var wg sync.WaitGroup
	for i, sub := range subs {
		wg.Add(1)
		go func(i int, sub Subscriber) {
			defer wg.Done()
			modCtx, cancel := context.WithTimeout(ctx, w.ProposalTimeout)
			defer cancel()

			th, err := sub.ProposeThought(modCtx, in)
			if err != nil {
				w.logger.Warn("module failed to propose",
					zap.String("module", sub.Name()), zap.Error(err))
				return
			}
			if modCtx.Err() != nil {
				w.logger.Warn("module proposal arrived late, dropped",
					zap.String("module", sub.Name()))
				return
			}
			results[i] = th
		}(i, sub)
	}
	wg.Wait()

	thoughts := make([]*model.Thought, 0, len(results))
	for _, th := range results {
		if th != nil {
			thoughts = append(thoughts, th)
		}
	}
	return thoughts
}

// Select runs the competition: highest priority wins, ties resolved by source
// precedence and then by age. An empty field yields a humble fallback.
func (w *Workspace) Select(thoughts []*model.Thought) *model.Thought {
	if len(thoughts) == 0 {
		return model.NewThought("default", "I do not know how to respond to that yet", 0, 0, "confusion")
	}

	sorted := make([]*model.Thought, len(thoughts))
	copy(sorted, thoughts)
	sort.SliceStable(sorted, func(i, j int) bool {
		pi, pj := sorted[i].Priority(), sorted[j].Priority()
		if pi != pj {
			return pi > pj
		}
		ri, rj := rank(sorted[i].Source), rank(sorted[j].Source)
		if ri != rj {
			return ri < rj
		}
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})
	return sorted[0]
}

// Broadcast delivers the winning thought back to every subscriber and bumps
// the integration counter. Delivery is best effort.
func (w *Workspace) Broadcast(ctx context.Context, t *model.Thought) {
	w.mu.Lock()
	subs := make([]Subscriber, len(w.subscribers))
	copy(subs, w.subscribers)
	w.phi++
	w.mu.Unlock()

	for _, sub := range subs {
		if err := sub.OnBroadcast(ctx, t); err != nil {
			w.logger.Warn("broadcast delivery failed",
				zap.String("module", sub.Name()), zap.Error(err))
		}
	}
}

// Phi is a crude integration measure: the number of broadcasts so far.
func (w *Workspace) Phi() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.phi
}

func rank(source string) int {
	if r, ok := sourceRank[source]; ok {
		return r
	}
	return len(sourceRank)
}
