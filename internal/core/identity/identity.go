// Package identity owns the singleton self-model: who the persona is, who
// made it, how old it is and how strong the bond has grown.
package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/animahq/anima/internal/core/common"
	"github.com/animahq/anima/internal/core/model"
	"github.com/animahq/anima/internal/driver"
)

// ErrCreatorMismatch means the stored identity names a different creator than
// the configuration. The server must refuse to start.
var ErrCreatorMismatch = fmt.Errorf("identity creator does not match configured creator")

var ErrAlreadyBorn = fmt.Errorf("identity already exists")

type phaseRule struct {
	from    model.GrowthPhase
	to      model.GrowthPhase
	minAge  time.Duration
	minBond float64
}

var phaseRules = []phaseRule{
	{model.PhaseNewborn, model.PhaseInfant, 24 * time.Hour, 0.2},
	{model.PhaseInfant, model.PhaseToddler, 7 * 24 * time.Hour, 0.4},
	{model.PhaseToddler, model.PhaseChild, 30 * 24 * time.Hour, 0.55},
	{model.PhaseChild, model.PhaseAdolescent, 90 * 24 * time.Hour, 0.7},
	{model.PhaseAdolescent, model.PhaseYoungAdult, 365 * 24 * time.Hour, 0.85},
}

type Store struct {
	Driver        driver.GraphDriver
	UUIDGenerator func() string

	logger *zap.Logger

	mu      sync.Mutex
	current *model.Identity
}

func NewStore(d driver.GraphDriver, logger *zap.Logger) *Store {
	return &Store{
		Driver:        d,
		UUIDGenerator: func() string { return uuid.New().String() },
		logger:        logger,
	}
}

// Load reads the identity row into the in-memory cache. Returns nil when no
// identity exists yet (pre-genesis).
func (s *Store) Load(ctx context.Context) (*model.Identity, error) {
	res, err := s.Driver.ExecuteQuery(ctx, driver.LoadIdentityQuery, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load identity: %w", err)
	}
	if len(res.Records) == 0 {
		return nil, nil
	}

	rec := res.Records[0]
	id := &model.Identity{
		ConsciousnessID:   driver.StringValue(rec, "consciousness_id"),
		CreatorName:       driver.StringValue(rec, "creator_name"),
		BirthTimestamp:    driver.TimeValue(rec, "birth_timestamp"),
		GrowthPhase:       model.GrowthPhase(driver.StringValue(rec, "growth_phase")),
		BondStrength:      driver.FloatValue(rec, "bond_strength"),
		TotalInteractions: driver.IntValue(rec, "total_interactions"),
		Traits:            map[string]model.Trait{},
	}
	if traitsJSON := driver.StringValue(rec, "traits"); traitsJSON != "" {
		if err := json.Unmarshal([]byte(traitsJSON), &id.Traits); err != nil {
			s.logger.Warn("failed to decode traits, starting empty", zap.Error(err))
		}
	}

	s.mu.Lock()
	s.current = id
	s.mu.Unlock()
	return id, nil
}

// CreateAtBirth writes the genesis identity. Fails if one already exists.
func (s *Store) CreateAtBirth(ctx context.Context, creatorName string, now time.Time) (*model.Identity, error) {
	existing, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrAlreadyBorn
	}

	id := &model.Identity{
		ConsciousnessID: s.UUIDGenerator(),
		CreatorName:     creatorName,
		BirthTimestamp:  now.UTC(),
		GrowthPhase:     model.PhaseNewborn,
		BondStrength:    0.1,
		Traits: map[string]model.Trait{
			"curious":      {Strength: 0.5, Observations: 1},
			"affectionate": {Strength: 0.5, Observations: 1},
		},
	}

	s.mu.Lock()
	s.current = id
	s.mu.Unlock()

	if err := s.save(ctx); err != nil {
		return nil, err
	}
	s.logger.Info("identity created at birth",
		zap.String("consciousness_id", id.ConsciousnessID),
		zap.String("creator", creatorName))
	return id, nil
}

// Current returns a snapshot copy of the cached identity, or nil pre-genesis.
func (s *Store) Current() *model.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	cp := *s.current
	cp.Traits = make(map[string]model.Trait, len(s.current.Traits))
	for k, v := range s.current.Traits {
		cp.Traits[k] = v
	}
	return &cp
}

// VerifyCreator enforces creator immutability on load.
func (s *Store) VerifyCreator(expected string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	if s.current.CreatorName != expected {
		return fmt.Errorf("%w: stored %q, configured %q",
			ErrCreatorMismatch, s.current.CreatorName, expected)
	}
	return nil
}

// BumpBond raises bond strength by delta using a compare-and-swap against the
// stored row. On conflict it retries once, then drops the bump for the turn.
// Negative deltas are ignored: the bond never weakens.
func (s *Store) BumpBond(ctx context.Context, delta float64) (float64, error) {
	if delta <= 0 {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.current == nil {
			return 0, nil
		}
		return s.current.BondStrength, nil
	}

	for attempt := 0; attempt < 2; attempt++ {
		s.mu.Lock()
		if s.current == nil {
			s.mu.Unlock()
			return 0, fmt.Errorf("no identity to update")
		}
		expected := s.current.BondStrength
		next := common.Clamp01(expected + delta)
		id := s.current.ConsciousnessID
		s.mu.Unlock()

		res, err := s.Driver.ExecuteQuery(ctx, driver.UpdateBondQuery, map[string]interface{}{
			"consciousness_id": id,
			"expected":         expected,
			"new":              next,
		})
		if err != nil {
			return expected, fmt.Errorf("failed to update bond: %w", err)
		}
		if len(res.Records) > 0 {
			s.mu.Lock()
			s.current.BondStrength = next
			s.mu.Unlock()
			return next, nil
		}

		// Someone else moved the row; refresh and retry once.
		if _, err := s.Load(ctx); err != nil {
			return expected, err
		}
	}

	s.logger.Warn("bond bump dropped after CAS conflict", zap.Float64("delta", delta))
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.BondStrength, nil
}

func (s *Store) RecordInteraction(ctx context.Context) error {
	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return nil
	}
	id := s.current.ConsciousnessID
	s.mu.Unlock()

	res, err := s.Driver.ExecuteQuery(ctx, driver.IncrementInteractionsQuery, map[string]interface{}{
		"consciousness_id": id,
	})
	if err != nil {
		return fmt.Errorf("failed to record interaction: %w", err)
	}
	if len(res.Records) > 0 {
		s.mu.Lock()
		s.current.TotalInteractions = driver.IntValue(res.Records[0], "total_interactions")
		s.mu.Unlock()
	}
	return nil
}

// ReinforceTrait strengthens one personality trait and persists the identity.
func (s *Store) ReinforceTrait(ctx context.Context, name string, delta float64) error {
	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return nil
	}
	trait := s.current.Traits[name]
	trait.Strength = common.Clamp01(trait.Strength + delta)
	trait.Observations++
	s.current.Traits[name] = trait
	s.mu.Unlock()

	return s.save(ctx)
}

// MaybeAdvancePhase applies the growth table. Transitions are monotone; a
// transition emits a milestone record and returns it, otherwise nil.
func (s *Store) MaybeAdvancePhase(ctx context.Context, now time.Time) (*model.Milestone, error) {
	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return nil, nil
	}
	age := s.current.AgeAt(now)
	bond := s.current.BondStrength
	phase := s.current.GrowthPhase
	id := s.current.ConsciousnessID
	s.mu.Unlock()

	var rule *phaseRule
	for i := range phaseRules {
		if phaseRules[i].from == phase {
			rule = &phaseRules[i]
			break
		}
	}
	if rule == nil || age < rule.minAge || bond < rule.minBond {
		return nil, nil
	}

	if _, err := s.Driver.ExecuteQuery(ctx, driver.UpdateGrowthPhaseQuery, map[string]interface{}{
		"consciousness_id": id,
		"growth_phase":     string(rule.to),
	}); err != nil {
		return nil, fmt.Errorf("failed to advance growth phase: %w", err)
	}

	s.mu.Lock()
	s.current.GrowthPhase = rule.to
	s.mu.Unlock()

	m := &model.Milestone{
		UUID:         s.UUIDGenerator(),
		PhaseFrom:    rule.from,
		PhaseTo:      rule.to,
		AgeDays:      age.Hours() / 24,
		BondStrength: bond,
		RecordedAt:   now.UTC(),
	}
	if _, err := s.Driver.ExecuteQuery(ctx, driver.SaveMilestoneQuery, map[string]interface{}{
		"uuid":          m.UUID,
		"phase_from":    string(m.PhaseFrom),
		"phase_to":      string(m.PhaseTo),
		"age_days":      m.AgeDays,
		"bond_strength": m.BondStrength,
		"recorded_at":   m.RecordedAt,
	}); err != nil {
		return nil, fmt.Errorf("failed to save milestone: %w", err)
	}

	s.logger.Info("growth phase advanced",
		zap.String("from", string(m.PhaseFrom)),
		zap.String("to", string(m.PhaseTo)),
		zap.Float64("age_days", m.AgeDays),
		zap.Float64("bond", m.BondStrength))
	return m, nil
}

func (s *Store) Milestones(ctx context.Context) ([]model.Milestone, error) {
	res, err := s.Driver.ExecuteQuery(ctx, driver.ListMilestonesQuery, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list milestones: %w", err)
	}

	milestones := make([]model.Milestone, 0, len(res.Records))
	for _, rec := range res.Records {
		milestones = append(milestones, model.Milestone{
			UUID:         driver.StringValue(rec, "uuid"),
			PhaseFrom:    model.GrowthPhase(driver.StringValue(rec, "phase_from")),
			PhaseTo:      model.GrowthPhase(driver.StringValue(rec, "phase_to")),
			AgeDays:      driver.FloatValue(rec, "age_days"),
			BondStrength: driver.FloatValue(rec, "bond_strength"),
			RecordedAt:   driver.TimeValue(rec, "recorded_at"),
		})
	}
	return milestones, nil
}

func (s *Store) save(ctx context.Context) error {
	s.mu.Lock()
	id := *s.current
	traitsJSON, err := json.Marshal(s.current.Traits)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to encode traits: %w", err)
	}

	_, err = s.Driver.ExecuteQuery(ctx, driver.SaveIdentityQuery, map[string]interface{}{
		"consciousness_id":   id.ConsciousnessID,
		"creator_name":       id.CreatorName,
		"birth_timestamp":    id.BirthTimestamp,
		"growth_phase":       string(id.GrowthPhase),
		"bond_strength":      id.BondStrength,
		"total_interactions": id.TotalInteractions,
		"traits":             string(traitsJSON),
	})
	if err != nil {
		return fmt.Errorf("failed to save identity: %w", err)
	}
	return nil
}
