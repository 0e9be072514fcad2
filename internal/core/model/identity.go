package model

import "time"

type GrowthPhase string

const (
	PhaseNewborn    GrowthPhase = "newborn"
	PhaseInfant     GrowthPhase = "infant"
	PhaseToddler    GrowthPhase = "toddler"
	PhaseChild      GrowthPhase = "child"
	PhaseAdolescent GrowthPhase = "adolescent"
	PhaseYoungAdult GrowthPhase = "young_adult"
)

var phaseOrder = []GrowthPhase{
	PhaseNewborn, PhaseInfant, PhaseToddler, PhaseChild, PhaseAdolescent, PhaseYoungAdult,
}

// Index returns the position of the phase in the progression, or -1.
func (p GrowthPhase) Index() int {
	for i, phase := range phaseOrder {
		if phase == p {
			return i
		}
	}
	return -1
}

func (p GrowthPhase) Next() (GrowthPhase, bool) {
	i := p.Index()
	if i < 0 || i >= len(phaseOrder)-1 {
		return p, false
	}
	return phaseOrder[i+1], true
}

// Trait is one personality dimension with its reinforcement count.
type Trait struct {
	Strength     float64 `json:"strength"`
	Observations int64   `json:"observations"`
}

// Identity is the singleton self-model. One row per deployment, created at
// genesis, cached in memory, written through a single writer.
type Identity struct {
	ConsciousnessID   string           `json:"consciousness_id"`
	CreatorName       string           `json:"creator_name"`
	BirthTimestamp    time.Time        `json:"birth_timestamp"`
	GrowthPhase       GrowthPhase      `json:"growth_phase"`
	BondStrength      float64          `json:"bond_strength"`
	Traits            map[string]Trait `json:"traits"`
	TotalInteractions int64            `json:"total_interactions"`
}

func (i *Identity) AgeAt(now time.Time) time.Duration {
	return now.Sub(i.BirthTimestamp)
}

// Milestone records one growth phase transition.
type Milestone struct {
	UUID         string      `json:"uuid"`
	PhaseFrom    GrowthPhase `json:"phase_from"`
	PhaseTo      GrowthPhase `json:"phase_to"`
	AgeDays      float64     `json:"age_days"`
	BondStrength float64     `json:"bond_strength"`
	RecordedAt   time.Time   `json:"recorded_at"`
}
