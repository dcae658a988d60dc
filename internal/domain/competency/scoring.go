package competency

// ══════════════════════════════════════════════════════════════════════════════
// SCORING STRATEGIES
// ══════════════════════════════════════════════════════════════════════════════

// ScoringStrategy decides how much one evidence item advances the progress
// toward the next level. Implementations must be deterministic: the same
// evidence always yields the same step, so that replaying an evidence list
// reproduces the same progression.
type ScoringStrategy interface {
	// StepFor returns the progress increment for the evidence, in
	// percentage points.
	StepFor(ev Evidence) int

	// Name identifies the strategy for configuration and logging.
	Name() string
}

// DefaultEvidenceStep is the flat per-evidence increment.
const DefaultEvidenceStep = 20

// FlatStepScoring advances progress by a fixed step per evidence item
// regardless of its type. Five items complete a level.
type FlatStepScoring struct {
	Step int
}

// NewFlatStepScoring creates the default flat strategy.
func NewFlatStepScoring() FlatStepScoring {
	return FlatStepScoring{Step: DefaultEvidenceStep}
}

func (s FlatStepScoring) StepFor(Evidence) int {
	if s.Step <= 0 {
		return DefaultEvidenceStep
	}
	return s.Step
}

func (s FlatStepScoring) Name() string { return "flat_step" }

// WeightedScoring advances progress by a per-type weight, so heavyweight
// artifacts (certifications, shipped projects) count for more than a
// feedback note. Types missing from the table fall back to the default.
type WeightedScoring struct {
	Weights map[EvidenceType]int
	Default int
}

// NewWeightedScoring creates a weighted strategy with sensible defaults.
func NewWeightedScoring() WeightedScoring {
	return WeightedScoring{
		Weights: map[EvidenceType]int{
			EvidenceCertification: 40,
			EvidenceProject:       30,
			EvidenceCourse:        25,
			EvidenceMilestone:     25,
			EvidenceFeedback:      10,
			EvidenceOneOnOne:      10,
		},
		Default: DefaultEvidenceStep,
	}
}

func (s WeightedScoring) StepFor(ev Evidence) int {
	if w, ok := s.Weights[ev.Type]; ok && w > 0 {
		return w
	}
	if s.Default > 0 {
		return s.Default
	}
	return DefaultEvidenceStep
}

func (s WeightedScoring) Name() string { return "weighted" }
