package protocol

import "github.com/google/uuid"

const (
	// DefaultName is the protocol used when a request names none.
	DefaultName      = "aaha-2024"
	ConservativeName = "aaha-2024-conservative"
)

// Stable IDs so built-ins resolve identically across restarts.
var (
	defaultID      = uuid.MustParse("6f0a4a47-3c1e-4f6b-9a55-2b1f5d0c0001")
	conservativeID = uuid.MustParse("6f0a4a47-3c1e-4f6b-9a55-2b1f5d0c0002")
)

func strPtr(s string) *string { return &s }

// Default returns the canonical table: midpoint potassium tiers, chloride
// threshold 120 mEq/L, fixed-dose calcium and an osmolality-or-glucose HHS
// trigger.
func Default() *Protocol {
	return &Protocol{
		ID:          defaultID,
		Name:        DefaultName,
		Title:       "2024 AAHA fluid therapy (midpoint tiers)",
		Description: strPtr("Potassium tiers use the midpoint of each guideline range."),
		PotassiumTiers: []PotassiumTier{
			{UpperBound: 2.0, SafeLimit: 0.5},
			{UpperBound: 2.5, SafeLimit: 0.35},
			{UpperBound: 3.0, SafeLimit: 0.22},
			{UpperBound: 3.5, SafeLimit: 0.12},
		},
		ChlorideThreshold:  120,
		CalciumPolicy:      CalciumFixed,
		HHSTrigger:         HHSOsmolalityOrGlucose,
		HHSOsmolalityLimit: 350,
		HHSGlucoseLimit:    600,
		Active:             true,
	}
}

// Conservative returns the alternate table seen in earlier revisions of the
// calculator: lower potassium ceilings, chloride threshold 115 mEq/L, ranged
// calcium doses and an osmolality-only HHS trigger.
func Conservative() *Protocol {
	return &Protocol{
		ID:          conservativeID,
		Name:        ConservativeName,
		Title:       "2024 AAHA fluid therapy (lower-bound tiers)",
		Description: strPtr("Potassium tiers use the lower bound of each guideline range."),
		PotassiumTiers: []PotassiumTier{
			{UpperBound: 2.0, SafeLimit: 0.5},
			{UpperBound: 2.5, SafeLimit: 0.3},
			{UpperBound: 3.0, SafeLimit: 0.2},
			{UpperBound: 3.5, SafeLimit: 0.1},
		},
		ChlorideThreshold:  115,
		CalciumPolicy:      CalciumRanged,
		HHSTrigger:         HHSOsmolality,
		HHSOsmolalityLimit: 350,
		HHSGlucoseLimit:    600,
		Active:             true,
	}
}

// Builtins returns fresh copies of every built-in protocol.
func Builtins() []*Protocol {
	return []*Protocol{Default(), Conservative()}
}
