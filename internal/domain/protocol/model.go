package protocol

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// CalciumPolicy selects how hypocalcemia doses are expressed.
type CalciumPolicy string

const (
	CalciumFixed  CalciumPolicy = "fixed"
	CalciumRanged CalciumPolicy = "ranged"
)

// HHSTrigger selects which findings raise the hyperosmolar-risk flag.
type HHSTrigger string

const (
	HHSOsmolality          HHSTrigger = "osmolality"
	HHSOsmolalityOrGlucose HHSTrigger = "osmolality-or-glucose"
)

// HypokalemiaCeiling is the K value (mEq/L) at and above which no potassium
// supplementation is advised. The last tier of every protocol must end here.
const HypokalemiaCeiling = 3.5

// MaxSafeLimit is the highest KCl infusion rate (mEq/kg/hr) a tier may allow.
const MaxSafeLimit = 0.5

// ErrInvalid is matched by every error Validate returns.
var ErrInvalid = errors.New("invalid protocol")

// PotassiumTier caps the KCl infusion rate for serum K below UpperBound.
type PotassiumTier struct {
	UpperBound float64 `json:"upper_bound" yaml:"upper_bound"`
	SafeLimit  float64 `json:"safe_limit_meq_per_kg_hr" yaml:"safe_limit_meq_per_kg_hr"`
}

// Protocol maps to the dosing_protocol table. It holds one canonical
// threshold table per decision the engine makes.
type Protocol struct {
	ID                 uuid.UUID       `db:"id" json:"id" yaml:"-"`
	Name               string          `db:"name" json:"name" yaml:"name"`
	Title              string          `db:"title" json:"title" yaml:"title"`
	Description        *string         `db:"description" json:"description,omitempty" yaml:"description,omitempty"`
	PotassiumTiers     []PotassiumTier `db:"potassium_tiers" json:"potassium_tiers" yaml:"potassium_tiers"`
	ChlorideThreshold  float64         `db:"chloride_threshold" json:"chloride_threshold" yaml:"chloride_threshold"`
	CalciumPolicy      CalciumPolicy   `db:"calcium_policy" json:"calcium_policy" yaml:"calcium_policy"`
	HHSTrigger         HHSTrigger      `db:"hhs_trigger" json:"hhs_trigger" yaml:"hhs_trigger"`
	HHSOsmolalityLimit float64         `db:"hhs_osmolality_limit" json:"hhs_osmolality_limit" yaml:"hhs_osmolality_limit"`
	HHSGlucoseLimit    float64         `db:"hhs_glucose_limit" json:"hhs_glucose_limit" yaml:"hhs_glucose_limit"`
	Active             bool            `db:"active" json:"active" yaml:"active"`
	CreatedAt          time.Time       `db:"created_at" json:"created_at" yaml:"-"`
	UpdatedAt          time.Time       `db:"updated_at" json:"updated_at" yaml:"-"`
}

var namePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,62}$`)

// SafeLimit returns the KCl infusion ceiling (mEq/kg/hr) for serum K, and
// false when k is at or above the hypokalemia ceiling.
func (p *Protocol) SafeLimit(k float64) (float64, bool) {
	for _, t := range p.PotassiumTiers {
		if k < t.UpperBound {
			return t.SafeLimit, true
		}
	}
	return 0, false
}

// Validate checks that the tables are internally consistent. Potassium
// ceilings may only stay level or fall as serum K rises, so the KCl volume
// never shrinks as K falls.
func (p *Protocol) Validate() error {
	if err := p.validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

func (p *Protocol) validate() error {
	if !namePattern.MatchString(p.Name) {
		return fmt.Errorf("name must be a lowercase slug, got %q", p.Name)
	}
	if len(p.PotassiumTiers) == 0 {
		return fmt.Errorf("potassium_tiers is required")
	}
	prevBound, prevLimit := 0.0, MaxSafeLimit
	for i, t := range p.PotassiumTiers {
		if t.UpperBound <= prevBound {
			return fmt.Errorf("potassium_tiers[%d]: upper_bound must be ascending", i)
		}
		if t.SafeLimit <= 0 {
			return fmt.Errorf("potassium_tiers[%d]: safe limit must be positive", i)
		}
		if t.SafeLimit > MaxSafeLimit {
			return fmt.Errorf("potassium_tiers[%d]: safe limit %.2f exceeds %.1f mEq/kg/hr", i, t.SafeLimit, MaxSafeLimit)
		}
		if t.SafeLimit > prevLimit {
			return fmt.Errorf("potassium_tiers[%d]: safe limit must not rise as potassium rises", i)
		}
		prevBound, prevLimit = t.UpperBound, t.SafeLimit
	}
	if last := p.PotassiumTiers[len(p.PotassiumTiers)-1].UpperBound; last != HypokalemiaCeiling {
		return fmt.Errorf("last potassium tier must end at %.1f mEq/L, got %.2f", HypokalemiaCeiling, last)
	}
	if p.ChlorideThreshold <= 0 {
		return fmt.Errorf("chloride_threshold must be positive")
	}
	switch p.CalciumPolicy {
	case CalciumFixed, CalciumRanged:
	default:
		return fmt.Errorf("invalid calcium_policy: %q", p.CalciumPolicy)
	}
	switch p.HHSTrigger {
	case HHSOsmolality, HHSOsmolalityOrGlucose:
	default:
		return fmt.Errorf("invalid hhs_trigger: %q", p.HHSTrigger)
	}
	if p.HHSOsmolalityLimit <= 0 {
		return fmt.Errorf("hhs_osmolality_limit must be positive")
	}
	if p.HHSTrigger == HHSOsmolalityOrGlucose && p.HHSGlucoseLimit <= 0 {
		return fmt.Errorf("hhs_glucose_limit must be positive when hhs_trigger is %q", p.HHSTrigger)
	}
	return nil
}

// applyDefaults fills the HHS limits when a protocol omits them.
func (p *Protocol) applyDefaults() {
	if p.HHSOsmolalityLimit == 0 {
		p.HHSOsmolalityLimit = 350
	}
	if p.HHSGlucoseLimit == 0 {
		p.HHSGlucoseLimit = 600
	}
	if p.HHSTrigger == "" {
		p.HHSTrigger = HHSOsmolalityOrGlucose
	}
	if p.CalciumPolicy == "" {
		p.CalciumPolicy = CalciumFixed
	}
}
