package fluidtherapy

import "github.com/vetfluid/vetfluid/internal/domain/protocol"

// Species of the patient. It does not change any formula.
type Species string

const (
	SpeciesDog Species = "dog"
	SpeciesCat Species = "cat"
)

// Comorbidity flags that alter fluid or nutrition defaults.
type Comorbidity string

const (
	HeartDisease Comorbidity = "heart_disease"
	CKD          Comorbidity = "ckd"
	LiverDisease Comorbidity = "liver_disease"
)

// FluidType is the recommended crystalloid.
type FluidType string

const (
	BufferedCrystalloid    FluidType = "buffered_crystalloid"
	LowChlorideCrystalloid FluidType = "low_chloride_crystalloid"
)

// AminoAcidProduct is a parenteral amino-acid solution with a fixed
// concentration.
type AminoAcidProduct string

const (
	RenalFormula      AminoAcidProduct = "renal_formula"
	HighConcentration AminoAcidProduct = "high_concentration"
	HepaticFormula    AminoAcidProduct = "hepatic_formula"
)

var aminoAcidConcentrations = map[AminoAcidProduct]float64{
	RenalFormula:      5.6,
	HighConcentration: 10.0,
	HepaticFormula:    6.5,
}

// ConcentrationPct returns the product's amino-acid concentration (g/100 mL).
func (p AminoAcidProduct) ConcentrationPct() (float64, bool) {
	c, ok := aminoAcidConcentrations[p]
	return c, ok
}

// AminoAcidProducts lists the supported products in display order.
func AminoAcidProducts() []AminoAcidProduct {
	return []AminoAcidProduct{RenalFormula, HighConcentration, HepaticFormula}
}

// BagSizes lists the selectable fluid bag volumes (mL).
func BagSizes() []int {
	return []int{1000, 500, 100, 50, 30}
}

// Request is the raw calculator input. Pointer fields are optional and take
// reference defaults when nil.
type Request struct {
	WeightKg         float64          `json:"weight_kg"`
	Species          Species          `json:"species,omitempty"`
	DehydrationPct   float64          `json:"dehydration_pct"`
	HasHeart         bool             `json:"has_heart"`
	HasCKD           bool             `json:"has_ckd"`
	HasLiver         bool             `json:"has_liver"`
	BagSizeML        *int             `json:"bag_size_ml,omitempty"`
	Na               *float64         `json:"na,omitempty"`
	K                *float64         `json:"k,omitempty"`
	Cl               *float64         `json:"cl,omitempty"`
	ICa              *float64         `json:"ica,omitempty"`
	Glucose          *float64         `json:"glucose,omitempty"`
	BUN              *float64         `json:"bun,omitempty"`
	Phosphorus       *float64         `json:"phosphorus,omitempty"`
	RERFractionPct   *float64         `json:"rer_fraction_pct,omitempty"`
	AminoAcidDose    *float64         `json:"amino_acid_dose_g_per_kg_day,omitempty"`
	AminoAcidProduct AminoAcidProduct `json:"amino_acid_product,omitempty"`
	DextroseRatioPct *float64         `json:"dextrose_ratio_pct,omitempty"`
	Protocol         string           `json:"protocol,omitempty"`
}

// Comorbidities is the set of flagged conditions.
type Comorbidities struct {
	Heart bool `json:"heart_disease"`
	CKD   bool `json:"ckd"`
	Liver bool `json:"liver_disease"`
}

// Any reports whether at least one comorbidity is present.
func (c Comorbidities) Any() bool { return c.Heart || c.CKD || c.Liver }

// List returns the flagged conditions.
func (c Comorbidities) List() []Comorbidity {
	var out []Comorbidity
	if c.Heart {
		out = append(out, HeartDisease)
	}
	if c.CKD {
		out = append(out, CKD)
	}
	if c.Liver {
		out = append(out, LiverDisease)
	}
	return out
}

type PatientProfile struct {
	Species        Species       `json:"species"`
	WeightKg       float64       `json:"weight_kg"`
	DehydrationPct float64       `json:"dehydration_pct"`
	Comorbidities  Comorbidities `json:"comorbidities"`
}

// LabPanel values: electrolytes in mEq/L, iCa in mmol/L, glucose, BUN and
// phosphorus in mg/dL.
type LabPanel struct {
	Na         float64 `json:"na"`
	K          float64 `json:"k"`
	Cl         float64 `json:"cl"`
	ICa        float64 `json:"ica"`
	Glucose    float64 `json:"glucose"`
	BUN        float64 `json:"bun"`
	Phosphorus float64 `json:"phosphorus"`
}

type PrescriptionChoices struct {
	BagSizeML        int              `json:"bag_size_ml"`
	RERFractionPct   float64          `json:"rer_fraction_pct"`
	AminoAcidDose    float64          `json:"amino_acid_dose_g_per_kg_day"`
	AminoAcidProduct AminoAcidProduct `json:"amino_acid_product"`
	DextroseRatioPct float64          `json:"dextrose_ratio_pct"`
}

// Input is a validated, fully defaulted request.
type Input struct {
	Patient  PatientProfile      `json:"patient"`
	Labs     LabPanel            `json:"labs"`
	Choices  PrescriptionChoices `json:"choices"`
	Protocol string              `json:"protocol,omitempty"`
}

type FluidPlan struct {
	MaintenanceVolumeML  float64   `json:"maintenance_volume_ml"`
	DeficitVolumeML      float64   `json:"deficit_volume_ml"`
	TotalVolumeML        float64   `json:"total_volume_ml"`
	HourlyRateMLPerHr    float64   `json:"hourly_rate_ml_per_hr"`
	SelectedBagSizeML    int       `json:"selected_bag_size_ml"`
	RecommendedFluidType FluidType `json:"recommended_fluid_type"`
}

type KClRecommendation struct {
	SafeLimitMEqPerKgHr float64 `json:"safe_limit_meq_per_kg_hr"`
	VolumeToAddML       float64 `json:"volume_to_add_ml"`
	MEqAdded            float64 `json:"meq_added"`
	BagSizeML           int     `json:"bag_size_ml"`
}

// Range is an inclusive dose interval.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

type CalciumRecommendation struct {
	Policy         protocol.CalciumPolicy `json:"policy"`
	BolusML        float64                `json:"bolus_ml"`
	CRIMLPerHr     float64                `json:"cri_ml_per_hr"`
	BolusRangeML   *Range                 `json:"bolus_range_ml,omitempty"`
	CRIRangeMLPerH *Range                 `json:"cri_range_ml_per_hr,omitempty"`
	BolusMinutes   int                    `json:"bolus_minutes"`
	Administration string                 `json:"administration"`
}

type ElectrolyteAdvisory struct {
	Potassium *KClRecommendation     `json:"potassium,omitempty"`
	Calcium   *CalciumRecommendation `json:"calcium,omitempty"`
}

type OsmolalityReport struct {
	EffectiveOsmolality float64  `json:"effective_osmolality_mosm_per_l"`
	HyperosmolarRisk    bool     `json:"hyperosmolar_risk"`
	Triggers            []string `json:"triggers,omitempty"`
}

type NutritionPlan struct {
	RERKcalPerDay          float64          `json:"rer_kcal_per_day"`
	RERFractionPct         float64          `json:"rer_fraction_pct"`
	TargetKcalPerDay       float64          `json:"target_kcal_per_day"`
	AminoAcidDose          float64          `json:"amino_acid_dose_g_per_kg_day"`
	AminoAcidProduct       AminoAcidProduct `json:"amino_acid_product"`
	AminoAcidConcentration float64          `json:"amino_acid_concentration_pct"`
	AminoAcidVolumeML      float64          `json:"amino_acid_volume_ml"`
	AminoAcidKcal          float64          `json:"amino_acid_kcal"`
	NonProteinKcal         float64          `json:"non_protein_kcal"`
	DextroseRatioPct       float64          `json:"dextrose_ratio_pct"`
	DextroseVolumeML       float64          `json:"dextrose_volume_ml"`
	LipidVolumeML          float64          `json:"lipid_volume_ml"`
	TotalPNVolumeML        float64          `json:"total_pn_volume_ml"`
	Warnings               []string         `json:"warnings,omitempty"`
}

// Severity of a report notice.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Notice is a rendered line of the clinical report.
type Notice struct {
	Code     string   `json:"code"`
	Severity Severity `json:"severity"`
	Text     string   `json:"text"`
}

// ClinicalReport is the engine output for one request.
type ClinicalReport struct {
	Protocol      string              `json:"protocol"`
	Input         Input               `json:"input"`
	Fluid         FluidPlan           `json:"fluid_plan"`
	Electrolyte   ElectrolyteAdvisory `json:"electrolyte_advisory"`
	Osmolality    *OsmolalityReport   `json:"osmolality,omitempty"`
	Nutrition     NutritionPlan       `json:"nutrition_plan"`
	Notices       []Notice            `json:"notices"`
	OverloadWatch []string            `json:"overload_watch"`
}
