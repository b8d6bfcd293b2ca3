package fluidtherapy

import (
	"fmt"

	"github.com/vetfluid/vetfluid/internal/domain/protocol"
)

// Notice codes.
const (
	NoticeHypokalemia     = "hypokalemia"
	NoticeCalciumBolus    = "hypocalcemia-bolus"
	NoticeCalciumCRI      = "hypocalcemia-cri"
	NoticeHHSRisk         = "hhs-risk"
	NoticeNPCClamped      = "npc-clamped"
	NoticeHepaticFormula  = "hepatic-formula"
	NoticePhosphorusWatch = "phosphorus-monitoring"
)

// OverloadWatch lists the bedside signs of fluid overload. It is static and
// carries no computation.
func OverloadWatch() []string {
	return []string{
		"Body weight gain of more than 10% over the previous day",
		"Increased respiratory rate or effort",
		"Nasal discharge or chemosis",
	}
}

// Compute runs the whole pipeline for a normalized input. It has no side
// effects and never fails; invalid input is rejected by Normalize.
func Compute(in Input, p *protocol.Protocol) *ClinicalReport {
	fluid := CalculateFluidPlan(in.Patient, in.Choices.BagSizeML)
	fluid.RecommendedFluidType = SelectFluidType(in.Labs.Cl, in.Patient.Comorbidities.CKD, p)

	w := in.Patient.WeightKg
	r := &ClinicalReport{
		Protocol: p.Name,
		Input:    in,
		Fluid:    fluid,
		Electrolyte: ElectrolyteAdvisory{
			Potassium: AdvisePotassium(in.Labs.K, w, fluid.HourlyRateMLPerHr, fluid.SelectedBagSizeML, p),
			Calcium:   AdviseCalcium(in.Labs.ICa, w, p.CalciumPolicy),
		},
		Osmolality:    AnalyzeOsmolality(in.Labs, p),
		Nutrition:     PlanNutrition(w, in.Choices),
		OverloadWatch: OverloadWatch(),
	}
	r.Input.Protocol = p.Name
	r.Notices = notices(r)
	return r
}

func notices(r *ClinicalReport) []Notice {
	var out []Notice
	add := func(code string, sev Severity, format string, args ...any) {
		out = append(out, Notice{Code: code, Severity: sev, Text: fmt.Sprintf(format, args...)})
	}

	if k := r.Electrolyte.Potassium; k != nil {
		add(NoticeHypokalemia, SeverityWarning,
			"Hypokalemia: add %.1f mL KCl (2 mEq/mL) to the %d mL bag (delivery limit %g mEq/kg/hr)",
			k.VolumeToAddML, k.BagSizeML, k.SafeLimitMEqPerKgHr)
	}
	if ca := r.Electrolyte.Calcium; ca != nil {
		if ca.BolusRangeML != nil {
			add(NoticeCalciumBolus, SeverityCritical,
				"Hypocalcemia: 10%% calcium gluconate bolus %.1f-%.1f mL over %d minutes, never a rapid push",
				ca.BolusRangeML.Min, ca.BolusRangeML.Max, ca.BolusMinutes)
			add(NoticeCalciumCRI, SeverityWarning,
				"Calcium CRI: 10%% calcium gluconate %.1f-%.1f mL/hr",
				ca.CRIRangeMLPerH.Min, ca.CRIRangeMLPerH.Max)
		} else {
			add(NoticeCalciumBolus, SeverityCritical,
				"Hypocalcemia: 10%% calcium gluconate bolus %.1f mL over %d minutes, never a rapid push",
				ca.BolusML, ca.BolusMinutes)
			add(NoticeCalciumCRI, SeverityWarning,
				"Calcium CRI: 10%% calcium gluconate %.1f mL/hr", ca.CRIMLPerHr)
		}
	}
	if o := r.Osmolality; o != nil && o.HyperosmolarRisk {
		add(NoticeHHSRisk, SeverityCritical,
			"HHS risk (effective osmolality %.1f mOsm/L): adjust the fluid rate very cautiously", o.EffectiveOsmolality)
	}
	for _, w := range r.Nutrition.Warnings {
		add(NoticeNPCClamped, SeverityWarning, "%s", w)
	}
	if r.Input.Patient.Comorbidities.Liver && r.Input.Choices.AminoAcidProduct != HepaticFormula {
		add(NoticeHepaticFormula, SeverityInfo,
			"Liver disease flagged: consider the hepatic amino acid formula")
	}
	add(NoticePhosphorusWatch, SeverityInfo,
		"Phosphorus %.1f mg/dL is a monitoring value and does not change any dose", r.Input.Labs.Phosphorus)
	return out
}

// Advisory kinds reported by Advisories.
const (
	AdvisoryPotassium  = "potassium"
	AdvisoryCalcium    = "calcium"
	AdvisoryHHS        = "hhs"
	AdvisoryNPCClamped = "npc-clamped"
)

// Advisories lists the kinds of advisory the report raised.
func (r *ClinicalReport) Advisories() []string {
	var out []string
	if r.Electrolyte.Potassium != nil {
		out = append(out, AdvisoryPotassium)
	}
	if r.Electrolyte.Calcium != nil {
		out = append(out, AdvisoryCalcium)
	}
	if r.Osmolality != nil && r.Osmolality.HyperosmolarRisk {
		out = append(out, AdvisoryHHS)
	}
	if len(r.Nutrition.Warnings) > 0 {
		out = append(out, AdvisoryNPCClamped)
	}
	return out
}
