package fluidtherapy

import (
	"fmt"
	"math"
)

const (
	rerCoefficient    = 70.0
	rerExponent       = 0.75
	proteinKcalPerG   = 4.0
	dextroseKcalPerML = 1.7 // 50% dextrose
	lipidKcalPerML    = 2.0 // 20% lipid emulsion
)

// RestingEnergy returns RER in kcal/day.
func RestingEnergy(weightKg float64) float64 {
	return rerCoefficient * math.Pow(weightKg, rerExponent)
}

// PlanNutrition builds the parenteral admixture. Non-protein calories are
// clamped at zero with a warning when amino acids alone exceed the target.
func PlanNutrition(weightKg float64, c PrescriptionChoices) NutritionPlan {
	conc, _ := c.AminoAcidProduct.ConcentrationPct()
	rer := RestingEnergy(weightKg)
	target := rer * c.RERFractionPct / 100

	plan := NutritionPlan{
		RERKcalPerDay:          rer,
		RERFractionPct:         c.RERFractionPct,
		TargetKcalPerDay:       target,
		AminoAcidDose:          c.AminoAcidDose,
		AminoAcidProduct:       c.AminoAcidProduct,
		AminoAcidConcentration: conc,
		AminoAcidKcal:          weightKg * c.AminoAcidDose * proteinKcalPerG,
		DextroseRatioPct:       c.DextroseRatioPct,
	}
	if conc > 0 {
		plan.AminoAcidVolumeML = weightKg * c.AminoAcidDose / conc * 100
	}

	plan.NonProteinKcal = target - plan.AminoAcidKcal
	if plan.NonProteinKcal < 0 {
		plan.NonProteinKcal = 0
		plan.Warnings = append(plan.Warnings, fmt.Sprintf(
			"amino acid calories (%.1f kcal) exceed the target (%.1f kcal); raise the RER fraction or lower the amino acid dose",
			plan.AminoAcidKcal, target))
	}

	plan.DextroseVolumeML = plan.NonProteinKcal * (c.DextroseRatioPct / 100) / dextroseKcalPerML
	plan.LipidVolumeML = plan.NonProteinKcal * ((100 - c.DextroseRatioPct) / 100) / lipidKcalPerML
	plan.TotalPNVolumeML = plan.AminoAcidVolumeML + plan.DextroseVolumeML + plan.LipidVolumeML
	return plan
}
