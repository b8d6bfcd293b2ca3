package fluidtherapy

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vetfluid/vetfluid/internal/domain/protocol"
)

func mustNormalize(t *testing.T, req Request) Input {
	t.Helper()
	in, err := Normalize(req)
	require.NoError(t, err)
	return in
}

func f64(v float64) *float64 { return &v }
func intp(v int) *int         { return &v }

func TestCalculateFluidPlan_WorkedExample(t *testing.T) {
	plan := CalculateFluidPlan(PatientProfile{WeightKg: 5}, 500)

	assert.Equal(t, 250.0, plan.MaintenanceVolumeML)
	assert.Equal(t, 0.0, plan.DeficitVolumeML)
	assert.Equal(t, 250.0, plan.TotalVolumeML)
	assert.InDelta(t, 10.4, plan.HourlyRateMLPerHr, 0.05)
	assert.Equal(t, 500, plan.SelectedBagSizeML)
}

func TestCalculateFluidPlan_Formula(t *testing.T) {
	weights := []float64{0.8, 2.5, 5, 12.3, 40}
	dehydration := []float64{0, 3, 7.5, 15}
	for _, w := range weights {
		for _, d := range dehydration {
			for _, heart := range []bool{false, true} {
				p := PatientProfile{WeightKg: w, DehydrationPct: d, Comorbidities: Comorbidities{Heart: heart}}
				plan := CalculateFluidPlan(p, 1000)

				factor := 1.0
				if heart {
					factor = 0.5
				}
				want := w*50*factor + w*(d/100)*1000
				assert.InDelta(t, want, plan.TotalVolumeML, 1e-9)
				assert.Equal(t, plan.TotalVolumeML/24, plan.HourlyRateMLPerHr)
				assert.Equal(t, plan.MaintenanceVolumeML+plan.DeficitVolumeML, plan.TotalVolumeML)
			}
		}
	}
}

func TestCalculateFluidPlan_HeartDiseaseHalvesMaintenance(t *testing.T) {
	plan := CalculateFluidPlan(PatientProfile{WeightKg: 10, DehydrationPct: 5, Comorbidities: Comorbidities{Heart: true}}, 500)
	assert.Equal(t, 250.0, plan.MaintenanceVolumeML)
	assert.Equal(t, 500.0, plan.DeficitVolumeML)
}

func TestAdvisePotassium_WorkedExample(t *testing.T) {
	p := protocol.Default()
	plan := CalculateFluidPlan(PatientProfile{WeightKg: 5}, 500)

	// Tier bounds are exclusive, so the 0.5 ceiling applies below 2.0.
	rec := AdvisePotassium(1.9, 5, plan.HourlyRateMLPerHr, 500, p)
	require.NotNil(t, rec)
	assert.Equal(t, 0.5, rec.SafeLimitMEqPerKgHr)
	assert.InDelta(t, 120.0, rec.MEqAdded, 1e-9)
	assert.InDelta(t, 60.0, rec.VolumeToAddML, 1e-9)
	assert.Equal(t, 500, rec.BagSizeML)

	// With the displayed, rounded rate the volume is about 60.1 mL.
	rounded := AdvisePotassium(1.9, 5, 10.4, 500, p)
	assert.InDelta(t, 60.1, rounded.VolumeToAddML, 0.05)
}

func TestAdvisePotassium_Tiers(t *testing.T) {
	p := protocol.Default()
	tests := []struct {
		k    float64
		want float64
	}{
		{1.5, 0.5},
		{1.99, 0.5},
		{2.0, 0.35},
		{2.49, 0.35},
		{2.5, 0.22},
		{3.0, 0.12},
		{3.49, 0.12},
	}
	for _, tt := range tests {
		rec := AdvisePotassium(tt.k, 5, 10, 500, p)
		require.NotNil(t, rec, "k=%v", tt.k)
		assert.Equal(t, tt.want, rec.SafeLimitMEqPerKgHr, "k=%v", tt.k)
	}
}

func TestAdvisePotassium_AbsentAtCeilingOrWithoutRate(t *testing.T) {
	p := protocol.Default()
	assert.Nil(t, AdvisePotassium(3.5, 5, 10, 500, p))
	assert.Nil(t, AdvisePotassium(4.2, 5, 10, 500, p))
	assert.Nil(t, AdvisePotassium(2.0, 5, 0, 500, p))
}

func TestAdvisePotassium_MonotoneAsKFalls(t *testing.T) {
	for _, p := range protocol.Builtins() {
		prev := 0.0
		for k := 3.45; k > 0; k -= 0.05 {
			rec := AdvisePotassium(k, 7, 12, 1000, p)
			require.NotNil(t, rec)
			assert.GreaterOrEqual(t, rec.VolumeToAddML, prev, "%s k=%.2f", p.Name, k)
			prev = rec.VolumeToAddML
		}
	}
}

func TestAdviseCalcium_Fixed(t *testing.T) {
	rec := AdviseCalcium(0.9, 5, protocol.CalciumFixed)
	require.NotNil(t, rec)
	assert.Equal(t, protocol.CalciumFixed, rec.Policy)
	assert.InDelta(t, 5.0, rec.BolusML, 1e-9)
	assert.InDelta(t, 2.5, rec.CRIMLPerHr, 1e-9)
	assert.Nil(t, rec.BolusRangeML)
	assert.Equal(t, CalciumBolusMinutes, rec.BolusMinutes)
	assert.Contains(t, rec.Administration, "slowly")
}

func TestAdviseCalcium_Ranged(t *testing.T) {
	rec := AdviseCalcium(0.9, 10, protocol.CalciumRanged)
	require.NotNil(t, rec)
	require.NotNil(t, rec.BolusRangeML)
	require.NotNil(t, rec.CRIRangeMLPerH)
	assert.InDelta(t, 5.0, rec.BolusRangeML.Min, 1e-9)
	assert.InDelta(t, 15.0, rec.BolusRangeML.Max, 1e-9)
	assert.InDelta(t, 2.7, rec.CRIRangeMLPerH.Min, 1e-9)
	assert.InDelta(t, 10.7, rec.CRIRangeMLPerH.Max, 1e-9)
	assert.Equal(t, rec.BolusRangeML.Min, rec.BolusML)
}

func TestAdviseCalcium_Window(t *testing.T) {
	assert.Nil(t, AdviseCalcium(0, 5, protocol.CalciumFixed))
	assert.Nil(t, AdviseCalcium(1.1, 5, protocol.CalciumFixed))
	assert.Nil(t, AdviseCalcium(1.3, 5, protocol.CalciumFixed))
	assert.NotNil(t, AdviseCalcium(1.09, 5, protocol.CalciumFixed))
	assert.NotNil(t, AdviseCalcium(0.01, 5, protocol.CalciumFixed))
}

func TestSelectFluidType(t *testing.T) {
	def := protocol.Default()
	assert.Equal(t, BufferedCrystalloid, SelectFluidType(110, false, def))
	assert.Equal(t, BufferedCrystalloid, SelectFluidType(120, false, def))
	assert.Equal(t, LowChlorideCrystalloid, SelectFluidType(120.5, false, def))
	assert.Equal(t, LowChlorideCrystalloid, SelectFluidType(100, true, def))

	cons := protocol.Conservative()
	assert.Equal(t, LowChlorideCrystalloid, SelectFluidType(117, false, cons))
}

func TestAnalyzeOsmolality(t *testing.T) {
	p := protocol.Default()

	normal := AnalyzeOsmolality(LabPanel{Na: 145, Glucose: 100, BUN: 20}, p)
	require.NotNil(t, normal)
	assert.InDelta(t, 2*145+100.0/18+20/2.8, normal.EffectiveOsmolality, 1e-9)
	assert.False(t, normal.HyperosmolarRisk)
	assert.Empty(t, normal.Triggers)

	osm := AnalyzeOsmolality(LabPanel{Na: 170, Glucose: 300, BUN: 40}, p)
	assert.True(t, osm.HyperosmolarRisk)
	assert.Equal(t, []string{"effective osmolality > 350 mOsm/L"}, osm.Triggers)

	glucose := AnalyzeOsmolality(LabPanel{Na: 140, Glucose: 650, BUN: 20}, p)
	assert.True(t, glucose.HyperosmolarRisk)
	assert.Equal(t, []string{"glucose > 600 mg/dL"}, glucose.Triggers)

	assert.Nil(t, AnalyzeOsmolality(LabPanel{Na: 0, Glucose: 900}, p))
}

func TestAnalyzeOsmolality_OsmolalityOnlyTrigger(t *testing.T) {
	p := protocol.Conservative()
	r := AnalyzeOsmolality(LabPanel{Na: 140, Glucose: 650, BUN: 20}, p)
	require.NotNil(t, r)
	assert.False(t, r.HyperosmolarRisk)

	for na := 100.0; na < 200; na += 3.7 {
		r := AnalyzeOsmolality(LabPanel{Na: na, Glucose: 150, BUN: 25}, p)
		assert.Equal(t, r.EffectiveOsmolality > 350, r.HyperosmolarRisk, "na=%v", na)
	}
}

func TestPlanNutrition_WorkedExample(t *testing.T) {
	plan := PlanNutrition(5, PrescriptionChoices{
		RERFractionPct:   33,
		AminoAcidDose:    1.0,
		AminoAcidProduct: RenalFormula,
		DextroseRatioPct: 50,
	})

	assert.InDelta(t, 234.1, plan.RERKcalPerDay, 0.05)
	assert.InDelta(t, 77.3, plan.TargetKcalPerDay, 0.1)
	assert.InDelta(t, 20.0, plan.AminoAcidKcal, 1e-9)
	assert.InDelta(t, 89.3, plan.AminoAcidVolumeML, 0.05)
	assert.InDelta(t, 57.3, plan.NonProteinKcal, 0.1)
	assert.InDelta(t, 16.9, plan.DextroseVolumeML, 0.1)
	assert.InDelta(t, 14.3, plan.LipidVolumeML, 0.05)
	assert.InDelta(t, plan.AminoAcidVolumeML+plan.DextroseVolumeML+plan.LipidVolumeML, plan.TotalPNVolumeML, 1e-9)
	assert.Equal(t, 5.6, plan.AminoAcidConcentration)
	assert.Empty(t, plan.Warnings)
}

func TestPlanNutrition_ClampsNonProteinCalories(t *testing.T) {
	plan := PlanNutrition(5, PrescriptionChoices{
		RERFractionPct:   5,
		AminoAcidDose:    3,
		AminoAcidProduct: HighConcentration,
		DextroseRatioPct: 50,
	})
	assert.Equal(t, 0.0, plan.NonProteinKcal)
	assert.Equal(t, 0.0, plan.DextroseVolumeML)
	assert.Equal(t, 0.0, plan.LipidVolumeML)
	require.Len(t, plan.Warnings, 1)
	assert.Contains(t, plan.Warnings[0], "exceed the target")
}

func TestPlanNutrition_Properties(t *testing.T) {
	for _, w := range []float64{0.5, 3, 8.2, 25, 60} {
		for _, rer := range []float64{0, 10, 33, 70, 100} {
			for _, dose := range []float64{0, 0.5, 1, 4} {
				for _, ratio := range []float64{0, 25, 50, 80, 100} {
					plan := PlanNutrition(w, PrescriptionChoices{
						RERFractionPct:   rer,
						AminoAcidDose:    dose,
						AminoAcidProduct: HepaticFormula,
						DextroseRatioPct: ratio,
					})
					assert.GreaterOrEqual(t, plan.NonProteinKcal, 0.0)
					back := plan.DextroseVolumeML*1.7 + plan.LipidVolumeML*2.0
					assert.InDelta(t, plan.NonProteinKcal, back, 1e-9)
					assert.False(t, math.IsNaN(plan.TotalPNVolumeML))
				}
			}
		}
	}
}

func TestCompute_FullReport(t *testing.T) {
	in := mustNormalize(t, Request{
		WeightKg: 5,
		K:        f64(1.9),
		ICa:      f64(0.9),
	})
	r := Compute(in, protocol.Default())

	assert.Equal(t, protocol.DefaultName, r.Protocol)
	assert.Equal(t, protocol.DefaultName, r.Input.Protocol)
	assert.Equal(t, 250.0, r.Fluid.TotalVolumeML)
	assert.Equal(t, BufferedCrystalloid, r.Fluid.RecommendedFluidType)
	require.NotNil(t, r.Electrolyte.Potassium)
	assert.InDelta(t, 60.0, r.Electrolyte.Potassium.VolumeToAddML, 1e-9)
	require.NotNil(t, r.Electrolyte.Calcium)
	assert.InDelta(t, 5.0, r.Electrolyte.Calcium.BolusML, 1e-9)
	require.NotNil(t, r.Osmolality)
	assert.False(t, r.Osmolality.HyperosmolarRisk)
	assert.Len(t, r.OverloadWatch, 3)

	codes := noticeCodes(r)
	assert.Equal(t, []string{NoticeHypokalemia, NoticeCalciumBolus, NoticeCalciumCRI, NoticePhosphorusWatch}, codes)
	assert.Equal(t, []string{AdvisoryPotassium, AdvisoryCalcium}, r.Advisories())
	assert.Contains(t, r.Notices[0].Text, "add 60.0 mL KCl")
	assert.Contains(t, r.Notices[0].Text, "500 mL bag")
}

func TestCompute_NoAdvisoriesWithReferenceLabs(t *testing.T) {
	r := Compute(mustNormalize(t, Request{WeightKg: 12, DehydrationPct: 5}), protocol.Default())
	assert.Nil(t, r.Electrolyte.Potassium)
	assert.Nil(t, r.Electrolyte.Calcium)
	assert.Empty(t, r.Advisories())
	assert.Equal(t, []string{NoticePhosphorusWatch}, noticeCodes(r))
}

func TestCompute_HHSAndHepaticNotices(t *testing.T) {
	in := mustNormalize(t, Request{
		WeightKg: 4,
		HasLiver: true,
		Na:       f64(160),
		Glucose:  f64(700),
		BUN:      f64(60),
	})
	r := Compute(in, protocol.Default())

	codes := noticeCodes(r)
	assert.Contains(t, codes, NoticeHHSRisk)
	assert.Contains(t, codes, NoticeHepaticFormula)
	assert.Contains(t, r.Advisories(), AdvisoryHHS)
	for _, n := range r.Notices {
		if n.Code == NoticeHHSRisk {
			assert.Equal(t, SeverityCritical, n.Severity)
		}
	}
}

func TestCompute_RangedCalciumNoticeText(t *testing.T) {
	in := mustNormalize(t, Request{WeightKg: 10, ICa: f64(0.8)})
	r := Compute(in, protocol.Conservative())
	require.NotNil(t, r.Electrolyte.Calcium)
	assert.Equal(t, protocol.CalciumRanged, r.Electrolyte.Calcium.Policy)
	assert.Contains(t, r.Notices[0].Text, "5.0-15.0 mL over 20 minutes")
	assert.Contains(t, r.Notices[1].Text, "2.7-10.7 mL/hr")
}

func TestCompute_NPCClampNotice(t *testing.T) {
	in := mustNormalize(t, Request{WeightKg: 5, RERFractionPct: f64(5), AminoAcidDose: f64(3)})
	r := Compute(in, protocol.Default())
	assert.Contains(t, noticeCodes(r), NoticeNPCClamped)
	assert.Contains(t, r.Advisories(), AdvisoryNPCClamped)
}

func TestCompute_HepaticProductSuppressesHint(t *testing.T) {
	in := mustNormalize(t, Request{WeightKg: 5, HasLiver: true, AminoAcidProduct: HepaticFormula})
	r := Compute(in, protocol.Default())
	assert.NotContains(t, noticeCodes(r), NoticeHepaticFormula)
	assert.Equal(t, 0.5, r.Nutrition.AminoAcidDose)
}

func noticeCodes(r *ClinicalReport) []string {
	out := make([]string, 0, len(r.Notices))
	for _, n := range r.Notices {
		out = append(out, n.Code)
	}
	return out
}
