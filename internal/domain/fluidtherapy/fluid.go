package fluidtherapy

const (
	maintenanceMLPerKgDay = 50.0
	heartDiseaseFactor    = 0.5
)

// CalculateFluidPlan returns daily and hourly crystalloid volumes. The fluid
// type is left for SelectFluidType.
func CalculateFluidPlan(p PatientProfile, bagSizeML int) FluidPlan {
	maintenance := p.WeightKg * maintenanceMLPerKgDay
	if p.Comorbidities.Heart {
		maintenance *= heartDiseaseFactor
	}
	deficit := p.WeightKg * (p.DehydrationPct / 100) * 1000
	total := maintenance + deficit
	return FluidPlan{
		MaintenanceVolumeML: maintenance,
		DeficitVolumeML:     deficit,
		TotalVolumeML:       total,
		HourlyRateMLPerHr:   total / 24,
		SelectedBagSizeML:   bagSizeML,
	}
}
