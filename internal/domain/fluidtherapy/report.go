package fluidtherapy

import (
	"fmt"
	"io"
	"strings"
)

var fluidTypeLabels = map[FluidType]string{
	BufferedCrystalloid:    "Buffered crystalloid (Hartmann's)",
	LowChlorideCrystalloid: "Low-chloride buffered crystalloid (Hartmann's / Plasma-Lyte)",
}

// Label is the display name of the fluid type.
func (f FluidType) Label() string {
	if l, ok := fluidTypeLabels[f]; ok {
		return l
	}
	return string(f)
}

// WriteText renders the report for a terminal, one decimal per value.
func (r *ClinicalReport) WriteText(w io.Writer) error {
	var b strings.Builder
	f := r.Fluid
	n := r.Nutrition

	fmt.Fprintf(&b, "Protocol: %s\n\n", r.Protocol)
	b.WriteString("Fluid plan\n")
	fmt.Fprintf(&b, "  Maintenance:   %.1f mL/day\n", f.MaintenanceVolumeML)
	fmt.Fprintf(&b, "  Deficit:       %.1f mL\n", f.DeficitVolumeML)
	fmt.Fprintf(&b, "  Total:         %.1f mL/day\n", f.TotalVolumeML)
	fmt.Fprintf(&b, "  Rate:          %.1f mL/hr (%d mL bag)\n", f.HourlyRateMLPerHr, f.SelectedBagSizeML)
	fmt.Fprintf(&b, "  Fluid:         %s\n", f.RecommendedFluidType.Label())

	if o := r.Osmolality; o != nil {
		fmt.Fprintf(&b, "  Osmolality:    %.1f mOsm/L\n", o.EffectiveOsmolality)
	}

	b.WriteString("\nParenteral nutrition\n")
	fmt.Fprintf(&b, "  RER:           %.1f kcal/day\n", n.RERKcalPerDay)
	fmt.Fprintf(&b, "  Target:        %.1f kcal/day (%.0f%% RER)\n", n.TargetKcalPerDay, n.RERFractionPct)
	fmt.Fprintf(&b, "  Amino acids:   %.1f mL/day %s (%.1f%%, %.1f g/kg/day)\n",
		n.AminoAcidVolumeML, n.AminoAcidProduct, n.AminoAcidConcentration, n.AminoAcidDose)
	fmt.Fprintf(&b, "  NPC:           %.1f kcal/day\n", n.NonProteinKcal)
	fmt.Fprintf(&b, "  Dextrose 50%%:  %.1f mL\n", n.DextroseVolumeML)
	fmt.Fprintf(&b, "  Lipid 20%%:     %.1f mL\n", n.LipidVolumeML)
	fmt.Fprintf(&b, "  Total PN:      %.1f mL/day\n", n.TotalPNVolumeML)

	if len(r.Notices) > 0 {
		b.WriteString("\nNotices\n")
		for _, nt := range r.Notices {
			fmt.Fprintf(&b, "  [%s] %s\n", strings.ToUpper(string(nt.Severity)), nt.Text)
		}
	}

	b.WriteString("\nFluid overload watch\n")
	for _, s := range r.OverloadWatch {
		fmt.Fprintf(&b, "  [ ] %s\n", s)
	}

	_, err := io.WriteString(w, b.String())
	return err
}
