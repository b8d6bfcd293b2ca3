package fluidtherapy

import (
	"fmt"

	"github.com/vetfluid/vetfluid/internal/domain/protocol"
)

// SelectFluidType picks the low-chloride crystalloid for hyperchloremia or
// CKD.
func SelectFluidType(cl float64, ckd bool, p *protocol.Protocol) FluidType {
	if cl > p.ChlorideThreshold || ckd {
		return LowChlorideCrystalloid
	}
	return BufferedCrystalloid
}

// EffectiveOsmolality is 2*Na + glucose/18 + BUN/2.8 in mOsm/L.
func EffectiveOsmolality(na, glucose, bun float64) float64 {
	return 2*na + glucose/18 + bun/2.8
}

// AnalyzeOsmolality returns nil when sodium was not measured.
func AnalyzeOsmolality(labs LabPanel, p *protocol.Protocol) *OsmolalityReport {
	if labs.Na <= 0 {
		return nil
	}
	osm := EffectiveOsmolality(labs.Na, labs.Glucose, labs.BUN)
	r := &OsmolalityReport{EffectiveOsmolality: osm}
	if osm > p.HHSOsmolalityLimit {
		r.Triggers = append(r.Triggers, fmt.Sprintf("effective osmolality > %.0f mOsm/L", p.HHSOsmolalityLimit))
	}
	if p.HHSTrigger == protocol.HHSOsmolalityOrGlucose && labs.Glucose > p.HHSGlucoseLimit {
		r.Triggers = append(r.Triggers, fmt.Sprintf("glucose > %.0f mg/dL", p.HHSGlucoseLimit))
	}
	r.HyperosmolarRisk = len(r.Triggers) > 0
	return r
}
