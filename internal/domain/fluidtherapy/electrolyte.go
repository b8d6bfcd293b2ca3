package fluidtherapy

import "github.com/vetfluid/vetfluid/internal/domain/protocol"

const (
	// KClMEqPerML is the potassium content of the KCl additive.
	KClMEqPerML = 2.0

	// HypocalcemiaThreshold is the iCa (mmol/L) below which calcium is advised.
	HypocalcemiaThreshold = 1.1

	CalciumBolusMinutes = 20
	CalciumBolusText    = "10% calcium gluconate: give the bolus slowly IV over about 20 minutes while monitoring ECG, never as a rapid push"
)

// Calcium gluconate 10% doses per kg.
var (
	calciumBolusMLPerKg      = 1.0
	calciumCRIMLPerKgHr      = 0.5
	calciumBolusRangeMLPerKg = Range{Min: 0.5, Max: 1.5}
	calciumCRIRangeMLPerKgHr = Range{Min: 0.27, Max: 1.07}
)

// AdvisePotassium returns the KCl volume to add to one bag so the prescribed
// rate stays under the protocol ceiling. It returns nil when k is not low or
// no fluid is running.
func AdvisePotassium(k, weightKg, hourlyRate float64, bagSizeML int, p *protocol.Protocol) *KClRecommendation {
	if hourlyRate <= 0 {
		return nil
	}
	limit, ok := p.SafeLimit(k)
	if !ok {
		return nil
	}
	meq := (limit * weightKg / hourlyRate) * float64(bagSizeML)
	return &KClRecommendation{
		SafeLimitMEqPerKgHr: limit,
		VolumeToAddML:       meq / KClMEqPerML,
		MEqAdded:            meq,
		BagSizeML:           bagSizeML,
	}
}

// AdviseCalcium returns the calcium gluconate bolus and CRI for ionized
// hypocalcemia, or nil when iCa is zero (not measured) or not low.
func AdviseCalcium(ica, weightKg float64, policy protocol.CalciumPolicy) *CalciumRecommendation {
	if ica <= 0 || ica >= HypocalcemiaThreshold {
		return nil
	}
	rec := &CalciumRecommendation{
		Policy:         policy,
		BolusMinutes:   CalciumBolusMinutes,
		Administration: CalciumBolusText,
	}
	switch policy {
	case protocol.CalciumRanged:
		bolus := scaleRange(calciumBolusRangeMLPerKg, weightKg)
		cri := scaleRange(calciumCRIRangeMLPerKgHr, weightKg)
		rec.BolusRangeML = &bolus
		rec.CRIRangeMLPerH = &cri
		rec.BolusML = bolus.Min
		rec.CRIMLPerHr = cri.Min
	default:
		rec.Policy = protocol.CalciumFixed
		rec.BolusML = weightKg * calciumBolusMLPerKg
		rec.CRIMLPerHr = weightKg * calciumCRIMLPerKgHr
	}
	return rec
}

func scaleRange(r Range, f float64) Range {
	return Range{Min: r.Min * f, Max: r.Max * f}
}
