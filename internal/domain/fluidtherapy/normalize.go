package fluidtherapy

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidInput is matched by every ValidationError.
var ErrInvalidInput = errors.New("invalid input")

// ValidationError names the request field that was rejected.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Reference values used for lab results the request leaves out.
const (
	DefaultNa         = 145.0
	DefaultK          = 4.0
	DefaultCl         = 110.0
	DefaultICa        = 1.2
	DefaultGlucose    = 100.0
	DefaultBUN        = 20.0
	DefaultPhosphorus = 4.0

	DefaultBagSizeML        = 500
	DefaultRERFractionPct   = 33.0
	DefaultDextroseRatioPct = 50.0

	MaxDehydrationPct = 15.0
)

// DefaultAminoAcidDose is the suggested starting dose in g/kg/day.
func DefaultAminoAcidDose(c Comorbidities) float64 {
	if c.Any() {
		return 0.5
	}
	return 1.0
}

// Normalize validates a raw request and fills every optional field with its
// reference default. The first offending field is reported.
func Normalize(req Request) (Input, error) {
	var in Input

	if !finite(req.WeightKg) || req.WeightKg <= 0 {
		return in, invalid("weight_kg", "weight must be a positive number")
	}
	if !finite(req.DehydrationPct) || req.DehydrationPct < 0 || req.DehydrationPct > MaxDehydrationPct {
		return in, invalid("dehydration_pct", "must be between 0 and %.0f", MaxDehydrationPct)
	}

	species := req.Species
	switch species {
	case "":
		species = SpeciesDog
	case SpeciesDog, SpeciesCat:
	default:
		return in, invalid("species", "unknown species %q", req.Species)
	}

	in.Patient = PatientProfile{
		Species:        species,
		WeightKg:       req.WeightKg,
		DehydrationPct: req.DehydrationPct,
		Comorbidities:  Comorbidities{Heart: req.HasHeart, CKD: req.HasCKD, Liver: req.HasLiver},
	}

	labs := []struct {
		field string
		value *float64
		def   float64
		dst   *float64
	}{
		{"na", req.Na, DefaultNa, &in.Labs.Na},
		{"k", req.K, DefaultK, &in.Labs.K},
		{"cl", req.Cl, DefaultCl, &in.Labs.Cl},
		{"ica", req.ICa, DefaultICa, &in.Labs.ICa},
		{"glucose", req.Glucose, DefaultGlucose, &in.Labs.Glucose},
		{"bun", req.BUN, DefaultBUN, &in.Labs.BUN},
		{"phosphorus", req.Phosphorus, DefaultPhosphorus, &in.Labs.Phosphorus},
	}
	for _, l := range labs {
		v := l.def
		if l.value != nil {
			v = *l.value
		}
		if !finite(v) || v < 0 {
			return in, invalid(l.field, "must be a non-negative number")
		}
		*l.dst = v
	}

	bag := DefaultBagSizeML
	if req.BagSizeML != nil {
		bag = *req.BagSizeML
		if !validBagSize(bag) {
			return in, invalid("bag_size_ml", "must be one of %v", BagSizes())
		}
	}

	rer, err := percent("rer_fraction_pct", req.RERFractionPct, DefaultRERFractionPct)
	if err != nil {
		return in, err
	}
	ratio, err := percent("dextrose_ratio_pct", req.DextroseRatioPct, DefaultDextroseRatioPct)
	if err != nil {
		return in, err
	}

	dose := DefaultAminoAcidDose(in.Patient.Comorbidities)
	if req.AminoAcidDose != nil {
		dose = *req.AminoAcidDose
		if !finite(dose) || dose < 0 {
			return in, invalid("amino_acid_dose_g_per_kg_day", "must be a non-negative number")
		}
	}

	product := req.AminoAcidProduct
	if product == "" {
		product = RenalFormula
	}
	if _, ok := product.ConcentrationPct(); !ok {
		return in, invalid("amino_acid_product", "unknown product %q", req.AminoAcidProduct)
	}

	in.Choices = PrescriptionChoices{
		BagSizeML:        bag,
		RERFractionPct:   rer,
		AminoAcidDose:    dose,
		AminoAcidProduct: product,
		DextroseRatioPct: ratio,
	}
	in.Protocol = req.Protocol
	return in, nil
}

func percent(field string, v *float64, def float64) (float64, error) {
	if v == nil {
		return def, nil
	}
	if !finite(*v) || *v < 0 || *v > 100 {
		return 0, invalid(field, "must be between 0 and 100")
	}
	return *v, nil
}

func validBagSize(ml int) bool {
	for _, s := range BagSizes() {
		if s == ml {
			return true
		}
	}
	return false
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
