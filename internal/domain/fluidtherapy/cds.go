package fluidtherapy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/vetfluid/vetfluid/internal/platform/cdshooks"
)

const (
	CDSServiceID  = "vet-fluid-therapy"
	CDSHook       = "order-select"
	cdsContextKey = "fluidTherapy"
	cdsSource     = "Veterinary fluid therapy calculator"
)

// RegisterCDSService exposes the calculator as a CDS Hooks service. The hook
// context carries a calculator request under "fluidTherapy".
func RegisterCDSService(h *cdshooks.Handler, svc *Service) {
	h.RegisterService(cdshooks.Service{
		Hook:        CDSHook,
		ID:          CDSServiceID,
		Title:       "Fluid therapy and parenteral nutrition",
		Description: "Computes the fluid plan, electrolyte supplementation and parenteral nutrition for a fluid order",
	}, svc.hook)
	h.RegisterFeedbackHandler(CDSServiceID, svc.feedback)
}

func (s *Service) hook(ctx context.Context, req cdshooks.Request) (*cdshooks.Response, error) {
	raw, ok := req.Context[cdsContextKey]
	if !ok {
		return nil, &cdshooks.ContextError{Expression: "context." + cdsContextKey, Message: "is required"}
	}
	var in Request
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, &cdshooks.ContextError{Expression: "context." + cdsContextKey, Message: "is not a calculator request"}
	}

	report, err := s.Compute(ctx, in)
	if err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			return nil, &cdshooks.ContextError{
				Expression: "context." + cdsContextKey + "." + ve.Field,
				Message:    ve.Message,
			}
		}
		return nil, err
	}
	return &cdshooks.Response{Cards: Cards(report)}, nil
}

func (s *Service) feedback(ctx context.Context, serviceID string, fb []cdshooks.Feedback) error {
	for _, f := range fb {
		s.log(ctx).Info().
			Str("service", serviceID).
			Str("card", f.Card).
			Str("outcome", f.Outcome).
			Int("override_reasons", len(f.OverrideReasons)).
			Msg("cds card feedback")
	}
	return nil
}

// Cards renders a report as CDS cards: the fluid plan first, then one card
// per advisory in report order.
func Cards(r *ClinicalReport) []cdshooks.Card {
	src := cdshooks.Source{Label: cdsSource}
	card := func(indicator, summary, detail string) cdshooks.Card {
		return cdshooks.Card{
			UUID:      uuid.NewString(),
			Summary:   summary,
			Detail:    detail,
			Indicator: indicator,
			Source:    src,
		}
	}

	f := r.Fluid
	cards := []cdshooks.Card{card(cdshooks.IndicatorInfo,
		fmt.Sprintf("%s at %.1f mL/hr", f.RecommendedFluidType.Label(), f.HourlyRateMLPerHr),
		fmt.Sprintf("Maintenance %.1f mL + deficit %.1f mL = %.1f mL over 24 hours in %d mL bags.",
			f.MaintenanceVolumeML, f.DeficitVolumeML, f.TotalVolumeML, f.SelectedBagSizeML),
	)}

	for _, n := range r.Notices {
		switch n.Code {
		case NoticeHypokalemia:
			cards = append(cards, card(cdshooks.IndicatorWarning, "Hypokalemia: supplement KCl", n.Text))
		case NoticeCalciumBolus:
			cards = append(cards, card(cdshooks.IndicatorWarning, "Hypocalcemia: calcium gluconate",
				n.Text+". "+CalciumBolusText+"."))
		case NoticeHHSRisk:
			cards = append(cards, card(cdshooks.IndicatorCritical, "Hyperosmolar hyperglycemic state risk", n.Text))
		case NoticeNPCClamped:
			cards = append(cards, card(cdshooks.IndicatorWarning, "Parenteral nutrition: no non-protein calories", n.Text))
		}
	}
	return cards
}
