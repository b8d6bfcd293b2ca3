package fluidtherapy

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/vetfluid/vetfluid/internal/domain/protocol"
)

// ProtocolResolver looks up a dosing protocol by name; "" means the default.
type ProtocolResolver interface {
	Resolve(name string) (*protocol.Protocol, error)
}

// Recorder receives computation metrics.
type Recorder interface {
	ComputationDone(protocol string, advisories []string)
	ValidationFailed(field string)
}

type nopRecorder struct{}

func (nopRecorder) ComputationDone(string, []string) {}
func (nopRecorder) ValidationFailed(string)          {}

type Service struct {
	protocols ProtocolResolver
	metrics   Recorder
	logger    zerolog.Logger
}

func NewService(protocols ProtocolResolver, metrics Recorder, logger zerolog.Logger) *Service {
	if metrics == nil {
		metrics = nopRecorder{}
	}
	return &Service{protocols: protocols, metrics: metrics, logger: logger}
}

// Compute validates the request, resolves its protocol and runs the engine.
// Validation problems are returned as *ValidationError.
func (s *Service) Compute(ctx context.Context, req Request) (*ClinicalReport, error) {
	in, err := Normalize(req)
	if err != nil {
		s.rejected(ctx, err)
		return nil, err
	}
	p, err := s.protocols.Resolve(in.Protocol)
	if err != nil {
		if errors.Is(err, protocol.ErrNotFound) {
			err = invalid("protocol", "unknown protocol %q", in.Protocol)
			s.rejected(ctx, err)
		}
		return nil, err
	}

	report := Compute(in, p)
	kinds := report.Advisories()
	s.metrics.ComputationDone(report.Protocol, kinds)
	s.log(ctx).Debug().
		Str("protocol", report.Protocol).
		Strs("advisories", kinds).
		Str("fluid_type", string(report.Fluid.RecommendedFluidType)).
		Msg("fluid therapy computed")
	return report, nil
}

func (s *Service) rejected(ctx context.Context, err error) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		s.metrics.ValidationFailed(ve.Field)
		s.log(ctx).Debug().Str("field", ve.Field).Msg("fluid therapy request rejected")
	}
}

// log prefers the request-scoped logger installed by the HTTP middleware.
func (s *Service) log(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &s.logger
}
