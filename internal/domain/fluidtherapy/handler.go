package fluidtherapy

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/vetfluid/vetfluid/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/fluid-therapy", auth.RequireRole(auth.RoleVeterinarian, auth.RoleTechnician))
	g.POST("/compute", h.Compute)
	g.GET("/reference", h.Reference)
}

func (h *Handler) Compute(c echo.Context) error {
	var req Request
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	report, err := h.svc.Compute(c.Request().Context(), req)
	if err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			return c.JSON(http.StatusUnprocessableEntity, ve)
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, report)
}

// ReferenceData describes the selectable values and lab defaults.
type ReferenceData struct {
	BagSizesML        []int              `json:"bag_sizes_ml"`
	AminoAcidProducts []ProductReference `json:"amino_acid_products"`
	LabDefaults       LabPanel           `json:"lab_defaults"`
	RERFractionPct    float64            `json:"rer_fraction_pct"`
	DextroseRatioPct  float64            `json:"dextrose_ratio_pct"`
	OverloadWatch     []string           `json:"overload_watch"`
}

type ProductReference struct {
	Product          AminoAcidProduct `json:"product"`
	ConcentrationPct float64          `json:"concentration_pct"`
}

// Reference returns the calculator's selectable values.
func Reference() ReferenceData {
	products := make([]ProductReference, 0, len(AminoAcidProducts()))
	for _, p := range AminoAcidProducts() {
		conc, _ := p.ConcentrationPct()
		products = append(products, ProductReference{Product: p, ConcentrationPct: conc})
	}
	return ReferenceData{
		BagSizesML:        BagSizes(),
		AminoAcidProducts: products,
		LabDefaults: LabPanel{
			Na: DefaultNa, K: DefaultK, Cl: DefaultCl, ICa: DefaultICa,
			Glucose: DefaultGlucose, BUN: DefaultBUN, Phosphorus: DefaultPhosphorus,
		},
		RERFractionPct:   DefaultRERFractionPct,
		DextroseRatioPct: DefaultDextroseRatioPct,
		OverloadWatch:    OverloadWatch(),
	}
}

func (h *Handler) Reference(c echo.Context) error {
	return c.JSON(http.StatusOK, Reference())
}
