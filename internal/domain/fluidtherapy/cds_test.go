package fluidtherapy

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vetfluid/vetfluid/internal/domain/protocol"
	"github.com/vetfluid/vetfluid/internal/platform/cdshooks"
)

func newCDSServer(t *testing.T) *echo.Echo {
	t.Helper()
	h := cdshooks.NewHandler()
	RegisterCDSService(h, newTestService(t, nil))
	e := echo.New()
	h.RegisterRoutes(e)
	return e
}

func invokeHook(e *echo.Echo, fluidContext string) *httptest.ResponseRecorder {
	body := fmt.Sprintf(`{"hook":"order-select","hookInstance":"7d1c2a4e","context":{"fluidTherapy":%s}}`, fluidContext)
	if fluidContext == "" {
		body = `{"hook":"order-select","hookInstance":"7d1c2a4e","context":{}}`
	}
	req := httptest.NewRequest(http.MethodPost, "/cds-services/"+CDSServiceID, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestCDS_Discovery(t *testing.T) {
	e := newCDSServer(t)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cds-services", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"vet-fluid-therapy"`)
	assert.Contains(t, rec.Body.String(), `"hook":"order-select"`)
}

func TestCDS_CardsForAllAdvisories(t *testing.T) {
	e := newCDSServer(t)
	rec := invokeHook(e, `{"weight_kg":5,"k":1.9,"ica":0.9,"na":165,"glucose":700,"rer_fraction_pct":5,"amino_acid_dose_g_per_kg_day":3}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp cdshooks.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	indicators := make([]string, 0, len(resp.Cards))
	for _, c := range resp.Cards {
		indicators = append(indicators, c.Indicator)
		assert.NotEmpty(t, c.UUID)
		assert.Equal(t, cdsSource, c.Source.Label)
	}
	assert.Equal(t, []string{
		cdshooks.IndicatorInfo,     // fluid plan
		cdshooks.IndicatorWarning,  // hypokalemia
		cdshooks.IndicatorWarning,  // hypocalcemia
		cdshooks.IndicatorCritical, // HHS
		cdshooks.IndicatorWarning,  // NPC clamp
	}, indicators)
	assert.Contains(t, resp.Cards[0].Summary, "mL/hr")
	assert.Contains(t, resp.Cards[2].Detail, "slowly")
}

func TestCDS_OnlyFluidCardWhenNoAdvisory(t *testing.T) {
	e := newCDSServer(t)
	rec := invokeHook(e, `{"weight_kg":12,"dehydration_pct":5}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp cdshooks.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Cards, 1)
	assert.Equal(t, cdshooks.IndicatorInfo, resp.Cards[0].Indicator)
}

func TestCDS_MissingContext(t *testing.T) {
	rec := invokeHook(newCDSServer(t), "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var o cdshooks.OperationOutcome
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &o))
	assert.Equal(t, []string{"context.fluidTherapy"}, o.Issue[0].Expression)
}

func TestCDS_MalformedContext(t *testing.T) {
	rec := invokeHook(newCDSServer(t), `"five kilograms"`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCDS_ValidationErrorNamesField(t *testing.T) {
	rec := invokeHook(newCDSServer(t), `{"weight_kg":0}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var o cdshooks.OperationOutcome
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &o))
	assert.Equal(t, "invalid", o.Issue[0].Code)
	assert.Equal(t, []string{"context.fluidTherapy.weight_kg"}, o.Issue[0].Expression)
}

func TestCDS_Feedback(t *testing.T) {
	e := newCDSServer(t)
	req := httptest.NewRequest(http.MethodPost, "/cds-services/"+CDSServiceID+"/feedback",
		strings.NewReader(`{"feedback":[{"card":"abc","outcome":"overridden","overrideReasons":[{"code":"clinical-judgement"}]}]}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCards_RangedCalcium(t *testing.T) {
	in := mustNormalize(t, Request{WeightKg: 10, ICa: f64(0.8)})
	cards := Cards(Compute(in, protocol.Conservative()))
	require.Len(t, cards, 2)
	assert.Contains(t, cards[1].Detail, "5.0-15.0 mL")
}
