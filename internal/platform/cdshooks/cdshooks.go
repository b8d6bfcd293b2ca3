// Package cdshooks serves the HL7 CDS Hooks 2.0 REST surface: discovery,
// hook invocation and card feedback.
package cdshooks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// ErrInvalidContext is wrapped by service handlers when the hook context
// cannot be turned into a request. It maps to 400.
var ErrInvalidContext = errors.New("invalid hook context")

// ContextError is an ErrInvalidContext that names the offending context path.
type ContextError struct {
	Expression string
	Message    string
}

func (e *ContextError) Error() string {
	if e.Expression == "" {
		return e.Message
	}
	return e.Expression + ": " + e.Message
}

func (e *ContextError) Is(target error) bool { return target == ErrInvalidContext }

// Card indicators.
const (
	IndicatorInfo     = "info"
	IndicatorWarning  = "warning"
	IndicatorCritical = "critical"
)

// Service describes a single CDS service returned in discovery.
type Service struct {
	Hook              string            `json:"hook"`
	Title             string            `json:"title,omitempty"`
	Description       string            `json:"description"`
	ID                string            `json:"id"`
	Prefetch          map[string]string `json:"prefetch,omitempty"`
	UsageRequirements string            `json:"usageRequirements,omitempty"`
}

// Request is the payload POSTed to invoke a hook. Context is kept raw so each
// service decodes the shape it expects.
type Request struct {
	Hook         string                     `json:"hook"`
	HookInstance string                     `json:"hookInstance"`
	FHIRServer   string                     `json:"fhirServer,omitempty"`
	Context      map[string]json.RawMessage `json:"context"`
	Prefetch     map[string]json.RawMessage `json:"prefetch,omitempty"`
}

// Card is a single card in the hook response.
type Card struct {
	UUID              string       `json:"uuid,omitempty"`
	Summary           string       `json:"summary"`
	Detail            string       `json:"detail,omitempty"`
	Indicator         string       `json:"indicator"`
	Source            Source       `json:"source"`
	Suggestions       []Suggestion `json:"suggestions,omitempty"`
	Links             []Link       `json:"links,omitempty"`
	OverrideReasons   []Coding     `json:"overrideReasons,omitempty"`
	SelectionBehavior string       `json:"selectionBehavior,omitempty"`
}

type Source struct {
	Label string  `json:"label"`
	URL   string  `json:"url,omitempty"`
	Topic *Coding `json:"topic,omitempty"`
}

type Suggestion struct {
	Label         string   `json:"label"`
	UUID          string   `json:"uuid,omitempty"`
	IsRecommended bool     `json:"isRecommended,omitempty"`
	Actions       []Action `json:"actions,omitempty"`
}

type Action struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Resource    any    `json:"resource,omitempty"`
}

type Link struct {
	Label string `json:"label"`
	URL   string `json:"url"`
	Type  string `json:"type"`
}

type Coding struct {
	Code    string `json:"code"`
	System  string `json:"system,omitempty"`
	Display string `json:"display,omitempty"`
}

// Response is returned from hook invocation.
type Response struct {
	Cards         []Card   `json:"cards"`
	SystemActions []Action `json:"systemActions,omitempty"`
}

// Feedback records what the clinician did with a card.
type Feedback struct {
	Card             string   `json:"card"`
	Outcome          string   `json:"outcome"`
	OverrideReasons  []Coding `json:"overrideReasons,omitempty"`
	OutcomeTimestamp string   `json:"outcomeTimestamp,omitempty"`
}

// FeedbackRequest wraps the feedback items posted for a service.
type FeedbackRequest struct {
	Feedback []Feedback `json:"feedback"`
}

// ServiceHandler processes a hook request and returns cards.
type ServiceHandler func(ctx context.Context, req Request) (*Response, error)

// FeedbackHandler processes feedback for a service.
type FeedbackHandler func(ctx context.Context, serviceID string, fb []Feedback) error

// Handler implements the CDS Hooks 2.0 REST API. Services are registered at
// startup; registration is not safe for concurrent use with serving.
type Handler struct {
	services         map[string]Service
	handlers         map[string]ServiceHandler
	feedbackHandlers map[string]FeedbackHandler
	order            []string
}

func NewHandler() *Handler {
	return &Handler{
		services:         make(map[string]Service),
		handlers:         make(map[string]ServiceHandler),
		feedbackHandlers: make(map[string]FeedbackHandler),
	}
}

// RegisterService registers a service and its handler, replacing any service
// with the same ID.
func (h *Handler) RegisterService(svc Service, handler ServiceHandler) {
	if _, exists := h.services[svc.ID]; !exists {
		h.order = append(h.order, svc.ID)
	}
	h.services[svc.ID] = svc
	h.handlers[svc.ID] = handler
}

func (h *Handler) RegisterFeedbackHandler(serviceID string, handler FeedbackHandler) {
	h.feedbackHandlers[serviceID] = handler
}

// RegisterRoutes mounts the CDS Hooks routes on the root Echo instance.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/cds-services", h.Discovery)
	e.POST("/cds-services/:id", h.HandleHook)
	e.POST("/cds-services/:id/feedback", h.HandleFeedback)
}

// Discovery handles GET /cds-services.
func (h *Handler) Discovery(c echo.Context) error {
	services := make([]Service, 0, len(h.order))
	for _, id := range h.order {
		if svc, ok := h.services[id]; ok {
			services = append(services, svc)
		}
	}
	return c.JSON(http.StatusOK, map[string][]Service{
		"services": services,
	})
}

// HandleHook handles POST /cds-services/:id.
func (h *Handler) HandleHook(c echo.Context) error {
	serviceID := c.Param("id")

	svc, ok := h.services[serviceID]
	if !ok {
		return c.JSON(http.StatusNotFound, NotFoundOutcome("CDS Service", serviceID))
	}

	var req Request
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorOutcome(fmt.Sprintf("invalid request body: %v", err)))
	}

	if req.Hook != svc.Hook {
		return c.JSON(http.StatusBadRequest, ErrorOutcome(
			fmt.Sprintf("hook mismatch: request hook %q does not match service hook %q", req.Hook, svc.Hook),
		))
	}

	if req.HookInstance == "" {
		return c.JSON(http.StatusBadRequest, ErrorOutcome("hookInstance is required"))
	}

	handler, ok := h.handlers[serviceID]
	if !ok {
		return c.JSON(http.StatusInternalServerError, InternalErrorOutcome("no handler registered for service"))
	}

	resp, err := handler(c.Request().Context(), req)
	if err != nil {
		var ce *ContextError
		switch {
		case errors.As(err, &ce):
			return c.JSON(http.StatusBadRequest, InvalidOutcome(ce.Expression, ce.Message))
		case errors.Is(err, ErrInvalidContext):
			return c.JSON(http.StatusBadRequest, InvalidOutcome("", err.Error()))
		}
		return c.JSON(http.StatusInternalServerError, InternalErrorOutcome(err.Error()))
	}
	if resp.Cards == nil {
		resp.Cards = []Card{}
	}

	return c.JSON(http.StatusOK, resp)
}

// HandleFeedback handles POST /cds-services/:id/feedback.
func (h *Handler) HandleFeedback(c echo.Context) error {
	serviceID := c.Param("id")

	if _, ok := h.services[serviceID]; !ok {
		return c.JSON(http.StatusNotFound, NotFoundOutcome("CDS Service", serviceID))
	}

	var fb FeedbackRequest
	if err := json.NewDecoder(c.Request().Body).Decode(&fb); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorOutcome(fmt.Sprintf("invalid feedback body: %v", err)))
	}

	handler, ok := h.feedbackHandlers[serviceID]
	if !ok {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	}

	if err := handler(c.Request().Context(), serviceID, fb.Feedback); err != nil {
		return c.JSON(http.StatusInternalServerError, InternalErrorOutcome(err.Error()))
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
