package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/revolis/allpremarkets/internal/domain/models"
	"github.com/revolis/allpremarkets/internal/domain/service"
	"github.com/revolis/allpremarkets/internal/usecase"
	xhttp "github.com/revolis/allpremarkets/pkg/http"
	xlogger "github.com/revolis/allpremarkets/pkg/logger"
	"github.com/revolis/allpremarkets/pkg/util"
)

// maxUpdateBody caps raw adapter payloads accepted over HTTP.
const maxUpdateBody = 1 << 20

// RuleLoader produces a fresh rule set, typically by re-reading the
// config file.
type RuleLoader func() ([]models.SpreadRule, error)

// Engine is what the HTTP surface needs from the spread engine.
type Engine interface {
	service.EngineStatus
	service.UpdateSubmitter
	service.RuleReloader
}

// StatusHandler serves engine introspection, HTTP ingestion and rule
// reloads.
type StatusHandler struct {
	logger *xlogger.Logger
	engine Engine
	loader RuleLoader
	hub    *StreamHub
}

// NewStatusHandler creates the handler. loader and hub may be nil, which
// disables rule reloads and the alert stream.
func NewStatusHandler(logger *xlogger.Logger, engine Engine, loader RuleLoader, hub *StreamHub) *StatusHandler {
	return &StatusHandler{logger: logger, engine: engine, loader: loader, hub: hub}
}

func (h *StatusHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	g := e.Group("/api")
	g.GET("/venues", h.Venues)
	g.GET("/alerts", h.Alerts)
	g.GET("/rules", h.Rules)
	g.GET("/states", h.States)
	g.POST("/updates/:venue", h.SubmitUpdate)
	g.POST("/rules/reload", h.ReloadRules)
	if h.hub != nil {
		g.GET("/stream", h.hub.Serve)
	}
}

func (h *StatusHandler) Health(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"status": "ok",
		"rules":  len(h.engine.Rules()),
	})
}

func (h *StatusHandler) Venues(c echo.Context) error {
	req := &models.VenuesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	maxAge := util.ParseDurationDefault(req.MaxAge, 30*time.Second)

	rows := make([]models.VenueState, 0)
	for _, vs := range h.engine.Venues(maxAge) {
		if req.Venue != "" && string(vs.Quote.Venue) != req.Venue {
			continue
		}
		if req.StaleOnly && !vs.Stale {
			continue
		}
		rows = append(rows, vs)
	}
	return xhttp.ListResponse(c, rows, len(rows))
}

func (h *StatusHandler) Alerts(c echo.Context) error {
	req := &models.AlertsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	var since time.Time
	if req.Since != "" {
		t, ok := util.ParseTime(req.Since)
		if !ok {
			return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("invalid since %q", req.Since))
		}
		since = t
	}

	var events []models.AlertEvent
	if req.Symbol != "" {
		events = h.engine.AlertsForSymbol(req.Symbol, req.Limit)
	} else {
		events = h.engine.RecentAlerts(req.Limit)
	}

	rows := make([]models.AlertEvent, 0, len(events))
	for _, ev := range events {
		if !since.IsZero() && ev.CreatedAt.Before(since) {
			continue
		}
		rows = append(rows, ev)
	}
	return xhttp.ListResponse(c, rows, len(rows))
}

func (h *StatusHandler) Rules(c echo.Context) error {
	rules := h.engine.Rules()
	return xhttp.ListResponse(c, rules, len(rules))
}

func (h *StatusHandler) States(c echo.Context) error {
	states := h.engine.AlertStates()
	return xhttp.ListResponse(c, states, len(states))
}

// SubmitUpdate accepts one raw adapter payload for the venue in the path.
func (h *StatusHandler) SubmitUpdate(c echo.Context) error {
	venue, err := models.ParseVenue(c.Param("venue"))
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("%v", err))
	}

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxUpdateBody+1))
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("read body: %v", err))
	}
	if len(body) > maxUpdateBody {
		return xhttp.AppErrorResponse(c, xhttp.NewAppError("ERR_TOO_LARGE", "body",
			fmt.Sprintf("payload exceeds %d bytes", maxUpdateBody), http.StatusRequestEntityTooLarge))
	}

	n, err := h.engine.SubmitRawUpdate(venue, body)
	if err != nil {
		if errors.Is(err, usecase.ErrEngineStopped) {
			return xhttp.AppErrorResponse(c, xhttp.UnavailableError("engine is shutting down"))
		}
		h.logger.Error("submit update failed", xlogger.String("venue", string(venue)), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalErrorf("submit update"))
	}
	return xhttp.AcceptedResponse(c, map[string]int{"accepted": n})
}

// ReloadRules swaps in the rule set produced by the loader.
func (h *StatusHandler) ReloadRules(c echo.Context) error {
	if h.loader == nil {
		return xhttp.AppErrorResponse(c, xhttp.UnavailableError("rule reload is not configured"))
	}
	rules, err := h.loader()
	if err != nil {
		h.logger.Warn("rule reload rejected", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("reload rules: %v", err))
	}
	h.engine.ReplaceRules(rules)
	return xhttp.SuccessResponse(c, map[string]int{"rules": len(rules)})
}
