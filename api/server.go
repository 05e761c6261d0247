// Package api exposes a read-only status/history surface over the pipeline,
// replacing the teacher's IDX dashboard API. Route registration follows the
// same Server-struct-with-dependencies shape as the teacher's api.Server;
// routing itself uses echo rather than the teacher's bare http.ServeMux,
// since a broader dependency footprint calls for a router that carries
// middleware (recovery, request logging) out of the box.
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"haka-futures-engine/eventbus"
	"haka-futures-engine/orchestrator"
	"haka-futures-engine/persistence"
)

// Server is the read-only HTTP surface over the engine's live and
// historical state.
type Server struct {
	echo    *echo.Echo
	legacy  *persistence.LegacyDB
	broker  *eventbus.Broker
	history *History
}

// NewServer constructs the API server. legacy may be nil if analytics
// queries are unavailable.
func NewServer(legacy *persistence.LegacyDB, broker *eventbus.Broker, history *History) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.Logger())

	s := &Server{echo: e, legacy: legacy, broker: broker, history: history}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.echo.GET("/api/events", func(c echo.Context) error {
		s.broker.ServeHTTP(c.Response(), c.Request())
		return nil
	})
	s.echo.GET("/api/symbols/:symbol/history", s.handleSymbolHistory)
	s.echo.GET("/api/symbols/:symbol/mix", s.handleActionMix)
	s.echo.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
}

// Start blocks serving on port.
func (s *Server) Start(port int) error {
	return s.echo.Start(":" + strconv.Itoa(port))
}

func (s *Server) handleSymbolHistory(c echo.Context) error {
	symbol := c.Param("symbol")
	cycles := s.history.Recent(symbol, 50)
	return c.JSON(http.StatusOK, cycles)
}

func (s *Server) handleActionMix(c echo.Context) error {
	if s.legacy == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "analytics database unavailable"})
	}
	symbol := c.Param("symbol")
	mix, err := s.legacy.RecentActionMix(symbol, 24*time.Hour)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, mix)
}

// History keeps a bounded in-memory ring of recent cycle outcomes per
// symbol, for the API to serve without hitting the database.
type History struct {
	max     int
	symbols map[string][]orchestrator.CycleResult
}

func NewHistory(max int) *History {
	return &History{max: max, symbols: make(map[string][]orchestrator.CycleResult)}
}

// Record appends a cycle result, evicting the oldest entry once max is
// exceeded.
func (h *History) Record(result orchestrator.CycleResult) {
	entries := append(h.symbols[result.Symbol], result)
	if len(entries) > h.max {
		entries = entries[len(entries)-h.max:]
	}
	h.symbols[result.Symbol] = entries
}

// Recent returns up to limit of the most recent entries for a symbol.
func (h *History) Recent(symbol string, limit int) []orchestrator.CycleResult {
	entries := h.symbols[symbol]
	if len(entries) <= limit {
		return entries
	}
	return entries[len(entries)-limit:]
}
