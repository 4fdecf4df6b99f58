package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/service"
)

// ClientCounter reports how many subscribers are connected.
type ClientCounter interface {
	ClientCount() int
}

// MarketHandler handles stock queries, market events, and simulation
// control.
type MarketHandler struct {
	market  *service.MarketService
	events  *service.EventService
	clients ClientCounter
}

// NewMarketHandler creates a new MarketHandler. clients may be nil.
func NewMarketHandler(market *service.MarketService, events *service.EventService, clients ClientCounter) *MarketHandler {
	return &MarketHandler{market: market, events: events, clients: clients}
}

type stockListResponse struct {
	Stocks     []stockResponse `json:"stocks"`
	Total      int             `json:"total"`
	Page       int             `json:"page"`
	Limit      int             `json:"limit"`
	TotalPages int             `json:"total_pages"`
}

type moversResponse struct {
	Gainers []stockResponse `json:"gainers"`
	Losers  []stockResponse `json:"losers"`
}

type sectorStatsResponse struct {
	Sector    string  `json:"sector"`
	Count     int     `json:"count"`
	AvgChange float64 `json:"avg_change"`
}

type marketStatsResponse struct {
	TotalStocks  int                   `json:"total_stocks"`
	MarketChange float64               `json:"market_change"`
	Sectors      []sectorStatsResponse `json:"sectors"`
}

type createEventRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Type        string   `json:"type"`
	Sectors     []string `json:"sectors"`
	Impact      float64  `json:"impact"`
	DurationMS  int64    `json:"duration_ms"`
}

type createEventResponse struct {
	eventResponse
	Affected int `json:"affected"`
}

type startSimulationRequest struct {
	IntervalMS int64 `json:"interval_ms"`
}

// ListStocks handles GET /api/stocks.
func (h *MarketHandler) ListStocks(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page")
	if err != nil {
		mapError(w, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		mapError(w, err)
		return
	}

	q := r.URL.Query()
	res, err := h.market.List(r.Context(), service.StockQuery{
		Sector: q.Get("sector"),
		Sort:   service.StockSort(q.Get("sort")),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		mapError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, stockListResponse{
		Stocks:     toStocks(res.Stocks),
		Total:      res.Total,
		Page:       res.Page.Page,
		Limit:      res.Limit,
		TotalPages: res.TotalPages,
	})
}

// GetStock handles GET /api/stocks/{symbol}.
func (h *MarketHandler) GetStock(w http.ResponseWriter, r *http.Request) {
	inst, err := h.market.Get(r.Context(), chi.URLParam(r, "symbol"))
	if err != nil {
		mapError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, toStock(inst, true))
}

// Search handles GET /api/stocks/search/{query}.
func (h *MarketHandler) Search(w http.ResponseWriter, r *http.Request) {
	insts, err := h.market.Search(r.Context(), chi.URLParam(r, "query"))
	if err != nil {
		mapError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, toStocks(insts))
}

// Sectors handles GET /api/stocks/sectors.
func (h *MarketHandler) Sectors(w http.ResponseWriter, r *http.Request) {
	sectors, err := h.market.Sectors(r.Context())
	if err != nil {
		mapError(w, err)
		return
	}
	out := make([]string, len(sectors))
	for i, s := range sectors {
		out[i] = string(s)
	}
	WriteJSON(w, http.StatusOK, out)
}

// Movers handles GET /api/stocks/movers.
func (h *MarketHandler) Movers(w http.ResponseWriter, r *http.Request) {
	movers, err := h.market.Movers(r.Context())
	if err != nil {
		mapError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, moversResponse{
		Gainers: toStocks(movers.Gainers),
		Losers:  toStocks(movers.Losers),
	})
}

// Prices handles GET /api/stocks/prices.
func (h *MarketHandler) Prices(w http.ResponseWriter, r *http.Request) {
	prices, err := h.market.Prices(r.Context())
	if err != nil {
		mapError(w, err)
		return
	}
	out := make(map[string]float64, len(prices))
	for sym, p := range prices {
		out[sym] = money(p)
	}
	WriteJSON(w, http.StatusOK, out)
}

// Stats handles GET /api/market/stats.
func (h *MarketHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.market.Stats(r.Context())
	if err != nil {
		mapError(w, err)
		return
	}
	sectors := make([]sectorStatsResponse, len(stats.Sectors))
	for i, s := range stats.Sectors {
		sectors[i] = sectorStatsResponse{Sector: string(s.Sector), Count: s.Count, AvgChange: money(s.AvgChange)}
	}
	WriteJSON(w, http.StatusOK, marketStatsResponse{
		TotalStocks:  stats.TotalStocks,
		MarketChange: money(stats.MarketChange),
		Sectors:      sectors,
	})
}

// ListEvents handles GET /api/market/events.
func (h *MarketHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.events.Active(r.Context())
	if err != nil {
		mapError(w, err)
		return
	}
	out := make([]eventResponse, len(events))
	for i, e := range events {
		out[i] = toEvent(e)
	}
	WriteJSON(w, http.StatusOK, out)
}

// CreateEvent handles POST /api/market/events.
func (h *MarketHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req createEventRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.DurationMS < 0 {
		mapError(w, &domain.ValidationError{Message: "duration_ms must be positive"})
		return
	}

	res, err := h.events.Create(r.Context(), service.CreateEventRequest{
		Title:         req.Title,
		Description:   req.Description,
		Type:          req.Type,
		Sectors:       req.Sectors,
		ImpactPercent: req.Impact,
		Duration:      time.Duration(req.DurationMS) * time.Millisecond,
	})
	if err != nil {
		mapError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, createEventResponse{
		eventResponse: toEvent(res.Event),
		Affected:      res.Affected,
	})
}

// EndEvent handles DELETE /api/market/events/{event_id}.
func (h *MarketHandler) EndEvent(w http.ResponseWriter, r *http.Request) {
	e, err := h.events.End(r.Context(), chi.URLParam(r, "event_id"))
	if err != nil {
		mapError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"message": "Event ended", "event": toEvent(e)})
}

// SimulationStatus handles GET /api/market/simulation.
func (h *MarketHandler) SimulationStatus(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.simulationResponse())
}

// StartSimulation handles POST /api/market/simulation/start. The body is
// optional.
func (h *MarketHandler) StartSimulation(w http.ResponseWriter, r *http.Request) {
	var req startSimulationRequest
	if r.ContentLength != 0 {
		if err := ParseJSON(r, &req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
	}
	if req.IntervalMS < 0 {
		mapError(w, &domain.ValidationError{Message: "interval_ms must be positive"})
		return
	}

	started, err := h.market.StartSimulation(r.Context(), time.Duration(req.IntervalMS)*time.Millisecond)
	if err != nil {
		mapError(w, err)
		return
	}
	status := http.StatusOK
	if started {
		status = http.StatusAccepted
	}
	WriteJSON(w, status, h.simulationResponse())
}

// StopSimulation handles POST /api/market/simulation/stop.
func (h *MarketHandler) StopSimulation(w http.ResponseWriter, r *http.Request) {
	h.market.StopSimulation()
	WriteJSON(w, http.StatusOK, h.simulationResponse())
}

func (h *MarketHandler) simulationResponse() simulationResponse {
	st := h.market.SimulationStatus()
	resp := simulationResponse{
		Running:    st.Running,
		IntervalMS: st.Interval.Milliseconds(),
		Ticks:      st.Ticks,
		LastTick:   formatTime(st.LastTick),
	}
	if h.clients != nil {
		resp.Clients = h.clients.ClientCount()
	}
	return resp
}
