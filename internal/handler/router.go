package handler

import (
	"bufio"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/efreitasn/papertrade/internal/service"
)

// Services bundles the services the router exposes.
type Services struct {
	Accounts    *service.AccountService
	Market      *service.MarketService
	Ledger      *service.LedgerService
	Leaderboard *service.LeaderboardService
	Events      *service.EventService
}

// Options configures the router's outer surface.
type Options struct {
	// WebSocket serves /ws. It may be nil.
	WebSocket http.Handler
	// Clients reports connected subscribers in the simulation status.
	Clients ClientCounter
	// CORSOrigins lists allowed origins; "*" allows any.
	CORSOrigins []string
}

// NewRouter creates a chi router with all routes registered, request
// logging, CORS, and Content-Type validation middleware.
func NewRouter(svc Services, opts Options, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(middleware.Recoverer)
	r.Use(requestLogging(logger))

	accountH := NewAccountHandler(svc.Accounts)
	ledgerH := NewLedgerHandler(svc.Ledger, svc.Leaderboard)
	marketH := NewMarketHandler(svc.Market, svc.Events, opts.Clients)

	// Health check.
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if opts.WebSocket != nil {
		r.Handle("/ws", opts.WebSocket)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(contentTypeJSON)

		// User routes.
		r.Post("/users", accountH.Register)
		r.Route("/users/{user_id}", func(r chi.Router) {
			r.Get("/", accountH.GetUser)
			r.Get("/portfolio", accountH.Portfolio)
			r.Post("/portfolio/buy", accountH.Buy)
			r.Post("/portfolio/sell", accountH.Sell)
			r.Get("/portfolio/{symbol}", accountH.Holding)
			r.Get("/watchlist", accountH.Watchlist)
			r.Post("/watchlist/{symbol}", accountH.AddToWatchlist)
			r.Delete("/watchlist/{symbol}", accountH.RemoveFromWatchlist)
			r.Get("/transactions", ledgerH.History)
			r.Get("/transactions/summary", ledgerH.Summary)
			r.Get("/rank", ledgerH.Rank)
		})

		// Stock routes.
		r.Get("/stocks", marketH.ListStocks)
		r.Get("/stocks/search/{query}", marketH.Search)
		r.Get("/stocks/sectors", marketH.Sectors)
		r.Get("/stocks/movers", marketH.Movers)
		r.Get("/stocks/prices", marketH.Prices)
		r.Get("/stocks/{symbol}", marketH.GetStock)

		// Market routes.
		r.Get("/market/stats", marketH.Stats)
		r.Get("/market/events", marketH.ListEvents)
		r.Post("/market/events", marketH.CreateEvent)
		r.Delete("/market/events/{event_id}", marketH.EndEvent)
		r.Get("/market/simulation", marketH.SimulationStatus)
		r.Post("/market/simulation/start", marketH.StartSimulation)
		r.Post("/market/simulation/stop", marketH.StopSimulation)

		r.Get("/leaderboard", ledgerH.Leaderboard)
	})

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})
	return c.Handler(r)
}

// requestLogging returns middleware that logs each request's method, path,
// status code, and duration using slog.
func requestLogging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

// Hijack lets the websocket upgrade take over the connection.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// contentTypeJSON is middleware that validates Content-Type for POST, PUT,
// and PATCH requests that carry a body. If the Content-Type header doesn't
// start with "application/json", it returns 400 Bad Request before the
// handler runs.
func contentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			ct := r.Header.Get("Content-Type")
			if r.ContentLength != 0 && (ct == "" || !strings.HasPrefix(ct, "application/json")) {
				WriteError(w, http.StatusBadRequest, "invalid_request",
					"Content-Type must be application/json")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
