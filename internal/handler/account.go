package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/efreitasn/papertrade/internal/service"
)

// AccountHandler handles HTTP requests for users, portfolios, and
// watchlists.
type AccountHandler struct {
	accounts *service.AccountService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accounts *service.AccountService) *AccountHandler {
	return &AccountHandler{accounts: accounts}
}

type registerRequest struct {
	Username string `json:"username"`
}

type tradeRequest struct {
	Symbol   string `json:"symbol"`
	Quantity int64  `json:"quantity"`
}

type watchlistResponse struct {
	Message   string   `json:"message"`
	Watchlist []string `json:"watchlist"`
}

// Register handles POST /api/users.
func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	u, err := h.accounts.Register(r.Context(), req.Username)
	if err != nil {
		mapError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, toUser(u))
}

// GetUser handles GET /api/users/{user_id}.
func (h *AccountHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.accounts.GetUser(r.Context(), chi.URLParam(r, "user_id"))
	if err != nil {
		mapError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, toUser(u))
}

// Portfolio handles GET /api/users/{user_id}/portfolio.
func (h *AccountHandler) Portfolio(w http.ResponseWriter, r *http.Request) {
	v, err := h.accounts.Portfolio(r.Context(), chi.URLParam(r, "user_id"))
	if err != nil {
		mapError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, toPortfolio(v))
}

// Buy handles POST /api/users/{user_id}/portfolio/buy.
func (h *AccountHandler) Buy(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	res, err := h.accounts.Buy(r.Context(), chi.URLParam(r, "user_id"), req.Symbol, req.Quantity)
	if err != nil {
		mapError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, toTrade("Purchase successful", res))
}

// Sell handles POST /api/users/{user_id}/portfolio/sell.
func (h *AccountHandler) Sell(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	res, err := h.accounts.Sell(r.Context(), chi.URLParam(r, "user_id"), req.Symbol, req.Quantity)
	if err != nil {
		mapError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, toTrade("Sale successful", res))
}

// Holding handles GET /api/users/{user_id}/portfolio/{symbol}.
func (h *AccountHandler) Holding(w http.ResponseWriter, r *http.Request) {
	detail, err := h.accounts.Holding(r.Context(), chi.URLParam(r, "user_id"), chi.URLParam(r, "symbol"))
	if err != nil {
		mapError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, toHoldingDetail(detail))
}

// Watchlist handles GET /api/users/{user_id}/watchlist.
func (h *AccountHandler) Watchlist(w http.ResponseWriter, r *http.Request) {
	stocks, err := h.accounts.Watchlist(r.Context(), chi.URLParam(r, "user_id"))
	if err != nil {
		mapError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"watchlist": toStocks(stocks)})
}

// AddToWatchlist handles POST /api/users/{user_id}/watchlist/{symbol}.
func (h *AccountHandler) AddToWatchlist(w http.ResponseWriter, r *http.Request) {
	list, err := h.accounts.AddToWatchlist(r.Context(), chi.URLParam(r, "user_id"), chi.URLParam(r, "symbol"))
	if err != nil {
		mapError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, watchlistResponse{Message: "Added to watchlist", Watchlist: list})
}

// RemoveFromWatchlist handles DELETE /api/users/{user_id}/watchlist/{symbol}.
func (h *AccountHandler) RemoveFromWatchlist(w http.ResponseWriter, r *http.Request) {
	list, err := h.accounts.RemoveFromWatchlist(r.Context(), chi.URLParam(r, "user_id"), chi.URLParam(r, "symbol"))
	if err != nil {
		mapError(w, err)
		return
	}
	if list == nil {
		list = []string{}
	}
	WriteJSON(w, http.StatusOK, watchlistResponse{Message: "Removed from watchlist", Watchlist: list})
}
