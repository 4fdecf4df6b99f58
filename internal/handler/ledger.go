package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/efreitasn/papertrade/internal/service"
)

// LedgerHandler handles transaction history and leaderboard requests.
type LedgerHandler struct {
	ledger      *service.LedgerService
	leaderboard *service.LeaderboardService
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(ledger *service.LedgerService, leaderboard *service.LeaderboardService) *LedgerHandler {
	return &LedgerHandler{ledger: ledger, leaderboard: leaderboard}
}

type historyResponse struct {
	Transactions []transactionResponse `json:"transactions"`
	Total        int                   `json:"total"`
	Page         int                   `json:"page"`
	Limit        int                   `json:"limit"`
	TotalPages   int                   `json:"total_pages"`
}

type summaryResponse struct {
	TotalTransactions int     `json:"total_transactions"`
	TotalBought       float64 `json:"total_bought"`
	TotalSold         float64 `json:"total_sold"`
	NetInvestment     float64 `json:"net_investment"`
}

// History handles GET /api/users/{user_id}/transactions.
func (h *LedgerHandler) History(w http.ResponseWriter, r *http.Request) {
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
	res, err := h.ledger.History(r.Context(), chi.URLParam(r, "user_id"), service.HistoryQuery{
		Side:   q.Get("type"),
		Symbol: q.Get("symbol"),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		mapError(w, err)
		return
	}

	txs := make([]transactionResponse, len(res.Transactions))
	for i, tx := range res.Transactions {
		txs[i] = toTransaction(tx)
	}
	WriteJSON(w, http.StatusOK, historyResponse{
		Transactions: txs,
		Total:        res.Total,
		Page:         res.Page.Page,
		Limit:        res.Limit,
		TotalPages:   res.TotalPages,
	})
}

// Summary handles GET /api/users/{user_id}/transactions/summary.
func (h *LedgerHandler) Summary(w http.ResponseWriter, r *http.Request) {
	totals, err := h.ledger.Summary(r.Context(), chi.URLParam(r, "user_id"))
	if err != nil {
		mapError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, summaryResponse{
		TotalTransactions: totals.Count,
		TotalBought:       money(totals.TotalBought),
		TotalSold:         money(totals.TotalSold),
		NetInvestment:     money(totals.NetInvestment()),
	})
}

// Leaderboard handles GET /api/leaderboard.
func (h *LedgerHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		mapError(w, err)
		return
	}
	entries, err := h.leaderboard.Top(r.Context(), limit)
	if err != nil {
		mapError(w, err)
		return
	}
	out := make([]leaderboardEntryResponse, len(entries))
	for i := range entries {
		out[i] = toLeaderboardEntry(&entries[i])
	}
	WriteJSON(w, http.StatusOK, map[string]any{"leaderboard": out})
}

// Rank handles GET /api/users/{user_id}/rank.
func (h *LedgerHandler) Rank(w http.ResponseWriter, r *http.Request) {
	entry, err := h.leaderboard.Rank(r.Context(), chi.URLParam(r, "user_id"))
	if err != nil {
		mapError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, toLeaderboardEntry(entry))
}
