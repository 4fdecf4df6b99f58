package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/engine"
	"github.com/efreitasn/papertrade/internal/service"
)

const timeFormat = time.RFC3339

func money(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeFormat)
}

type pricePointResponse struct {
	Price     float64 `json:"price"`
	Timestamp string  `json:"timestamp"`
}

// stockResponse is a stock in listings. History is only set on the
// single-stock endpoint.
type stockResponse struct {
	Symbol        string               `json:"symbol"`
	Name          string               `json:"name"`
	Sector        string               `json:"sector"`
	Price         float64              `json:"price"`
	PreviousPrice float64              `json:"previous_price"`
	Change        float64              `json:"change"`
	ChangePercent float64              `json:"change_percent"`
	Volume        int64                `json:"volume"`
	MarketCap     string               `json:"market_cap,omitempty"`
	Description   string               `json:"description,omitempty"`
	History       []pricePointResponse `json:"history,omitempty"`
	UpdatedAt     string               `json:"updated_at"`
}

func toStock(inst *domain.Instrument, withHistory bool) stockResponse {
	resp := stockResponse{
		Symbol:        inst.Symbol,
		Name:          inst.Name,
		Sector:        string(inst.Sector),
		Price:         money(inst.Price),
		PreviousPrice: money(inst.PreviousPrice),
		Change:        money(inst.Change),
		ChangePercent: money(inst.ChangePercent),
		Volume:        inst.Volume,
		MarketCap:     inst.MarketCap,
		Description:   inst.Description,
		UpdatedAt:     formatTime(inst.UpdatedAt),
	}
	if withHistory {
		resp.History = make([]pricePointResponse, len(inst.History))
		for i, p := range inst.History {
			resp.History[i] = pricePointResponse{Price: money(p.Price), Timestamp: formatTime(p.Timestamp)}
		}
	}
	return resp
}

func toStocks(insts []*domain.Instrument) []stockResponse {
	out := make([]stockResponse, len(insts))
	for i, inst := range insts {
		out[i] = toStock(inst, false)
	}
	return out
}

type holdingResponse struct {
	Symbol   string  `json:"symbol"`
	Name     string  `json:"name"`
	Quantity int64   `json:"quantity"`
	AvgPrice float64 `json:"avg_price"`
}

type userResponse struct {
	UserID    string            `json:"user_id"`
	Username  string            `json:"username"`
	Balance   float64           `json:"balance"`
	Holdings  []holdingResponse `json:"holdings"`
	Watchlist []string          `json:"watchlist"`
	CreatedAt string            `json:"created_at"`
}

func toUser(u *domain.User) userResponse {
	holdings := make([]holdingResponse, 0, len(u.Holdings))
	for _, h := range u.SortedHoldings() {
		holdings = append(holdings, holdingResponse{
			Symbol:   h.Symbol,
			Name:     h.Name,
			Quantity: h.Quantity,
			AvgPrice: money(h.AvgPrice),
		})
	}
	watchlist := u.Watchlist
	if watchlist == nil {
		watchlist = []string{}
	}
	return userResponse{
		UserID:    u.UserID,
		Username:  u.Username,
		Balance:   money(u.Balance),
		Holdings:  holdings,
		Watchlist: watchlist,
		CreatedAt: formatTime(u.CreatedAt),
	}
}

type transactionResponse struct {
	TransactionID string  `json:"transaction_id"`
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	Type          string  `json:"type"`
	Quantity      int64   `json:"quantity"`
	Price         float64 `json:"price"`
	Total         float64 `json:"total"`
	BalanceAfter  float64 `json:"balance_after"`
	Timestamp     string  `json:"timestamp"`
}

func toTransaction(tx *domain.Transaction) transactionResponse {
	return transactionResponse{
		TransactionID: tx.TransactionID,
		Symbol:        tx.Symbol,
		Name:          tx.Name,
		Type:          string(tx.Side),
		Quantity:      tx.Quantity,
		Price:         money(tx.Price),
		Total:         money(tx.Total),
		BalanceAfter:  money(tx.BalanceAfter),
		Timestamp:     formatTime(tx.ExecutedAt),
	}
}

type tradeResponse struct {
	Message     string              `json:"message"`
	Transaction transactionResponse `json:"transaction"`
	Balance     float64             `json:"balance"`
	Holding     *holdingResponse    `json:"holding"`
}

func toTrade(message string, res *engine.TradeResult) tradeResponse {
	resp := tradeResponse{
		Message:     message,
		Transaction: toTransaction(res.Transaction),
		Balance:     money(res.Balance),
	}
	if h := res.Holding; h != nil {
		resp.Holding = &holdingResponse{
			Symbol:   h.Symbol,
			Name:     h.Name,
			Quantity: h.Quantity,
			AvgPrice: money(h.AvgPrice),
		}
	}
	return resp
}

type positionResponse struct {
	Symbol       string  `json:"symbol"`
	Name         string  `json:"name"`
	Quantity     int64   `json:"quantity"`
	AvgPrice     float64 `json:"avg_price"`
	CurrentPrice float64 `json:"current_price"`
	CurrentValue float64 `json:"current_value"`
	Invested     float64 `json:"invested"`
	PnL          float64 `json:"pnl"`
	PnLPercent   float64 `json:"pnl_percent"`
}

type portfolioResponse struct {
	Portfolio      []positionResponse `json:"portfolio"`
	Balance        float64            `json:"balance"`
	HoldingsValue  float64            `json:"holdings_value"`
	TotalValue     float64            `json:"total_value"`
	TotalInvested  float64            `json:"total_invested"`
	TotalPnL       float64            `json:"total_pnl"`
	NetGain        float64            `json:"net_gain"`
	NetGainPercent float64            `json:"net_gain_percent"`
	InitialBalance float64            `json:"initial_balance"`
}

func toPortfolio(v *domain.Valuation) portfolioResponse {
	positions := make([]positionResponse, len(v.Positions))
	for i, p := range v.Positions {
		positions[i] = positionResponse{
			Symbol:       p.Symbol,
			Name:         p.Name,
			Quantity:     p.Quantity,
			AvgPrice:     money(p.AvgPrice),
			CurrentPrice: money(p.CurrentPrice),
			CurrentValue: money(p.CurrentValue),
			Invested:     money(p.Invested),
			PnL:          money(p.PnL),
			PnLPercent:   money(p.PnLPercent),
		}
	}
	return portfolioResponse{
		Portfolio:      positions,
		Balance:        money(v.Balance),
		HoldingsValue:  money(v.HoldingsValue),
		TotalValue:     money(v.TotalValue),
		TotalInvested:  money(v.TotalInvested),
		TotalPnL:       money(v.TotalPnL),
		NetGain:        money(v.NetGain),
		NetGainPercent: money(v.NetGainPercent),
		InitialBalance: money(v.InitialBalance),
	}
}

type holdingDetailResponse struct {
	Owned        bool     `json:"owned"`
	Symbol       string   `json:"symbol"`
	Quantity     int64    `json:"quantity"`
	AvgPrice     *float64 `json:"avg_price"`
	CurrentPrice float64  `json:"current_price"`
	CurrentValue float64  `json:"current_value"`
	PnL          float64  `json:"pnl"`
	PnLPercent   float64  `json:"pnl_percent"`
}

func toHoldingDetail(h *service.HoldingDetail) holdingDetailResponse {
	resp := holdingDetailResponse{
		Owned:        h.Owned,
		Symbol:       h.Symbol,
		Quantity:     h.Quantity,
		CurrentPrice: money(h.CurrentPrice),
		CurrentValue: money(h.CurrentValue),
		PnL:          money(h.PnL),
		PnLPercent:   money(h.PnLPercent),
	}
	if h.Owned {
		avg := money(h.AvgPrice)
		resp.AvgPrice = &avg
	}
	return resp
}

type eventResponse struct {
	EventID       string   `json:"event_id"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Type          string   `json:"type"`
	Sectors       []string `json:"sectors"`
	ImpactPercent float64  `json:"impact_percent"`
	StartTime     string   `json:"start_time"`
	EndTime       string   `json:"end_time"`
	Active        bool     `json:"active"`
}

func toEvent(e *domain.MarketEvent) eventResponse {
	sectors := make([]string, len(e.Sectors))
	for i, s := range e.Sectors {
		sectors[i] = string(s)
	}
	return eventResponse{
		EventID:       e.EventID,
		Title:         e.Title,
		Description:   e.Description,
		Type:          string(e.Type),
		Sectors:       sectors,
		ImpactPercent: money(e.ImpactPercent),
		StartTime:     formatTime(e.StartTime),
		EndTime:       formatTime(e.EndTime),
		Active:        e.Active,
	}
}

type leaderboardEntryResponse struct {
	Rank           int     `json:"rank"`
	UserID         string  `json:"user_id"`
	Username       string  `json:"username"`
	Balance        float64 `json:"balance"`
	PortfolioValue float64 `json:"portfolio_value"`
	Invested       float64 `json:"invested"`
	PnL            float64 `json:"pnl"`
	PnLPercent     float64 `json:"pnl_percent"`
	Holdings       int     `json:"holdings"`
	MemberSince    string  `json:"member_since"`
}

func toLeaderboardEntry(e *service.LeaderboardEntry) leaderboardEntryResponse {
	return leaderboardEntryResponse{
		Rank:           e.Rank,
		UserID:         e.UserID,
		Username:       e.Username,
		Balance:        money(e.Balance),
		PortfolioValue: money(e.TotalValue),
		Invested:       money(e.Invested),
		PnL:            money(e.NetGain),
		PnLPercent:     money(e.NetGainPercent),
		Holdings:       e.Holdings,
		MemberSince:    formatTime(e.MemberSince),
	}
}

type simulationResponse struct {
	Running    bool   `json:"running"`
	IntervalMS int64  `json:"interval_ms"`
	Ticks      int64  `json:"ticks"`
	LastTick   string `json:"last_tick,omitempty"`
	Clients    int    `json:"clients"`
}
