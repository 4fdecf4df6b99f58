package service

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/store"
)

// LeaderboardLimit caps the ranking length.
const LeaderboardLimit = 100

// LeaderboardEntry is one ranked user. Users with equal total value share
// a rank.
type LeaderboardEntry struct {
	Rank           int
	UserID         string
	Username       string
	Balance        decimal.Decimal
	TotalValue     decimal.Decimal
	Invested       decimal.Decimal
	NetGain        decimal.Decimal
	NetGainPercent decimal.Decimal
	Holdings       int
	MemberSince    time.Time
}

// LeaderboardService ranks users by total portfolio value.
type LeaderboardService struct {
	users          store.Users
	instruments    store.Instruments
	initialBalance decimal.Decimal
}

// NewLeaderboardService creates a LeaderboardService.
func NewLeaderboardService(users store.Users, instruments store.Instruments, initialBalance decimal.Decimal) *LeaderboardService {
	return &LeaderboardService{
		users:          users,
		instruments:    instruments,
		initialBalance: initialBalance,
	}
}

// Top returns the best limit users. limit is clamped to
// [1, LeaderboardLimit]; zero selects LeaderboardLimit.
func (s *LeaderboardService) Top(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 || limit > LeaderboardLimit {
		limit = LeaderboardLimit
	}
	entries, err := s.rank(ctx)
	if err != nil {
		return nil, err
	}
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Rank returns the entry of one user.
func (s *LeaderboardService) Rank(ctx context.Context, userID string) (*LeaderboardEntry, error) {
	if _, err := s.users.Get(ctx, userID); err != nil {
		return nil, err
	}
	entries, err := s.rank(ctx)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if entries[i].UserID == userID {
			return &entries[i], nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (s *LeaderboardService) rank(ctx context.Context) ([]LeaderboardEntry, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}
	prices, err := priceMap(ctx, s.instruments)
	if err != nil {
		return nil, err
	}

	entries := make([]LeaderboardEntry, 0, len(users))
	for _, u := range users {
		v := domain.Valuate(u, prices, s.initialBalance)
		entries = append(entries, LeaderboardEntry{
			UserID:         u.UserID,
			Username:       u.Username,
			Balance:        u.Balance,
			TotalValue:     v.TotalValue,
			Invested:       v.TotalInvested,
			NetGain:        v.NetGain,
			NetGainPercent: v.NetGainPercent,
			Holdings:       len(u.Holdings),
			MemberSince:    u.CreatedAt,
		})
	}

	// users arrive in creation order, which breaks ties.
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].TotalValue.GreaterThan(entries[j].TotalValue)
	})
	for i := range entries {
		if i > 0 && entries[i].TotalValue.Equal(entries[i-1].TotalValue) {
			entries[i].Rank = entries[i-1].Rank
			continue
		}
		entries[i].Rank = i + 1
	}
	return entries, nil
}
