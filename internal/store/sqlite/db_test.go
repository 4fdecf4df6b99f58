package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/shopspring/decimal"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "papertrade.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

var testTime = time.Date(2025, 1, 1, 9, 30, 0, 0, time.UTC)

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "papertrade.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	ctx := context.Background()
	inst := domain.NewInstrument("AAPL", "Apple Inc.", domain.SectorTechnology, dec("178.50"), testTime)
	if err := db.Instruments().Create(ctx, inst); err != nil {
		t.Fatalf("Create: %v", err)
	}
	db.Close()

	db, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()
	if err := db.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if _, err := db.Instruments().Get(ctx, "AAPL"); err != nil {
		t.Fatalf("instrument lost across reopen: %v", err)
	}
}

func TestInstrumentStore_RoundTrip(t *testing.T) {
	s := openTestDB(t).Instruments()
	ctx := context.Background()

	inst := domain.NewInstrument("AAPL", "Apple Inc.", domain.SectorTechnology, dec("178.50"), testTime)
	inst.MarketCap = "2.8T"
	inst.ApplyTick(dec("180.00"), 500, testTime.Add(5*time.Second), domain.DefaultHistoryLimit)

	if err := s.Create(ctx, inst); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Create(ctx, inst); err != domain.ErrInstrumentAlreadyExists {
		t.Fatalf("expected ErrInstrumentAlreadyExists, got %v", err)
	}

	got, err := s.Get(ctx, "AAPL")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.Price.Equal(dec("180")) || !got.PreviousPrice.Equal(dec("178.50")) {
		t.Fatalf("prices = %s / %s", got.Price, got.PreviousPrice)
	}
	if got.Volume != 500 || got.MarketCap != "2.8T" || got.Sector != domain.SectorTechnology {
		t.Fatalf("got %+v", got)
	}
	if len(got.History) != 2 || !got.History[1].Timestamp.Equal(testTime.Add(5*time.Second)) {
		t.Fatalf("history = %+v", got.History)
	}
	if !got.UpdatedAt.Equal(inst.UpdatedAt) {
		t.Fatalf("UpdatedAt = %v, want %v", got.UpdatedAt, inst.UpdatedAt)
	}

	if _, err := s.Get(ctx, "NOPE"); err != domain.ErrInstrumentNotFound {
		t.Fatalf("expected ErrInstrumentNotFound, got %v", err)
	}
}

func TestInstrumentStore_ApplyAndList(t *testing.T) {
	s := openTestDB(t).Instruments()
	ctx := context.Background()
	for _, sym := range []string{"MSFT", "AAPL"} {
		_ = s.Create(ctx, domain.NewInstrument(sym, sym, domain.SectorTechnology, dec("100"), testTime))
	}

	boom := errors.New("boom")
	if _, err := s.Apply(ctx, "AAPL", func(inst *domain.Instrument) error {
		inst.Price = dec("1")
		return boom
	}); err != boom {
		t.Fatalf("expected boom, got %v", err)
	}

	updated, err := s.Apply(ctx, "AAPL", func(inst *domain.Instrument) error {
		inst.ApplyTick(dec("101"), 10, testTime.Add(time.Second), domain.DefaultHistoryLimit)
		return nil
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !updated.Price.Equal(dec("101")) {
		t.Fatalf("Price = %s, want 101", updated.Price)
	}

	list, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[0].Symbol != "AAPL" || !list[0].Price.Equal(dec("101")) {
		t.Fatalf("list = %+v", list)
	}

	if _, err := s.Apply(ctx, "NOPE", func(*domain.Instrument) error { return nil }); err != domain.ErrInstrumentNotFound {
		t.Fatalf("expected ErrInstrumentNotFound, got %v", err)
	}
}

func TestInstrumentStore_ConcurrentApply(t *testing.T) {
	s := openTestDB(t).Instruments()
	ctx := context.Background()
	_ = s.Create(ctx, domain.NewInstrument("AAPL", "Apple Inc.", domain.SectorTechnology, dec("100"), testTime))

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Apply(ctx, "AAPL", func(inst *domain.Instrument) error {
				inst.Volume++
				return nil
			}); err != nil {
				t.Errorf("Apply: %v", err)
			}
		}()
	}
	wg.Wait()

	got, _ := s.Get(ctx, "AAPL")
	if got.Volume != n {
		t.Fatalf("Volume = %d, want %d", got.Volume, n)
	}
}

func TestUserStore_CommitTrade(t *testing.T) {
	db := openTestDB(t)
	users, ledger := db.Users(), db.Ledger()
	ctx := context.Background()

	if err := users.Create(ctx, domain.NewUser("u1", "alice", domain.DefaultInitialBalance, testTime)); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := users.Create(ctx, domain.NewUser("u2", "alice", domain.DefaultInitialBalance, testTime)); err != domain.ErrUserAlreadyExists {
		t.Fatalf("expected ErrUserAlreadyExists, got %v", err)
	}

	u, _ := users.Get(ctx, "u1")
	stale, _ := users.Get(ctx, "u1")
	u.Balance = dec("82150")
	u.AddShares("AAPL", "Apple Inc.", 100, dec("178.50"))
	tx := &domain.Transaction{
		TransactionID: "t1", UserID: "u1", Symbol: "AAPL", Name: "Apple Inc.",
		Side: domain.SideBuy, Quantity: 100, Price: dec("178.50"),
		Total: dec("17850"), BalanceAfter: dec("82150"), ExecutedAt: testTime,
	}
	if err := users.CommitTrade(ctx, u, tx); err != nil {
		t.Fatalf("CommitTrade: %v", err)
	}
	if u.Version != 1 {
		t.Fatalf("Version = %d, want 1", u.Version)
	}

	got, _ := users.GetByUsername(ctx, "alice")
	if !got.Balance.Equal(dec("82150")) || got.HeldQuantity("AAPL") != 100 || got.Version != 1 {
		t.Fatalf("stored = %+v", got)
	}
	if !got.Holdings["AAPL"].AvgPrice.Equal(dec("178.50")) {
		t.Fatalf("AvgPrice = %s", got.Holdings["AAPL"].AvgPrice)
	}

	stale.Balance = decimal.Zero
	tx2 := *tx
	tx2.TransactionID = "t2"
	if err := users.CommitTrade(ctx, stale, &tx2); err != domain.ErrVersionConflict {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}
	txs, total, err := ledger.ListByUser(ctx, "u1", domain.LedgerFilter{}, 1, 10)
	if err != nil || total != 1 || txs[0].TransactionID != "t1" {
		t.Fatalf("ledger = %v, %d, %v", txs, total, err)
	}
	if !txs[0].BalanceAfter.Equal(dec("82150")) || !txs[0].ExecutedAt.Equal(testTime) {
		t.Fatalf("tx = %+v", txs[0])
	}

	ghost := domain.NewUser("ghost", "ghost", decimal.Zero, testTime)
	if err := users.CommitTrade(ctx, ghost, &tx2); err != domain.ErrUserNotFound {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestUserStore_Watchlist(t *testing.T) {
	users := openTestDB(t).Users()
	ctx := context.Background()
	_ = users.Create(ctx, domain.NewUser("u1", "alice", domain.DefaultInitialBalance, testTime))

	u, err := users.UpdateWatchlist(ctx, "u1", func(list []string) ([]string, error) {
		return append(list, "AAPL"), nil
	})
	if err != nil || !u.Watching("AAPL") {
		t.Fatalf("UpdateWatchlist = %v, %v", u, err)
	}
	if _, err := users.UpdateWatchlist(ctx, "u1", func([]string) ([]string, error) {
		return nil, domain.ErrAlreadyInWatchlist
	}); err != domain.ErrAlreadyInWatchlist {
		t.Fatalf("expected ErrAlreadyInWatchlist, got %v", err)
	}
	got, _ := users.Get(ctx, "u1")
	if len(got.Watchlist) != 1 {
		t.Fatalf("watchlist = %v", got.Watchlist)
	}
}

func TestLedgerStore_PagingAndTotals(t *testing.T) {
	db := openTestDB(t)
	users, ledger := db.Users(), db.Ledger()
	ctx := context.Background()
	_ = users.Create(ctx, domain.NewUser("u1", "alice", domain.DefaultInitialBalance, testTime))

	for i := 0; i < 6; i++ {
		u, _ := users.Get(ctx, "u1")
		side := domain.SideBuy
		if i%3 == 2 {
			side = domain.SideSell
		}
		tx := &domain.Transaction{
			TransactionID: fmt.Sprintf("t%d", i), UserID: "u1", Symbol: "AAPL",
			Side: side, Quantity: 1, Price: dec("10.50"), Total: dec("10.50"),
			BalanceAfter: u.Balance, ExecutedAt: testTime.Add(time.Duration(i) * time.Minute),
		}
		if err := users.CommitTrade(ctx, u, tx); err != nil {
			t.Fatalf("commit %d: %v", i, err)
		}
	}

	page, total, err := ledger.ListByUser(ctx, "u1", domain.LedgerFilter{Side: domain.SideBuy}, 1, 3)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if total != 4 || len(page) != 3 || page[0].TransactionID != "t4" {
		t.Fatalf("page = %v, total %d", page, total)
	}
	page2, _, _ := ledger.ListByUser(ctx, "u1", domain.LedgerFilter{Side: domain.SideBuy}, 2, 3)
	if len(page2) != 1 || page2[0].TransactionID != "t0" {
		t.Fatalf("page2 = %v", page2)
	}

	totals, err := ledger.Totals(ctx, "u1")
	if err != nil {
		t.Fatalf("Totals: %v", err)
	}
	if totals.Count != 6 || !totals.TotalBought.Equal(dec("42")) || !totals.TotalSold.Equal(dec("21")) {
		t.Fatalf("totals = %+v", totals)
	}
}

func TestEventStore(t *testing.T) {
	s := openTestDB(t).Events()
	ctx := context.Background()

	e := &domain.MarketEvent{
		EventID: "e1", Title: "Tech crash", Type: domain.EventNegative,
		Sectors:       []domain.Sector{domain.SectorTechnology, domain.SectorTelecom},
		ImpactPercent: dec("-20"), StartTime: testTime, EndTime: testTime.Add(time.Hour),
		Active: true, CreatedAt: testTime,
	}
	if err := s.Create(ctx, e); err != nil {
		t.Fatalf("Create: %v", err)
	}

	active, err := s.ListActive(ctx, testTime.Add(time.Minute))
	if err != nil || len(active) != 1 {
		t.Fatalf("ListActive = %v, %v", active, err)
	}
	if len(active[0].Sectors) != 2 || !active[0].ImpactPercent.Equal(dec("-20")) {
		t.Fatalf("event = %+v", active[0])
	}
	if later, _ := s.ListActive(ctx, testTime.Add(2*time.Hour)); len(later) != 0 {
		t.Fatalf("expired event listed: %v", later)
	}

	ended, err := s.Deactivate(ctx, "e1", testTime.Add(10*time.Minute))
	if err != nil || ended.Active {
		t.Fatalf("Deactivate = %+v, %v", ended, err)
	}
	if _, err := s.Deactivate(ctx, "nope", testTime); err != domain.ErrEventNotFound {
		t.Fatalf("expected ErrEventNotFound, got %v", err)
	}
	if _, err := s.Get(ctx, "nope"); err != domain.ErrEventNotFound {
		t.Fatalf("expected ErrEventNotFound, got %v", err)
	}
}
