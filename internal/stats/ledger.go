package stats

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// TradeRecord is one append-only ledger entry for a settled trade.
type TradeRecord struct {
	Timestamp      time.Time       `json:"timestamp"`
	PairLabel      string          `json:"pair"`
	ProfitQuote    decimal.Decimal `json:"profit_usdt"`
	VolumeQuote    decimal.Decimal `json:"volume_usdt"`
	ProfitPercent  decimal.Decimal `json:"profit_percent"`
	GasCostQuote   decimal.Decimal `json:"gas_cost_usdt"`
	NetProfitQuote decimal.Decimal `json:"net_profit_usdt"`
}

// Snapshot is the durable shape of the ledger. preferred_tokens is
// serialized as a sorted list.
type Snapshot struct {
	TotalPnL           decimal.Decimal `json:"total_pnl"`
	OpportunitiesFound uint64          `json:"opportunities_found"`
	OpportunitiesTaken uint64          `json:"opportunities_taken"`
	TotalVolume        decimal.Decimal `json:"total_volume"`
	Trades             []TradeRecord   `json:"trades"`
	PreferredTokens    []string        `json:"preferred_tokens"`
}

// Store persists ledger snapshots.
type Store interface {
	// Load returns the last saved snapshot, or found=false on first run.
	Load() (snap *Snapshot, found bool, err error)
	Save(snap *Snapshot) error
}

// Ledger is the shared detection/execution record. Every mutation persists
// synchronously before returning, so durable state never lags memory.
// Invariants: OpportunitiesTaken == len(trades), TotalPnL == sum of trade
// profits.
type Ledger struct {
	mu    sync.RWMutex
	store Store

	totalPnL    decimal.Decimal
	found       uint64
	taken       uint64
	totalVolume decimal.Decimal
	trades      []TradeRecord
	preferred   map[string]struct{}
}

func NewLedger(store Store) (*Ledger, error) {
	l := &Ledger{
		store:       store,
		totalPnL:    decimal.Zero,
		totalVolume: decimal.Zero,
		preferred:   make(map[string]struct{}),
	}

	snap, found, err := store.Load()
	if err != nil {
		return nil, err
	}
	if found {
		l.totalPnL = snap.TotalPnL
		l.found = snap.OpportunitiesFound
		l.taken = snap.OpportunitiesTaken
		l.totalVolume = snap.TotalVolume
		l.trades = snap.Trades
		for _, tok := range snap.PreferredTokens {
			l.preferred[strings.ToLower(tok)] = struct{}{}
		}
	}

	return l, nil
}

func (l *Ledger) RecordOpportunityFound() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.found++
	return l.persistLocked()
}

func (l *Ledger) RecordTrade(rec TradeRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.taken++
	l.totalPnL = l.totalPnL.Add(rec.ProfitQuote)
	l.totalVolume = l.totalVolume.Add(rec.VolumeQuote)
	l.trades = append(l.trades, rec)
	return l.persistLocked()
}

// AverageProfitPercent is total P&L per taken opportunity, zero when no
// trades have been recorded.
func (l *Ledger) AverageProfitPercent() decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.taken == 0 {
		return decimal.Zero
	}
	return l.totalPnL.Div(decimal.NewFromUint64(l.taken))
}

func (l *Ledger) TotalPnL() decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.totalPnL
}

func (l *Ledger) OpportunitiesFound() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.found
}

func (l *Ledger) OpportunitiesTaken() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.taken
}

func (l *Ledger) AddPreferredToken(addr string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.preferred[strings.ToLower(addr)] = struct{}{}
	return l.persistLocked()
}

func (l *Ledger) RemovePreferredToken(addr string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.preferred, strings.ToLower(addr))
	return l.persistLocked()
}

func (l *Ledger) IsPreferredToken(addr string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.preferred[strings.ToLower(addr)]
	return ok
}

func (l *Ledger) PreferredTokenCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.preferred)
}

func (l *Ledger) PreferredTokens() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.preferredSortedLocked()
}

// Snapshot returns a deep copy for display or persistence.
func (l *Ledger) Snapshot() *Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.snapshotLocked()
}

func (l *Ledger) snapshotLocked() *Snapshot {
	trades := make([]TradeRecord, len(l.trades))
	copy(trades, l.trades)
	return &Snapshot{
		TotalPnL:           l.totalPnL,
		OpportunitiesFound: l.found,
		OpportunitiesTaken: l.taken,
		TotalVolume:        l.totalVolume,
		Trades:             trades,
		PreferredTokens:    l.preferredSortedLocked(),
	}
}

func (l *Ledger) preferredSortedLocked() []string {
	tokens := make([]string, 0, len(l.preferred))
	for tok := range l.preferred {
		tokens = append(tokens, tok)
	}
	sort.Strings(tokens)
	return tokens
}

func (l *Ledger) persistLocked() error {
	return l.store.Save(l.snapshotLocked())
}
