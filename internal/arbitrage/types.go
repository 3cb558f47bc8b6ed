package arbitrage

import (
	"fmt"
	"math/big"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Pair identifies a two-token market. Tokens are stored sorted by address so
// the same market always produces the same key regardless of venue ordering.
type Pair struct {
	TokenA    common.Address
	TokenB    common.Address
	SymbolA   string
	SymbolB   string
	DecimalsA int
	DecimalsB int
}

func NewPair(tokenA, tokenB common.Address, symbolA, symbolB string, decimalsA, decimalsB int) Pair {
	if strings.ToLower(tokenA.Hex()) > strings.ToLower(tokenB.Hex()) {
		tokenA, tokenB = tokenB, tokenA
		symbolA, symbolB = symbolB, symbolA
		decimalsA, decimalsB = decimalsB, decimalsA
	}
	return Pair{
		TokenA:    tokenA,
		TokenB:    tokenB,
		SymbolA:   symbolA,
		SymbolB:   symbolB,
		DecimalsA: decimalsA,
		DecimalsB: decimalsB,
	}
}

// Key is the canonical lower-cased identity used for map keys and locks
func (p Pair) Key() string {
	return strings.ToLower(p.TokenA.Hex()) + "-" + strings.ToLower(p.TokenB.Hex())
}

func (p Pair) Label() string {
	return fmt.Sprintf("%s/%s", p.SymbolA, p.SymbolB)
}

// ReservePair is an immutable snapshot of a pool's reserves, expressed in the
// pair's canonical token order. Never mutated after creation.
type ReservePair struct {
	ReserveA   *big.Int
	ReserveB   *big.Int
	ObservedAt time.Time
}

// opportunity lifecycle states
type OppState int32

const (
	StateDetected OppState = iota
	StateValidated
	StateExecuting
	StateSettled
	StateRejected
	StateStaleRejected
)

func (s OppState) String() string {
	switch s {
	case StateDetected:
		return "detected"
	case StateValidated:
		return "validated"
	case StateExecuting:
		return "executing"
	case StateSettled:
		return "settled"
	case StateRejected:
		return "rejected"
	case StateStaleRejected:
		return "stale-rejected"
	}
	return "unknown"
}

// Opportunity is a detected price discrepancy between the two venues.
// Read-only after Analyze except for the state word, which is consumed
// exactly once by the execution path.
type Opportunity struct {
	ID   uuid.UUID
	Pair Pair

	VenueBuy  string
	VenueSell string

	PriceBuy      decimal.Decimal
	PriceSell     decimal.Decimal
	ProfitPercent decimal.Decimal

	// base-token amount in smallest units
	OptimalAmountIn *big.Int

	// buy-venue reserves at detection time, for the expected-output
	// computation at submission
	ReservesBuy ReservePair

	VolumeQuote         decimal.Decimal
	ExpectedProfitQuote decimal.Decimal
	GasCostQuote        decimal.Decimal
	NetProfitQuote      decimal.Decimal

	Deadline    time.Time
	MaxSlippage float64

	state int32
}

func (o *Opportunity) State() OppState {
	return OppState(atomic.LoadInt32(&o.state))
}

// transition moves the opportunity between states; fails if another path
// already consumed it. Terminal states never transition again.
func (o *Opportunity) transition(from, to OppState) bool {
	return atomic.CompareAndSwapInt32(&o.state, int32(from), int32(to))
}

// ErrorKind classifies execution failures.
type ErrorKind int

const (
	ErrorKindNone ErrorKind = iota
	// signing/broadcast/estimation failed before any on-chain effect
	ErrorKindSubmission
	// the receipt reported failure, gas was spent
	ErrorKindExecutionFailed
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorKindNone:
		return "none"
	case ErrorKindSubmission:
		return "submission_error"
	case ErrorKindExecutionFailed:
		return "execution_failed"
	}
	return "unknown"
}

// ExecutionResult reports the terminal outcome of one settlement attempt.
type ExecutionResult struct {
	Success bool

	TxRef               string
	GasUsed             uint64
	GasPriceQuote       decimal.Decimal
	RealizedProfitQuote decimal.Decimal

	ErrorKind ErrorKind
	Detail    string
}
