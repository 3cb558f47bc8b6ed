package bot

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/qlagarde/dex-arb/internal/arbitrage"
	"github.com/qlagarde/dex-arb/internal/eth"
	"github.com/qlagarde/dex-arb/internal/scanner"
)

// ErrConnectivity halts automatic operation; it is never retried silently.
var ErrConnectivity = errors.New("chain client unreachable")

// Gate is the two-phase validator.
type Gate interface {
	Analyze(ctx context.Context, opp *arbitrage.Opportunity) (bool, string)
	VerifyAndExecute(ctx context.Context, opp *arbitrage.Opportunity) (*arbitrage.ExecutionResult, error)
}

// Connectivity probes the chain client.
type Connectivity interface {
	IsConnected(ctx context.Context) bool
}

// Outcome is the observed result of one tracked execution. Executions are
// never fire-and-forget: every outcome lands on the Results channel.
type Outcome struct {
	Opportunity *arbitrage.Opportunity
	Result      *arbitrage.ExecutionResult
	Err         error
}

// Runner drives the periodic detection loop and dispatches validated
// opportunities to automatic or manual execution.
type Runner struct {
	scan    *scanner.Scanner
	gate    Gate
	conn    Connectivity
	markets []*scanner.Market

	interval       time.Duration
	minVolumeQuote decimal.Decimal
	autoMode       bool
	log            zerolog.Logger

	running  atomic.Bool
	scanning atomic.Bool

	pending chan *arbitrage.Opportunity
	results chan Outcome
	wg      sync.WaitGroup
}

func NewRunner(
	scan *scanner.Scanner,
	gate Gate,
	conn Connectivity,
	markets []*scanner.Market,
	interval time.Duration,
	minVolumeQuote decimal.Decimal,
	autoMode bool,
	log zerolog.Logger,
) *Runner {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	r := &Runner{
		scan:           scan,
		gate:           gate,
		conn:           conn,
		markets:        markets,
		interval:       interval,
		minVolumeQuote: minVolumeQuote,
		autoMode:       autoMode,
		log:            log.With().Str("component", "runner").Logger(),
		pending:        make(chan *arbitrage.Opportunity, 16),
		results:        make(chan Outcome, 16),
	}
	// the loop starts enabled; a ToggleRunning before Run is honored
	r.running.Store(true)
	return r
}

// Pending delivers validated opportunities awaiting manual confirmation.
func (r *Runner) Pending() <-chan *arbitrage.Opportunity {
	return r.pending
}

// Results delivers the terminal outcome of every dispatched execution.
func (r *Runner) Results() <-chan Outcome {
	return r.results
}

// ToggleRunning flips the scan loop on or off and reports the new state.
func (r *Runner) ToggleRunning() bool {
	for {
		cur := r.running.Load()
		if r.running.CompareAndSwap(cur, !cur) {
			return !cur
		}
	}
}

// Run blocks until ctx is canceled or connectivity is lost. It honors the
// running flag as-is, so a toggle made before the loop starts holds.
// Detection ticks
// never overlap: a slow pass makes the next tick a no-op rather than piling
// up, and in-flight executions run on their own goroutines so they never
// delay a tick.
func (r *Runner) Run(ctx context.Context) error {
	if !r.conn.IsConnected(ctx) {
		return ErrConnectivity
	}

	defer r.wg.Wait()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.log.Info().
		Int("markets", len(r.markets)).
		Dur("interval", r.interval).
		Bool("auto", r.autoMode).
		Msg("detection loop started")

	for {
		select {
		case <-ctx.Done():
			r.log.Info().Msg("detection loop stopped")
			return nil

		case <-ticker.C:
			if !r.running.Load() {
				continue
			}
			if !r.conn.IsConnected(ctx) {
				return ErrConnectivity
			}
			if !r.scanning.CompareAndSwap(false, true) {
				// previous pass still running
				continue
			}
			r.wg.Add(1)
			go func() {
				defer r.wg.Done()
				defer r.scanning.Store(false)
				r.scanPass(ctx)
			}()
		}
	}
}

// scanPass runs one detection pass over every tracked market. Failures on a
// single market are logged and skipped; the pass continues.
func (r *Runner) scanPass(ctx context.Context) {
	for _, m := range r.markets {
		if ctx.Err() != nil {
			return
		}
		if err := r.scanMarket(ctx, m); err != nil {
			r.log.Warn().Err(err).Str("pair", m.Pair.Label()).Msg("market scan skipped")
		}
	}
}

func (r *Runner) scanMarket(ctx context.Context, m *scanner.Market) error {
	uniRes, err := r.scan.GetReserves(ctx, m.Pools[eth.Uniswap.Name])
	if err != nil {
		return err
	}
	sushiRes, err := r.scan.GetReserves(ctx, m.Pools[eth.Sushiswap.Name])
	if err != nil {
		return err
	}

	opp, found := arbitrage.FindOpportunity(
		m.Pair,
		eth.Uniswap.Name, eth.Sushiswap.Name,
		uniRes, sushiRes,
		r.minVolumeQuote,
	)
	if !found {
		return nil
	}

	accepted, reason := r.gate.Analyze(ctx, opp)
	if !accepted {
		r.log.Debug().Str("pair", m.Pair.Label()).Str("reason", reason).Msg("opportunity rejected")
		return nil
	}

	if r.autoMode {
		r.dispatch(ctx, opp)
		return nil
	}

	select {
	case r.pending <- opp:
	default:
		r.log.Warn().Str("pair", m.Pair.Label()).Msg("pending queue full, dropping opportunity")
	}
	return nil
}

// dispatch runs one execution as a tracked unit of work.
func (r *Runner) dispatch(ctx context.Context, opp *arbitrage.Opportunity) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		result, err := r.gate.VerifyAndExecute(ctx, opp)
		select {
		case r.results <- Outcome{Opportunity: opp, Result: result, Err: err}:
		case <-ctx.Done():
		}
	}()
}

// ExecuteManually is the human-confirmation path; it converges on the same
// revalidation gate as automatic execution.
func (r *Runner) ExecuteManually(ctx context.Context, opp *arbitrage.Opportunity) (*arbitrage.ExecutionResult, error) {
	return r.gate.VerifyAndExecute(ctx, opp)
}
