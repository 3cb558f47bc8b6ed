package bot

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qlagarde/dex-arb/internal/arbitrage"
)

type fakeGate struct {
	result *arbitrage.ExecutionResult
	err    error
	calls  int
}

func (g *fakeGate) Analyze(context.Context, *arbitrage.Opportunity) (bool, string) {
	return true, ""
}

func (g *fakeGate) VerifyAndExecute(context.Context, *arbitrage.Opportunity) (*arbitrage.ExecutionResult, error) {
	g.calls++
	return g.result, g.err
}

type fakeConn struct{ connected bool }

func (c *fakeConn) IsConnected(context.Context) bool { return c.connected }

func newTestRunner(gate Gate, conn Connectivity) *Runner {
	return NewRunner(nil, gate, conn, nil, time.Second, decimal.NewFromInt(25000), true, zerolog.Nop())
}

func TestToggleRunning(t *testing.T) {
	r := newTestRunner(&fakeGate{}, &fakeConn{connected: true})

	// runners start enabled
	assert.False(t, r.ToggleRunning())
	assert.True(t, r.ToggleRunning())
	assert.False(t, r.ToggleRunning())
}

func TestRunKeepsPreStartToggle(t *testing.T) {
	r := newTestRunner(&fakeGate{}, &fakeConn{connected: true})
	r.interval = 10 * time.Millisecond

	require.False(t, r.ToggleRunning()) // pause before the loop starts

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = r.Run(ctx)
	}()

	time.Sleep(50 * time.Millisecond) // several ticks pass while paused
	cancel()
	<-done

	// Run never flipped the flag back on
	assert.True(t, r.ToggleRunning())
}

func TestRunHaltsWhenDisconnected(t *testing.T) {
	r := newTestRunner(&fakeGate{}, &fakeConn{connected: false})
	err := r.Run(context.Background())
	assert.ErrorIs(t, err, ErrConnectivity)
}

func TestDispatchDeliversOutcome(t *testing.T) {
	gate := &fakeGate{result: &arbitrage.ExecutionResult{Success: true, TxRef: "0xabc"}}
	r := newTestRunner(gate, &fakeConn{connected: true})

	opp := &arbitrage.Opportunity{}
	r.dispatch(context.Background(), opp)

	select {
	case out := <-r.Results():
		require.NotNil(t, out.Result)
		assert.True(t, out.Result.Success)
		assert.Same(t, opp, out.Opportunity)
	case <-time.After(time.Second):
		t.Fatal("no outcome delivered")
	}
	assert.Equal(t, 1, gate.calls)
}

func TestExecuteManuallyConvergesOnGate(t *testing.T) {
	gate := &fakeGate{err: arbitrage.ErrStaleOpportunity}
	r := newTestRunner(gate, &fakeConn{connected: true})

	_, err := r.ExecuteManually(context.Background(), &arbitrage.Opportunity{})
	assert.ErrorIs(t, err, arbitrage.ErrStaleOpportunity)
	assert.Equal(t, 1, gate.calls)
}
