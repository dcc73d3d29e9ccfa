package risk

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/quantfall/tradecore/internal/domain"
)

func passingSignal() domain.StrategySignal {
	return domain.StrategySignal{
		ID:                  "sig-1",
		Action:              domain.ActionBuy,
		Symbol:              "BTCUSDT",
		Price:               100,
		Confidence:          0.90,
		Strategy:            "momentum",
		ContributingSystems: []string{"microstructure"},
		ExpectedMove:        0.02,
	}
}

func healthyState() domain.RiskState {
	return domain.RiskState{
		AccountBalance:  1000,
		PeakBalance:     1000,
		Phase:           3,
		CurrentDrawdown: 0.02,
	}
}

func gateCfg() GateConfig {
	return GateConfig{
		LiveMinConfidence: 0.80,
		RequiredPhase:     2,
		TrustedSystems:    []string{"microstructure", "orderflow"},
		MaxDrawdownPct:    0.15,
		MaxDailyLoss:      500,
		CooldownLosses:    3,
		Cooldown:          30 * time.Minute,
	}
}

func TestEvaluateApproves(t *testing.T) {
	d := Evaluate(passingSignal(), healthyState(), gateCfg(), time.Now())

	assert.True(t, d.Execute)
	assert.NotEmpty(t, d.Reason)
}

func TestEvaluateEmergencyStopWinsOverEverything(t *testing.T) {
	state := healthyState()
	state.EmergencyStopped = true
	// Even a perfect signal is rejected while the flag is set.
	sig := passingSignal()
	sig.Confidence = 0.99

	d := Evaluate(sig, state, gateCfg(), time.Now())

	assert.False(t, d.Execute)
	assert.True(t, strings.HasPrefix(d.Reason, ReasonEmergencyStop))
}

func TestEvaluateConfidenceBelowLiveMinimum(t *testing.T) {
	sig := passingSignal()
	sig.Confidence = 0.79

	d := Evaluate(sig, healthyState(), gateCfg(), time.Now())

	assert.False(t, d.Execute)
	assert.True(t, strings.HasPrefix(d.Reason, ReasonLowConfidence))
}

func TestEvaluatePhaseNotReached(t *testing.T) {
	state := healthyState()
	state.Phase = 1

	d := Evaluate(passingSignal(), state, gateCfg(), time.Now())

	assert.False(t, d.Execute)
	assert.True(t, strings.HasPrefix(d.Reason, ReasonPhase))
}

func TestEvaluateUntrustedSource(t *testing.T) {
	sig := passingSignal()
	sig.ContributingSystems = []string{"sentiment"}

	d := Evaluate(sig, healthyState(), gateCfg(), time.Now())

	assert.False(t, d.Execute)
	assert.True(t, strings.HasPrefix(d.Reason, ReasonUntrustedSource))
}

func TestEvaluateEmptyTrustedSetRejectsAll(t *testing.T) {
	cfg := gateCfg()
	cfg.TrustedSystems = nil

	d := Evaluate(passingSignal(), healthyState(), cfg, time.Now())

	assert.False(t, d.Execute)
	assert.True(t, strings.HasPrefix(d.Reason, ReasonUntrustedSource))
}

func TestEvaluateDrawdownBreached(t *testing.T) {
	state := healthyState()
	state.CurrentDrawdown = 0.16

	d := Evaluate(passingSignal(), state, gateCfg(), time.Now())

	assert.False(t, d.Execute)
	assert.True(t, strings.HasPrefix(d.Reason, ReasonDrawdown))
}

func TestEvaluateDailyLossBreached(t *testing.T) {
	state := healthyState()
	state.DailyPnL = -500

	d := Evaluate(passingSignal(), state, gateCfg(), time.Now())

	assert.False(t, d.Execute)
	assert.True(t, strings.HasPrefix(d.Reason, ReasonDailyLoss))
}

func TestEvaluateLossCooldown(t *testing.T) {
	now := time.Now()
	state := healthyState()
	state.RecentLossCount = 3
	state.LastLossTime = now.Add(-10 * time.Minute)

	d := Evaluate(passingSignal(), state, gateCfg(), now)
	assert.False(t, d.Execute)
	assert.True(t, strings.HasPrefix(d.Reason, ReasonCooldown))

	// Once the window has elapsed the streak no longer blocks.
	state.LastLossTime = now.Add(-31 * time.Minute)
	d = Evaluate(passingSignal(), state, gateCfg(), now)
	assert.True(t, d.Execute)
}
