// Package risk holds the pre-trade gate, the persisted account risk ledger,
// and the live-trading pre-flight checks.
package risk

import (
	"fmt"
	"time"

	"github.com/quantfall/tradecore/internal/domain"
)

// Gate rejection reason codes. Machine-readable prefixes for audit queries;
// the full reason string carries the specifics.
const (
	ReasonEmergencyStop   = "EMERGENCY_STOP_ACTIVE"
	ReasonLowConfidence   = "CONFIDENCE_BELOW_LIVE_MINIMUM"
	ReasonPhase           = "PHASE_NOT_REACHED"
	ReasonUntrustedSource = "NO_TRUSTED_CONTRIBUTING_SYSTEM"
	ReasonDrawdown        = "MAX_DRAWDOWN_EXCEEDED"
	ReasonDailyLoss       = "DAILY_LOSS_LIMIT_EXCEEDED"
	ReasonCooldown        = "LOSS_COOLDOWN_ACTIVE"
)

// GateConfig holds the tunable gate limits. LiveMinConfidence must be set
// stricter than any paper-trading threshold.
type GateConfig struct {
	LiveMinConfidence float64
	RequiredPhase     int
	TrustedSystems    []string
	MaxDrawdownPct    float64 // fraction, e.g. 0.15
	MaxDailyLoss      float64 // quote currency
	CooldownLosses    int     // consecutive losses that arm the cooldown
	Cooldown          time.Duration
}

// Decision is the gate outcome. Reason is always populated, approval included.
type Decision struct {
	Execute bool
	Reason  string
}

// Evaluate gates a strategy signal against the account risk state. It is a
// pure function: no I/O, no mutation, every branch independently testable.
// Checks run in fixed order and short-circuit on the first failure.
func Evaluate(sig domain.StrategySignal, state domain.RiskState, cfg GateConfig, now time.Time) Decision {
	if state.EmergencyStopped {
		return rejected(ReasonEmergencyStop, "manual reset required")
	}

	if sig.Confidence < cfg.LiveMinConfidence {
		return rejected(ReasonLowConfidence,
			fmt.Sprintf("confidence %.2f < %.2f", sig.Confidence, cfg.LiveMinConfidence))
	}

	if state.Phase < cfg.RequiredPhase {
		return rejected(ReasonPhase,
			fmt.Sprintf("phase %d < required %d", state.Phase, cfg.RequiredPhase))
	}

	if !anyTrusted(sig.ContributingSystems, cfg.TrustedSystems) {
		return rejected(ReasonUntrustedSource,
			fmt.Sprintf("contributing systems %v not in trusted set", sig.ContributingSystems))
	}

	if state.CurrentDrawdown > cfg.MaxDrawdownPct {
		return rejected(ReasonDrawdown,
			fmt.Sprintf("drawdown %.2f%% > %.2f%%", state.CurrentDrawdown*100, cfg.MaxDrawdownPct*100))
	}

	if cfg.MaxDailyLoss > 0 && state.DailyPnL <= -cfg.MaxDailyLoss {
		return rejected(ReasonDailyLoss,
			fmt.Sprintf("daily pnl %.2f breaches limit %.2f", state.DailyPnL, cfg.MaxDailyLoss))
	}

	if cfg.CooldownLosses > 0 && state.RecentLossCount >= cfg.CooldownLosses {
		elapsed := now.Sub(state.LastLossTime)
		if elapsed < cfg.Cooldown {
			return rejected(ReasonCooldown,
				fmt.Sprintf("%d recent losses, %.0fs of %.0fs cooldown remaining",
					state.RecentLossCount,
					(cfg.Cooldown - elapsed).Seconds(),
					cfg.Cooldown.Seconds()))
		}
	}

	return Decision{Execute: true, Reason: "all risk checks passed"}
}

func rejected(code, detail string) Decision {
	return Decision{Reason: code + ": " + detail}
}

func anyTrusted(contributing, trusted []string) bool {
	if len(trusted) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(trusted))
	for _, s := range trusted {
		set[s] = struct{}{}
	}
	for _, c := range contributing {
		if _, ok := set[c]; ok {
			return true
		}
	}
	return false
}
