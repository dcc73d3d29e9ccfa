// Package executor drives the decision pipeline: it consumes strategy
// signals, gates them against the risk ledger, sizes approved trades, submits
// orders to the exchange, and owns the sticky emergency stop.
package executor

import (
	"fmt"
	"sync"
)

// State is one stage of the per-symbol execution pipeline.
type State string

const (
	StateIdle             State = "IDLE"
	StateConnecting       State = "CONNECTING"
	StateStreaming        State = "STREAMING"
	StateAnalyzing        State = "ANALYZING"
	StateRiskCheck        State = "RISK_CHECK"
	StateSizing           State = "SIZING"
	StateExecuting        State = "EXECUTING"
	StateReconnecting     State = "RECONNECTING"
	StateEmergencyStopped State = "EMERGENCY_STOPPED"
	StateFeedUnavailable  State = "FEED_UNAVAILABLE"
)

// transitions lists the legal forward edges. EMERGENCY_STOPPED is reachable
// from every state and is handled separately in Transition; it and
// FEED_UNAVAILABLE have no outgoing edges, so only Reset leaves them.
var transitions = map[State][]State{
	StateIdle:         {StateConnecting},
	StateConnecting:   {StateStreaming, StateReconnecting},
	StateStreaming:    {StateAnalyzing, StateReconnecting},
	StateAnalyzing:    {StateRiskCheck, StateStreaming, StateReconnecting},
	StateRiskCheck:    {StateSizing, StateStreaming},
	StateSizing:       {StateExecuting, StateStreaming},
	StateExecuting:    {StateStreaming},
	StateReconnecting: {StateConnecting, StateStreaming, StateFeedUnavailable},
}

// Terminal reports whether the state has no outgoing transitions.
func (s State) Terminal() bool {
	return s == StateEmergencyStopped || s == StateFeedUnavailable
}

// StateMachine tracks one symbol's pipeline stage. Safe for concurrent use.
type StateMachine struct {
	mu      sync.Mutex
	current State
}

// NewStateMachine starts in IDLE.
func NewStateMachine() *StateMachine {
	return &StateMachine{current: StateIdle}
}

// Current returns the present state.
func (m *StateMachine) Current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Transition moves to the target state, rejecting illegal edges. The
// emergency stop is the one transition allowed from anywhere except an
// already-terminal state.
func (m *StateMachine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current.Terminal() {
		return fmt.Errorf("executor: state %s is terminal, cannot move to %s", m.current, to)
	}
	if to == StateEmergencyStopped {
		m.current = to
		return nil
	}
	for _, next := range transitions[m.current] {
		if next == to {
			m.current = to
			return nil
		}
	}
	return fmt.Errorf("executor: illegal transition %s -> %s", m.current, to)
}

// Reset forces the machine back to IDLE. Only the manual emergency-stop reset
// path calls this.
func (m *StateMachine) Reset() {
	m.mu.Lock()
	m.current = StateIdle
	m.mu.Unlock()
}
