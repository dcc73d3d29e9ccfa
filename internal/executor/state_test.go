package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func machineAt(t *testing.T, path ...State) *StateMachine {
	t.Helper()
	m := NewStateMachine()
	for _, s := range path {
		require.NoError(t, m.Transition(s))
	}
	return m
}

func TestStateMachineHappyPath(t *testing.T) {
	m := machineAt(t,
		StateConnecting, StateStreaming, StateAnalyzing, StateRiskCheck,
		StateSizing, StateExecuting, StateStreaming,
	)
	assert.Equal(t, StateStreaming, m.Current())
}

func TestStateMachineRejectionShortcutsBackToStreaming(t *testing.T) {
	m := machineAt(t, StateConnecting, StateStreaming, StateAnalyzing, StateRiskCheck)

	require.NoError(t, m.Transition(StateStreaming))
	assert.Equal(t, StateStreaming, m.Current())
}

func TestStateMachineIllegalEdges(t *testing.T) {
	m := NewStateMachine()
	assert.Error(t, m.Transition(StateStreaming))
	assert.Error(t, m.Transition(StateExecuting))
	assert.Equal(t, StateIdle, m.Current())

	m = machineAt(t, StateConnecting, StateStreaming)
	assert.Error(t, m.Transition(StateSizing))
	assert.Error(t, m.Transition(StateIdle))
}

func TestStateMachineReconnectCycle(t *testing.T) {
	m := machineAt(t, StateConnecting, StateStreaming, StateReconnecting)

	require.NoError(t, m.Transition(StateConnecting))
	require.NoError(t, m.Transition(StateStreaming))
	assert.Equal(t, StateStreaming, m.Current())
}

func TestStateMachineFeedUnavailableIsTerminal(t *testing.T) {
	m := machineAt(t, StateConnecting, StateReconnecting, StateFeedUnavailable)

	assert.True(t, m.Current().Terminal())
	assert.Error(t, m.Transition(StateConnecting))
	assert.Error(t, m.Transition(StateStreaming))
}

func TestStateMachineEmergencyStopFromAnywhere(t *testing.T) {
	paths := [][]State{
		{},
		{StateConnecting},
		{StateConnecting, StateStreaming},
		{StateConnecting, StateStreaming, StateAnalyzing, StateRiskCheck, StateSizing, StateExecuting},
		{StateConnecting, StateReconnecting},
	}
	for _, path := range paths {
		m := machineAt(t, path...)
		require.NoError(t, m.Transition(StateEmergencyStopped))
		assert.True(t, m.Current().Terminal())
	}
}

func TestStateMachineEmergencyStopNotFromTerminal(t *testing.T) {
	m := machineAt(t, StateConnecting, StateReconnecting, StateFeedUnavailable)
	assert.Error(t, m.Transition(StateEmergencyStopped))
}

func TestStateMachineResetLeavesTerminal(t *testing.T) {
	m := machineAt(t, StateConnecting, StateEmergencyStopped)

	m.Reset()
	assert.Equal(t, StateIdle, m.Current())
	require.NoError(t, m.Transition(StateConnecting))
}
