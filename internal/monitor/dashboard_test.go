package monitor

import (
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/steward/internal/knowledge"
)

func TestModelUpdateStats(t *testing.T) {
	m := NewModel("http://localhost:8787", "", time.Minute)

	first := &knowledge.Stats{DecisionsTotal: 10, HeartbeatFindings: 3}
	updated, _ := m.Update(statsMsg(first))
	m = updated.(Model)

	// The first poll has no baseline, so the rate is zero.
	require.Len(t, m.decisionRateHistory, 1)
	assert.Equal(t, 0.0, m.decisionRateHistory[0])
	assert.Equal(t, 10, m.stats.DecisionsTotal)
	assert.False(t, m.lastUpdate.IsZero())

	second := &knowledge.Stats{DecisionsTotal: 15, HeartbeatFindings: 4}
	updated, _ = m.Update(statsMsg(second))
	m = updated.(Model)

	require.Len(t, m.decisionRateHistory, 2)
	assert.InDelta(t, 5.0, m.decisionRateHistory[1], 1e-9)
	assert.Equal(t, []float64{3, 4}, m.findingsHistory)
}

func TestModelHistoryIsBounded(t *testing.T) {
	m := NewModel("http://localhost:8787", "", time.Minute)

	for i := 0; i < historySize+10; i++ {
		updated, _ := m.Update(statsMsg(&knowledge.Stats{DecisionsTotal: i}))
		m = updated.(Model)
	}

	assert.Len(t, m.decisionRateHistory, historySize)
	assert.Len(t, m.findingsHistory, historySize)
}

func TestModelUpdateError(t *testing.T) {
	m := NewModel("http://localhost:8787", "", time.Minute)

	updated, _ := m.Update(errMsg(errors.New("connection refused")))
	m = updated.(Model)
	require.Error(t, m.err)

	view := m.View()
	assert.Contains(t, view, "Cannot reach stewardd")
	assert.Contains(t, view, "connection refused")

	// A successful poll clears the error state.
	updated, _ = m.Update(statsMsg(&knowledge.Stats{DecisionsTotal: 1}))
	m = updated.(Model)
	assert.NoError(t, m.err)
}

func TestModelQuitKeys(t *testing.T) {
	for _, key := range []string{"q", "ctrl+c"} {
		t.Run(key, func(t *testing.T) {
			m := NewModel("http://localhost:8787", "", time.Minute)

			msg := tea.KeyMsg{Type: tea.KeyCtrlC}
			if key == "q" {
				msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}}
			}

			updated, cmd := m.Update(msg)
			m = updated.(Model)
			assert.True(t, m.quitting)
			assert.NotNil(t, cmd)
			assert.Empty(t, m.View())
		})
	}
}

func TestModelViewRendersSections(t *testing.T) {
	m := NewModel("http://localhost:8787", "", time.Minute)
	updated, _ := m.Update(statsMsg(&knowledge.Stats{
		DecisionsTotal: 42,
		DecisionsByDisposition: map[string]int{
			"draft":   30,
			"suggest": 12,
		},
		TasksByStatus: map[string]int{
			"pending_approval": 3,
			"executed":         20,
		},
		ActiveRules:       7,
		AvgRuleConfidence: 0.58,
		HeartbeatRuns:     5,
		HeartbeatFindings: 19,
		OutcomesMeasured:  11,
	}))
	m = updated.(Model)

	view := m.View()
	assert.Contains(t, view, "Decisions")
	assert.Contains(t, view, "Tasks")
	assert.Contains(t, view, "Heartbeat")
	assert.Contains(t, view, "Learning")
	assert.Contains(t, view, "42")
	assert.Contains(t, view, "58%")
}

func TestRenderCountsOrderAndExtras(t *testing.T) {
	out := renderCounts(map[string]int{
		"auto_notice": 2,
		"block":       1,
		"mystery":     9,
	}, dispositionOrder)

	// Known keys come first in gate order, unknown ones trail.
	assert.Contains(t, out, "block=")
	assert.Contains(t, out, "auto_notice=")
	assert.Contains(t, out, "mystery=")
	assert.Less(t, indexOf(out, "block="), indexOf(out, "auto_notice="))
	assert.Less(t, indexOf(out, "auto_notice="), indexOf(out, "mystery="))

	assert.Equal(t, "none yet", stripANSI(renderCounts(nil, dispositionOrder)))
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

// stripANSI removes terminal escape sequences from styled output.
func stripANSI(s string) string {
	var out []rune
	inEscape := false
	for _, r := range s {
		switch {
		case inEscape:
			if r == 'm' {
				inEscape = false
			}
		case r == 0x1b:
			inEscape = true
		default:
			out = append(out, r)
		}
	}
	return string(out)
}
