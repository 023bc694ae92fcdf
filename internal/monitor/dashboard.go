package monitor

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/NimbleMarkets/ntcharts/sparkline"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fyrsmithlabs/steward/internal/knowledge"
)

const (
	sparklineWidth  = 30
	sparklineHeight = 3
	historySize     = 30
)

// Model represents the BubbleTea dashboard model
type Model struct {
	apiURL     string
	secret     string
	interval   time.Duration
	startedAt  time.Time
	lastUpdate time.Time
	stats      knowledge.Stats
	havePrev   bool
	prevTotal  int
	err        error
	quitting   bool

	// Historical data for sparklines (last N points)
	decisionRateHistory []float64
	findingsHistory     []float64

	confidenceProgress progress.Model
}

// Lipgloss styles (k9s-inspired color scheme)
var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("51")).
			Bold(true).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true).
			MarginTop(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("45"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("231")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	healthyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("46")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("226")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	containerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(1, 2)

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			MarginTop(1)

	footerKeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true)

	sparklineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51"))
)

// NewModel creates a new dashboard model. The secret is forwarded to the
// ops endpoint; empty is fine against a dev server with no secret set.
func NewModel(apiURL, secret string, interval time.Duration) Model {
	confProg := progress.New(
		progress.WithGradient("#ff0000", "#00ff00"),
		progress.WithWidth(40),
	)

	return Model{
		apiURL:              apiURL,
		secret:              secret,
		interval:            interval,
		startedAt:           time.Now(),
		confidenceProgress:  confProg,
		decisionRateHistory: make([]float64, 0, historySize),
		findingsHistory:     make([]float64, 0, historySize),
	}
}

// getConfidenceBadge returns a status badge based on average rule confidence
func getConfidenceBadge(confidence float64) string {
	if confidence >= 0.6 {
		return healthyStyle.Render("[✓]")
	} else if confidence >= 0.4 {
		return warningStyle.Render("[⚠]")
	}
	return errorStyle.Render("[✗]")
}

// getPendingBadge flags a growing approval backlog
func getPendingBadge(pending int) string {
	if pending < 10 {
		return healthyStyle.Render("[✓]")
	} else if pending < 50 {
		return warningStyle.Render("[⚠]")
	}
	return errorStyle.Render("[✗]")
}

// appendToHistory appends a value to history, maintaining max size
func appendToHistory(history []float64, value float64) []float64 {
	history = append(history, value)
	if len(history) > historySize {
		history = history[1:]
	}
	return history
}

// createSparkline creates a sparkline chart from historical data
func createSparkline(data []float64) string {
	if len(data) == 0 {
		return dimStyle.Render(fmt.Sprintf("%*s", sparklineWidth, "no data"))
	}

	spark := sparkline.New(sparklineWidth, sparklineHeight)
	for _, v := range data {
		spark.Push(v)
	}

	return sparklineStyle.Render(spark.View())
}

// Message types
type tickMsg time.Time
type statsMsg *knowledge.Stats
type errMsg error

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		tick(m.interval),
		fetchStats(m.apiURL, m.secret),
	)
}

// tick creates a tick command for auto-refresh
func tick(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// fetchStats fetches the ops snapshot from stewardd
func fetchStats(apiURL, secret string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		stats, err := NewStatsClient(apiURL, secret).Fetch(ctx)
		if err != nil {
			return errMsg(err)
		}
		return statsMsg(stats)
	}
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			return m, fetchStats(m.apiURL, m.secret)
		}

	case tickMsg:
		return m, tea.Batch(
			tick(m.interval),
			fetchStats(m.apiURL, m.secret),
		)

	case statsMsg:
		stats := (*knowledge.Stats)(msg)

		// Decision rate is the per-poll delta normalized to a minute.
		// The first poll has no previous total, so the delta is zero.
		rate := 0.0
		if m.havePrev && m.interval > 0 {
			rate = float64(stats.DecisionsTotal-m.prevTotal) / m.interval.Minutes()
			if rate < 0 {
				rate = 0
			}
		}
		m.decisionRateHistory = appendToHistory(m.decisionRateHistory, rate)
		m.findingsHistory = appendToHistory(m.findingsHistory, float64(stats.HeartbeatFindings))

		m.prevTotal = stats.DecisionsTotal
		m.havePrev = true
		m.stats = *stats
		m.lastUpdate = time.Now()
		m.err = nil
		return m, nil

	case errMsg:
		m.err = error(msg)
		return m, nil
	}

	return m, nil
}

// View renders the dashboard
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	if m.err != nil {
		return m.renderError()
	}

	return m.renderDashboard()
}

// renderError renders the error view
func (m Model) renderError() string {
	header := headerStyle.Render(" steward Monitor ")

	var content string
	content += "\n"
	content += errorStyle.Render("⚠ Cannot reach stewardd") + "\n"
	content += "\n"
	content += dimStyle.Render("URL: ") + valueStyle.Render(m.apiURL) + "\n"
	content += dimStyle.Render("Error: ") + errorStyle.Render(m.err.Error()) + "\n"
	content += "\n"
	content += dimStyle.Render("Please ensure:") + "\n"
	content += dimStyle.Render("  1. stewardd is running") + "\n"
	content += dimStyle.Render("  2. the --api flag points at its listen address") + "\n"
	content += "\n"
	content += footerStyle.Render("[q] quit  [r] retry") + "\n"

	return containerStyle.Render(header + "\n" + content)
}

// dispositionOrder fixes the display order from most to least restrictive.
var dispositionOrder = []string{"block", "suggest", "draft", "auto_notice", "auto_silent"}

// taskStatusOrder fixes the display order along the task lifecycle.
var taskStatusOrder = []string{"suggested", "pending_approval", "executed", "rejected", "dismissed"}

// renderCounts renders a "key=n" line following the given order, with
// unknown keys appended alphabetically so nothing is silently hidden.
func renderCounts(counts map[string]int, order []string) string {
	var line string
	seen := make(map[string]bool, len(order))
	for _, key := range order {
		seen[key] = true
		if n, ok := counts[key]; ok {
			line += dimStyle.Render(key+"=") + valueStyle.Render(FormatCount(n)) + "  "
		}
	}

	var extras []string
	for key := range counts {
		if !seen[key] {
			extras = append(extras, key)
		}
	}
	sort.Strings(extras)
	for _, key := range extras {
		line += dimStyle.Render(key+"=") + valueStyle.Render(FormatCount(counts[key])) + "  "
	}

	if line == "" {
		return dimStyle.Render("none yet")
	}
	return line
}

// renderDashboard renders the main dashboard view with sparklines and
// progress bars
func (m Model) renderDashboard() string {
	var content string

	lastUpdateStr := "Never"
	if !m.lastUpdate.IsZero() {
		lastUpdateStr = m.lastUpdate.Format("3:04:05 PM")
	}
	watchingStr := FormatDuration(int64(time.Since(m.startedAt).Seconds()))

	header := headerStyle.Render(" steward Monitor ")
	pending := m.stats.TasksByStatus["pending_approval"]
	headerLine := fmt.Sprintf("%s   %s   %s   %s",
		getPendingBadge(pending),
		dimStyle.Render("Watching:"),
		valueStyle.Render(watchingStr),
		dimStyle.Render(lastUpdateStr))

	content += header + "\n"
	content += headerLine + "\n"

	// Decisions section with rate sparkline
	content += "\n" + sectionStyle.Render("┃ Decisions") + "\n"

	rate := 0.0
	if n := len(m.decisionRateHistory); n > 0 {
		rate = m.decisionRateHistory[n-1]
	}
	rateSparkline := createSparkline(m.decisionRateHistory)
	content += labelStyle.Render("  Total: ") +
		valueStyle.Render(FormatCount(m.stats.DecisionsTotal)) +
		"  " + labelStyle.Render("Rate: ") +
		valueStyle.Render(FormatRate(rate)) +
		"   " + rateSparkline + "\n"

	content += labelStyle.Render("  Dispositions: ") +
		renderCounts(m.stats.DecisionsByDisposition, dispositionOrder) + "\n"

	// Tasks section
	content += "\n" + sectionStyle.Render("┃ Tasks") + "\n"
	content += labelStyle.Render("  By status: ") +
		renderCounts(m.stats.TasksByStatus, taskStatusOrder) + "\n"
	content += labelStyle.Render("  Awaiting approval: ") +
		valueStyle.Render(FormatCount(pending)) +
		" " + getPendingBadge(pending) + "\n"

	// Heartbeat section with findings sparkline
	content += "\n" + sectionStyle.Render("┃ Heartbeat") + "\n"

	findingsSparkline := createSparkline(m.findingsHistory)
	content += labelStyle.Render("  Runs: ") +
		valueStyle.Render(FormatCount(m.stats.HeartbeatRuns)) +
		"  " + labelStyle.Render("Findings: ") +
		valueStyle.Render(FormatCount(m.stats.HeartbeatFindings)) +
		"   " + findingsSparkline + "\n"

	// Learning section with confidence progress bar
	content += "\n" + sectionStyle.Render("┃ Learning") + "\n"

	content += labelStyle.Render("  Active rules: ") +
		valueStyle.Render(FormatCount(m.stats.ActiveRules)) +
		"  " + labelStyle.Render("Preferences: ") +
		valueStyle.Render(FormatCount(m.stats.Preferences)) +
		"  " + labelStyle.Render("Corrections: ") +
		valueStyle.Render(FormatCount(m.stats.Corrections)) + "\n"

	confidence := m.stats.AvgRuleConfidence
	if confidence > 1.0 {
		confidence = 1.0
	}
	content += labelStyle.Render("  Avg confidence: ") +
		m.confidenceProgress.ViewAs(confidence) +
		" " + dimStyle.Render(FormatConfidence(m.stats.AvgRuleConfidence)) +
		" " + getConfidenceBadge(m.stats.AvgRuleConfidence) + "\n"

	content += labelStyle.Render("  Outcomes measured: ") +
		valueStyle.Render(FormatCount(m.stats.OutcomesMeasured)) + "\n"

	// Footer with keyboard shortcuts
	footer := footerKeyStyle.Render("[q]") + footerStyle.Render(" quit  ") +
		footerKeyStyle.Render("[r]") + footerStyle.Render(" refresh  ") +
		footerStyle.Render(fmt.Sprintf("Auto: %v", m.interval))

	content += "\n" + footer

	return containerStyle.Render(content)
}
