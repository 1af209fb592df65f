package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	cl "prophit/internal/cli"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const watchRefreshEvery = 10 * time.Second

var (
	watchTitleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14")).Padding(0, 1)
	watchStatusStyle = lipgloss.NewStyle().Faint(true).Padding(0, 1)
	watchErrorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Padding(0, 1)
	watchFrameStyle  = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("8"))
)

type leaderboardMsg struct {
	payload leaderboardPayload
	err     error
}

type watchTickMsg struct{}

type watchModel struct {
	client    *cl.Client
	token     string
	week      int
	limit     int
	table     table.Model
	season    int
	updatedAt time.Time
	err       error
}

func runLeaderboardWatch(ctx context.Context, client *cl.Client, token string, week, limit int) error {
	if limit <= 0 {
		limit = 20
	}
	columns := []table.Column{
		{Title: "RANK", Width: 5},
		{Title: "FORECASTER", Width: 18},
		{Title: "TIER", Width: 10},
		{Title: "POINTS", Width: 8},
		{Title: "ACC", Width: 7},
		{Title: "VOL", Width: 5},
		{Title: "STREAK", Width: 7},
		{Title: "BEATS", Width: 6},
		{Title: "BADGES", Width: 26},
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(limit),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.Bold(true).Foreground(lipgloss.Color("14"))
	styles.Selected = styles.Selected.Foreground(lipgloss.Color("0")).Background(lipgloss.Color("14"))
	t.SetStyles(styles)

	m := watchModel{
		client: client,
		token:  token,
		week:   week,
		limit:  limit,
		table:  t,
	}
	_, err := tea.NewProgram(m, tea.WithContext(ctx)).Run()
	return err
}

func (m watchModel) Init() tea.Cmd {
	return m.fetch()
}

func (m watchModel) fetch() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		raw, err := m.client.Leaderboard(ctx, m.token, m.week, m.limit)
		if err != nil {
			return leaderboardMsg{err: err}
		}
		payload, err := decodeInto[leaderboardPayload](raw)
		return leaderboardMsg{payload: payload, err: err}
	}
}

func scheduleWatchTick() tea.Cmd {
	return tea.Tick(watchRefreshEvery, func(time.Time) tea.Msg {
		return watchTickMsg{}
	})
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "r":
			return m, m.fetch()
		}
	case watchTickMsg:
		return m, m.fetch()
	case leaderboardMsg:
		m.err = msg.err
		if msg.err == nil {
			m.season = msg.payload.Season
			m.updatedAt = time.Now()
			rows := make([]table.Row, 0, len(msg.payload.Rows))
			for _, r := range msg.payload.Rows {
				rows = append(rows, table.Row{
					strconv.Itoa(r.Rank),
					truncate(r.Username, 18),
					r.Tier,
					strconv.FormatInt(r.TotalPoints, 10),
					fmt.Sprintf("%.1f%%", r.AccuracyRate*100),
					strconv.Itoa(r.TotalPredictions),
					strconv.Itoa(r.CurrentStreak),
					strconv.Itoa(r.OracleBeats),
					truncate(strings.Join(r.Badges, ","), 26),
				})
			}
			m.table.SetRows(rows)
		}
		return m, scheduleWatchTick()
	}
	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m watchModel) View() string {
	var b strings.Builder
	b.WriteString(watchTitleStyle.Render(leaderboardTitle(m.season, m.week)))
	b.WriteString("\n")
	b.WriteString(watchFrameStyle.Render(m.table.View()))
	b.WriteString("\n")
	if m.err != nil {
		b.WriteString(watchErrorStyle.Render("refresh failed: " + m.err.Error()))
	} else if !m.updatedAt.IsZero() {
		b.WriteString(watchStatusStyle.Render("updated " + m.updatedAt.Format("15:04:05") + "  (r refresh, q quit)"))
	} else {
		b.WriteString(watchStatusStyle.Render("loading..."))
	}
	b.WriteString("\n")
	return b.String()
}
