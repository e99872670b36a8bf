package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/xiaot623/gogo/replayer/internal/domain"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	clockStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	nameStyle    = lipgloss.NewStyle().Bold(true)
	detailStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("7")).PaddingLeft(13)
	summaryStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)

	statusStyles = map[domain.StepStatus]lipgloss.Style{
		domain.StepStatusCompleted: lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		domain.StepStatusError:     lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
		domain.StepStatusPending:   lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
	}
)

const maxDetail = 120

func renderHeader(data *domain.ReplayData, speed float64) string {
	return titleStyle.Render(fmt.Sprintf("Replaying %s: %d steps over %s at %gx",
		data.RunID, len(data.Steps), formatMs(data.TotalDuration), speed))
}

func renderStep(step *domain.ReplayStep, state domain.PlaybackState) string {
	status := statusStyles[step.Status].Render(string(step.Status))
	line := fmt.Sprintf("%s %s %s %s %s",
		clockStyle.Render(fmt.Sprintf("[%9s]", formatMs(state.ElapsedTime))),
		clockStyle.Render(fmt.Sprintf("%d/%d", step.Index+1, state.StepCount)),
		string(step.Type),
		nameStyle.Render(step.Name),
		status,
	)
	if step.Tokens != nil {
		line += clockStyle.Render(fmt.Sprintf(" (%d tokens)", step.Tokens.Total()))
	}
	if step.Description != "" && step.Description != step.Name {
		line += "\n" + detailStyle.Render(truncate(step.Description, maxDetail))
	}
	return line
}

func renderSummary(data *domain.ReplayData, state domain.PlaybackState) string {
	var completed, failed, tokens int
	for _, step := range data.Steps {
		switch step.Status {
		case domain.StepStatusCompleted:
			completed++
		case domain.StepStatusError:
			failed++
		}
		tokens += step.Tokens.Total()
	}
	return summaryStyle.Render(fmt.Sprintf("Replay finished after %s\n%d completed, %d failed, %d tokens",
		formatMs(state.ElapsedTime), completed, failed, tokens))
}

func renderInterrupted() string {
	return clockStyle.Render("interrupted")
}

func formatMs(ms int64) string {
	return (time.Duration(ms) * time.Millisecond).String()
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-1]) + "…"
}
