package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/marcin-skalski/review-radar/internal/github"
)

const maxTitleWidth = 60

var tabLabels = map[github.Category]string{
	github.CategoryAssigned: "Review requests",
	github.CategoryAuthored: "My PRs",
	github.CategoryMerged:   "Merged",
}

type viewState struct {
	snap     Snapshot
	tab      github.Category
	selected int
	busy     string // spinner frame while a refresh runs, empty otherwise
	status   string
	now      time.Time
}

func renderView(v viewState) string {
	var b strings.Builder

	header := headerStyle.Render("review-radar")
	if v.snap.Badge.Text != "" {
		header += " " + badgeStyle(v.snap.Badge.Color).Render(v.snap.Badge.Text)
	}
	if v.busy != "" {
		header += " " + v.busy
	}
	b.WriteString(header)
	b.WriteString("\n")

	if e := v.snap.LastError; e != nil {
		msg := fmt.Sprintf("%s: %s", e.Category, e.Message)
		if e.Auth {
			msg = "Not signed in to GitHub. Log in in your browser and refresh."
		}
		b.WriteString(errorStyle.Render(msg + "  (d: dismiss)"))
		b.WriteString("\n")
	}

	b.WriteString(renderTabs(v.snap, v.tab))
	b.WriteString("\n\n")
	b.WriteString(renderRows(v.snap.Bucket(v.tab).PRs, v.tab, v.selected, v.now))

	footer := "tab:switch ↑/↓:select o:open r:refresh q:quit"
	if view := v.snap.Bucket(v.tab); view.LastUpdated != nil {
		footer = fmt.Sprintf("Updated %s ago │ %s", formatAge(v.now.Sub(*view.LastUpdated)), footer)
	}
	if v.status != "" {
		footer = v.status + " │ " + footer
	}
	b.WriteString(footerStyle.Render(footer))

	return b.String()
}

func renderTabs(snap Snapshot, active github.Category) string {
	tabs := make([]string, 0, len(github.Categories))
	for _, c := range github.Categories {
		label := fmt.Sprintf("%s (%d)", tabLabels[c], len(snap.Bucket(c).PRs))
		if n := snap.NewCount(c); n > 0 {
			label += fmt.Sprintf(" +%d", n)
		}
		style := tabStyle
		if c == active {
			style = activeTabStyle
		}
		tabs = append(tabs, style.Render(label))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func renderRows(prs []github.PullRequest, c github.Category, selected int, now time.Time) string {
	if len(prs) == 0 {
		return emptyStyle.Render("  (nothing here)") + "\n"
	}

	var b strings.Builder
	for i, pr := range prs {
		marker := "  "
		if pr.IsNew {
			marker = lipgloss.NewStyle().Foreground(colorNew).Render("★ ")
		}

		title := pr.Title
		if runewidth.StringWidth(title) > maxTitleWidth {
			title = runewidth.Truncate(title, maxTitleWidth-3, "...")
		}
		title = runewidth.FillRight(title, maxTitleWidth)

		label := statusLabel(c, pr)
		status := lipgloss.NewStyle().Foreground(statusColor(label)).
			Render(fmt.Sprintf("%s %s", statusIcon(label), label))

		line := fmt.Sprintf("%-28s %s  @%-14s %4s",
			runewidth.Truncate(pr.Ref(), 28, "…"), title, pr.Author.Login, formatAge(now.Sub(pr.CreatedAt)))

		style := rowStyle
		if i == selected {
			style = selectedRowStyle
		}
		b.WriteString(marker)
		b.WriteString(style.Render(line))
		b.WriteString(" ")
		b.WriteString(status)
		b.WriteString("\n")
	}
	return b.String()
}

// formatAge renders a compact age like 45s, 12m, 5h or 3d.
func formatAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", max(0, int(d/time.Second)))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d/time.Minute))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d/time.Hour))
	default:
		return fmt.Sprintf("%dd", int(d/(24*time.Hour)))
	}
}
