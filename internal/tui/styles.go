package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/marcin-skalski/review-radar/internal/github"
)

var (
	colorNew        = lipgloss.Color("46")  // green
	colorPending    = lipgloss.Color("214") // orange
	colorReviewed   = lipgloss.Color("240") // gray
	colorApproved   = lipgloss.Color("46")  // green
	colorChanges    = lipgloss.Color("196") // red
	colorCommented  = lipgloss.Color("33")  // blue
	colorDraft      = lipgloss.Color("240") // gray
	colorMerged     = lipgloss.Color("135") // purple
	colorForeground = lipgloss.Color("252")

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			PaddingLeft(1).
			PaddingRight(1)

	tabStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			PaddingLeft(1).
			PaddingRight(1)

	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212")).
			PaddingLeft(1).
			PaddingRight(1)

	rowStyle = lipgloss.NewStyle().
			Foreground(colorForeground)

	selectedRowStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("39")).
				Background(lipgloss.Color("237"))

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("255")).
			Background(lipgloss.Color("160")).
			PaddingLeft(1).
			PaddingRight(1)

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			MarginTop(1)

	emptyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)
)

// badgeStyle renders the badge text on its own background color.
func badgeStyle(color string) lipgloss.Style {
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("255")).
		Background(lipgloss.Color(color)).
		PaddingLeft(1).
		PaddingRight(1)
}

// statusLabel is the short status shown next to a PR in its category.
func statusLabel(c github.Category, pr github.PullRequest) string {
	switch c {
	case github.CategoryAssigned:
		if pr.Type == github.TypeDraft {
			return "draft"
		}
		return string(pr.ReviewStatus)
	case github.CategoryAuthored:
		return string(pr.AuthorReviewStatus)
	default:
		return "merged"
	}
}

func statusIcon(label string) string {
	switch label {
	case "pending":
		return "●"
	case "reviewed":
		return "✓"
	case string(github.AuthorApproved):
		return "✔"
	case string(github.AuthorChangesRequested):
		return "✗"
	case string(github.AuthorCommented):
		return "💬"
	case "draft":
		return "📝"
	case "merged":
		return "⇡"
	default:
		return "·"
	}
}

func statusColor(label string) lipgloss.Color {
	switch label {
	case "pending":
		return colorPending
	case "reviewed":
		return colorReviewed
	case string(github.AuthorApproved):
		return colorApproved
	case string(github.AuthorChangesRequested):
		return colorChanges
	case string(github.AuthorCommented):
		return colorCommented
	case "draft":
		return colorDraft
	case "merged":
		return colorMerged
	default:
		return colorForeground
	}
}
