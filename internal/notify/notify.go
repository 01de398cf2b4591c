package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/marcin-skalski/review-radar/internal/config"
	"github.com/marcin-skalski/review-radar/internal/github"
	"github.com/marcin-skalski/review-radar/internal/reconcile"
)

// listed is how many PR refs a grouped notification spells out.
const listed = 3

type Notification struct {
	ID      string
	Title   string
	Message string
	URL     string
}

// Desktop shows a notification to the user.
type Desktop interface {
	Show(ctx context.Context, n Notification) error
}

// Sounder plays a sound preset. Implemented by *audio.Guard.
type Sounder interface {
	Play(ctx context.Context, soundType string) error
}

// SettingsLoader is the persisted user preference source.
type SettingsLoader interface {
	LoadSettings(ctx context.Context) (config.Settings, bool, error)
}

type Notifier struct {
	desktop  Desktop
	sounder  Sounder
	settings SettingsLoader
	defaults config.Settings
	logger   *slog.Logger
}

func New(desktop Desktop, sounder Sounder, settings SettingsLoader, defaults config.Settings, logger *slog.Logger) *Notifier {
	return &Notifier{
		desktop:  desktop,
		sounder:  sounder,
		settings: settings,
		defaults: defaults.WithDefaults(),
		logger:   logger,
	}
}

func (n *Notifier) currentSettings(ctx context.Context) config.Settings {
	s, ok, err := n.settings.LoadSettings(ctx)
	if err != nil {
		n.logger.Warn("load settings, using defaults", "err", err)
		return n.defaults
	}
	if !ok {
		return n.defaults
	}
	return s.WithDefaults()
}

// Notify presents new PRs for category. The preference gate lives here:
// callers pass everything that is new.
func (n *Notifier) Notify(ctx context.Context, category github.Category, prs []github.PullRequest) error {
	s := n.currentSettings(ctx)
	if !s.Notifications() {
		n.logger.Debug("notifications disabled", "category", category, "count", len(prs))
		return nil
	}
	if category == github.CategoryMerged && !s.Merged() {
		return nil
	}

	visible := prs
	if category == github.CategoryAssigned && !s.Drafts() {
		visible = withoutDrafts(prs)
	}
	if len(visible) == 0 {
		return nil
	}

	return n.present(ctx, s, compose(category, visible))
}

// NotifyStatusChanges tells the author about new review verdicts on their PRs.
func (n *Notifier) NotifyStatusChanges(ctx context.Context, changes []reconcile.StatusChange) error {
	if len(changes) == 0 {
		return nil
	}
	s := n.currentSettings(ctx)
	if !s.Notifications() || !s.AuthoredStatus() {
		return nil
	}
	return n.present(ctx, s, composeStatus(changes))
}

// Test shows a sample notification with the configured sound.
func (n *Notifier) Test(ctx context.Context) (string, error) {
	s := n.currentSettings(ctx)
	note := Notification{
		ID:      uuid.NewString(),
		Title:   "review-radar",
		Message: "Notifications are working.",
	}
	if err := n.present(ctx, s, note); err != nil {
		return "", err
	}
	return note.ID, nil
}

// PreviewSound plays soundType regardless of the notification settings.
func (n *Notifier) PreviewSound(ctx context.Context, soundType string) error {
	if !config.ValidSound(soundType) {
		return fmt.Errorf("unknown sound type %q", soundType)
	}
	if soundType == config.SoundOff {
		return nil
	}
	return n.sounder.Play(ctx, soundType)
}

func (n *Notifier) present(ctx context.Context, s config.Settings, note Notification) error {
	if note.ID == "" {
		note.ID = uuid.NewString()
	}

	var errs []error
	if err := n.desktop.Show(ctx, note); err != nil {
		errs = append(errs, fmt.Errorf("show notification: %w", err))
	} else {
		n.logger.Info("notification shown", "id", note.ID, "title", note.Title)
	}

	if s.Sound != config.SoundOff {
		if err := n.sounder.Play(ctx, s.Sound); err != nil {
			errs = append(errs, fmt.Errorf("play %s: %w", s.Sound, err))
		}
	}

	return errors.Join(errs...)
}

func withoutDrafts(prs []github.PullRequest) []github.PullRequest {
	out := make([]github.PullRequest, 0, len(prs))
	for _, pr := range prs {
		if pr.Type != github.TypeDraft {
			out = append(out, pr)
		}
	}
	return out
}

func compose(category github.Category, prs []github.PullRequest) Notification {
	var title string
	switch category {
	case github.CategoryMerged:
		title = plural(len(prs), "Pull request merged", "%d pull requests merged")
	case github.CategoryAuthored:
		title = plural(len(prs), "Pull request opened", "%d pull requests opened")
	default:
		title = plural(len(prs), "New review request", "%d new review requests")
	}

	if len(prs) == 1 {
		pr := prs[0]
		return Notification{
			Title:   title,
			Message: fmt.Sprintf("%s: %s (by %s)", pr.Ref(), pr.Title, pr.Author.Login),
			URL:     pr.URL,
		}
	}

	refs := make([]string, len(prs))
	for i, pr := range prs {
		refs[i] = pr.Ref()
	}
	return Notification{Title: title, Message: summarize(refs)}
}

func composeStatus(changes []reconcile.StatusChange) Notification {
	if len(changes) == 1 {
		pr := changes[0].PR
		var title string
		switch pr.AuthorReviewStatus {
		case github.AuthorApproved:
			title = "Pull request approved"
		case github.AuthorChangesRequested:
			title = "Changes requested"
		default:
			title = "New review comments"
		}
		return Notification{
			Title:   title,
			Message: fmt.Sprintf("%s: %s", pr.Ref(), pr.Title),
			URL:     pr.URL,
		}
	}

	refs := make([]string, len(changes))
	for i, c := range changes {
		refs[i] = fmt.Sprintf("%s (%s)", c.PR.Ref(), strings.ReplaceAll(string(c.PR.AuthorReviewStatus), "_", " "))
	}
	return Notification{
		Title:   fmt.Sprintf("%d of your pull requests have review updates", len(changes)),
		Message: summarize(refs),
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return fmt.Sprintf(many, n)
}

func summarize(refs []string) string {
	if len(refs) <= listed {
		return strings.Join(refs, ", ")
	}
	return fmt.Sprintf("%s and %d more", strings.Join(refs[:listed], ", "), len(refs)-listed)
}
