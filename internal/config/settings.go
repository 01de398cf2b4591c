package config

import "fmt"

// Sound presets understood by the audio surface.
const (
	SoundChime = "chime"
	SoundBell  = "bell"
	SoundOff   = "off"
)

// MaxCheckIntervalMinutes bounds CheckIntervalMinutes to one day.
const MaxCheckIntervalMinutes = 24 * 60

// Settings are user preferences. They are seeded from the config file on first
// run and afterwards live in the store.
type Settings struct {
	NotificationsEnabled *bool  `yaml:"notifications_enabled,omitempty" json:"notificationsEnabled"`
	IncludeDrafts        *bool  `yaml:"include_drafts,omitempty" json:"includeDrafts"`
	Sound                string `yaml:"sound,omitempty" json:"sound"`
	NotifyAuthoredStatus *bool  `yaml:"notify_authored_status,omitempty" json:"notifyAuthoredStatus"`
	NotifyMerged         *bool  `yaml:"notify_merged,omitempty" json:"notifyMerged"`
	// CheckIntervalMinutes overrides poll_interval for the assigned queue. 0 keeps it.
	CheckIntervalMinutes int `yaml:"check_interval_minutes,omitempty" json:"checkIntervalMinutes"`
}

func (s *Settings) fillDefaults() {
	if s.NotificationsEnabled == nil {
		s.NotificationsEnabled = boolPtr(true)
	}
	if s.IncludeDrafts == nil {
		s.IncludeDrafts = boolPtr(false)
	}
	if s.Sound == "" {
		s.Sound = SoundChime
	}
	if s.NotifyAuthoredStatus == nil {
		s.NotifyAuthoredStatus = boolPtr(true)
	}
	if s.NotifyMerged == nil {
		s.NotifyMerged = boolPtr(false)
	}
}

// WithDefaults returns a copy with every unset field filled in.
func (s Settings) WithDefaults() Settings {
	s.fillDefaults()
	return s
}

func (s Settings) Validate() error {
	if !ValidSound(s.Sound) {
		return fmt.Errorf("invalid sound %q (%s|%s|%s)", s.Sound, SoundChime, SoundBell, SoundOff)
	}
	if s.CheckIntervalMinutes < 0 || s.CheckIntervalMinutes > MaxCheckIntervalMinutes {
		return fmt.Errorf("check_interval_minutes must be between 0 and %d, got %d", MaxCheckIntervalMinutes, s.CheckIntervalMinutes)
	}
	return nil
}

func (s Settings) Notifications() bool  { return s.NotificationsEnabled != nil && *s.NotificationsEnabled }
func (s Settings) Drafts() bool         { return s.IncludeDrafts != nil && *s.IncludeDrafts }
func (s Settings) AuthoredStatus() bool { return s.NotifyAuthoredStatus != nil && *s.NotifyAuthoredStatus }
func (s Settings) Merged() bool         { return s.NotifyMerged != nil && *s.NotifyMerged }

func ValidSound(s string) bool {
	switch s {
	case SoundChime, SoundBell, SoundOff:
		return true
	}
	return false
}

func boolPtr(b bool) *bool {
	return &b
}
