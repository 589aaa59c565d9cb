package preferences

import (
	"maps"

	"github.com/dmitrymomot/notifyrelay/pkg/event"
)

// Contacts holds the per-channel delivery targets of a user.
type Contacts struct {
	Email       string `json:"email,omitempty" bson:"email,omitempty" yaml:"email,omitempty"`
	Phone       string `json:"phone,omitempty" bson:"phone,omitempty" yaml:"phone,omitempty"`
	DeviceToken string `json:"device_token,omitempty" bson:"device_token,omitempty" yaml:"device_token,omitempty"`
}

// Preferences is a user's notification profile.
type Preferences struct {
	UserID string `json:"user_id" bson:"user_id" yaml:"user_id"`
	// Channels toggles delivery per channel. A channel missing from the map is enabled.
	Channels     map[event.Channel]bool `json:"channels,omitempty" bson:"channels,omitempty" yaml:"channels,omitempty"`
	QuietHours   QuietHours             `json:"quiet_hours" bson:"quiet_hours" yaml:"quiet_hours"`
	PriorityOnly bool                   `json:"priority_only" bson:"priority_only" yaml:"priority_only"`
	Contacts     Contacts               `json:"contacts" bson:"contacts" yaml:"contacts"`
}

// Default is the profile of a user who never saved preferences: every channel
// enabled, no quiet hours, no priority-only filter.
func Default(userID string) Preferences {
	return Preferences{UserID: userID}
}

// Enabled reports whether the user accepts notifications on ch.
func (p Preferences) Enabled(ch event.Channel) bool {
	on, ok := p.Channels[ch]
	return !ok || on
}

// Target returns the address used to reach the user on ch, or "" when unknown.
func (p Preferences) Target(ch event.Channel) string {
	switch ch {
	case event.ChannelEmail:
		return p.Contacts.Email
	case event.ChannelSMS:
		return p.Contacts.Phone
	case event.ChannelPush:
		return p.Contacts.DeviceToken
	}
	return ""
}

// Clone returns a deep copy so cached profiles cannot be mutated by callers.
func (p Preferences) Clone() Preferences {
	p.Channels = maps.Clone(p.Channels)
	return p
}
