package router

import (
	"time"

	"github.com/dmitrymomot/notifyrelay/pkg/event"
	"github.com/dmitrymomot/notifyrelay/pkg/preferences"
)

// Action is the routing outcome for one channel.
type Action string

const (
	RouteCritical    Action = "route_critical"
	RouteNonCritical Action = "route_non_critical"
	Suppress         Action = "suppress"
)

// Reason explains a suppression.
type Reason string

const (
	ReasonChannelDisabled Reason = "channel_disabled"
	ReasonPriorityOnly    Reason = "priority_only"
	ReasonQuietHours      Reason = "quiet_hours"
)

// ChannelDecision is the decision for a single channel.
type ChannelDecision struct {
	Channel event.Channel
	Action  Action
	Reason  Reason
}

// Lane returns the lane the channel routes to, or "" when suppressed.
func (d ChannelDecision) Lane() string {
	switch d.Action {
	case RouteCritical:
		return event.LaneName(d.Channel, event.Critical)
	case RouteNonCritical:
		return event.LaneName(d.Channel, event.NonCritical)
	}
	return ""
}

// Decision holds one ChannelDecision per channel, in event.Channels order.
type Decision struct {
	Criticality event.Criticality
	Channels    []ChannelDecision
}

// For returns the decision for ch. Unknown channels are suppressed.
func (d Decision) For(ch event.Channel) ChannelDecision {
	for _, cd := range d.Channels {
		if cd.Channel == ch {
			return cd
		}
	}
	return ChannelDecision{Channel: ch, Action: Suppress, Reason: ReasonChannelDisabled}
}

// Decide evaluates every channel against a single preference snapshot.
// Per channel, in order: a disabled channel is suppressed; a critical event
// routes to the critical lane; a non-critical event is suppressed under
// priority-only mode or inside quiet hours, and otherwise routes to the
// non-critical lane.
func Decide(crit event.Criticality, prefs preferences.Preferences, now time.Time) Decision {
	// A malformed window is inactive; an unknown zone is evaluated in UTC.
	quiet, _ := prefs.QuietHours.Active(now)

	d := Decision{
		Criticality: crit,
		Channels:    make([]ChannelDecision, 0, len(event.Channels)),
	}
	for _, ch := range event.Channels {
		cd := ChannelDecision{Channel: ch}
		switch {
		case !prefs.Enabled(ch):
			cd.Action, cd.Reason = Suppress, ReasonChannelDisabled
		case crit == event.Critical:
			cd.Action = RouteCritical
		case prefs.PriorityOnly:
			cd.Action, cd.Reason = Suppress, ReasonPriorityOnly
		case quiet:
			cd.Action, cd.Reason = Suppress, ReasonQuietHours
		default:
			cd.Action = RouteNonCritical
		}
		d.Channels = append(d.Channels, cd)
	}
	return d
}
