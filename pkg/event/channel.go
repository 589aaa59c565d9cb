package event

import (
	"fmt"
	"strings"
)

// Channel is a delivery medium.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
	ChannelPush  Channel = "push"
)

// Channels is the fixed evaluation order used by the router.
var Channels = []Channel{ChannelEmail, ChannelSMS, ChannelPush}

// ParseChannel normalizes s to a Channel.
func ParseChannel(s string) (Channel, error) {
	ch := Channel(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Channels {
		if ch == known {
			return ch, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownChannel, s)
}

// Valid reports whether ch is one of Channels.
func (ch Channel) Valid() bool {
	for _, known := range Channels {
		if ch == known {
			return true
		}
	}
	return false
}

// LaneName returns the lane identifier "{channel}_{criticality}".
func LaneName(ch Channel, c Criticality) string {
	return string(ch) + "_" + string(c)
}

// DeadLetterName returns the dead-letter destination of a lane.
func DeadLetterName(lane string) string {
	return lane + "_dlq"
}

// Lanes returns all six lane names in drain order per channel.
func Lanes() []string {
	names := make([]string, 0, len(Channels)*len(Criticalities))
	for _, ch := range Channels {
		for _, c := range Criticalities {
			names = append(names, LaneName(ch, c))
		}
	}
	return names
}
