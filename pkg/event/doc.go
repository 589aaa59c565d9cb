// Package event defines the relay's vocabulary: inbound events and their
// types, criticality levels, delivery channels and lane names.
//
// Lanes are named "{channel}_{criticality}", e.g. "sms_critical" or
// "push_non_critical", with "{lane}_dlq" as the dead-letter destination.
package event
