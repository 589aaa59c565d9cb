package delivery

import (
	"fmt"
	"strings"

	"github.com/dmitrymomot/notifyrelay/pkg/event"
	"github.com/dmitrymomot/notifyrelay/pkg/lane"
)

var subjects = map[event.Type]string{
	event.TypeLike:     "New like",
	event.TypeComment:  "New comment",
	event.TypeShare:    "Your post was shared",
	event.TypeFollow:   "New follower",
	event.TypeUnfollow: "Follower update",
	event.TypeMention:  "You were mentioned",
	event.TypeMessage:  "New message",
	event.TypePost:     "New post",
}

var verbs = map[event.Type]string{
	event.TypeLike:     "Someone liked your %s.",
	event.TypeComment:  "Someone commented on your %s.",
	event.TypeShare:    "Someone shared your %s.",
	event.TypeFollow:   "You have a new follower.",
	event.TypeUnfollow: "Someone stopped following you.",
	event.TypeMention:  "You were mentioned in a %s.",
	event.TypeMessage:  "You have a new message.",
	event.TypePost:     "Someone you follow published a new %s.",
}

// Render builds the notification content for a lane message.
func Render(msg lane.Message) Content {
	subject, ok := subjects[msg.EventType]
	if !ok {
		subject = "Event notification"
	}

	body := fmt.Sprintf("Event %s occurred.", msg.EventType)
	if tpl, ok := verbs[msg.EventType]; ok {
		body = tpl
		if strings.Contains(tpl, "%s") {
			body = fmt.Sprintf(tpl, parentNoun(msg.Payload))
		}
	}

	data := map[string]string{
		"event_id":    msg.EventID,
		"event_type":  string(msg.EventType),
		"criticality": string(msg.Criticality),
	}
	if msg.Payload.ParentID != "" {
		data["parent_id"] = msg.Payload.ParentID
	}
	if msg.Payload.ParentType != "" {
		data["parent_type"] = msg.Payload.ParentType
	}

	return Content{
		Subject: subject,
		Body:    body,
		Tag:     string(msg.EventType),
		Data:    data,
	}
}

func parentNoun(p event.Payload) string {
	if p.ParentType == "" {
		return "post"
	}
	return p.ParentType
}
