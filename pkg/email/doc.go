// Package email is the email channel transport.
//
// PostmarkSender sends plain-text notifications through Postmark's
// transactional API (github.com/mrz1836/postmark). Recipient-level
// rejections (inactive recipient, invalid request) are reported as
// delivery.ErrPermanent so the consumer dead-letters them instead of
// retrying. DevSender writes messages to a directory for local runs:
//
//	sender := email.NewDevSender("./tmp/emails")
//	err := sender.Send(ctx, "user@example.com", delivery.Content{Subject: "New message", Body: "..."})
package email
