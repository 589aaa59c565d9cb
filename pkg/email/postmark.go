package email

import (
	"context"
	"errors"
	"fmt"

	"github.com/mrz1836/postmark"

	"github.com/dmitrymomot/notifyrelay/pkg/delivery"
)

type postmarkAPI interface {
	SendEmail(ctx context.Context, email postmark.Email) (postmark.EmailResponse, error)
}

// PostmarkSender delivers email notifications through Postmark's
// transactional API.
type PostmarkSender struct {
	client postmarkAPI
	cfg    Config
}

// NewPostmarkSender requires both Postmark tokens and a valid sender address.
func NewPostmarkSender(cfg Config) (*PostmarkSender, error) {
	if cfg.PostmarkServerToken == "" {
		return nil, fmt.Errorf("%w: PostmarkServerToken is required", ErrInvalidConfig)
	}
	if cfg.PostmarkAccountToken == "" {
		return nil, fmt.Errorf("%w: PostmarkAccountToken is required", ErrInvalidConfig)
	}
	return newPostmarkSender(postmark.NewClient(cfg.PostmarkServerToken, cfg.PostmarkAccountToken), cfg)
}

func newPostmarkSender(client postmarkAPI, cfg Config) (*PostmarkSender, error) {
	if !validAddress(cfg.SenderEmail) {
		return nil, fmt.Errorf("%w: SenderEmail must be a valid email address", ErrInvalidConfig)
	}
	if cfg.ReplyTo != "" && !validAddress(cfg.ReplyTo) {
		return nil, fmt.Errorf("%w: ReplyTo must be a valid email address", ErrInvalidConfig)
	}
	return &PostmarkSender{client: client, cfg: cfg}, nil
}

// Send implements delivery.Sender. Unknown or malformed recipients and
// Postmark's recipient-level rejections are permanent.
func (s *PostmarkSender) Send(ctx context.Context, to string, c delivery.Content) error {
	if to == "" {
		return delivery.ErrMissingTarget
	}
	if !validAddress(to) {
		return delivery.Permanent(fmt.Errorf("%w: %q", ErrInvalidAddress, to))
	}

	resp, err := s.client.SendEmail(ctx, postmark.Email{
		From:     s.cfg.SenderEmail,
		ReplyTo:  s.cfg.ReplyTo,
		To:       to,
		Subject:  c.Subject,
		Tag:      c.Tag,
		TextBody: c.Body,
		Metadata: c.Data,
	})
	if err != nil {
		return errors.Join(ErrFailedToSendEmail, err)
	}
	if resp.ErrorCode > 0 {
		err := fmt.Errorf("%w: postmark error %d: %s", ErrFailedToSendEmail, resp.ErrorCode, resp.Message)
		// https://postmarkapp.com/developer/api/overview#error-codes
		switch resp.ErrorCode {
		case 300, 406, 409, 411: // invalid request, inactive recipient, JSON required, too many recipients
			return delivery.Permanent(err)
		}
		return err
	}
	return nil
}
