package sms

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"unicode/utf8"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/aws/smithy-go"

	"github.com/dmitrymomot/notifyrelay/pkg/delivery"
)

// Config holds SMS transport settings.
type Config struct {
	// SenderID is shown as the sender where carriers support it.
	SenderID string `env:"RELAY_SMS_SENDER_ID"`
	// MaxLength truncates message bodies (in runes).
	MaxLength int `env:"RELAY_SMS_MAX_LENGTH" envDefault:"320"`
}

type snsAPI interface {
	Publish(ctx context.Context, in *sns.PublishInput, opts ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSSender sends text messages directly to phone numbers through Amazon SNS.
type SNSSender struct {
	client snsAPI
	cfg    Config
}

// NewSNSSender builds a sender publishing through client.
func NewSNSSender(client snsAPI, cfg Config) *SNSSender {
	if cfg.MaxLength <= 0 {
		cfg.MaxLength = 320
	}
	return &SNSSender{client: client, cfg: cfg}
}

var e164 = regexp.MustCompile(`^\+[1-9][0-9]{6,14}$`)

// Send implements delivery.Sender. Critical notifications go out as
// Transactional messages, the rest as Promotional.
func (s *SNSSender) Send(ctx context.Context, phone string, c delivery.Content) error {
	if phone == "" {
		return delivery.ErrMissingTarget
	}
	if !e164.MatchString(phone) {
		return delivery.Permanent(fmt.Errorf("%w: %q", ErrInvalidPhone, phone))
	}

	smsType := "Promotional"
	if c.Data["criticality"] == "critical" {
		smsType = "Transactional"
	}
	attrs := map[string]types.MessageAttributeValue{
		"AWS.SNS.SMS.SMSType": {DataType: aws.String("String"), StringValue: aws.String(smsType)},
	}
	if s.cfg.SenderID != "" {
		attrs["AWS.SNS.SMS.SenderID"] = types.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(s.cfg.SenderID)}
	}

	_, err := s.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber:       aws.String(phone),
		Message:           aws.String(truncate(c.Body, s.cfg.MaxLength)),
		MessageAttributes: attrs,
	})
	return classify(err)
}

// classify maps SNS errors onto delivery semantics.
func classify(err error) error {
	if err == nil {
		return nil
	}
	err = fmt.Errorf("%w: %w", ErrSendFailed, err)

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "InvalidParameter", "ParameterValueInvalid", "OptedOut", "EndpointDisabled":
			return delivery.Permanent(err)
		}
	}
	return err
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}
