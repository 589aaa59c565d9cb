package sms

import "errors"

var (
	ErrSendFailed   = errors.New("sms: send failed")
	ErrInvalidPhone = errors.New("sms: phone number is not in E.164 format")
)
