// Package sms is the SMS channel transport, backed by Amazon SNS direct
// publishing to E.164 phone numbers.
package sms
