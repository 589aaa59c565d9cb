package email

// Config holds email transport configuration.
// The Postmark tokens are optional so development setups can run with the
// DevSender. SenderEmail is always required: it is the From address.
type Config struct {
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	SenderEmail          string `env:"RELAY_EMAIL_SENDER" envDefault:"notifications@example.com"`
	ReplyTo              string `env:"RELAY_EMAIL_REPLY_TO"`
	// DevDir is where DevSender writes messages.
	DevDir string `env:"RELAY_EMAIL_DEV_DIR" envDefault:"./tmp/emails"`
}
