package email

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/dmitrymomot/notifyrelay/pkg/delivery"
)

// DevSender implements delivery.Sender for local development.
// It writes each email as a text body plus a JSON metadata file instead of
// sending it.
type DevSender struct {
	dir string
	now func() time.Time
}

// NewDevSender writes messages below dir.
func NewDevSender(dir string) *DevSender {
	return &DevSender{dir: dir, now: time.Now}
}

type emailMetadata struct {
	Timestamp string            `json:"timestamp"`
	SendTo    string            `json:"send_to"`
	Subject   string            `json:"subject"`
	Tag       string            `json:"tag,omitempty"`
	Data      map[string]string `json:"data,omitempty"`
}

// Send saves the email under dir as "{timestamp}_{event_id or tag}.{txt,json}".
func (d *DevSender) Send(_ context.Context, to string, c delivery.Content) error {
	if to == "" {
		return delivery.ErrMissingTarget
	}
	if !validAddress(to) {
		return delivery.Permanent(fmt.Errorf("%w: %q", ErrInvalidAddress, to))
	}

	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return fmt.Errorf("%w: failed to create directory: %w", ErrFailedToSendEmail, err)
	}

	now := d.now()
	identifier := c.Data["event_id"]
	if identifier == "" {
		identifier = c.Tag
	}
	base := fmt.Sprintf("%s_%s", now.Format("2006_01_02_150405"), sanitizeFilename(identifier))

	if err := os.WriteFile(filepath.Join(d.dir, base+".txt"), []byte(c.Body), 0o644); err != nil {
		return fmt.Errorf("%w: failed to write body file: %w", ErrFailedToSendEmail, err)
	}

	meta, err := json.MarshalIndent(emailMetadata{
		Timestamp: now.Format(time.RFC3339),
		SendTo:    to,
		Subject:   c.Subject,
		Tag:       c.Tag,
		Data:      c.Data,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: failed to marshal metadata: %w", ErrFailedToSendEmail, err)
	}
	if err := os.WriteFile(filepath.Join(d.dir, base+".json"), meta, 0o644); err != nil {
		return fmt.Errorf("%w: failed to write metadata file: %w", ErrFailedToSendEmail, err)
	}
	return nil
}

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9\-_.]`)

func sanitizeFilename(s string) string {
	s = unsafeFilenameChars.ReplaceAllString(strings.ReplaceAll(s, " ", "_"), "")
	if len(s) > 100 {
		s = s[:100]
	}
	if s == "" {
		s = "email"
	}
	return strings.ToLower(s)
}
