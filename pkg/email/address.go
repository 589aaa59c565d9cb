package email

import "net/mail"

// validAddress accepts a bare RFC 5322 address ("user@example.com"), not a
// display-name form.
func validAddress(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}
