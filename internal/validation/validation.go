// Package validation provides the per-section rule sets for helpdesk settings
// and the engine that runs them.
package validation

import (
	"fmt"
	"net/mail"
	"net/netip"
	"strings"
	"time"
	_ "time/tzdata"
)

// isAlpha returns true if the byte is an ASCII letter.
func isAlpha(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// isNum returns true if the byte is an ASCII digit.
func isNum(b byte) bool {
	return b >= '0' && b <= '9'
}

// isAlphaNum returns true if the byte is an ASCII letter or digit.
func isAlphaNum(b byte) bool {
	return isAlpha(b) || isNum(b)
}

// ValidateEmail validates a bare email address of the form user@domain.tld.
// Display names ("Support <support@example.com>") are rejected.
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email must not be empty")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return fmt.Errorf("email must be a valid address such as user@example.com")
	}
	domainPart := email[strings.LastIndex(email, "@")+1:]
	if !strings.Contains(domainPart, ".") || strings.HasPrefix(domainPart, ".") || strings.HasSuffix(domainPart, ".") {
		return fmt.Errorf("email domain must contain a dot")
	}
	return nil
}

// ValidatePort validates a TCP port number (1-65535).
func ValidatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	return nil
}

// ValidateURL checks that a URL carries the required scheme prefix and a host.
func ValidateURL(raw, prefix string) error {
	if raw == "" {
		return fmt.Errorf("URL must not be empty")
	}
	rest, ok := strings.CutPrefix(raw, prefix)
	if !ok {
		return fmt.Errorf("URL must start with '%s'", prefix)
	}
	if strings.TrimLeft(rest, "/") == "" {
		return fmt.Errorf("URL is incomplete after '%s'", prefix)
	}
	if strings.ContainsAny(raw, " \t\r\n") {
		return fmt.Errorf("URL must not contain whitespace")
	}
	return nil
}

// ValidateHostAddress validates an IP address or CIDR notation.
func ValidateHostAddress(addr string) error {
	if addr == "" {
		return fmt.Errorf("address must not be empty")
	}
	if _, err := netip.ParseAddr(addr); err == nil {
		return nil
	}
	if _, err := netip.ParsePrefix(addr); err == nil {
		return nil
	}
	return fmt.Errorf("must be a valid IP address or CIDR")
}

// ValidateHostName validates a DNS host name such as smtp.example.com.
func ValidateHostName(host string) error {
	if host == "" {
		return fmt.Errorf("host must not be empty")
	}
	if _, err := netip.ParseAddr(host); err == nil {
		return nil
	}
	for _, label := range strings.Split(host, ".") {
		if label == "" {
			return fmt.Errorf("host must not contain empty labels")
		}
		if label[0] == '-' || label[len(label)-1] == '-' {
			return fmt.Errorf("host labels must not start or end with a hyphen")
		}
		for _, b := range []byte(label) {
			if !isAlphaNum(b) && b != '-' {
				return fmt.Errorf("host names can only contain letters, numbers, hyphens or dots")
			}
		}
	}
	return nil
}

// ValidateTimezone validates an IANA time zone name.
func ValidateTimezone(tz string) error {
	if tz == "" {
		return fmt.Errorf("timezone must not be empty")
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return fmt.Errorf("unknown timezone: %s", tz)
	}
	return nil
}

// ValidateTicketPrefix validates a ticket number prefix: 1-10 letters or digits.
func ValidateTicketPrefix(prefix string) error {
	if prefix == "" {
		return fmt.Errorf("ticket prefix must not be empty")
	}
	if len(prefix) > 10 {
		return fmt.Errorf("ticket prefix must be at most 10 characters")
	}
	for _, b := range []byte(prefix) {
		if !isAlphaNum(b) {
			return fmt.Errorf("ticket prefix can only contain letters or numbers")
		}
	}
	return nil
}

// ValidateProjectKey validates a Jira project key: 2-10 uppercase letters.
func ValidateProjectKey(key string) error {
	if len(key) < 2 || len(key) > 10 {
		return fmt.Errorf("project key must be 2 to 10 characters")
	}
	for _, b := range []byte(key) {
		if b < 'A' || b > 'Z' {
			return fmt.Errorf("project key can only contain uppercase letters")
		}
	}
	return nil
}

// inRange returns a message when n is outside [lo, hi].
func inRange(n, lo, hi int, what string) string {
	if n < lo || n > hi {
		return fmt.Sprintf("%s must be between %d and %d", what, lo, hi)
	}
	return ""
}

// message turns a check error into a rule result.
func message(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
