// Package pii detects and redacts personally identifiable information in
// free text. Redaction runs over inbound document text at ingestion and,
// when enabled, over outbound Q&A responses.
package pii

import (
	"regexp"
	"strings"
)

// Pattern names accepted in configuration.
const (
	PatternSSN        = "ssn"
	PatternEmail      = "email"
	PatternPhone      = "phone"
	PatternCreditCard = "credit_card"
	PatternIPAddress  = "ip_address"
)

// patternOrder fixes the application order. SSN runs before phone so the
// phone pattern never sees digit groups that are really an SSN.
var patternOrder = []string{
	PatternSSN,
	PatternEmail,
	PatternPhone,
	PatternCreditCard,
	PatternIPAddress,
}

var patterns = map[string]*regexp.Regexp{
	PatternSSN:        regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
	PatternEmail:      regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
	PatternPhone:      regexp.MustCompile(`\b(\+\d{1,2}\s?)?(\(?\d{3}\)?[\s.-]?)?\d{3}[\s.-]?\d{4}\b`),
	PatternCreditCard: regexp.MustCompile(`\b\d{4}[\s-]?\d{4}[\s-]?\d{4}[\s-]?\d{4}\b`),
	PatternIPAddress:  regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`),
}

// defaultRedactKeys are map keys treated as sensitive regardless of value.
var defaultRedactKeys = []string{
	"password",
	"ssn",
	"social_security_number",
	"credit_card",
	"card_number",
	"cvv",
	"api_key",
	"secret",
	"token",
}

// Redactor applies a configured subset of the known patterns. Unknown
// names in the configuration are ignored.
type Redactor struct {
	enabled []string
}

// NewRedactor creates a redactor applying the named patterns in their
// fixed order.
func NewRedactor(names []string) *Redactor {
	enabled := make([]string, 0, len(names))
	for _, name := range patternOrder {
		for _, configured := range names {
			if configured == name {
				enabled = append(enabled, name)
				break
			}
		}
	}
	return &Redactor{enabled: enabled}
}

// Redact replaces every match of an enabled pattern with a redaction
// marker naming the pattern, e.g. [REDACTED_EMAIL].
func (r *Redactor) Redact(text string) string {
	if text == "" {
		return text
	}
	redacted := text
	for _, name := range r.enabled {
		replacement := "[REDACTED_" + strings.ToUpper(name) + "]"
		redacted = patterns[name].ReplaceAllString(redacted, replacement)
	}
	return redacted
}

// Scan checks text against every known pattern, enabled or not, and
// returns the names of those that matched. The ingestion path uses it to
// set the sensitive flag on stored documents.
func (r *Redactor) Scan(text string) (bool, []string) {
	var detected []string
	for _, name := range patternOrder {
		if patterns[name].MatchString(text) {
			detected = append(detected, name)
		}
	}
	return len(detected) > 0, detected
}

// RedactKeys returns a copy of data with the given keys replaced by a
// redaction marker. A nil key list selects the default sensitive keys.
// Useful for structured log payloads.
func RedactKeys(data map[string]interface{}, keys []string) map[string]interface{} {
	if keys == nil {
		keys = defaultRedactKeys
	}
	redacted := make(map[string]interface{}, len(data))
	for k, v := range data {
		redacted[k] = v
	}
	for _, key := range keys {
		if _, ok := redacted[key]; ok {
			redacted[key] = "[REDACTED]"
		}
	}
	return redacted
}
