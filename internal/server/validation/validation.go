// Package validation checks account form input and collects per-field
// messages for re-rendering the form.
package validation

import (
	"fmt"
	"net/mail"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/dmitrijs2005/accounts/internal/common"
)

const (
	MaxUserNameLength = 30
	MinPasswordLength = 8
)

// NonField is the key for messages that belong to the whole form.
const NonField = "__all__"

// Errors maps a field name to its messages. It matches common.ErrValidation
// with errors.Is.
type Errors map[string][]string

func (e Errors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f, strings.Join(e[f], " ")))
	}
	return "validation error: " + strings.Join(parts, "; ")
}

func (e Errors) Is(target error) bool {
	return target == common.ErrValidation
}

func (e Errors) Add(field, msg string) {
	e[field] = append(e[field], msg)
}

// Has reports whether field already has a message.
func (e Errors) Has(field string) bool {
	return len(e[field]) > 0
}

// Err returns nil when no message was added, e otherwise.
func (e Errors) Err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

// Required adds the standard message when value is blank. It reports
// whether the value was present.
func (e Errors) Required(field, value string) bool {
	if strings.TrimSpace(value) == "" {
		e.Add(field, "This field is required.")
		return false
	}
	return true
}

// NormalizeEmail trims the address and lower-cases its domain part.
func NormalizeEmail(email string) string {
	email = strings.TrimSpace(email)
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email
	}
	return email[:at] + "@" + strings.ToLower(email[at+1:])
}

// CheckEmail returns a message for an address that is not a bare
// user@domain, or "".
func CheckEmail(email string) string {
	const msg = "Enter a valid email address."

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return msg
	}
	at := strings.LastIndex(email, "@")
	domain := email[at+1:]
	if domain != "localhost" && !strings.Contains(strings.Trim(domain, "."), ".") {
		return msg
	}
	return ""
}

var userNameRe = regexp.MustCompile(`^[\w.@+-]+$`)

// CheckUserName returns messages for length and allowed characters.
func CheckUserName(name string) []string {
	var msgs []string
	if n := utf8.RuneCountInString(name); n > MaxUserNameLength {
		msgs = append(msgs, fmt.Sprintf("Ensure this value has at most %d characters (it has %d).", MaxUserNameLength, n))
	}
	if !userNameRe.MatchString(name) {
		msgs = append(msgs, "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters.")
	}
	return msgs
}
