package validation

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

var commonPasswords = map[string]struct{}{}

func init() {
	for _, p := range strings.Fields(`
		password password1 password123 passw0rd 12345678 123456789 1234567890
		qwerty qwertyuiop qwerty123 abc12345 abcd1234 iloveyou letmein
		welcome welcome1 admin123 administrator monkey dragon sunshine
		princess football baseball superman trustno1 master 11111111
		00000000 changeme secret123 starwars whatever computer internet
	`) {
		commonPasswords[p] = struct{}{}
	}
}

// CheckPassword applies the password policy and returns its messages.
// userName and email may be empty when they are not known yet.
func CheckPassword(password, userName, email string) []string {
	var msgs []string

	if similar(password, userName) {
		msgs = append(msgs, "The password is too similar to the username.")
	} else if local, _, _ := strings.Cut(email, "@"); similar(password, local) || similar(password, email) {
		msgs = append(msgs, "The password is too similar to the email address.")
	}

	if utf8.RuneCountInString(password) < MinPasswordLength {
		msgs = append(msgs, fmt.Sprintf("This password is too short. It must contain at least %d characters.", MinPasswordLength))
	}

	if _, ok := commonPasswords[strings.ToLower(password)]; ok {
		msgs = append(msgs, "This password is too common.")
	}

	if password != "" && strings.IndexFunc(password, func(r rune) bool { return !unicode.IsDigit(r) }) < 0 {
		msgs = append(msgs, "This password is entirely numeric.")
	}

	return msgs
}

// similar is true when one value contains the other, ignoring case. Values
// shorter than three characters never match.
func similar(password, attr string) bool {
	p := strings.ToLower(password)
	a := strings.ToLower(strings.TrimSpace(attr))
	if len(a) < 3 || len(p) < 3 {
		return false
	}
	return strings.Contains(p, a) || strings.Contains(a, p)
}

// CheckPasswordPair validates a new password entered twice. Messages go to
// the second field, as on the forms.
func CheckPasswordPair(errs Errors, field1, field2, password1, password2, userName, email string) {
	ok1 := errs.Required(field1, password1)
	ok2 := errs.Required(field2, password2)
	if !ok1 || !ok2 {
		return
	}
	if password1 != password2 {
		errs.Add(field2, "The two password fields didn't match.")
		return
	}
	for _, m := range CheckPassword(password2, userName, email) {
		errs.Add(field2, m)
	}
}
