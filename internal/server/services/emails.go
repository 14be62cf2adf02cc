package services

import (
	"strings"
	"text/template"
)

const (
	subjectActivation = "Activate your account."
	subjectReset      = "Password reset on {{.SiteName}}"
)

var (
	activationBody = template.Must(template.New("activation").Parse(`Hi {{.UserName}},

Please click on the link below to confirm your registration:

{{.Link}}
`))

	resetSubject = template.Must(template.New("reset_subject").Parse(subjectReset))

	resetBody = template.Must(template.New("reset").Parse(`You're receiving this email because you requested a password reset for your user account at {{.SiteName}}.

Please go to the following page and choose a new password:

{{.Link}}

Your username, in case you've forgotten: {{.UserName}}

Thanks for using our site!

The {{.SiteName}} team
`))
)

type emailData struct {
	UserName string
	SiteName string
	Link     string
}

func render(t *template.Template, data emailData) (string, error) {
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}
