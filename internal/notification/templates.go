package notification

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
)

var (
	verificationHTML = template.Must(template.New("verify").Parse(`<div>
	<p>Hi {{.Username}},</p>
	<p>Click on the link below to verify your email address.</p>
	<p><a href="{{.Link}}">Verify</a></p>
</div>`))

	resetHTML = template.Must(template.New("reset").Parse(`<div>
	<p>Hi {{.Username}},</p>
	<p>Click on the link below to reset your password. The link expires in {{.Expiry}}.</p>
	<p><a href="{{.Link}}">Reset password</a></p>
	<p>If you did not ask for this, you can ignore this email.</p>
</div>`))
)

type emailData struct {
	Username string
	Link     string
	Expiry   string
}

// VerificationEmail renders the message carrying an account verification link.
func VerificationEmail(to, username, link string) (Message, error) {
	html, err := render(verificationHTML, emailData{Username: username, Link: link})
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      to,
		Subject: "Verify Your Email",
		HTML:    html,
		Text:    fmt.Sprintf("Hi %s,\n\nVerify your email address: %s\n", username, link),
	}, nil
}

// ResetPasswordEmail renders the message carrying a password reset link.
func ResetPasswordEmail(to, username, link, expiry string) (Message, error) {
	html, err := render(resetHTML, emailData{Username: username, Link: link, Expiry: expiry})
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      to,
		Subject: "Reset Password",
		HTML:    html,
		Text: fmt.Sprintf("Hi %s,\n\nReset your password: %s\nThe link expires in %s.\n",
			username, link, expiry),
	}, nil
}

func render(t *template.Template, data emailData) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering %s email: %w", t.Name(), err)
	}
	return strings.TrimSpace(buf.String()), nil
}
