package email

import (
	"fmt"
	"html"
	"net/url"
	"strings"
)

const (
	SignupSubject    = "Diaspora Invest: Verify Account"
	verifyEmailRoute = "/api/v1/public/verify-email/"
)

// VerificationLink arma el enlace de verificacion para un codigo.
func VerificationLink(baseURL, code string) string {
	return strings.TrimRight(baseURL, "/") + verifyEmailRoute + url.PathEscape(code)
}

// SignupVerification construye el correo de verificacion de cuenta.
func SignupVerification(from, fromName, to, link string) Message {
	escaped := html.EscapeString(link)
	body := fmt.Sprintf(
		`<p>To verify your account, please click on the following link: <a href="%s">Verify my account</a>.</p>`+
			`<p>If the link does not work, please copy this URL into your browser and press enter: %s</p>`,
		escaped, escaped,
	)
	return Message{
		From:     from,
		FromName: fromName,
		To:       to,
		Subject:  SignupSubject,
		Text:     fmt.Sprintf("To verify your account, open the following link: %s\n", link),
		HTML:     `<!DOCTYPE html><html><head><title>Message</title></head><body>` + body + `</body></html>`,
	}
}
