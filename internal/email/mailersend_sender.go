package email

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mailersend/mailersend-go"
)

// MailerSendSender envia correos a traves de la API de MailerSend.
type MailerSendSender struct {
	client *mailersend.Mailersend
}

func NewMailerSendSender(apiKey string) (*MailerSendSender, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("mailersend api key is required")
	}
	return &MailerSendSender{client: mailersend.NewMailersend(apiKey)}, nil
}

func (s *MailerSendSender) Send(ctx context.Context, msg Message) (Receipt, error) {
	if strings.TrimSpace(msg.To) == "" {
		return Receipt{}, fmt.Errorf("to email is required")
	}

	m := s.client.Email.NewMessage()
	m.SetFrom(mailersend.From{Name: msg.FromName, Email: msg.From})
	m.SetRecipients([]mailersend.Recipient{{Email: msg.To}})
	m.SetSubject(msg.Subject)
	if strings.TrimSpace(msg.Text) != "" {
		m.SetText(msg.Text)
	}
	if strings.TrimSpace(msg.HTML) != "" {
		m.SetHTML(msg.HTML)
	}

	res, err := s.client.Email.Send(ctx, m)
	if err != nil {
		return Receipt{}, err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(res.Body)
		return Receipt{}, fmt.Errorf("mailersend error: status=%d body=%s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	return Receipt{MessageID: res.Header.Get("X-Message-Id"), Transport: "mailersend"}, nil
}
