package email

import (
	"context"
	"errors"
)

// Message es un correo listo para entregar al transporte.
type Message struct {
	From     string
	FromName string
	To       string
	Subject  string
	Text     string
	HTML     string
}

// Receipt identifica una entrega aceptada por el transporte.
type Receipt struct {
	MessageID string
	Transport string
}

// Sender define la interfaz para envio de correos.
type Sender interface {
	Send(ctx context.Context, msg Message) (Receipt, error)
}

type disabledSender struct {
	reason string
}

func NewDisabledSender(reason string) Sender {
	return &disabledSender{reason: reason}
}

func (s *disabledSender) Send(_ context.Context, _ Message) (Receipt, error) {
	if s.reason == "" {
		return Receipt{}, errors.New("email sender disabled")
	}
	return Receipt{}, errors.New(s.reason)
}
