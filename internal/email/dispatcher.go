package email

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Result es el desenlace de un unico Dispatch.
type Result struct {
	Receipt Receipt
	Err     error
}

// Dispatcher entrega correos de forma asincrona. Cada llamada recibe su propio
// canal de resultado; ninguna llamada observa el desenlace de otra.
type Dispatcher struct {
	sender Sender
	logger *zap.Logger
}

func NewDispatcher(sender Sender, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{sender: sender, logger: logger}
}

// Dispatch lanza el envio y devuelve un canal que recibe exactamente un Result.
// El canal tiene buffer, asi que el envio nunca se bloquea si el llamador se rinde.
func (d *Dispatcher) Dispatch(ctx context.Context, msg Message) <-chan Result {
	out := make(chan Result, 1)
	if d.sender == nil {
		out <- Result{Err: fmt.Errorf("email sender not configured")}
		return out
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				out <- Result{Err: fmt.Errorf("email sender panic: %v", r)}
			}
		}()

		receipt, err := d.sender.Send(ctx, msg)
		if err != nil {
			d.logger.Warn("email delivery failed", zap.String("to", msg.To), zap.Error(err))
		} else {
			d.logger.Debug("email delivered",
				zap.String("to", msg.To),
				zap.String("transport", receipt.Transport),
				zap.String("message_id", receipt.MessageID),
			)
		}
		out <- Result{Receipt: receipt, Err: err}
	}()
	return out
}
