package email

import (
	"context"
	"fmt"
	"net/smtp"

	"go.uber.org/zap"
)

type SMTPNotifier struct {
	host   string
	port   int
	from   string
	logger *zap.Logger
}

func NewSMTPNotifier(host string, port int, from string, logger *zap.Logger) *SMTPNotifier {
	return &SMTPNotifier{host: host, port: port, from: from, logger: logger}
}

func (n *SMTPNotifier) NotifyFailure(_ context.Context, userEmail, requestID, query, errorMsg string) error {
	addr := fmt.Sprintf("%s:%d", n.host, n.port)

	subject := fmt.Sprintf("Tech Support Tutorial Failed [Request %s]", requestID)
	body := fmt.Sprintf(
		"Hello,\r\n\r\n"+
			"We could not build a tutorial for your request.\r\n\r\n"+
			"Request ID: %s\r\n"+
			"Question: %s\r\n"+
			"Error: %s\r\n\r\n"+
			"Please try rephrasing your question or ask again later.\r\n\r\n"+
			"-- Automated Visual Tech Support",
		requestID, query, errorMsg,
	)

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		n.from, userEmail, subject, body,
	)

	err := smtp.SendMail(addr, nil, n.from, []string{userEmail}, []byte(msg))
	if err != nil {
		n.logger.Error("failed to send failure notification email",
			zap.String("to", userEmail),
			zap.String("request_id", requestID),
			zap.Error(err),
		)
		return fmt.Errorf("send email: %w", err)
	}

	n.logger.Info("failure notification email sent",
		zap.String("to", userEmail),
		zap.String("request_id", requestID),
	)
	return nil
}
