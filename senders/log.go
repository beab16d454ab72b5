package senders

import "context"

type logSender struct {
	base
}

func (s *logSender) Send(ctx context.Context, subject, body string) (string, error) {
	s.log.Sugar().Infow("ALERT "+subject, "body", body)
	return "", nil
}
