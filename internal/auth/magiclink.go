package auth

import (
	"context"

	"go.uber.org/zap"
)

// MagicLinkSender delivers an issued magic-link token out of band (email in
// production). The HTTP response for the request phase carries only an
// acknowledgment; the token is never part of the wire response unless the
// dev echo flag is set.
type MagicLinkSender interface {
	SendMagicLink(ctx context.Context, email, token string) error
}

// LogMagicLinkSender is the default delivery placeholder. It records that a
// link was issued without logging the token itself.
type LogMagicLinkSender struct {
	Logger *zap.SugaredLogger
}

func (s LogMagicLinkSender) SendMagicLink(ctx context.Context, email, token string) error {
	if s.Logger != nil {
		s.Logger.Infow("magic link issued", "email", email)
	}
	return nil
}
